package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/salescope/salescope/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	CreateDataset(ctx context.Context, ds *models.Dataset) error
	GetDataset(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	GetDatasetByStorageKey(ctx context.Context, key string) (*models.Dataset, error)
	ListDatasets(ctx context.Context, filter DatasetFilter) ([]*models.Dataset, int, error)

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error
	FailStuckJobs(ctx context.Context, stuckAfter time.Duration, message string) (int, error)
}

// DatasetFilter narrows and pages dataset listings.
type DatasetFilter struct {
	OwnerID  uuid.UUID
	Page     int
	PageSize int
}

// JobFilter narrows and pages job listings. Results are ordered by
// creation time, newest first.
type JobFilter struct {
	SubmitterID uuid.UUID
	DatasetID   uuid.UUID
	Status      string
	Page        int
	PageSize    int
}

// JobUpdate carries the optional fields of a status transition. Exported so
// that fake stores in tests can apply options the same way PostgresStore does.
type JobUpdate struct {
	Result       []models.Prediction
	Metrics      *models.Metrics
	ErrorMessage *string
}

type JobUpdateOption func(*JobUpdate)

// ApplyJobUpdateOptions folds opts into a JobUpdate.
func ApplyJobUpdateOptions(opts ...JobUpdateOption) JobUpdate {
	var u JobUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

func WithResult(preds []models.Prediction) JobUpdateOption {
	return func(p *JobUpdate) {
		p.Result = preds
	}
}

func WithMetrics(m models.Metrics) JobUpdateOption {
	return func(p *JobUpdate) {
		p.Metrics = &m
	}
}

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.ErrorMessage = &msg
	}
}
