// Package jobs owns the forecast job lifecycle: submission, the async
// driver that walks each job through pending -> running -> completed|failed,
// and read access to job state.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/salescope/salescope/internal/cache"
	"github.com/salescope/salescope/internal/forecast"
	"github.com/salescope/salescope/internal/store"
	"github.com/salescope/salescope/pkg/models"
)

var (
	ErrInvalidParams = errors.New("invalid job parameters")
	ErrNotCompleted  = errors.New("job is not completed")
)

const statusCacheTTL = 30 * time.Minute

// stuckMessage is recorded on jobs failed by the watchdog.
const stuckMessage = "job exceeded the forecast timeout while running; " +
	"the process may have restarted mid-job"

// Locator resolves a dataset to a time-limited retrieval URL.
type Locator interface {
	Locate(ctx context.Context, ds *models.Dataset) (string, error)
}

// SubmitParams are the client-supplied parameters of a job submission.
type SubmitParams struct {
	DatasetID   uuid.UUID
	Kind        string
	Horizon     int
	Granularity string
}

// Service orchestrates forecast jobs. Each submitted job is driven by its
// own goroutine; the service never blocks a request on the forecast call.
type Service struct {
	store      store.Store
	locator    Locator
	gateway    forecast.Client
	cache      cache.Cache
	timeout    time.Duration
	stuckAfter time.Duration
}

// NewService creates a job orchestrator. timeout bounds each forecast call;
// stuckAfter is how long a job may sit in running state before the watchdog
// fails it.
func NewService(st store.Store, locator Locator, gateway forecast.Client, ca cache.Cache,
	timeout, stuckAfter time.Duration) *Service {
	return &Service{
		store:      st,
		locator:    locator,
		gateway:    gateway,
		cache:      ca,
		timeout:    timeout,
		stuckAfter: stuckAfter,
	}
}

// Submit validates params, creates a pending job, and dispatches the driver
// in a background goroutine. Returns the job immediately; the client learns
// of progress only by polling Get. Validation failures and unknown datasets
// never create a job record.
func (s *Service) Submit(ctx context.Context, submitter *models.User, params SubmitParams) (*models.Job, error) {
	if !models.ValidJobKind(params.Kind) {
		return nil, fmt.Errorf("%w: unknown job kind %q", ErrInvalidParams, params.Kind)
	}
	if !models.ValidGranularity(params.Granularity) {
		return nil, fmt.Errorf("%w: unknown granularity %q", ErrInvalidParams, params.Granularity)
	}
	if params.Horizon < models.MinHorizon || params.Horizon > models.MaxHorizon {
		return nil, fmt.Errorf("%w: horizon must be between %d and %d, got %d",
			ErrInvalidParams, models.MinHorizon, models.MaxHorizon, params.Horizon)
	}

	dataset, err := s.store.GetDataset(ctx, params.DatasetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("dataset %s: %w", params.DatasetID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("resolving dataset: %w", err)
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:          uuid.New(),
		DatasetID:   dataset.ID,
		SubmitterID: submitter.ID,
		Kind:        params.Kind,
		Horizon:     params.Horizon,
		Granularity: params.Granularity,
		Status:      models.JobStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusPending, statusCacheTTL)

	go s.run(job, dataset)

	return job, nil
}

// run is the async driver. It owns all mutations of its job record and
// always leaves the job in a terminal state on exit: a panic anywhere in
// the driver is recovered and converted into a failed transition.
func (s *Service) run(job *models.Job, dataset *models.Dataset) {
	ctx := context.Background()
	jobID := job.ID

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in job driver", "error", r, "job_id", jobID)
			s.fail(ctx, jobID, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := s.store.UpdateJobStatus(ctx, jobID, models.JobStatusRunning); err != nil {
		slog.Error("job transition to running failed", "error", err, "job_id", jobID)
		return
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusRunning, statusCacheTTL)

	datasetURL, err := s.locator.Locate(ctx, dataset)
	if err != nil {
		s.fail(ctx, jobID, fmt.Sprintf("locating dataset: %v", err))
		return
	}

	forecastCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.gateway.Forecast(forecastCtx, forecast.Request{
		DatasetURL:  datasetURL,
		Kind:        job.Kind,
		Horizon:     job.Horizon,
		Granularity: job.Granularity,
	})
	if err != nil {
		s.fail(ctx, jobID, fmt.Sprintf("forecast failed: %v", err))
		return
	}

	// Accuracy is a percentage; clamp anything out of range.
	if result.Metrics.Accuracy < 0 {
		result.Metrics.Accuracy = 0
	}
	if result.Metrics.Accuracy > 100 {
		result.Metrics.Accuracy = 100
	}

	if err := s.store.UpdateJobStatus(ctx, jobID, models.JobStatusCompleted,
		store.WithResult(result.Predictions),
		store.WithMetrics(result.Metrics)); err != nil {
		slog.Error("job transition to completed failed", "error", err, "job_id", jobID)
		return
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusCompleted, statusCacheTTL)

	slog.Info("job completed", "job_id", jobID, "kind", job.Kind, "horizon", job.Horizon)
}

// fail records a terminal failure with a human-readable message. Failures
// here are final; resubmission requires a fresh Submit producing a new job.
func (s *Service) fail(ctx context.Context, jobID uuid.UUID, message string) {
	if err := s.store.UpdateJobStatus(ctx, jobID, models.JobStatusFailed,
		store.WithErrorMessage(message)); err != nil {
		slog.Error("job transition to failed errored", "error", err, "job_id", jobID)
		return
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, statusCacheTTL)
	slog.Warn("job failed", "job_id", jobID, "reason", message)
}

// Get returns the current job record verbatim, including nullable
// result/metrics/error fields while non-terminal.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return s.store.GetJob(ctx, id)
}

// List returns a page of jobs ordered by creation time, newest first,
// plus the total count for pagination.
func (s *Service) List(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error) {
	return s.store.ListJobs(ctx, filter)
}

// Metrics returns the job when it is completed. For any other status the
// job is returned alongside ErrNotCompleted so callers can echo the
// current status. Clients poll this endpoint while the job runs, so a
// cached non-completed status answers without touching the database; the
// cache may trail the store by one transition, which only delays the
// first successful read by a poll interval.
func (s *Service) Metrics(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if status, ok, err := s.cache.GetJobStatus(ctx, id); err == nil && ok &&
		status != models.JobStatusCompleted {
		return &models.Job{ID: id, Status: status}, ErrNotCompleted
	}

	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusCompleted {
		return job, ErrNotCompleted
	}
	return job, nil
}

// ReconcileStuck fails every job that has sat in running state longer than
// the configured window. Called once at startup and then periodically from
// the watchdog; the current design has no other crash-recovery story for
// in-flight jobs.
func (s *Service) ReconcileStuck(ctx context.Context) (int, error) {
	n, err := s.store.FailStuckJobs(ctx, s.stuckAfter, stuckMessage)
	if err != nil {
		return 0, fmt.Errorf("reconcile stuck jobs: %w", err)
	}
	if n > 0 {
		slog.Warn("reconciled stuck jobs", "count", n)
	}
	return n, nil
}
