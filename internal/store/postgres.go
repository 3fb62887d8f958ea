package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/salescope/salescope/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, name, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Email, user.PasswordHash, user.Name, user.Role, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, name, role, created_at, updated_at
		 FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, name, role, created_at, updated_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &u, nil
}

// --- Datasets ---

func (s *PostgresStore) CreateDataset(ctx context.Context, ds *models.Dataset) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO datasets (id, name, storage_key, owner_id, row_count, size_bytes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ds.ID, ds.Name, ds.StorageKey, ds.OwnerID, ds.RowCount, ds.SizeBytes, ds.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create dataset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDataset(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	var d models.Dataset
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, storage_key, owner_id, row_count, size_bytes, created_at
		 FROM datasets WHERE id = $1`, id,
	).Scan(&d.ID, &d.Name, &d.StorageKey, &d.OwnerID, &d.RowCount, &d.SizeBytes, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset: %w", err)
	}
	return &d, nil
}

func (s *PostgresStore) GetDatasetByStorageKey(ctx context.Context, key string) (*models.Dataset, error) {
	var d models.Dataset
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, storage_key, owner_id, row_count, size_bytes, created_at
		 FROM datasets WHERE storage_key = $1`, key,
	).Scan(&d.ID, &d.Name, &d.StorageKey, &d.OwnerID, &d.RowCount, &d.SizeBytes, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset by storage key: %w", err)
	}
	return &d, nil
}

func (s *PostgresStore) ListDatasets(ctx context.Context, filter DatasetFilter) ([]*models.Dataset, int, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filter.OwnerID != uuid.Nil {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIdx))
		args = append(args, filter.OwnerID)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM datasets WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count datasets: %w", err)
	}

	limit, offset := normalizePage(filter.Page, filter.PageSize)

	dataQuery := fmt.Sprintf(
		`SELECT id, name, storage_key, owner_id, row_count, size_bytes, created_at
		 FROM datasets WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []*models.Dataset
	for rows.Next() {
		var d models.Dataset
		if err := rows.Scan(&d.ID, &d.Name, &d.StorageKey, &d.OwnerID, &d.RowCount, &d.SizeBytes, &d.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan dataset: %w", err)
		}
		datasets = append(datasets, &d)
	}
	return datasets, total, rows.Err()
}

// --- Jobs ---

const jobColumns = `id, dataset_id, submitter_id, kind, horizon, granularity, status,
		 result, metrics, error_message, started_at, completed_at, created_at, updated_at`

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, dataset_id, submitter_id, kind, horizon, granularity, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.DatasetID, job.SubmitterID, job.Kind, job.Horizon, job.Granularity,
		job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.DatasetID, &j.SubmitterID, &j.Kind, &j.Horizon, &j.Granularity, &j.Status,
		&j.Result, &j.Metrics, &j.ErrorMessage, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filter.SubmitterID != uuid.Nil {
		conditions = append(conditions, fmt.Sprintf("submitter_id = $%d", argIdx))
		args = append(args, filter.SubmitterID)
		argIdx++
	}
	if filter.DatasetID != uuid.Nil {
		conditions = append(conditions, fmt.Sprintf("dataset_id = $%d", argIdx))
		args = append(args, filter.DatasetID)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM jobs WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	limit, offset := normalizePage(filter.Page, filter.PageSize)

	dataQuery := fmt.Sprintf(
		`SELECT `+jobColumns+` FROM jobs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.DatasetID, &j.SubmitterID, &j.Kind, &j.Horizon, &j.Granularity, &j.Status,
			&j.Result, &j.Metrics, &j.ErrorMessage, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, &j)
	}
	return jobs, total, rows.Err()
}

// validTransitions encodes the job state machine: pending -> running -> completed | failed.
// Terminal states have no outgoing transitions.
var validTransitions = map[string][]string{
	models.JobStatusPending: {models.JobStatusRunning},
	models.JobStatusRunning: {models.JobStatusCompleted, models.JobStatusFailed},
}

// transitionSources returns the statuses a job may be in immediately before
// entering status. Empty when status is not a valid target at all.
func transitionSources(status string) []string {
	var from []string
	for src, targets := range validTransitions {
		for _, t := range targets {
			if t == status {
				from = append(from, src)
			}
		}
	}
	return from
}

// UpdateJobStatus transitions the job, guarding the state machine in a single
// conditional UPDATE. The driver goroutine and the stuck-job watchdog can both
// write the same row, so the guard must be atomic: whichever writer commits
// first wins, the other gets ErrInvalidTransition.
func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := ApplyJobUpdateOptions(opts...)

	now := time.Now().UTC()
	query := `UPDATE jobs SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if status == models.JobStatusRunning {
		query += fmt.Sprintf(", started_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if status == models.JobStatusCompleted || status == models.JobStatusFailed {
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if params.Result != nil {
		query += fmt.Sprintf(", result = $%d", argIdx)
		args = append(args, params.Result)
		argIdx++
	}
	if params.Metrics != nil {
		query += fmt.Sprintf(", metrics = $%d", argIdx)
		args = append(args, params.Metrics)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}

	query += fmt.Sprintf(" WHERE id = $1 AND status = ANY($%d)", argIdx)
	args = append(args, transitionSources(status))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Row missing, or its status has no transition to the target.
		var current string
		err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get job status: %w", err)
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}
	return nil
}

// FailStuckJobs marks every job stuck in running state longer than stuckAfter
// as failed. Used by the startup reconciliation pass and the periodic watchdog;
// covers jobs orphaned by a process restart mid-run.
func (s *PostgresStore) FailStuckJobs(ctx context.Context, stuckAfter time.Duration, message string) (int, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-stuckAfter)

	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, error_message = $2, completed_at = $3, updated_at = $3
		 WHERE status = $4 AND started_at < $5`,
		models.JobStatusFailed, message, now, models.JobStatusRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("fail stuck jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// normalizePage clamps pagination inputs and returns limit/offset.
func normalizePage(page, pageSize int) (limit, offset int) {
	limit = pageSize
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
