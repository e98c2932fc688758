package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/creatorsmantra/creatorsmantra-be/internal/api/domain"
	"github.com/creatorsmantra/creatorsmantra-be/internal/api/model"
	"github.com/jmoiron/sqlx"
)

const jobColumns = `
	job_id, idempotency_key, creator_id, title, platform, brief,
	status, progress, message, result, error_message, worker_id,
	retry_count, max_retries, timeout_seconds,
	created_at, updated_at, started_at, completed_at, last_heartbeat_at
`

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		db: db,
	}
}

// CreateJob inserts job unless the creator already used its idempotency key.
// The second return value is false when that creator's existing job is
// returned instead.
func (s *Storage) CreateJob(ctx context.Context, job *model.ScriptJob) (*model.ScriptJob, bool, error) {
	query := `
		INSERT INTO script_jobs (
			job_id, idempotency_key, creator_id, title, platform, brief,
			status, progress, message, max_retries, timeout_seconds,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13
		)
		ON CONFLICT (creator_id, idempotency_key) DO NOTHING
		RETURNING job_id
	`

	var jobID string
	err := s.db.QueryRowxContext(
		ctx,
		query,
		job.JobID,
		job.IdempotencyKey,
		job.CreatorID,
		job.Title,
		job.Platform,
		job.Brief,
		job.Status,
		job.Progress,
		job.Message,
		job.MaxRetries,
		job.TimeoutSeconds,
		job.CreatedAt,
		job.UpdatedAt,
	).Scan(&jobID)

	if errors.Is(err, sql.ErrNoRows) {
		existing, err := s.GetJobByIdempotencyKey(ctx, job.CreatorID, job.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create job: %w", err)
	}

	return job, true, nil
}

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*model.ScriptJob, error) {
	var job model.ScriptJob
	query := `SELECT ` + jobColumns + ` FROM script_jobs WHERE job_id = $1`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// GetJobByIdempotencyKey looks a key up within one creator's jobs
func (s *Storage) GetJobByIdempotencyKey(ctx context.Context, creatorID, key string) (*model.ScriptJob, error) {
	var job model.ScriptJob
	query := `SELECT ` + jobColumns + ` FROM script_jobs WHERE creator_id = $1 AND idempotency_key = $2`

	err := s.db.GetContext(ctx, &job, query, creatorID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job by idempotency key: %w", err)
	}

	return &job, nil
}

type JobFilter struct {
	CreatorID string
	Platform  string
	Status    string
	PageSize  int
	Cursor    *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns up to PageSize+1 jobs, newest first. The extra row tells the
// caller whether another page exists.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.ScriptJob, error) {
	query := `SELECT ` + jobColumns + ` FROM script_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.CreatorID != "" {
		query += fmt.Sprintf(" AND creator_id = $%d", argIdx)
		args = append(args, filter.CreatorID)
		argIdx++
	}

	if filter.Platform != "" {
		query += fmt.Sprintf(" AND platform = $%d", argIdx)
		args = append(args, filter.Platform)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []model.ScriptJob
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// CancelJob fails a job that has not yet reached a terminal status
func (s *Storage) CancelJob(ctx context.Context, jobID string) error {
	query := `
		UPDATE script_jobs
		SET status = $1,
			message = $2,
			error_message = $2,
			completed_at = NOW(),
			updated_at = NOW()
		WHERE job_id = $3
		  AND status IN ($4, $5)
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusFailed, domain.CanceledMessage, jobID,
		domain.JobStatusPending, domain.JobStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}

	return s.explainNoop(ctx, result, jobID, domain.ErrJobTerminal)
}

// DeleteJob removes a job that has reached a terminal status
func (s *Storage) DeleteJob(ctx context.Context, jobID string) error {
	query := `DELETE FROM script_jobs WHERE job_id = $1 AND status IN ($2, $3)`

	result, err := s.db.ExecContext(ctx, query, jobID, domain.JobStatusCompleted, domain.JobStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	return s.explainNoop(ctx, result, jobID, domain.ErrJobNotTerminal)
}

// MarkEnqueueFailed fails a pending job that never reached the queue
func (s *Storage) MarkEnqueueFailed(ctx context.Context, jobID string) error {
	query := `
		UPDATE script_jobs
		SET status = $1,
			message = $2,
			error_message = $2,
			completed_at = NOW(),
			updated_at = NOW()
		WHERE job_id = $3
		  AND status = $4
	`

	_, err := s.db.ExecContext(ctx, query, domain.JobStatusFailed, domain.EnqueueFailedMessage, jobID, domain.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark job as not enqueued: %w", err)
	}

	return nil
}

// explainNoop maps a guarded write that touched no rows to ErrJobNotFound or
// the given guard error
func (s *Storage) explainNoop(ctx context.Context, result sql.Result, jobID string, guardErr error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM script_jobs WHERE job_id = $1)`, jobID); err != nil {
		return fmt.Errorf("failed to check job existence: %w", err)
	}
	if !exists {
		return domain.ErrJobNotFound
	}

	return guardErr
}
