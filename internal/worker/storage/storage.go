package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/creatorsmantra/creatorsmantra-be/internal/worker/domain"
	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations for the worker. Every write after
// the claim is guarded on the job still being processing and owned by the
// calling worker.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ClaimJob moves a pending job to processing using optimistic locking
func (s *Storage) ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	query := `
		UPDATE script_jobs
		SET status = $1,
		    worker_id = $2,
		    progress = 0,
		    message = $3,
		    started_at = NOW(),
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $4
		  AND status = $5
		RETURNING job_id, brief, retry_count, max_retries, timeout_seconds
	`

	var job domain.Job
	err := s.db.QueryRowContext(ctx, query,
		domain.JobStatusProcessing, workerID, domain.MessageClaimed, jobID, domain.JobStatusPending,
	).Scan(
		&job.JobID,
		&job.Brief,
		&job.RetryCount,
		&job.MaxRetries,
		&job.TimeoutSeconds,
	)

	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("Failed to claim job - already claimed or not found",
			slog.String("job_id", jobID),
			slog.String("worker_id", workerID),
		)
		return nil, domain.ErrJobAlreadyClaimed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	job.WorkerID = workerID

	s.logger.Info("Job claimed successfully",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
		slog.Int("retry_count", job.RetryCount),
	)

	return &job, nil
}

// UpdateProgress records generation progress for a processing job
func (s *Storage) UpdateProgress(ctx context.Context, jobID, workerID string, progress int, message string) error {
	query := `
		UPDATE script_jobs
		SET progress = GREATEST(progress, $1),
		    message = $2,
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND worker_id = $4
		  AND status = $5
	`

	result, err := s.db.ExecContext(ctx, query, progress, message, jobID, workerID, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	return ownedRow(result)
}

// CompleteJob stores the generated script and marks the job completed
func (s *Storage) CompleteJob(ctx context.Context, jobID, workerID string, result []byte) error {
	query := `
		UPDATE script_jobs
		SET status = $1,
		    progress = 100,
		    message = $2,
		    result = $3,
		    error_message = '',
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $4
		  AND worker_id = $5
		  AND status = $6
	`

	res, err := s.db.ExecContext(ctx, query,
		domain.JobStatusCompleted, domain.MessageCompleted, result, jobID, workerID, domain.JobStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	if err := ownedRow(res); err != nil {
		return err
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", domain.JobStatusCompleted),
	)
	return nil
}

// FailJob marks a processing job failed with the given reason
func (s *Storage) FailJob(ctx context.Context, jobID, workerID, reason string) error {
	query := `
		UPDATE script_jobs
		SET status = $1,
		    message = $2,
		    error_message = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND worker_id = $4
		  AND status = $5
	`

	res, err := s.db.ExecContext(ctx, query, domain.JobStatusFailed, reason, jobID, workerID, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}

	if err := ownedRow(res); err != nil {
		return err
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", domain.JobStatusFailed),
	)
	return nil
}

// RequeueJob returns a processing job to pending and counts the retry
func (s *Storage) RequeueJob(ctx context.Context, jobID, workerID, reason string) error {
	query := `
		UPDATE script_jobs
		SET status = $1,
		    retry_count = retry_count + 1,
		    worker_id = NULL,
		    progress = 0,
		    message = $2,
		    error_message = $3,
		    started_at = NULL,
		    last_heartbeat_at = NULL,
		    updated_at = NOW()
		WHERE job_id = $4
		  AND worker_id = $5
		  AND status = $6
	`

	res, err := s.db.ExecContext(ctx, query,
		domain.JobStatusPending, domain.MessageRetrying, reason, jobID, workerID, domain.JobStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}

	if err := ownedRow(res); err != nil {
		return err
	}

	s.logger.Info("Job returned to pending for retry",
		slog.String("job_id", jobID),
	)
	return nil
}

// UpdateJobHeartbeat updates the last_heartbeat_at timestamp for a processing job
func (s *Storage) UpdateJobHeartbeat(ctx context.Context, jobID, workerID string) error {
	query := `
		UPDATE script_jobs
		SET last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $1
		  AND worker_id = $2
		  AND status = $3
	`

	result, err := s.db.ExecContext(ctx, query, jobID, workerID, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}

	return ownedRow(result)
}

// FailStaleJobs fails processing jobs whose last heartbeat is more than
// staleAfter old and returns how many were failed. Heartbeats are stamped by
// the database clock, so the cutoff is computed there too.
func (s *Storage) FailStaleJobs(ctx context.Context, staleAfter time.Duration) (int64, error) {
	query := `
		UPDATE script_jobs
		SET status = $1,
		    message = $2,
		    error_message = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE status = $3
		  AND last_heartbeat_at < NOW() - make_interval(secs => $4)
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusFailed, domain.MessageHeartbeatLost, domain.JobStatusProcessing, staleAfter.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale jobs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

func ownedRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrJobLost
	}
	return nil
}
