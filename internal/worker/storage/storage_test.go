package storage

import (
	"context"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/creatorsmantra/creatorsmantra-be/internal/worker/domain"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStorage(sqlx.NewDb(db, "sqlmock"), slog.New(slog.DiscardHandler)), mock
}

func TestStorage_ClaimJob(t *testing.T) {
	t.Run("claims pending job", func(t *testing.T) {
		s, mock := newMockStorage(t)

		mock.ExpectQuery(regexp.QuoteMeta("UPDATE script_jobs")).
			WithArgs(domain.JobStatusProcessing, "worker-1", domain.MessageClaimed, "job-1", domain.JobStatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"job_id", "brief", "retry_count", "max_retries", "timeout_seconds"}).
				AddRow("job-1", `{"topic":"t","platform":"youtube"}`, 1, 3, 120))

		job, err := s.ClaimJob(context.Background(), "job-1", "worker-1")
		require.NoError(t, err)
		assert.Equal(t, "job-1", job.JobID)
		assert.Equal(t, "worker-1", job.WorkerID)
		assert.Equal(t, 1, job.RetryCount)
		assert.Equal(t, 3, job.MaxRetries)
		assert.Equal(t, 120, job.TimeoutSeconds)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already claimed", func(t *testing.T) {
		s, mock := newMockStorage(t)

		mock.ExpectQuery(regexp.QuoteMeta("UPDATE script_jobs")).
			WillReturnRows(sqlmock.NewRows([]string{"job_id"}))

		_, err := s.ClaimJob(context.Background(), "job-1", "worker-1")
		assert.ErrorIs(t, err, domain.ErrJobAlreadyClaimed)
	})
}

func TestStorage_GuardedWrites(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "owned", affected: 1},
		{name: "lost", affected: 0, wantErr: domain.ErrJobLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStorage(t)
			ctx := context.Background()

			mock.ExpectExec(regexp.QuoteMeta("SET progress = GREATEST(progress, $1)")).
				WithArgs(45, "Writing hook", "job-1", "worker-1", domain.JobStatusProcessing).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			mock.ExpectExec(regexp.QuoteMeta("SET last_heartbeat_at = NOW()")).
				WithArgs("job-1", "worker-1", domain.JobStatusProcessing).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			mock.ExpectExec(regexp.QuoteMeta("progress = 100")).
				WithArgs(domain.JobStatusCompleted, domain.MessageCompleted, []byte(`{}`), "job-1", "worker-1", domain.JobStatusProcessing).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			mock.ExpectExec(regexp.QuoteMeta("error_message = $2")).
				WithArgs(domain.JobStatusFailed, "boom", "job-1", "worker-1", domain.JobStatusProcessing).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			mock.ExpectExec(regexp.QuoteMeta("retry_count = retry_count + 1")).
				WithArgs(domain.JobStatusPending, domain.MessageRetrying, "boom", "job-1", "worker-1", domain.JobStatusProcessing).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			errs := []error{
				s.UpdateProgress(ctx, "job-1", "worker-1", 45, "Writing hook"),
				s.UpdateJobHeartbeat(ctx, "job-1", "worker-1"),
				s.CompleteJob(ctx, "job-1", "worker-1", []byte(`{}`)),
				s.FailJob(ctx, "job-1", "worker-1", "boom"),
				s.RequeueJob(ctx, "job-1", "worker-1", "boom"),
			}
			for _, err := range errs {
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.NoError(t, err)
				}
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStorage_FailStaleJobs(t *testing.T) {
	tests := []struct {
		name       string
		staleAfter time.Duration
		wantSecs   float64
	}{
		{name: "whole seconds", staleAfter: 90 * time.Second, wantSecs: 90},
		{name: "sub second", staleAfter: 1500 * time.Millisecond, wantSecs: 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStorage(t)

			// the cutoff must come from the database clock, never a host timestamp
			mock.ExpectExec(regexp.QuoteMeta("AND last_heartbeat_at < NOW() - make_interval(secs => $4)")).
				WithArgs(domain.JobStatusFailed, domain.MessageHeartbeatLost, domain.JobStatusProcessing, tt.wantSecs).
				WillReturnResult(sqlmock.NewResult(0, 2))

			n, err := s.FailStaleJobs(context.Background(), tt.staleAfter)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
