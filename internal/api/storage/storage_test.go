package storage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/creatorsmantra/creatorsmantra-be/internal/api/domain"
	"github.com/creatorsmantra/creatorsmantra-be/internal/api/model"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStorage(sqlx.NewDb(db, "sqlmock")), mock
}

func newJob() *model.ScriptJob {
	now := time.Now().UTC()
	return &model.ScriptJob{
		JobID:          "7f9c2ba4-e88f-4a6c-9d3e-0b7e5e1f3c21",
		IdempotencyKey: "key-1",
		CreatorID:      "creator-1",
		Title:          "Morning routines",
		Platform:       "youtube",
		Brief:          `{"topic":"Morning routines","platform":"youtube"}`,
		Status:         domain.JobStatusPending,
		MaxRetries:     3,
		TimeoutSeconds: 120,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestStorage_CreateJob(t *testing.T) {
	t.Run("inserts new job", func(t *testing.T) {
		s, mock := newMockStorage(t)
		job := newJob()

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO script_jobs")).
			WithArgs(job.JobID, job.IdempotencyKey, job.CreatorID, job.Title, job.Platform, job.Brief,
				job.Status, job.Progress, job.Message, job.MaxRetries, job.TimeoutSeconds,
				sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"job_id"}).AddRow(job.JobID))

		got, created, err := s.CreateJob(context.Background(), job)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, job.JobID, got.JobID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns existing job on idempotency conflict", func(t *testing.T) {
		s, mock := newMockStorage(t)
		job := newJob()

		mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (creator_id, idempotency_key) DO NOTHING")).
			WillReturnRows(sqlmock.NewRows([]string{"job_id"}))
		mock.ExpectQuery(regexp.QuoteMeta("FROM script_jobs WHERE creator_id = $1 AND idempotency_key = $2")).
			WithArgs(job.CreatorID, job.IdempotencyKey).
			WillReturnRows(sqlmock.NewRows([]string{"job_id", "idempotency_key", "creator_id", "status", "progress"}).
				AddRow("existing-id", job.IdempotencyKey, job.CreatorID, domain.JobStatusProcessing, 40))

		got, created, err := s.CreateJob(context.Background(), job)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "existing-id", got.JobID)
		assert.Equal(t, job.CreatorID, got.CreatorID)
		assert.Equal(t, 40, got.Progress)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("same key from another creator inserts", func(t *testing.T) {
		s, mock := newMockStorage(t)
		job := newJob()
		job.CreatorID = "creator-2"
		job.JobID = "0b1d6f7e-3c55-4c1a-9f2e-5a8d1c4e7b90"

		mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (creator_id, idempotency_key) DO NOTHING")).
			WithArgs(job.JobID, job.IdempotencyKey, "creator-2", job.Title, job.Platform, job.Brief,
				job.Status, job.Progress, job.Message, job.MaxRetries, job.TimeoutSeconds,
				sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"job_id"}).AddRow(job.JobID))

		got, created, err := s.CreateJob(context.Background(), job)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "creator-2", got.CreatorID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lookup is scoped to the creator", func(t *testing.T) {
		s, mock := newMockStorage(t)

		mock.ExpectQuery(regexp.QuoteMeta("WHERE creator_id = $1 AND idempotency_key = $2")).
			WithArgs("creator-2", "key-1").
			WillReturnRows(sqlmock.NewRows([]string{"job_id"}))

		_, err := s.GetJobByIdempotencyKey(context.Background(), "creator-2", "key-1")
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStorage_GetJobByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s, mock := newMockStorage(t)

		mock.ExpectQuery(regexp.QuoteMeta("FROM script_jobs WHERE job_id = $1")).
			WithArgs("job-1").
			WillReturnRows(sqlmock.NewRows([]string{"job_id", "status", "result"}).
				AddRow("job-1", domain.JobStatusCompleted, []byte(`{"title":"t"}`)))

		job, err := s.GetJobByID(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusCompleted, job.Status)
		assert.JSONEq(t, `{"title":"t"}`, string(job.Result))
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newMockStorage(t)

		mock.ExpectQuery(regexp.QuoteMeta("FROM script_jobs WHERE job_id = $1")).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"job_id"}))

		_, err := s.GetJobByID(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})
}

func TestStorage_ListJobs(t *testing.T) {
	s, mock := newMockStorage(t)
	cursorAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(
		"WHERE 1=1 AND creator_id = $1 AND status = $2 AND (created_at, job_id) < ($3, $4) ORDER BY created_at DESC, job_id DESC LIMIT $5",
	)).
		WithArgs("creator-1", domain.JobStatusPending, cursorAt, "job-9", 11).
		WillReturnRows(sqlmock.NewRows([]string{"job_id"}).AddRow("job-8").AddRow("job-7"))

	jobs, err := s.ListJobs(context.Background(), JobFilter{
		CreatorID: "creator-1",
		Status:    domain.JobStatusPending,
		PageSize:  10,
		Cursor:    &JobCursor{CreatedAt: cursorAt, JobID: "job-9"},
	})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-8", jobs[0].JobID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_CancelJob(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		exists   bool
		wantErr  error
	}{
		{name: "active job", affected: 1},
		{name: "terminal job", affected: 0, exists: true, wantErr: domain.ErrJobTerminal},
		{name: "unknown job", affected: 0, exists: false, wantErr: domain.ErrJobNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStorage(t)

			mock.ExpectExec(regexp.QuoteMeta("UPDATE script_jobs")).
				WithArgs(domain.JobStatusFailed, domain.CanceledMessage, "job-1",
					domain.JobStatusPending, domain.JobStatusProcessing).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			if tt.affected == 0 {
				mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
					WithArgs("job-1").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))
			}

			err := s.CancelJob(context.Background(), "job-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStorage_DeleteJob(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM script_jobs WHERE job_id = $1 AND status IN ($2, $3)")).
		WithArgs("job-1", domain.JobStatusCompleted, domain.JobStatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := s.DeleteJob(context.Background(), "job-1")
	assert.ErrorIs(t, err, domain.ErrJobNotTerminal)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_MarkEnqueueFailed(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE script_jobs")).
		WithArgs(domain.JobStatusFailed, domain.EnqueueFailedMessage, "job-1", domain.JobStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.MarkEnqueueFailed(context.Background(), "job-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
