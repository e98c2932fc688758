package router

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/creatorsmantra/creatorsmantra-be/internal/api/domain"
	"github.com/creatorsmantra/creatorsmantra-be/internal/api/handler"
	"github.com/creatorsmantra/creatorsmantra-be/internal/api/model"
	"github.com/creatorsmantra/creatorsmantra-be/internal/api/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emptyStore struct{}

func (emptyStore) CreateJob(_ context.Context, job *model.ScriptJob) (*model.ScriptJob, bool, error) {
	return job, true, nil
}

func (emptyStore) GetJobByID(context.Context, string) (*model.ScriptJob, error) {
	return nil, domain.ErrJobNotFound
}

func (emptyStore) ListJobs(context.Context, storage.JobFilter) ([]model.ScriptJob, error) {
	return nil, nil
}

func (emptyStore) CancelJob(context.Context, string) error         { return domain.ErrJobNotFound }
func (emptyStore) DeleteJob(context.Context, string) error         { return domain.ErrJobNotFound }
func (emptyStore) MarkEnqueueFailed(context.Context, string) error { return nil }

type nopPublisher struct{}

func (nopPublisher) PublishJob(context.Context, string, []byte) error { return nil }
func (nopPublisher) IsConnected() bool                                { return true }

func newTestRouter(t *testing.T, logs *bytes.Buffer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	return SetupRouter(&handler.Dependencies{
		Logger:    slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelInfo})),
		Store:     emptyStore{},
		Publisher: nopPublisher{},
	})
}

func TestSetupRouter_Routes(t *testing.T) {
	var logs bytes.Buffer
	r := newTestRouter(t, &logs)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/v1/scripts", http.StatusOK},
		{http.MethodGet, "/api/v1/scripts/7f9c2ba4-e88f-4a6c-9d3e-0b7e5e1f3c21", http.StatusNotFound},
		{http.MethodGet, "/api/v1/scripts/7f9c2ba4-e88f-4a6c-9d3e-0b7e5e1f3c21/status", http.StatusNotFound},
		{http.MethodPost, "/api/v1/scripts/7f9c2ba4-e88f-4a6c-9d3e-0b7e5e1f3c21/cancel", http.StatusNotFound},
		{http.MethodDelete, "/api/v1/scripts/7f9c2ba4-e88f-4a6c-9d3e-0b7e5e1f3c21", http.StatusNotFound},
		{http.MethodOptions, "/api/v1/scripts", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestRequestIDMiddleware_Propagates(t *testing.T) {
	var logs bytes.Buffer
	r := newTestRouter(t, &logs)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "/health", entry["path"])
}

func TestLoggerMiddleware_StatusPollsAreDebug(t *testing.T) {
	var logs bytes.Buffer
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(LoggerMiddleware(slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo}))))
	r.GET("/api/v1/scripts/:job_id/status", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/scripts/abc/status", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, logs.String())
}
