package handler

import (
	"context"
	"log/slog"

	"github.com/creatorsmantra/creatorsmantra-be/internal/api/model"
	"github.com/creatorsmantra/creatorsmantra-be/internal/api/storage"
)

// JobStore persists script jobs
type JobStore interface {
	CreateJob(ctx context.Context, job *model.ScriptJob) (*model.ScriptJob, bool, error)
	GetJobByID(ctx context.Context, jobID string) (*model.ScriptJob, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.ScriptJob, error)
	CancelJob(ctx context.Context, jobID string) error
	DeleteJob(ctx context.Context, jobID string) error
	MarkEnqueueFailed(ctx context.Context, jobID string) error
}

// Publisher hands job messages to the worker queue
type Publisher interface {
	PublishJob(ctx context.Context, jobID string, body []byte) error
	IsConnected() bool
}

// HealthChecker reports database reachability
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Store     JobStore
	Publisher Publisher
	DBHealth  HealthChecker
	Defaults  JobDefaults
}

// JobDefaults are applied to every new job
type JobDefaults struct {
	MaxRetries     int
	TimeoutSeconds int
}

// ScriptHandler handles script generation HTTP requests
type ScriptHandler struct {
	logger    *slog.Logger
	store     JobStore
	publisher Publisher
	dbHealth  HealthChecker
	defaults  JobDefaults
}

// NewScriptHandler creates a new ScriptHandler instance
func NewScriptHandler(deps *Dependencies) *ScriptHandler {
	defaults := deps.Defaults
	if defaults.MaxRetries <= 0 {
		defaults.MaxRetries = 3
	}
	if defaults.TimeoutSeconds <= 0 {
		defaults.TimeoutSeconds = 120
	}

	return &ScriptHandler{
		logger:    deps.Logger,
		store:     deps.Store,
		publisher: deps.Publisher,
		dbHealth:  deps.DBHealth,
		defaults:  defaults,
	}
}
