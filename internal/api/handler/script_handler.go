package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/creatorsmantra/creatorsmantra-be/internal/api/domain"
	"github.com/creatorsmantra/creatorsmantra-be/internal/api/dto"
	"github.com/creatorsmantra/creatorsmantra-be/internal/api/model"
	"github.com/creatorsmantra/creatorsmantra-be/internal/api/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// jobMessage is the queue payload consumed by the worker
type jobMessage struct {
	JobID string `json:"job_id"`
}

// CreateScript handles POST /api/v1/scripts
// Records a pending generation job and queues it for a worker
func (h *ScriptHandler) CreateScript(c *gin.Context) {
	var req dto.CreateScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
		return
	}

	brief := req.Brief
	brief.Normalize()
	if err := brief.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	briefJSON, err := json.Marshal(brief)
	if err != nil {
		h.logger.Error("Failed to encode brief", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to create script job"})
		return
	}

	title := req.Title
	if title == "" {
		title = brief.Topic
	}

	now := time.Now().UTC()
	job := &model.ScriptJob{
		JobID:          uuid.New().String(),
		IdempotencyKey: req.IdempotencyKey,
		CreatorID:      req.CreatorID,
		Title:          title,
		Platform:       brief.Platform,
		Brief:          string(briefJSON),
		Status:         domain.JobStatusPending,
		Message:        "Waiting for a worker",
		MaxRetries:     h.defaults.MaxRetries,
		TimeoutSeconds: h.defaults.TimeoutSeconds,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	ctx := c.Request.Context()
	stored, created, err := h.store.CreateJob(ctx, job)
	if err != nil {
		h.logger.Error("Failed to create script job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to create script job"})
		return
	}

	if !created {
		if stored.Brief != job.Brief {
			h.logger.Warn("Idempotency key reused with a different brief",
				slog.String("job_id", stored.JobID),
				slog.String("creator_id", stored.CreatorID),
				slog.String("idempotency_key", stored.IdempotencyKey),
			)
			c.JSON(http.StatusConflict, dto.ErrorResponse{Error: domain.ErrKeyReused.Error()})
			return
		}
		h.logger.Info("Idempotent replay of script job",
			slog.String("job_id", stored.JobID),
			slog.String("idempotency_key", stored.IdempotencyKey),
		)
		c.JSON(http.StatusOK, toJobDTO(stored))
		return
	}

	if err := h.enqueue(ctx, stored.JobID); err != nil {
		h.logger.Error("Failed to enqueue script job",
			slog.String("job_id", stored.JobID),
			slog.String("error", err.Error()),
		)
		if markErr := h.store.MarkEnqueueFailed(context.WithoutCancel(ctx), stored.JobID); markErr != nil {
			h.logger.Error("Failed to mark job as not enqueued",
				slog.String("job_id", stored.JobID),
				slog.String("error", markErr.Error()),
			)
		}
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "generation queue unavailable"})
		return
	}

	h.logger.Info("Script job queued",
		slog.String("job_id", stored.JobID),
		slog.String("creator_id", stored.CreatorID),
		slog.String("platform", stored.Platform),
	)

	c.JSON(http.StatusAccepted, toJobDTO(stored))
}

func (h *ScriptHandler) enqueue(ctx context.Context, jobID string) error {
	body, err := json.Marshal(jobMessage{JobID: jobID})
	if err != nil {
		return err
	}
	return h.publisher.PublishJob(ctx, jobID, body)
}

// GetScript handles GET /api/v1/scripts/:job_id
func (h *ScriptHandler) GetScript(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// GetScriptStatus handles GET /api/v1/scripts/:job_id/status
// This is the endpoint generation status pollers query
func (h *ScriptHandler) GetScriptStatus(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, toStatusDTO(job))
}

// ListScripts handles GET /api/v1/scripts
func (h *ScriptHandler) ListScripts(c *gin.Context) {
	var req dto.ListScriptsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid query parameters"})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Warn("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid cursor"})
		return
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), storage.JobFilter{
		CreatorID: req.CreatorID,
		Platform:  req.Platform,
		Status:    req.Status,
		PageSize:  req.PageSize,
		Cursor:    cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list script jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to list script jobs"})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	resp := dto.ListScriptsResponse{Jobs: make([]dto.ScriptJobDTO, len(jobs))}
	for i := range jobs {
		resp.Jobs[i] = toJobDTO(&jobs[i])
	}

	if hasMore {
		last := jobs[len(jobs)-1]
		resp.NextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// CancelScript handles POST /api/v1/scripts/:job_id/cancel
// A canceled job ends as failed so that pollers observe a terminal status
func (h *ScriptHandler) CancelScript(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	err := h.store.CancelJob(c.Request.Context(), jobID)
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "script job not found"})
		return
	case errors.Is(err, domain.ErrJobTerminal):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		h.logger.Error("Failed to cancel script job", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to cancel script job"})
		return
	}

	h.logger.Info("Script job canceled", slog.String("job_id", jobID))

	job, err := h.store.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		h.respondLoadError(c, jobID, err)
		return
	}
	c.JSON(http.StatusOK, toStatusDTO(job))
}

// DeleteScript handles DELETE /api/v1/scripts/:job_id
func (h *ScriptHandler) DeleteScript(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	err := h.store.DeleteJob(c.Request.Context(), jobID)
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "script job not found"})
		return
	case errors.Is(err, domain.ErrJobNotTerminal):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		h.logger.Error("Failed to delete script job", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to delete script job"})
		return
	}

	h.logger.Info("Script job deleted", slog.String("job_id", jobID))
	c.Status(http.StatusNoContent)
}

// Health handles GET /health
func (h *ScriptHandler) Health(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{"database": "up", "rabbitmq": "up"}

	if h.dbHealth != nil {
		if err := h.dbHealth.HealthCheck(c.Request.Context()); err != nil {
			h.logger.Warn("Database health check failed", slog.String("error", err.Error()))
			checks["database"] = "down"
			status = http.StatusServiceUnavailable
		}
	}

	if h.publisher != nil && !h.publisher.IsConnected() {
		checks["rabbitmq"] = "down"
		status = http.StatusServiceUnavailable
	}

	healthy := "healthy"
	if status != http.StatusOK {
		healthy = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":  healthy,
		"service": "script-api-service",
		"checks":  checks,
	})
}

func (h *ScriptHandler) jobIDParam(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "job_id must be a valid UUID"})
		return "", false
	}
	return jobID, true
}

func (h *ScriptHandler) loadJob(c *gin.Context) (*model.ScriptJob, bool) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return nil, false
	}

	job, err := h.store.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		h.respondLoadError(c, jobID, err)
		return nil, false
	}

	return job, true
}

func (h *ScriptHandler) respondLoadError(c *gin.Context, jobID string, err error) {
	if errors.Is(err, domain.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "script job not found"})
		return
	}

	h.logger.Error("Failed to get script job", slog.String("job_id", jobID), slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to get script job"})
}

func toStatusDTO(job *model.ScriptJob) dto.StatusResponse {
	resp := dto.StatusResponse{
		JobID:                job.JobID,
		Status:               job.Status,
		IsGenerationComplete: job.Status == domain.JobStatusCompleted,
		Progress:             job.Progress,
		Message:              job.Message,
	}

	switch job.Status {
	case domain.JobStatusCompleted:
		resp.Result = job.Result
	case domain.JobStatusFailed:
		resp.Error = job.ErrorMessage
	}

	return resp
}

func toJobDTO(job *model.ScriptJob) dto.ScriptJobDTO {
	out := dto.ScriptJobDTO{
		JobID:          job.JobID,
		IdempotencyKey: job.IdempotencyKey,
		CreatorID:      job.CreatorID,
		Title:          job.Title,
		Platform:       job.Platform,
		Brief:          json.RawMessage(job.Brief),
		Status:         job.Status,
		Progress:       job.Progress,
		Message:        job.Message,
		Error:          job.ErrorMessage,
		RetryCount:     job.RetryCount,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
	}

	if len(job.Result) > 0 {
		out.Result = job.Result
	}
	if job.CompletedAt.Valid {
		out.CompletedAt = job.CompletedAt.Time.Format(time.RFC3339)
	}

	return out
}
