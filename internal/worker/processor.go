package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/creatorsmantra/creatorsmantra-be/internal/scriptgen"
	"github.com/creatorsmantra/creatorsmantra-be/internal/worker/domain"
)

// processJob claims a job, generates its script under a timeout with
// heartbeats, and records the outcome. A nil return means the message can be
// acknowledged.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	logger := w.logger.With(slog.String("job_id", msg.JobID))

	job, err := w.store.ClaimJob(ctx, msg.JobID, w.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) {
			logger.Warn("Job already claimed, skipping")
			return fmt.Errorf("job already claimed: %w", err)
		}
		return domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	// final writes must land even when the worker is shutting down
	storeCtx := context.WithoutCancel(ctx)

	brief, err := decodeBrief(job.Brief)
	if err != nil {
		logger.Error("Failed to parse job brief", slog.String("error", err.Error()))
		if failErr := w.store.FailJob(storeCtx, job.JobID, w.workerID, err.Error()); failErr != nil {
			logger.Error("Failed to update job status to failed", slog.String("error", failErr.Error()))
		}
		return err
	}

	timeout := w.jobTimeout
	if job.TimeoutSeconds > 0 {
		timeout = time.Duration(job.TimeoutSeconds) * time.Second
	}

	jobCtx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()
	jobCtx, abandon := context.WithCancelCause(jobCtx)
	defer abandon(nil)

	heartbeatDone := make(chan struct{})
	heartbeatStopped := make(chan struct{})
	go func() {
		defer close(heartbeatStopped)
		w.sendJobHeartbeat(jobCtx, job.JobID, heartbeatDone, abandon)
	}()

	report := func(progress int, message string) {
		err := w.store.UpdateProgress(jobCtx, job.JobID, w.workerID, progress, message)
		switch {
		case errors.Is(err, domain.ErrJobLost):
			abandon(domain.ErrJobLost)
		case err != nil:
			logger.Warn("Failed to record job progress", slog.String("error", err.Error()))
		}
	}

	logger.Info("Generating script",
		slog.String("generator", w.generator.Name()),
		slog.String("platform", brief.Platform),
		slog.Duration("timeout", timeout),
		slog.Int("retry_count", job.RetryCount),
	)

	script, genErr := w.generator.Generate(jobCtx, brief, report)
	cause := context.Cause(jobCtx)

	close(heartbeatDone)
	<-heartbeatStopped

	if errors.Is(cause, domain.ErrJobLost) {
		logger.Info("Job was canceled or reaped during generation, dropping result")
		return domain.ErrJobLost
	}

	if genErr != nil {
		return w.handleGenerationError(ctx, storeCtx, logger, job, genErr, cause)
	}

	result, err := json.Marshal(script)
	if err != nil {
		return w.handleGenerationError(ctx, storeCtx, logger, job, fmt.Errorf("failed to encode script: %w", err), nil)
	}

	if err := w.store.CompleteJob(storeCtx, job.JobID, w.workerID, result); err != nil {
		if errors.Is(err, domain.ErrJobLost) {
			logger.Info("Job was canceled before its result was stored")
			return err
		}
		// the reaper fails the job once its heartbeat goes stale
		logger.Error("Failed to update job status to completed", slog.String("error", err.Error()))
		return nil
	}

	logger.Info("Job completed successfully",
		slog.Int("word_count", script.WordCount),
		slog.Int("estimated_duration_seconds", script.EstimatedDurationSeconds),
	)
	return nil
}

// handleGenerationError retries the job while it has retries left and fails
// it otherwise
func (w *Worker) handleGenerationError(ctx, storeCtx context.Context, logger *slog.Logger, job *domain.Job, genErr, cause error) error {
	reason := genErr.Error()
	if errors.Is(cause, context.DeadlineExceeded) {
		reason = "generation timed out"
	}

	logger.Error("Job execution failed",
		slog.String("error", genErr.Error()),
		slog.Int("retry_count", job.RetryCount),
		slog.Int("max_retries", job.MaxRetries),
	)

	// shutdown interrupts are not the job's fault
	shuttingDown := ctx.Err() != nil

	if shuttingDown || job.RetryCount < job.MaxRetries {
		if err := w.store.RequeueJob(storeCtx, job.JobID, w.workerID, reason); err != nil {
			if errors.Is(err, domain.ErrJobLost) {
				return err
			}
			logger.Error("Failed to return job to pending", slog.String("error", err.Error()))
		}
		logger.Info("Job will be retried")
		return domain.NewRetryableError(fmt.Errorf("job execution failed: %w", genErr))
	}

	if err := w.store.FailJob(storeCtx, job.JobID, w.workerID, reason); err != nil {
		if errors.Is(err, domain.ErrJobLost) {
			return err
		}
		logger.Error("Failed to update job status to failed", slog.String("error", err.Error()))
	}

	logger.Warn("Job exceeded max retries")
	return fmt.Errorf("%w: %v", domain.ErrMaxRetriesExceeded, genErr)
}

// sendJobHeartbeat periodically updates the job's heartbeat timestamp and
// abandons the job once it is no longer owned by this worker
func (w *Worker) sendJobHeartbeat(ctx context.Context, jobID string, done <-chan struct{}, abandon context.CancelCauseFunc) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			err := w.store.UpdateJobHeartbeat(ctx, jobID, w.workerID)
			switch {
			case errors.Is(err, domain.ErrJobLost):
				w.logger.Info("Job no longer owned, abandoning", slog.String("job_id", jobID))
				abandon(domain.ErrJobLost)
				return
			case err != nil:
				w.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			default:
				w.logger.Debug("Job heartbeat updated", slog.String("job_id", jobID))
			}
		}
	}
}

func decodeBrief(raw string) (scriptgen.Brief, error) {
	var brief scriptgen.Brief
	if err := json.Unmarshal([]byte(raw), &brief); err != nil {
		return brief, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	brief.Normalize()
	if err := brief.Validate(); err != nil {
		return brief, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	return brief, nil
}
