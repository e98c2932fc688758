package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/creatorsmantra/creatorsmantra-be/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	logger := w.logger.With(slog.String("worker_name", workerName))
	logger.Debug("Worker goroutine started")

	for {
		select {
		case <-w.stopChan:
			logger.Debug("Worker goroutine stopping - stopChan closed")
			return

		case <-ctx.Done():
			logger.Debug("Worker goroutine stopping - context canceled")
			return

		case msg := <-w.jobsChan:
			logger.Info("Worker received job",
				slog.String("job_id", msg.JobID),
				slog.Uint64("delivery_tag", msg.DeliveryTag),
			)

			err := w.processJob(ctx, msg)
			if err == nil {
				if ackErr := w.broker.Ack(msg.DeliveryTag); ackErr != nil {
					logger.Error("Failed to ACK message",
						slog.String("job_id", msg.JobID),
						slog.String("error", ackErr.Error()),
					)
				}
				continue
			}

			logger.Warn("Job processing ended with error",
				slog.String("job_id", msg.JobID),
				slog.String("error", err.Error()),
			)
			w.nack(msg.DeliveryTag, msg.JobID, shouldRequeueJob(err))
		}
	}
}

func (w *Worker) nack(deliveryTag uint64, jobID string, requeue bool) {
	if err := w.broker.Nack(deliveryTag, requeue); err != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	w.logger.Info("Message NACKed",
		slog.String("job_id", jobID),
		slog.Bool("requeue", requeue),
	)
}

// shouldRequeueJob determines if a job should be requeued based on the error type
func shouldRequeueJob(err error) bool {
	switch {
	case errors.Is(err, domain.ErrJobAlreadyClaimed),
		errors.Is(err, domain.ErrJobLost),
		errors.Is(err, domain.ErrMaxRetriesExceeded),
		errors.Is(err, domain.ErrInvalidPayload):
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
