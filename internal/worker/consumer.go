package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/creatorsmantra/creatorsmantra-be/internal/worker/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// setupConsumer sets QoS and returns the delivery channel
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	// unacknowledged deliveries per consumer
	if err := w.broker.SetQos(w.prefetchCount); err != nil {
		return nil, err
	}

	w.logger.Info("RabbitMQ QoS configured",
		slog.Int("prefetch_count", w.prefetchCount),
	)

	deliveries, err := w.broker.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.String("queue", w.queueName),
	)

	return deliveries, nil
}

// startMessageDispatcher listens to deliveries and hands jobs to the pool
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Message dispatcher started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case <-w.stopChan:
			w.logger.Info("Message dispatcher stopped - stopChan closed")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			msg, err := parseJobMessage(delivery.Body)
			if err != nil {
				w.logger.Error("Rejecting malformed job message",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				// malformed messages go to the DLQ, if one is bound
				w.nack(delivery.DeliveryTag, msg.JobID, false)
				continue
			}
			msg.DeliveryTag = delivery.DeliveryTag

			select {
			case w.jobsChan <- msg:
				w.logger.Debug("Job dispatched to worker pool",
					slog.String("job_id", msg.JobID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching job")
				w.nack(delivery.DeliveryTag, msg.JobID, true)
				return
			case <-w.stopChan:
				w.logger.Info("Message dispatcher stopped while dispatching job")
				w.nack(delivery.DeliveryTag, msg.JobID, true)
				return
			}
		}
	}
}

// parseJobMessage decodes a queue message and validates the job id. The
// returned message is never nil.
func parseJobMessage(body []byte) (*domain.JobMessage, error) {
	msg := &domain.JobMessage{}
	if err := json.Unmarshal(body, msg); err != nil {
		return msg, fmt.Errorf("failed to parse message JSON: %w", err)
	}

	if _, err := uuid.Parse(msg.JobID); err != nil {
		return msg, fmt.Errorf("invalid job_id %q: %w", msg.JobID, err)
	}

	return msg, nil
}
