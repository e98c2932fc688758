package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/creatorsmantra/creatorsmantra-be/internal/scriptgen"
	"github.com/creatorsmantra/creatorsmantra-be/internal/worker/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// JobStore is the persistence the worker needs
type JobStore interface {
	ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error)
	UpdateProgress(ctx context.Context, jobID, workerID string, progress int, message string) error
	CompleteJob(ctx context.Context, jobID, workerID string, result []byte) error
	FailJob(ctx context.Context, jobID, workerID, reason string) error
	RequeueJob(ctx context.Context, jobID, workerID, reason string) error
	UpdateJobHeartbeat(ctx context.Context, jobID, workerID string) error
}

// Broker delivers job messages and takes acknowledgements
type Broker interface {
	SetQos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	Ack(deliveryTag uint64) error
	Nack(deliveryTag uint64, requeue bool) error
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Store             JobStore
	Broker            Broker
	Generator         scriptgen.Generator
	WorkerID          string
	QueueName         string
	Concurrency       int
	PrefetchCount     int
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
}

// Worker consumes script jobs and runs them through a generator
type Worker struct {
	logger            *slog.Logger
	store             JobStore
	broker            Broker
	generator         scriptgen.Generator
	workerID          string
	queueName         string
	concurrency       int
	prefetchCount     int
	jobTimeout        time.Duration
	heartbeatInterval time.Duration

	jobsChan chan *domain.JobMessage
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = "worker-" + uuid.NewString()[:8]
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}

	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}

	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 2 * time.Minute
	}

	return &Worker{
		logger:            cfg.Logger.With(slog.String("worker_id", workerID)),
		store:             cfg.Store,
		broker:            cfg.Broker,
		generator:         cfg.Generator,
		workerID:          workerID,
		queueName:         cfg.QueueName,
		concurrency:       concurrency,
		prefetchCount:     prefetch,
		jobTimeout:        jobTimeout,
		heartbeatInterval: heartbeat,
		jobsChan:          make(chan *domain.JobMessage),
		stopChan:          make(chan struct{}),
	}
}

// ID returns the identifier this worker claims jobs under
func (w *Worker) ID() string {
	return w.workerID
}

// Start subscribes to the queue and spawns the worker pool. It returns once
// consumption has begun; processing continues until ctx is canceled or Stop
// is called.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
		slog.String("generator", w.generator.Name()),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.startMessageDispatcher(ctx, deliveries)
	}()

	return nil
}

// Stop signals all goroutines to finish and waits for in-flight jobs
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
