package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected is returned when the channel has been closed
var ErrNotConnected = errors.New("not connected to RabbitMQ")

// Config describes the broker endpoint and the script job topology
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string

	ExchangeName       string
	ExchangeType       string
	ExchangeDurable    bool
	ExchangeAutoDelete bool
	QueueName          string
	QueueDurable       bool
	QueueAutoDelete    bool
	QueueExclusive     bool
	RoutingKey         string

	// DeadLetterExchange receives deliveries rejected without requeue.
	// Empty disables dead lettering.
	DeadLetterExchange string
	DeadLetterQueue    string

	RetryAttempts     int
	RetryInterval     time.Duration
	Heartbeat         time.Duration
	ConnectionTimeout time.Duration

	PublishRetries     int
	PublishRetryDelay  time.Duration
	PublishBackoffMult float64
	AppID              string
}

// URI renders the AMQP connection URI
func (c *Config) URI() string {
	vhost := c.VHost
	if vhost == "" {
		vhost = "/"
	}
	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     c.Port,
		Username: c.User,
		Password: c.Password,
		Vhost:    vhost,
	}
	return uri.String()
}

// queueArgs wires the job queue to the dead letter exchange
func (c *Config) queueArgs() amqp.Table {
	if c.DeadLetterExchange == "" {
		return nil
	}
	return amqp.Table{
		"x-dead-letter-exchange":    c.DeadLetterExchange,
		"x-dead-letter-routing-key": c.RoutingKey,
	}
}

// publishDelays returns the wait before each publish retry
func (c *Config) publishDelays() []time.Duration {
	retries := c.PublishRetries
	if retries <= 0 {
		retries = 3
	}
	delay := c.PublishRetryDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	mult := c.PublishBackoffMult
	if mult < 1 {
		mult = 2
	}

	delays := make([]time.Duration, retries)
	for i := range delays {
		delays[i] = delay
		delay = time.Duration(float64(delay) * mult)
	}
	return delays
}

// Client owns one AMQP connection and a single channel shared by the
// publisher side of the API and the consumer side of the worker.
type Client struct {
	config *Config
	logger *slog.Logger

	// amqp channels are not safe for concurrent publishing or acking
	mu        sync.Mutex
	conn      *amqp.Connection
	channel   *amqp.Channel
	closeChan chan *amqp.Error
	closed    bool
}

// NewClient dials the broker and declares the job topology
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	c := &Client{
		config: config,
		logger: logger.With(slog.String("component", "rabbitmq")),
	}

	conn, err := c.dial()
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(ch, config); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare script job topology: %w", err)
	}

	c.conn = conn
	c.channel = ch
	c.closeChan = ch.NotifyClose(make(chan *amqp.Error, 1))

	c.logger.Info("RabbitMQ ready",
		slog.String("exchange", config.ExchangeName),
		slog.String("queue", config.QueueName),
		slog.String("dead_letter_queue", config.DeadLetterQueue),
	)
	return c, nil
}

// dial connects with a fixed pause between attempts
func (c *Client) dial() (*amqp.Connection, error) {
	cfg := amqp.Config{
		Heartbeat:  c.config.Heartbeat,
		Locale:     "en_US",
		Properties: amqp.NewConnectionProperties(),
	}
	if c.config.AppID != "" {
		cfg.Properties.SetClientConnectionName(c.config.AppID)
	}
	if c.config.ConnectionTimeout > 0 {
		cfg.Dial = amqp.DefaultDial(c.config.ConnectionTimeout)
	}

	attempts := max(c.config.RetryAttempts, 1)
	uri := c.config.URI()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := amqp.DialConfig(uri, cfg)
		if err == nil {
			c.logger.Info("Connected to RabbitMQ",
				slog.String("host", c.config.Host),
				slog.Int("attempt", attempt),
			)
			return conn, nil
		}
		lastErr = err

		c.logger.Warn("RabbitMQ dial failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Any("error", err),
		)
		if attempt < attempts {
			time.Sleep(c.config.RetryInterval)
		}
	}

	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, lastErr)
}

// declareTopology declares the job exchange and queue, plus the dead letter
// pair when configured.
func declareTopology(ch *amqp.Channel, cfg *Config) error {
	if cfg.DeadLetterExchange != "" {
		if err := ch.ExchangeDeclare(cfg.DeadLetterExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
			return fmt.Errorf("dead letter exchange %s: %w", cfg.DeadLetterExchange, err)
		}
		if cfg.DeadLetterQueue != "" {
			if _, err := ch.QueueDeclare(cfg.DeadLetterQueue, true, false, false, false, nil); err != nil {
				return fmt.Errorf("dead letter queue %s: %w", cfg.DeadLetterQueue, err)
			}
			if err := ch.QueueBind(cfg.DeadLetterQueue, "", cfg.DeadLetterExchange, false, nil); err != nil {
				return fmt.Errorf("bind dead letter queue: %w", err)
			}
		}
	}

	if err := ch.ExchangeDeclare(
		cfg.ExchangeName,
		cfg.ExchangeType,
		cfg.ExchangeDurable,
		cfg.ExchangeAutoDelete,
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("exchange %s: %w", cfg.ExchangeName, err)
	}

	if _, err := ch.QueueDeclare(
		cfg.QueueName,
		cfg.QueueDurable,
		cfg.QueueAutoDelete,
		cfg.QueueExclusive,
		false, // no-wait
		cfg.queueArgs(),
	); err != nil {
		return fmt.Errorf("queue %s: %w", cfg.QueueName, err)
	}

	if err := ch.QueueBind(cfg.QueueName, cfg.RoutingKey, cfg.ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", cfg.QueueName, err)
	}
	return nil
}

// PublishJob publishes a persistent job message keyed by jobID, retrying
// with exponential backoff until ctx is done.
func (c *Client) PublishJob(ctx context.Context, jobID string, body []byte) error {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    jobID,
		AppId:        c.config.AppID,
		Body:         body,
	}

	delays := c.config.publishDelays()
	var err error
	for attempt := 0; ; attempt++ {
		msg.Timestamp = time.Now()
		if err = c.publish(ctx, msg); err == nil {
			c.logger.Debug("Job message published",
				slog.String("job_id", jobID),
				slog.Int("attempt", attempt+1),
			)
			return nil
		}
		if errors.Is(err, ErrNotConnected) || attempt == len(delays) {
			break
		}

		c.logger.Warn("Job publish failed, retrying",
			slog.String("job_id", jobID),
			slog.Int("attempt", attempt+1),
			slog.Duration("retry_after", delays[attempt]),
			slog.Any("error", err),
		)

		timer := time.NewTimer(delays[attempt])
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("publish of job %s aborted: %w", jobID, ctx.Err())
		}
	}

	c.logger.Error("Job publish gave up",
		slog.String("job_id", jobID),
		slog.Any("error", err),
	)
	return fmt.Errorf("failed to publish job %s: %w", jobID, err)
}

func (c *Client) publish(ctx context.Context, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.channel.IsClosed() {
		return ErrNotConnected
	}
	return c.channel.PublishWithContext(ctx, c.config.ExchangeName, c.config.RoutingKey, false, false, msg)
}

// SetQos limits the number of unacknowledged deliveries per consumer
func (c *Client) SetQos(prefetchCount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.channel.Qos(prefetchCount, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	return nil
}

// Consume starts a manual-ack consumer on the job queue
func (c *Client) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrNotConnected
	}

	deliveries, err := c.channel.Consume(c.config.QueueName, consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume %s: %w", c.config.QueueName, err)
	}

	c.logger.Info("Consuming job queue",
		slog.String("queue", c.config.QueueName),
		slog.String("consumer_tag", consumerTag),
	)
	return deliveries, nil
}

// Ack acknowledges a single delivery
func (c *Client) Ack(deliveryTag uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel.Ack(deliveryTag, false)
}

// Nack rejects a single delivery. Without requeue the broker dead letters it.
func (c *Client) Nack(deliveryTag uint64, requeue bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel.Nack(deliveryTag, false, requeue)
}

// NotifyClose returns the channel that receives the AMQP channel close error
func (c *Client) NotifyClose() <-chan *amqp.Error {
	return c.closeChan
}

// Close closes the channel and the connection. It is safe to call twice.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		c.logger.Warn("Failed to close RabbitMQ channel", slog.Any("error", err))
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("failed to close RabbitMQ connection: %w", err)
	}

	c.logger.Info("RabbitMQ connection closed")
	return nil
}

// IsConnected reports whether the connection is usable
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && !c.conn.IsClosed() && !c.channel.IsClosed()
}
