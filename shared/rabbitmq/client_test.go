package rabbitmq

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_URI(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantVhost string
	}{
		{
			name:      "default vhost",
			cfg:       Config{Host: "localhost", Port: 5672, User: "guest", Password: "guest", VHost: "/"},
			wantVhost: "/",
		},
		{
			name:      "empty vhost",
			cfg:       Config{Host: "localhost", Port: 5672, User: "guest", Password: "guest"},
			wantVhost: "/",
		},
		{
			name:      "named vhost and port",
			cfg:       Config{Host: "mq.internal", Port: 5673, User: "scripts", Password: "s3cret", VHost: "creators"},
			wantVhost: "creators",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := amqp.ParseURI(tt.cfg.URI())
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Host, parsed.Host)
			assert.Equal(t, tt.cfg.Port, parsed.Port)
			assert.Equal(t, tt.cfg.User, parsed.Username)
			assert.Equal(t, tt.cfg.Password, parsed.Password)
			assert.Equal(t, tt.wantVhost, parsed.Vhost)
		})
	}
}

func TestConfig_QueueArgs(t *testing.T) {
	cfg := Config{RoutingKey: "script.generate"}
	assert.Nil(t, cfg.queueArgs())

	cfg.DeadLetterExchange = "script_jobs_dlx"
	args := cfg.queueArgs()
	assert.Equal(t, "script_jobs_dlx", args["x-dead-letter-exchange"])
	assert.Equal(t, "script.generate", args["x-dead-letter-routing-key"])
	assert.NoError(t, args.Validate())
}

func TestConfig_PublishDelays(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []time.Duration
	}{
		{
			name: "defaults",
			cfg:  Config{},
			want: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond},
		},
		{
			name: "custom backoff",
			cfg:  Config{PublishRetries: 2, PublishRetryDelay: 50 * time.Millisecond, PublishBackoffMult: 3},
			want: []time.Duration{50 * time.Millisecond, 150 * time.Millisecond},
		},
		{
			name: "multiplier below one falls back",
			cfg:  Config{PublishRetries: 2, PublishRetryDelay: time.Second, PublishBackoffMult: 0.5},
			want: []time.Duration{time.Second, 2 * time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.publishDelays())
		})
	}
}
