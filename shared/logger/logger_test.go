package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(t *testing.T, cfg Config) (*Logger, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	cfg.writer = output
	l, err := New(&cfg)
	require.NoError(t, err)
	require.NotNil(t, l)
	return l, output
}

func decodeLines(t *testing.T, output *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel string
	}{
		{name: "debug keeps debug", level: "debug", wantLevel: "DEBUG"},
		{name: "info drops debug", level: "info", wantLevel: "INFO"},
		{name: "warn drops info", level: "warn", wantLevel: "WARN"},
		{name: "error drops warn", level: "error", wantLevel: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, output := newBufferedLogger(t, Config{Level: tt.level, Format: "json"})

			l.Debug("poll attempt", slog.Int("attempt", 1))
			l.Info("poll attempt", slog.Int("attempt", 2))
			l.Warn("poll attempt", slog.Int("attempt", 3))
			l.Error("poll attempt", slog.Int("attempt", 4))

			entries := decodeLines(t, output)
			require.NotEmpty(t, entries)
			assert.Equal(t, tt.wantLevel, entries[0]["level"])
			assert.Equal(t, "poll attempt", entries[0]["msg"])
			assert.Contains(t, entries[0], "time")
		})
	}
}

func TestNew_ConsoleFormat(t *testing.T) {
	l, output := newBufferedLogger(t, Config{Level: "info", Format: "console", TimeFormat: time.RFC3339})

	l.Info("script job queued", slog.String("job_id", "abc"))

	// tint abbreviates levels
	assert.Contains(t, output.String(), "INF")
	assert.Contains(t, output.String(), "script job queued")
	assert.Contains(t, output.String(), "abc")
}

func TestNew_WithSource(t *testing.T) {
	l, output := newBufferedLogger(t, Config{Level: "info", Format: "json", EnableSource: true})

	l.Info("message with source")

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	source, ok := entries[0]["source"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, source, "file")
	assert.Contains(t, source, "line")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")

	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	l.Info("written to file", slog.String("service", "worker"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNew_FileOutputUnwritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "worker.log")

	l, err := New(&Config{Output: path})
	require.Error(t, err)
	assert.Nil(t, l)
	assert.Contains(t, err.Error(), "failed to open log file")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"Warning", slog.LevelWarn},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}

func TestNew_ServiceAttributes(t *testing.T) {
	tests := []struct {
		name        string
		service     string
		version     string
		wantService any
		wantVersion any
	}{
		{name: "both set", service: "script-api-service", version: "1.0.0", wantService: "script-api-service", wantVersion: "1.0.0"},
		{name: "service only", service: "script-worker-service", wantService: "script-worker-service"},
		{name: "neither set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, output := newBufferedLogger(t, Config{Level: "info", Format: "json", Service: tt.service, Version: tt.version})

			l.Info("ready")

			entries := decodeLines(t, output)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantService, entries[0]["service"])
			assert.Equal(t, tt.wantVersion, entries[0]["version"])
		})
	}
}

func TestNew_ConsoleKeepsErrorKey(t *testing.T) {
	l, output := newBufferedLogger(t, Config{Level: "info", Format: "console"})

	l.Error("status request failed", slog.Any("error", errors.New("connection refused")))

	assert.Contains(t, output.String(), "error")
	assert.Contains(t, output.String(), "connection refused")
}
