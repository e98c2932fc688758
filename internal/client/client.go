// Package client is an HTTP client for the script API. It is the status
// source the poller uses from the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/creatorsmantra/creatorsmantra-be/internal/api/dto"
	"github.com/creatorsmantra/creatorsmantra-be/internal/poller"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("scriptgen-client")

const maxErrorBody = 4 << 10

// APIError is returned for any non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("script API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("script API returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the script API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the API at baseURL. A zero timeout means 10s.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// CreateScript queues a generation job. An idempotent replay returns the
// existing job.
func (c *Client) CreateScript(ctx context.Context, req *dto.CreateScriptRequest) (*dto.ScriptJobDTO, error) {
	ctx, span := tracer.Start(ctx, "scripts_create")
	defer span.End()

	body, err := json.Marshal(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var job dto.ScriptJobDTO
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/scripts", body, &job); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("script.job_id", job.JobID))
	return &job, nil
}

// GetScript returns the full job
func (c *Client) GetScript(ctx context.Context, jobID string) (*dto.ScriptJobDTO, error) {
	ctx, span := tracer.Start(ctx, "scripts_get")
	defer span.End()
	span.SetAttributes(attribute.String("script.job_id", jobID))

	var job dto.ScriptJobDTO
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/scripts/"+url.PathEscape(jobID), nil, &job); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &job, nil
}

// FetchStatus issues one generation status request
func (c *Client) FetchStatus(ctx context.Context, jobID string) (*poller.StatusPayload, error) {
	ctx, span := tracer.Start(ctx, "scripts_get_status")
	defer span.End()
	span.SetAttributes(attribute.String("script.job_id", jobID))

	var payload poller.StatusPayload
	raw, err := c.do(ctx, http.MethodGet, "/api/v1/scripts/"+url.PathEscape(jobID)+"/status", nil, &payload)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	payload.Raw = raw

	span.SetAttributes(
		attribute.String("script.status", payload.Status),
		attribute.Int("script.progress", payload.Progress),
	)
	return &payload, nil
}

// CancelScript stops a job that has not finished
func (c *Client) CancelScript(ctx context.Context, jobID string) (*poller.StatusPayload, error) {
	ctx, span := tracer.Start(ctx, "scripts_cancel")
	defer span.End()
	span.SetAttributes(attribute.String("script.job_id", jobID))

	var payload poller.StatusPayload
	raw, err := c.do(ctx, http.MethodPost, "/api/v1/scripts/"+url.PathEscape(jobID)+"/cancel", nil, &payload)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	payload.Raw = raw

	return &payload, nil
}

// do sends a request and decodes a 2xx JSON body into out, returning the raw body
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call script API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("empty response body")
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return raw, nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body dto.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: body.Error}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}
