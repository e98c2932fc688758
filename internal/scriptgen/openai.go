package scriptgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIDefaultModel   = "gpt-4o-mini"
	openAIDefaultTimeout = 60 * time.Second

	// error bodies are truncated to this many bytes in returned errors
	maxErrorBody = 512
)

// OpenAIOptions configures an OpenAIGenerator
type OpenAIOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
}

// OpenAIGenerator asks an OpenAI-compatible chat completions endpoint for a
// script in JSON form
type OpenAIGenerator struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature,omitempty"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenAIGenerator validates opts and fills defaults
func NewOpenAIGenerator(opts OpenAIOptions) (*OpenAIGenerator, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = openAIDefaultModel
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}

	return &OpenAIGenerator{
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		temperature: opts.Temperature,
		client:      client,
	}, nil
}

func (g *OpenAIGenerator) Name() string {
	return "openai:" + g.model
}

// Generate sends one chat completion request and decodes the returned script
func (g *OpenAIGenerator) Generate(ctx context.Context, brief Brief, report ProgressFunc) (*Script, error) {
	if report == nil {
		report = noProgress
	}

	brief.Normalize()
	if err := brief.Validate(); err != nil {
		return nil, err
	}

	userPrompt, err := buildUserPrompt(brief)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	payload := chatRequest{
		Model:          g.model,
		Temperature:    g.temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	report(10, "Requesting script from model")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat completions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("chat completions returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(chat.Choices) == 0 || strings.TrimSpace(chat.Choices[0].Message.Content) == "" {
		return nil, errors.New("chat completions returned no content")
	}

	report(80, "Parsing model output")

	var script Script
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &script); err != nil {
		return nil, fmt.Errorf("model returned invalid script JSON: %w", err)
	}
	if script.Hook == "" || len(script.Sections) == 0 {
		return nil, errors.New("model returned an incomplete script")
	}

	script.Generator = g.Name()
	script.countWords()
	return &script, nil
}

const systemPrompt = `You write short-form video scripts for independent content creators.
Respond only with a JSON object with the keys: title, hook, sections (array of objects with
heading, content, durationSeconds), callToAction, hashtags (array of strings).`

func buildUserPrompt(b Brief) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Write a %s script of about %d seconds (%d words) for this brief:\n%s",
		b.Platform, b.DurationSeconds, b.DurationSeconds*wordsPerMinute/60, data), nil
}
