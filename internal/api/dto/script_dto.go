package dto

import (
	"encoding/json"

	"github.com/creatorsmantra/creatorsmantra-be/internal/scriptgen"
)

type CreateScriptRequest struct {
	IdempotencyKey string          `json:"idempotencyKey" binding:"required"`
	CreatorID      string          `json:"creatorId" binding:"required"`
	Title          string          `json:"title"`
	Brief          scriptgen.Brief `json:"brief"`
}

type ListScriptsRequest struct {
	CreatorID string `form:"creatorId"`
	Platform  string `form:"platform"`
	Status    string `form:"status"`
	PageSize  int    `form:"pageSize"`
	Cursor    string `form:"cursor"`
}

type ListScriptsResponse struct {
	Jobs       []ScriptJobDTO `json:"jobs"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

type ScriptJobDTO struct {
	JobID          string          `json:"jobId"`
	IdempotencyKey string          `json:"idempotencyKey"`
	CreatorID      string          `json:"creatorId"`
	Title          string          `json:"title"`
	Platform       string          `json:"platform"`
	Brief          json.RawMessage `json:"brief"`
	Status         string          `json:"status"`
	Progress       int             `json:"progress"`
	Message        string          `json:"message,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	RetryCount     int             `json:"retryCount"`
	CreatedAt      string          `json:"createdAt"`
	UpdatedAt      string          `json:"updatedAt"`
	CompletedAt    string          `json:"completedAt,omitempty"`
}

// StatusResponse is the body of the generation status endpoint
type StatusResponse struct {
	JobID                string          `json:"jobId"`
	Status               string          `json:"status"`
	IsGenerationComplete bool            `json:"isGenerationComplete"`
	Progress             int             `json:"progress"`
	Message              string          `json:"message,omitempty"`
	Result               json.RawMessage `json:"result,omitempty"`
	Error                string          `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
