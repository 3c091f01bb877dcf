// Package usage persists one record per completed generation so workspaces
// can be billed and audited. The LLM core never writes here; the HTTP layer
// does, asynchronously.
package usage

import (
	"context"
	"time"
)

type Record struct {
	ID           string    `json:"id"`
	WorkspaceID  string    `json:"workspace_id"`
	RequestID    string    `json:"request_id"`
	Operation    string    `json:"operation"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostCents    float64   `json:"cost_cents"`
	LatencyMs    int64     `json:"latency_ms"`
	Success      bool      `json:"success"`
	CreatedAt    time.Time `json:"created_at"`
}

type Store interface {
	Append(ctx context.Context, rec *Record) error
	ListByWorkspace(ctx context.Context, workspaceID string, from, to time.Time) ([]*Record, error)
	TotalCostByWorkspace(ctx context.Context, workspaceID string, from, to time.Time) (float64, error)
}
