// Package api exposes the prompt generation endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/robert-ris/prompts-generator-sub001/internal/auth"
	"github.com/robert-ris/prompts-generator-sub001/internal/factory"
	"github.com/robert-ris/prompts-generator-sub001/internal/manager"
	"github.com/robert-ris/prompts-generator-sub001/internal/provider"
	"github.com/robert-ris/prompts-generator-sub001/internal/usage"
	"github.com/robert-ris/prompts-generator-sub001/pkg/ratelimit"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	mgr     *manager.Manager
	usage   usage.Store
	limiter *ratelimit.Limiter
	tracer  trace.Tracer
}

func NewHandler(mgr *manager.Manager, store usage.Store, limiter *ratelimit.Limiter, tracer trace.Tracer) *Handler {
	return &Handler{
		mgr:     mgr,
		usage:   store,
		limiter: limiter,
		tracer:  tracer,
	}
}

type improveRequest struct {
	Prompt      string  `json:"prompt"`
	Mode        string  `json:"mode"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	UseFallback bool    `json:"use_fallback,omitempty"`
}

type generateRequest struct {
	Description string  `json:"description"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	UseFallback bool    `json:"use_fallback,omitempty"`
}

func (h *Handler) HandleImprovePrompt(w http.ResponseWriter, r *http.Request) {
	workspaceID, requestID, ok := h.prepare(w, r)
	if !ok {
		return
	}

	var req improveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode := factory.ImproveMode(req.Mode)
	if req.Mode == "" {
		mode = factory.ModeClarify
	} else if _, err := factory.ParseImproveMode(req.Mode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "api.improve_prompt")
	defer span.End()
	span.SetAttributes(
		attribute.String("workspace_id", workspaceID),
		attribute.String("request_id", requestID),
		attribute.String("mode", string(mode)),
	)

	if !h.allow(ctx, w, workspaceID, req.MaxTokens) {
		return
	}

	resp, err := factory.ImprovePrompt(ctx, h.mgr, req.Prompt, mode, factory.GenerateOptions{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		UseFallback: req.UseFallback,
	})
	h.finish(w, workspaceID, requestID, provider.OpPromptImprove, resp, err)
}

func (h *Handler) HandleGeneratePrompt(w http.ResponseWriter, r *http.Request) {
	workspaceID, requestID, ok := h.prepare(w, r)
	if !ok {
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "api.generate_prompt")
	defer span.End()
	span.SetAttributes(
		attribute.String("workspace_id", workspaceID),
		attribute.String("request_id", requestID),
	)

	if !h.allow(ctx, w, workspaceID, req.MaxTokens) {
		return
	}

	resp, err := factory.GeneratePrompt(ctx, h.mgr, req.Description, factory.GenerateOptions{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		UseFallback: req.UseFallback,
	})
	h.finish(w, workspaceID, requestID, provider.OpPromptGenerate, resp, err)
}

func (h *Handler) prepare(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	ctx := r.Context()
	workspaceID := auth.GetWorkspaceID(ctx)
	if workspaceID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", "", false
	}

	requestID := auth.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	return workspaceID, requestID, true
}

func (h *Handler) allow(ctx context.Context, w http.ResponseWriter, workspaceID string, maxTokens int) bool {
	estimatedTokens := maxTokens
	if estimatedTokens <= 0 {
		estimatedTokens = 1000
	}

	allowed, err := h.limiter.Allow(ctx, workspaceID, estimatedTokens)
	if err != nil || !allowed {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "60s")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{
			"error":       "rate limit exceeded",
			"retry_after": "60s",
		})
		return false
	}
	return true
}

// finish maps a generation outcome onto an HTTP status, logs usage
// asynchronously, and writes the response body.
func (h *Handler) finish(w http.ResponseWriter, workspaceID, requestID string, op provider.Operation, resp *provider.GenerationResponse, err error) {
	if err != nil {
		switch {
		case provider.IsInvalidRequest(err):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, provider.ErrNoProviderAvailable), errors.Is(err, provider.ErrNoSuitableModel):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	go func() {
		_ = h.usage.Append(context.Background(), &usage.Record{
			WorkspaceID:  workspaceID,
			RequestID:    requestID,
			Operation:    string(op),
			Provider:     resp.Provider,
			Model:        resp.Model,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CostCents:    resp.Usage.CostCents,
			LatencyMs:    resp.ResponseTimeMs,
			Success:      resp.Success,
		})
	}()

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"request_id": requestID,
		"text":       resp.Text,
		"provider":   resp.Provider,
		"model":      resp.Model,
		"success":    resp.Success,
		"error":      resp.Error,
		"warning":    resp.Warning,
		"latency_ms": resp.ResponseTimeMs,
		"usage": map[string]interface{}{
			"input_tokens":  resp.Usage.InputTokens,
			"output_tokens": resp.Usage.OutputTokens,
			"total_tokens":  resp.Usage.TotalTokens,
			"cost_cents":    resp.Usage.CostCents,
		},
	})
}

// HandleStatus reports provider health and routing stats. The optional
// include query parameter narrows the payload to "health" or "stats".
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	include := r.URL.Query().Get("include")

	body := map[string]interface{}{
		"timestamp": time.Now().UTC(),
	}

	switch include {
	case "":
		body["health"] = h.mgr.Health()
		body["stats"] = h.mgr.Stats()
	case "health":
		body["health"] = h.mgr.Health()
	case "stats":
		body["stats"] = h.mgr.Stats()
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown include value %q", include))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workspaceID := auth.GetWorkspaceID(ctx)
	if workspaceID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	now := time.Now()
	from := now.AddDate(0, 0, -30) // default: last 30 days
	to := now

	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		var err error
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'from' date format (use RFC3339)")
			return
		}
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		var err error
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'to' date format (use RFC3339)")
			return
		}
	}

	records, err := h.usage.ListByWorkspace(ctx, workspaceID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	totalCost, err := h.usage.TotalCostByWorkspace(ctx, workspaceID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"workspace_id":     workspaceID,
		"total_requests":   len(records),
		"total_cost_cents": totalCost,
		"records":          records,
		"from":             from,
		"to":               to,
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
