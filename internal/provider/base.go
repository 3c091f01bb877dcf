package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Base carries the behavior shared by every HTTP-backed adapter: per-attempt
// timeout enforcement, retry with exponential backoff for transient
// failures, latency measurement and cost computation. Adapters embed it and
// build vendor-specific payloads on top.
type Base struct {
	cfg    ProviderConfig
	client *http.Client
}

func NewBase(cfg ProviderConfig) Base {
	// No client-level timeout; each attempt gets its own deadline so a
	// timed-out attempt still counts as one retryable failure.
	return Base{cfg: cfg, client: &http.Client{}}
}

func (b *Base) Config() ProviderConfig {
	return b.cfg
}

// DoJSON posts reqBody as JSON and decodes the vendor reply into respBody.
// Retryable failures (timeout, 5xx, rate limit) are retried up to MaxRetries
// with exponential backoff; credential and malformed-request failures fail
// immediately. The returned error is always a *Error.
func (b *Base) DoJSON(ctx context.Context, url string, headers map[string]string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return &Error{Provider: b.cfg.Name, Kind: KindInvalidRequest, Message: err.Error()}
	}

	attempt := func() (struct{}, error) {
		aErr := b.attempt(ctx, url, headers, payload, respBody)
		if aErr == nil {
			return struct{}{}, nil
		}
		var pe *Error
		if errors.As(aErr, &pe) && !pe.Retryable() {
			return struct{}{}, backoff.Permanent(aErr)
		}
		return struct{}{}, aErr
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	_, err = backoff.Retry(ctx, attempt,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(b.cfg.MaxRetries)+1),
	)
	if err == nil {
		return nil
	}

	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Provider: b.cfg.Name, Kind: KindTimeout, Message: err.Error()}
	}
	return &Error{Provider: b.cfg.Name, Kind: KindUnavailable, Message: err.Error()}
}

// attempt performs a single request bounded by the configured timeout.
func (b *Base) attempt(ctx context.Context, url string, headers map[string]string, payload []byte, respBody any) error {
	timeout := b.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &Error{Provider: b.cfg.Name, Kind: KindInvalidRequest, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if attemptCtx.Err() != nil {
			return &Error{Provider: b.cfg.Name, Kind: KindTimeout,
				Message: fmt.Sprintf("request exceeded %s", timeout)}
		}
		return &Error{Provider: b.cfg.Name, Kind: KindUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{
			Provider:   b.cfg.Name,
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return &Error{Provider: b.cfg.Name, Kind: KindUnavailable,
				Message: fmt.Sprintf("malformed vendor response: %v", err)}
		}
	}
	return nil
}

func classifyStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code >= 500:
		return KindUnavailable
	default:
		return KindInvalidRequest
	}
}

// CostCents computes the cost in fractional cents for the model actually
// used. An unknown model falls back to the provider's cheapest configured
// rates and reports a warning instead of failing.
func (b *Base) CostCents(model string, inputTokens, outputTokens int) (float64, string) {
	var rates ModelConfig
	found := false
	for _, m := range b.cfg.Models {
		if m.Name == model {
			rates = m
			found = true
			break
		}
	}

	warning := ""
	if !found {
		cheapest, ok := b.cfg.CheapestModel()
		if !ok {
			return 0, fmt.Sprintf("no pricing configured for provider %q, cost recorded as zero", b.cfg.Name)
		}
		rates = cheapest
		warning = fmt.Sprintf("unknown model %q, cost estimated from %q pricing", model, cheapest.Name)
	}

	cost := float64(inputTokens)/1000*rates.InputCostPer1K +
		float64(outputTokens)/1000*rates.OutputCostPer1K
	if cost < 0 {
		cost = 0
	}
	return cost, warning
}

// Succeed builds a successful response with usage and cost filled in.
// Latency covers the full attempt including retries.
func (b *Base) Succeed(text, model string, inputTokens, outputTokens int, start time.Time) *GenerationResponse {
	cost, warning := b.CostCents(model, inputTokens, outputTokens)
	return &GenerationResponse{
		Text:           text,
		Usage:          NewTokenUsage(inputTokens, outputTokens, cost),
		Provider:       b.cfg.Name,
		Model:          model,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Success:        true,
		Warning:        warning,
	}
}

// Fail normalizes err into a failed response. Usage stays at zeros unless
// the vendor call consumed billable tokens before failing.
func (b *Base) Fail(model string, start time.Time, err error) *GenerationResponse {
	msg := "generation failed"
	if err != nil {
		msg = err.Error()
	}
	return &GenerationResponse{
		Usage:          NewTokenUsage(0, 0, 0),
		Provider:       b.cfg.Name,
		Model:          model,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Success:        false,
		Error:          msg,
	}
}

// Probe runs fn under the configured timeout and reports it as a health
// status with measured latency.
func (b *Base) Probe(ctx context.Context, fn func(ctx context.Context) error) HealthStatus {
	timeout := b.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := fn(probeCtx)
	status := HealthStatus{
		Provider:       b.cfg.Name,
		Healthy:        err == nil,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		LastChecked:    time.Now(),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}
