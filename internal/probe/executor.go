// Package probe builds and executes single chat completion probes.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"modelprobe/internal/models"
)

const (
	// DefaultTimeout bounds a single probe.
	DefaultTimeout = 60 * time.Second

	snippetLimit = 100
	errorLimit   = 200
)

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens float64 `json:"total_tokens"`
	} `json:"usage"`
}

// Executor issues probe requests and classifies their outcome.
type Executor struct {
	client *http.Client
	now    func() time.Time
}

// Option customises an Executor.
type Option func(*Executor)

// WithHTTPClient replaces the HTTP client used for probes.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Executor) {
		if client != nil {
			e.client = client
		}
	}
}

// WithNow replaces the clock used to measure latency.
func WithNow(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor creates an executor. The default client has no overall timeout;
// each call is bounded by the timeout passed to Execute.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		client: &http.Client{Transport: newTransport()},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// newTransport clones the default transport without its dial and TLS
// handshake timeouts, so the per-probe deadline is the only one that applies.
func newTransport() *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	dialer := &net.Dialer{KeepAlive: 30 * time.Second}
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = 0
	return transport
}

// Execute performs req and never returns an error: every failure is folded
// into the outcome.
func (e *Executor) Execute(ctx context.Context, req Request, timeout time.Duration) models.ProbeOutcome {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	outcome := models.ProbeOutcome{
		TargetID: req.Target.ID,
		Name:     req.Target.Name,
		Route:    req.Target.Route,
	}

	payload, err := json.Marshal(req.Body)
	if err != nil {
		return transportFailure(outcome, 0, fmt.Errorf("encode request: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, req.URL, bytes.NewReader(payload))
	if err != nil {
		return transportFailure(outcome, 0, err)
	}
	httpReq.Header = req.Header.Clone()

	start := e.now()
	resp, err := e.client.Do(httpReq)
	latency := elapsedMillis(start, e.now())
	if err != nil {
		if timedOut(callCtx, err) {
			return timeoutFailure(outcome, timeout)
		}
		return transportFailure(outcome, latency, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if timedOut(callCtx, err) {
			return timeoutFailure(outcome, timeout)
		}
		return transportFailure(outcome, latency, fmt.Errorf("read response: %w", err))
	}

	outcome.LatencyMillis = latency
	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(body), errorLimit))
		outcome.Status = models.StatusHTTPError
		outcome.ErrorDetail = &detail
		return outcome
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return transportFailure(outcome, latency, fmt.Errorf("decode response: %w", err))
	}

	content := ""
	if len(parsed.Choices) > 0 {
		content = parsed.Choices[0].Message.Content
	}
	snippet := truncate(content, snippetLimit)
	outcome.Status = models.StatusSuccess
	outcome.ResponseSnippet = &snippet
	outcome.TokenCount = int(parsed.Usage.TotalTokens)
	return outcome
}

// timedOut distinguishes the per-probe deadline from a cancelled sweep.
func timedOut(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}

func timeoutFailure(outcome models.ProbeOutcome, timeout time.Duration) models.ProbeOutcome {
	detail := fmt.Sprintf("request timed out after %s", timeout)
	outcome.Status = models.StatusTimeout
	outcome.LatencyMillis = float64(timeout) / float64(time.Millisecond)
	outcome.ErrorDetail = &detail
	return outcome
}

func transportFailure(outcome models.ProbeOutcome, latency float64, err error) models.ProbeOutcome {
	detail := err.Error()
	outcome.Status = models.StatusTransportError
	outcome.LatencyMillis = latency
	outcome.ErrorDetail = &detail
	return outcome
}

func elapsedMillis(start, end time.Time) float64 {
	ms := float64(end.Sub(start)) / float64(time.Millisecond)
	if ms < 0 {
		ms = 0
	}
	return math.Round(ms*100) / 100
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
