// Package webhook posts scrape reports to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ccollicutt/scrape/pkg/config"
	"github.com/ccollicutt/scrape/pkg/output"
)

// EventCompleted is the event name carried by every payload.
const EventCompleted = "scrape.completed"

// maxResponseBody caps how much of a response body is kept.
const maxResponseBody = 64 * 1024

// Payload is the JSON body sent to a webhook.
type Payload struct {
	Event  string         `json:"event"`
	SentAt time.Time      `json:"sent_at"`
	Report *output.Report `json:"report"`
}

// Client sends scrape reports to webhook endpoints.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new webhook client. A nil logger discards messages.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Response contains the result of a webhook request.
type Response struct {
	Name       string
	StatusCode int
	Body       string
	Duration   time.Duration
	Error      error
}

// Success returns true if the webhook was sent successfully (2xx status).
func (r *Response) Success() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// ShouldFire reports whether a webhook with the given trigger fires for a
// report with or without matches.
func ShouldFire(trigger config.WebhookTrigger, hasMatches bool) bool {
	switch trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	default:
		return hasMatches
	}
}

// Dispatch sends the report to every hook whose trigger fires. Failures are
// logged and returned but never stop the remaining hooks.
func (c *Client) Dispatch(ctx context.Context, report *output.Report, hooks []config.WebhookConfig) []*Response {
	var responses []*Response

	for _, wh := range hooks {
		if !ShouldFire(wh.Trigger, report.HasMatches()) {
			continue
		}

		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		resp := c.Send(ctx, report, wh)
		resp.Name = name
		responses = append(responses, resp)

		if resp.Success() {
			c.logger.Info("webhook sent", "webhook", name, "status", resp.StatusCode, "duration", resp.Duration)
		} else {
			c.logger.Warn("webhook failed", "webhook", name, "error", resp.Error)
		}
	}

	return responses
}

// Send posts a report to one webhook endpoint.
func (c *Client) Send(ctx context.Context, report *output.Report, wh config.WebhookConfig) *Response {
	start := time.Now()
	resp := &Response{}
	fail := func(err error) *Response {
		resp.Error = err
		resp.Duration = time.Since(start)
		return resp
	}

	payload, err := json.Marshal(Payload{Event: EventCompleted, SentAt: start.UTC(), Report: report})
	if err != nil {
		return fail(fmt.Errorf("marshaling report: %w", err))
	}

	timeout := wh.Timeout
	if timeout <= 0 {
		timeout = config.DefaultWebhookTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(payload))
	if err != nil {
		return fail(fmt.Errorf("creating request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "scrape-webhook")
	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("request failed: %w", err))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return fail(fmt.Errorf("reading response: %w", err))
	}

	resp.StatusCode = httpResp.StatusCode
	resp.Body = string(body)
	resp.Duration = time.Since(start)

	if resp.StatusCode >= 400 {
		resp.Error = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return resp
}
