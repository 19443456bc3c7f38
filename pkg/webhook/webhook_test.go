package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ccollicutt/scrape/pkg/config"
	"github.com/ccollicutt/scrape/pkg/output"
	"github.com/ccollicutt/scrape/pkg/pattern"
)

func newTestReport(matched uint64) *output.Report {
	return &output.Report{
		Summary: output.Summary{TotalLines: 10, MatchedLines: matched},
		Categories: []output.CategoryReport{{
			Name:       "named",
			Label:      "named",
			Aggregate:  pattern.AggregateHistogram,
			Matches:    matched,
			TotalLines: 10,
		}},
		Metadata: output.Metadata{
			Sources:  []string{"server.log"},
			Strategy: "combined",
			Duration: time.Second,
		},
	}
}

func TestClient_Send_Success(t *testing.T) {
	var (
		receivedBody        []byte
		receivedContentType string
		receivedAuth        string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedContentType = r.Header.Get("Content-Type")
		receivedAuth = r.Header.Get("Authorization")
		receivedBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	resp := NewClient(nil).Send(context.Background(), newTestReport(3), config.WebhookConfig{URL: server.URL})

	if !resp.Success() {
		t.Fatalf("expected success, got error: %v", resp.Error)
	}
	if resp.Body != `{"status":"ok"}` {
		t.Errorf("unexpected body: %s", resp.Body)
	}
	if receivedContentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", receivedContentType)
	}
	if receivedAuth != "" {
		t.Errorf("expected no auth header, got %s", receivedAuth)
	}

	var payload Payload
	if err := json.Unmarshal(receivedBody, &payload); err != nil {
		t.Fatalf("failed to parse received payload: %v", err)
	}
	if payload.Event != EventCompleted {
		t.Errorf("Event = %q, want %q", payload.Event, EventCompleted)
	}
	if payload.Report == nil || payload.Report.Summary.MatchedLines != 3 {
		t.Errorf("Report = %+v", payload.Report)
	}
}

func TestClient_Send_WithBearerToken(t *testing.T) {
	var receivedAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	resp := NewClient(nil).Send(context.Background(), newTestReport(1), config.WebhookConfig{
		URL:   server.URL,
		Token: "secret-token-123",
	})

	if !resp.Success() {
		t.Errorf("expected success, got error: %v", resp.Error)
	}
	if receivedAuth != "Bearer secret-token-123" {
		t.Errorf("expected Bearer token, got %s", receivedAuth)
	}
}

func TestClient_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	resp := NewClient(nil).Send(context.Background(), newTestReport(1), config.WebhookConfig{URL: server.URL})

	if resp.Success() || resp.Error == nil {
		t.Error("expected failure with error set")
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", resp.StatusCode)
	}
}

func TestClient_Send_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	resp := NewClient(nil).Send(context.Background(), newTestReport(1), config.WebhookConfig{
		URL:     server.URL,
		Timeout: 50 * time.Millisecond,
	})

	if resp.Success() || resp.Error == nil {
		t.Error("expected failure due to timeout")
	}
}

func TestClient_Send_InvalidURL(t *testing.T) {
	resp := NewClient(nil).Send(context.Background(), newTestReport(1), config.WebhookConfig{URL: "://invalid-url"})
	if resp.Success() || resp.Error == nil {
		t.Error("expected failure for invalid URL")
	}
}

func TestClient_Dispatch_Triggers(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	hooks := []config.WebhookConfig{
		{Name: "always", URL: server.URL, Trigger: config.WebhookTriggerAlways},
		{Name: "never", URL: server.URL, Trigger: config.WebhookTriggerNever},
		{Name: "on-match", URL: server.URL, Trigger: config.WebhookTriggerOnMatch},
	}

	tests := []struct {
		name     string
		matched  uint64
		wantHits int32
		wantName string
	}{
		{"no matches", 0, 1, "always"},
		{"with matches", 4, 2, "always"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits.Store(0)
			responses := NewClient(nil).Dispatch(context.Background(), newTestReport(tt.matched), hooks)

			if hits.Load() != tt.wantHits || int32(len(responses)) != tt.wantHits {
				t.Errorf("hits/responses = %d/%d, want %d", hits.Load(), len(responses), tt.wantHits)
			}
			if responses[0].Name != tt.wantName {
				t.Errorf("first response = %q, want %q", responses[0].Name, tt.wantName)
			}
		})
	}
}

func TestClient_Dispatch_ContinuesAfterFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	hooks := []config.WebhookConfig{
		{URL: "http://127.0.0.1:1", Trigger: config.WebhookTriggerAlways, Timeout: 100 * time.Millisecond},
		{URL: server.URL, Trigger: config.WebhookTriggerAlways},
	}

	responses := NewClient(nil).Dispatch(context.Background(), newTestReport(0), hooks)
	if len(responses) != 2 {
		t.Fatalf("responses = %d, want 2", len(responses))
	}
	if responses[0].Success() || !responses[1].Success() {
		t.Errorf("success = %v/%v, want false/true", responses[0].Success(), responses[1].Success())
	}
	if responses[0].Name != "http://127.0.0.1:1" {
		t.Errorf("Name = %q, want URL fallback", responses[0].Name)
	}
}

func TestShouldFire(t *testing.T) {
	tests := []struct {
		trigger    config.WebhookTrigger
		hasMatches bool
		want       bool
	}{
		{config.WebhookTriggerAlways, false, true},
		{config.WebhookTriggerNever, true, false},
		{config.WebhookTriggerOnMatch, true, true},
		{config.WebhookTriggerOnMatch, false, false},
		{"", true, true},
	}
	for _, tt := range tests {
		if got := ShouldFire(tt.trigger, tt.hasMatches); got != tt.want {
			t.Errorf("ShouldFire(%q, %v) = %v, want %v", tt.trigger, tt.hasMatches, got, tt.want)
		}
	}
}

func TestResponse_Success(t *testing.T) {
	tests := []struct {
		name        string
		resp        Response
		wantSuccess bool
	}{
		{"200 OK", Response{StatusCode: 200}, true},
		{"204 No Content", Response{StatusCode: 204}, true},
		{"400 Bad Request", Response{StatusCode: 400}, false},
		{"With Error", Response{StatusCode: 200, Error: io.EOF}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp.Success(); got != tt.wantSuccess {
				t.Errorf("Success() = %v, want %v", got, tt.wantSuccess)
			}
		})
	}
}
