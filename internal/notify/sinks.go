package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ameotech/triage/internal/store"
)

// WebhookSink posts {"text": ...} to a chat webhook such as Slack.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a sink posting to url with the given request timeout.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{url: url, client: &http.Client{Timeout: timeout}}
}

func (s *WebhookSink) Name() string { return "webhook" }

// Notify posts the notification text.
func (s *WebhookSink) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(map[string]string{"text": n.Text})
	if err != nil {
		return fmt.Errorf("encode webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogSink writes notifications to the log. It stands in for the webhook when
// none is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log sink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Notify(_ context.Context, n Notification) error {
	s.logger.Info("Sales notification", "kind", n.Kind, "text", n.Text)
	return nil
}

// RecorderSink stores escalation events in the repository. Other kinds are ignored.
type RecorderSink struct {
	repo store.Repository
}

// NewRecorderSink creates a sink writing to repo.
func NewRecorderSink(repo store.Repository) *RecorderSink {
	return &RecorderSink{repo: repo}
}

func (s *RecorderSink) Name() string { return "recorder" }

func (s *RecorderSink) Notify(ctx context.Context, n Notification) error {
	if n.Kind != KindEscalation || n.Escalation == nil {
		return nil
	}
	return s.repo.RecordEscalation(ctx, n.Escalation)
}
