// Package notify delivers best-effort operator notifications. Delivery
// failures are logged and never propagate into trading paths.
package notify

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Severity tags a notification for routing and formatting.
type Severity string

const (
	Info     Severity = "info"
	Warning  Severity = "warning"
	Critical Severity = "critical"
)

// Sink receives notifications.
type Sink interface {
	Notify(ctx context.Context, severity Severity, message string)
}

// LogSink writes notifications to the structured log.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "notify").Logger()}
}

func (s *LogSink) Notify(_ context.Context, severity Severity, message string) {
	switch severity {
	case Critical:
		s.log.Error().Msg(message)
	case Warning:
		s.log.Warn().Msg(message)
	default:
		s.log.Info().Msg(message)
	}
}

// WebhookSink posts notifications to a chat webhook.
type WebhookSink struct {
	client *resty.Client
	url    string
	log    zerolog.Logger
}

func NewWebhookSink(url string, log zerolog.Logger) *WebhookSink {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &WebhookSink{client: client, url: url, log: log.With().Str("component", "notify").Logger()}
}

type webhookPayload struct {
	Content string `json:"content"`
}

func (s *WebhookSink) Notify(ctx context.Context, severity Severity, message string) {
	if s.url == "" {
		return
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookPayload{Content: "[" + string(severity) + "] " + message}).
		Post(s.url)
	if err != nil {
		s.log.Warn().Err(err).Msg("webhook delivery failed")
		return
	}
	if resp.StatusCode() >= 300 {
		s.log.Warn().Int("status", resp.StatusCode()).Msg("webhook rejected notification")
	}
}

// Fanout delivers every notification to all sinks.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, severity Severity, message string) {
	for _, sink := range f {
		sink.Notify(ctx, severity, message)
	}
}
