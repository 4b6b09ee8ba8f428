package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bassci/bass/internal/call"
)

// Sender posts spans and logs to a fixed pair of OTLP/HTTP endpoints on
// behalf of many independent traces, unlike Emitter which is bound to one
// trace id. The orchestrator uses it to emit a webhook's onSchedule span
// and the worker uses it to emit each job's terminal root span.
type Sender struct {
	client         *call.Client
	tracesEndpoint string
	logsEndpoint   string
	logger         *slog.Logger
}

// NewSender builds a Sender. Either endpoint may be empty, in which case
// Span or Log for that signal is a no-op.
func NewSender(client *call.Client, tracesEndpoint, logsEndpoint string, logger *slog.Logger) *Sender {
	return &Sender{client: client, tracesEndpoint: tracesEndpoint, logsEndpoint: logsEndpoint, logger: logger}
}

// Span posts one span envelope for the given trace.
func (s *Sender) Span(traceID, service, name string, parentSpanID, spanID string, start, end time.Time, statusCode int) {
	if s.tracesEndpoint == "" {
		return
	}
	var parent *string
	if parentSpanID != "" {
		parent = &parentSpanID
	}
	env := generateSpan(traceID, parent, spanID, service, name, start, end, statusCode)
	s.post(s.tracesEndpoint, env)
}

// Log posts one log record envelope for the given trace.
func (s *Sender) Log(traceID, service, spanID string, severity Severity, message string) {
	if s.logsEndpoint == "" {
		return
	}
	env := generateLog(traceID, spanID, service, severity, message, time.Now())
	s.post(s.logsEndpoint, env)
}

func (s *Sender) post(endpoint string, envelope any) {
	body, err := json.Marshal(envelope)
	if err != nil {
		s.logger.Warn("telemetry: marshal envelope failed", "endpoint", endpoint, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("telemetry: build request failed", "endpoint", endpoint, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("telemetry: post failed", "endpoint", endpoint, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.logger.Warn("telemetry: post rejected", "endpoint", endpoint, "status", resp.StatusCode)
	}
}
