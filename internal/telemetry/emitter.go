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

// Emitter posts spans and logs for one run to a pair of OTLP/HTTP collector
// endpoints, grounded on create_span_sender and create_log_sender. A POST
// failure is logged at WARN and otherwise swallowed: telemetry delivery
// never fails a pipeline run.
type Emitter struct {
	client         *call.Client
	tracesEndpoint string
	logsEndpoint   string
	service        string
	traceID        string
	logger         *slog.Logger
}

// NewEmitter builds an Emitter. Either endpoint may be empty, in which case
// Span or Log for that signal is a no-op.
func NewEmitter(client *call.Client, tracesEndpoint, logsEndpoint, service, traceID string, logger *slog.Logger) *Emitter {
	return &Emitter{
		client:         client,
		tracesEndpoint: tracesEndpoint,
		logsEndpoint:   logsEndpoint,
		service:        service,
		traceID:        traceID,
		logger:         logger,
	}
}

// TraceID returns the trace id every span and log emitted by e is stamped
// with.
func (e *Emitter) TraceID() string {
	return e.traceID
}

// Span posts one span envelope. statusCode follows exec_status_to_otel:
// 0 unset, 1 ok, 2 error.
func (e *Emitter) Span(name string, parentSpanID, spanID string, start, end time.Time, statusCode int) {
	if e.tracesEndpoint == "" {
		return
	}
	var parent *string
	if parentSpanID != "" {
		parent = &parentSpanID
	}
	env := generateSpan(e.traceID, parent, spanID, e.service, name, start, end, statusCode)
	e.post(e.tracesEndpoint, env)
}

// Log posts one log record envelope attributed to spanID.
func (e *Emitter) Log(spanID string, severity Severity, message string) {
	if e.logsEndpoint == "" {
		return
	}
	env := generateLog(e.traceID, spanID, e.service, severity, message, time.Now())
	e.post(e.logsEndpoint, env)
}

func (e *Emitter) post(endpoint string, envelope any) {
	body, err := json.Marshal(envelope)
	if err != nil {
		e.logger.Warn("telemetry: marshal envelope failed", "endpoint", endpoint, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("telemetry: build request failed", "endpoint", endpoint, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn("telemetry: post failed", "endpoint", endpoint, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		e.logger.Warn("telemetry: post rejected", "endpoint", endpoint, "status", resp.StatusCode)
	}
}
