// Package telemetry builds OTLP/HTTP JSON span and log envelopes and posts
// them to collector endpoints, grounded on bass/core.py's generate_span,
// generate_log, create_span_sender, and create_log_sender.
package telemetry

import "time"

// Severity is an OTLP log severity name.
type Severity string

const (
	SeverityTrace Severity = "TRACE"
	SeverityDebug Severity = "DEBUG"
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
	SeverityFatal Severity = "FATAL"
)

var severityNumber = map[Severity]int{
	SeverityTrace: 1,
	SeverityDebug: 5,
	SeverityInfo:  9,
	SeverityWarn:  13,
	SeverityError: 17,
	SeverityFatal: 21,
}

type stringValue struct {
	StringValue string `json:"stringValue"`
}

type resourceAttribute struct {
	Key   string      `json:"key"`
	Value stringValue `json:"value"`
}

type resource struct {
	Attributes []resourceAttribute `json:"attributes"`
}

func serviceResource(service string) resource {
	return resource{Attributes: []resourceAttribute{
		{Key: "service.name", Value: stringValue{StringValue: service}},
	}}
}

type spanStatus struct {
	Code int `json:"code"`
}

type span struct {
	TraceID           string     `json:"traceId"`
	SpanID            string     `json:"spanId"`
	ParentSpanID      *string    `json:"parentSpanId"`
	StartTimeUnixNano string     `json:"startTimeUnixNano"`
	EndTimeUnixNano   string     `json:"endTimeUnixNano"`
	Name              string     `json:"name"`
	Kind              int        `json:"kind"`
	Status            spanStatus `json:"status"`
}

type scopeSpans struct {
	Spans []span `json:"spans"`
}

type resourceSpans struct {
	Resource   resource     `json:"resource"`
	ScopeSpans []scopeSpans `json:"scopeSpans"`
}

// spanEnvelope is the top-level OTLP/HTTP JSON body for a trace export.
type spanEnvelope struct {
	ResourceSpans []resourceSpans `json:"resourceSpans"`
}

// generateSpan builds the span envelope exactly as bass/core.py's
// generate_span does: one resourceSpans, one scopeSpans, one span.
func generateSpan(traceID string, parentSpanID *string, spanID, service, name string, from, to time.Time, statusCode int) spanEnvelope {
	return spanEnvelope{
		ResourceSpans: []resourceSpans{
			{
				Resource: serviceResource(service),
				ScopeSpans: []scopeSpans{
					{
						Spans: []span{
							{
								TraceID:           traceID,
								SpanID:            spanID,
								ParentSpanID:      parentSpanID,
								StartTimeUnixNano: nanoString(from),
								EndTimeUnixNano:   nanoString(to),
								Name:              name,
								Kind:              2,
								Status:            spanStatus{Code: statusCode},
							},
						},
					},
				},
			},
		},
	}
}

type logBody struct {
	StringValue string `json:"stringValue"`
}

type logRecord struct {
	TimeUnixNano         string  `json:"timeUnixNano"`
	ObservedTimeUnixNano string  `json:"observedTimeUnixNano"`
	SeverityNumber       int     `json:"severityNumber"`
	TraceID              string  `json:"traceId"`
	SpanID               string  `json:"spanId"`
	Body                 logBody `json:"body"`
}

type scopeLogs struct {
	LogRecords []logRecord `json:"logRecords"`
}

type resourceLogs struct {
	Resource  resource    `json:"resource"`
	ScopeLogs []scopeLogs `json:"scopeLogs"`
}

// logEnvelope is the top-level OTLP/HTTP JSON body for a log export.
type logEnvelope struct {
	ResourceLogs []resourceLogs `json:"resourceLogs"`
}

// generateLog builds the log envelope exactly as bass/core.py's
// generate_log does, stamping both timeUnixNano and observedTimeUnixNano
// with the current time.
func generateLog(traceID, spanID, service string, severity Severity, message string, now time.Time) logEnvelope {
	return logEnvelope{
		ResourceLogs: []resourceLogs{
			{
				Resource: serviceResource(service),
				ScopeLogs: []scopeLogs{
					{
						LogRecords: []logRecord{
							{
								TimeUnixNano:         nanoString(now),
								ObservedTimeUnixNano: nanoString(now),
								SeverityNumber:       severityNumber[severity],
								TraceID:              traceID,
								SpanID:               spanID,
								Body:                 logBody{StringValue: message},
							},
						},
					},
				},
			},
		},
	}
}

func nanoString(t time.Time) string {
	return formatInt(t.UnixNano())
}

func formatInt(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
