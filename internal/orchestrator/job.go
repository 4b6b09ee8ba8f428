package orchestrator

import "time"

// OtelInfo carries the trace context a job's pipeline run must honor end to
// end, generated at webhook time so the trace already exists before any
// worker picks the job up.
type OtelInfo struct {
	TracesEndpoint string `json:"traces-endpoint"`
	LogsEndpoint   string `json:"logs-endpoint"`
	ServiceName    string `json:"service-name"`
	TraceID        string `json:"trace-id"`
	RootSpanID     string `json:"root-span-id"`
}

// Job is one queued build, combining a pipeline's catalog Descriptor with
// the per-trigger data (env, changed refs, trace context) a worker needs to
// run it.
type Job struct {
	Name         string            `json:"name"`
	ScheduleTime time.Time         `json:"schedule-time"`
	Env          map[string]string `json:"env,omitempty"`
	Pipeline     Descriptor        `json:"pipeline"`
	ChangedRefs  []string          `json:"changed-refs,omitempty"`
	Otel         OtelInfo          `json:"otel"`
}
