package orchestrator

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bassci/bass/internal/guard"
	"github.com/bassci/bass/internal/httpkit"
	"github.com/bassci/bass/internal/svcerr"
	"github.com/bassci/bass/internal/telemetry"
)

const (
	// pollInterval is how often /dequeue rescans the queue while long-polling.
	pollInterval = 200 * time.Millisecond
	// defaultLongPollWindow is how long /dequeue waits for a match before 204.
	defaultLongPollWindow = 25 * time.Second
)

// Server holds the orchestrator's HTTP handlers and shared state.
type Server struct {
	Catalog        Catalog
	Queue          *Queue
	WorkerKeys     map[string]struct{}
	BaseEnv        map[string]string
	Sender         *telemetry.Sender
	TracesEndpoint string
	LogsEndpoint   string
	Logger         *slog.Logger
	LongPollWindow time.Duration
}

// Mux builds the orchestrator's primary HTTP handler.
func (s *Server) Mux() http.Handler {
	if s.LongPollWindow <= 0 {
		s.LongPollWindow = defaultLongPollWindow
	}

	mux := http.NewServeMux()

	const maxRequestBody = 1 << 20 // 1MiB; catalog descriptors and dequeue tag lists are tiny
	maxBody := guard.MaxBody(maxRequestBody)

	cors := guard.CORS(guard.CORSConfig{AllowOrigins: []string{"*"}})
	mux.Handle("GET /pipelines", cors(http.HandlerFunc(s.handlePipelines)))
	mux.Handle("POST /webhook", maxBody(http.HandlerFunc(s.handleWebhook)))
	mux.Handle("POST /dequeue", maxBody(http.HandlerFunc(s.handleDequeue)))

	return httpkit.RequestID(httpkit.Logging(s.Logger)(httpkit.Recovery(s.Logger)(mux)))
}

func (s *Server) handlePipelines(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Catalog); err != nil {
		slog.ErrorContext(r.Context(), "orchestrator: encode catalog failed", "error", err)
	}
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("pipeline")
	if name == "" {
		httpkit.JSONProblem(w, r, svcerr.ValidationError("missing pipeline query parameter"))
		return
	}

	descriptor, ok := s.Catalog[name]
	if !ok {
		httpkit.JSONProblem(w, r, svcerr.NotFoundError("unknown pipeline: "+name))
		return
	}

	var changedRefs []string
	if raw := r.URL.Query().Get("changed-refs"); raw != "" {
		for _, ref := range strings.Split(raw, ",") {
			changedRefs = append(changedRefs, strings.TrimSpace(ref))
		}
	}

	traceID := telemetry.GenerateTraceID()
	rootSpanID := telemetry.GenerateSpanID()
	service := "bass:pipeline:" + name

	now := time.Now()
	s.Sender.Span(traceID, service, "onSchedule", "", rootSpanID, now, now, StatusCodeOK)

	env := make(map[string]string, len(s.BaseEnv))
	for k, v := range s.BaseEnv {
		env[k] = v
	}

	job := Job{
		Name:         name,
		ScheduleTime: now,
		Env:          env,
		Pipeline:     descriptor,
		ChangedRefs:  changedRefs,
		Otel: OtelInfo{
			TracesEndpoint: s.TracesEndpoint,
			LogsEndpoint:   s.LogsEndpoint,
			ServiceName:    service,
			TraceID:        traceID,
			RootSpanID:     rootSpanID,
		},
	}
	s.Queue.Enqueue(job)

	w.WriteHeader(http.StatusOK)
}

type dequeueRequest struct {
	Tags []string `json:"tags"`
}

func (s *Server) handleDequeue(w http.ResponseWriter, r *http.Request) {
	if len(s.WorkerKeys) > 0 {
		key := r.Header.Get("X-API-KEY")
		if key == "" {
			httpkit.JSONProblem(w, r, svcerr.UnauthorizedError("missing X-API-KEY header"))
			return
		}
		if _, ok := s.WorkerKeys[key]; !ok {
			httpkit.JSONError(w, r, http.StatusForbidden, "unknown API key")
			return
		}
	}

	var req dequeueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpkit.JSONProblem(w, r, svcerr.ValidationError("invalid request body: "+err.Error()))
		return
	}

	deadline := time.Now().Add(s.LongPollWindow)
	for {
		if job, ok := s.Queue.Dequeue(req.Tags); ok {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(job); err != nil {
				slog.ErrorContext(r.Context(), "orchestrator: encode job failed", "error", err)
			}
			return
		}
		if time.Now().After(deadline) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-time.After(pollInterval):
		}
	}
}

// StatusCodeOK is the OTLP span status.code value for a successful span,
// used for the onSchedule span which always succeeds trivially.
const StatusCodeOK = 1
