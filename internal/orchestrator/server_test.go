package orchestrator_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bassci/bass/internal/call"
	"github.com/bassci/bass/internal/orchestrator"
	"github.com/bassci/bass/internal/telemetry"
)

func newTestServer(t *testing.T) *orchestrator.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &orchestrator.Server{
		Catalog: orchestrator.Catalog{
			"build": orchestrator.Descriptor{
				Repository: "https://example.test/repo.git",
				Ref:        "main",
				Exec:       []string{"./build.sh"},
			},
		},
		Queue:          orchestrator.NewQueue(),
		Sender:         telemetry.NewSender(call.New(), "", "", logger),
		Logger:         logger,
		LongPollWindow: 200 * time.Millisecond,
	}
}

func TestWebhookUnknownPipelineReturns404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/webhook?pipeline=missing", nil)
	rec := httptest.NewRecorder()

	s.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if s.Queue.Len() != 0 {
		t.Fatalf("queue length should be unchanged, got %d", s.Queue.Len())
	}
}

func TestWebhookMissingPipelineParamReturns400(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	rec := httptest.NewRecorder()

	s.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebhookKnownPipelineEnqueues(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/webhook?pipeline=build&changed-refs=abc,def", nil)
	rec := httptest.NewRecorder()

	s.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if s.Queue.Len() != 1 {
		t.Fatalf("expected one job enqueued, got %d", s.Queue.Len())
	}
}

func TestDequeueTagSubsetScenario(t *testing.T) {
	s := newTestServer(t)
	s.Queue.Enqueue(orchestrator.Job{
		Name:     "build",
		Pipeline: orchestrator.Descriptor{WorkerTags: []string{"linux", "gpu"}},
	})

	body, _ := json.Marshal(map[string][]string{"tags": {"linux"}})
	req := httptest.NewRequest(http.MethodPost, "/dequeue", jsonBody(body))
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for non-matching tags, got %d", rec.Code)
	}

	body, _ = json.Marshal(map[string][]string{"tags": {"linux", "gpu"}})
	req = httptest.NewRequest(http.MethodPost, "/dequeue", jsonBody(body))
	rec = httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for matching tags, got %d", rec.Code)
	}
}

func TestDequeueRequiresAPIKeyWhenConfigured(t *testing.T) {
	s := newTestServer(t)
	s.WorkerKeys = map[string]struct{}{"secret": {}}
	s.Queue.Enqueue(orchestrator.Job{Name: "build"})

	body, _ := json.Marshal(map[string][]string{"tags": nil})

	req := httptest.NewRequest(http.MethodPost, "/dequeue", jsonBody(body))
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with no key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/dequeue", jsonBody(body))
	req.Header.Set("X-API-KEY", "wrong")
	rec = httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with unknown key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/dequeue", jsonBody(body))
	req.Header.Set("X-API-KEY", "secret")
	rec = httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct key, got %d", rec.Code)
	}
}

func jsonBody(b []byte) io.Reader {
	return bytes.NewReader(b)
}
