package worker

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bassci/bass/internal/call"
	"github.com/bassci/bass/internal/orchestrator"
	"github.com/bassci/bass/pkg/pipeline"
)

func TestMergeEnvOverlayWins(t *testing.T) {
	base := []string{"PATH=/usr/bin", "FOO=bar"}
	got := mergeEnv(base, map[string]string{"FOO": "baz"})

	found := map[string]bool{}
	for _, kv := range got {
		found[kv] = true
	}
	if !found["FOO=bar"] || !found["FOO=baz"] {
		t.Fatalf("expected both base and overlay FOO entries present (last wins on exec), got %v", got)
	}
}

func TestNotifyEventSelection(t *testing.T) {
	if notifyEvent(pipeline.StatusOK) != "onSuccess" {
		t.Fatalf("expected onSuccess for StatusOK")
	}
	for _, s := range []pipeline.Status{pipeline.StatusUnknown, pipeline.StatusTimeout, pipeline.StatusError} {
		if notifyEvent(s) != "onFailure" {
			t.Fatalf("expected onFailure for status %v", s)
		}
	}
}

func TestCheckForJobParsesNoContentAsNoJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := New(Config{DequeueEndpoint: srv.URL, APIKey: "k"}, call.New(), nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	job, err := w.checkForJob(t.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job on 204, got %+v", job)
	}
}

func TestCheckForJobParsesPayload(t *testing.T) {
	want := orchestrator.Job{Name: "build"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "k" {
			t.Errorf("expected X-API-KEY header to be set")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	w := New(Config{DequeueEndpoint: srv.URL, APIKey: "k"}, call.New(), nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	job, err := w.checkForJob(t.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job == nil || job.Name != "build" {
		t.Fatalf("expected job 'build', got %+v", job)
	}
}
