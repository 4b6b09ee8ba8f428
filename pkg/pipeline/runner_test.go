package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/bassci/bass/pkg/pipeline"
)

func TestRecordingRunnerReturnsPredefinedResult(t *testing.T) {
	r := pipeline.NewRecordingRunner()
	r.SetResult([]string{"a.sh", "--flag"}, 0, pipeline.RunResult{ExitCode: 7, Stdout: "hi"})

	result, err := r.Run(context.Background(), []string{"a.sh", "--flag"}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 7 || result.Stdout != "hi" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRecordingRunnerDefaultsToCleanExit(t *testing.T) {
	r := pipeline.NewRecordingRunner()
	result, err := r.Run(context.Background(), []string{"unregistered.sh"}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected default clean exit, got %+v", result)
	}
}

func TestRecordingRunnerTracksChdirHistory(t *testing.T) {
	r := pipeline.NewRecordingRunner()
	if err := r.Chdir("/a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Chdir("/b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cwd, err := r.Getwd()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cwd != "/b" {
		t.Fatalf("expected cwd /b, got %q", cwd)
	}
	if len(r.ChdirHistory) != 2 || r.ChdirHistory[0] != "/a" || r.ChdirHistory[1] != "/b" {
		t.Fatalf("unexpected chdir history: %v", r.ChdirHistory)
	}
}

func TestRecordingRunnerDistinguishesByTimeout(t *testing.T) {
	r := pipeline.NewRecordingRunner()
	r.SetResult([]string{"a.sh"}, time.Second, pipeline.RunResult{ExitCode: 1})

	result, _ := r.Run(context.Background(), []string{"a.sh"}, time.Second)
	if result.ExitCode != 1 {
		t.Fatalf("expected predef keyed by timeout to apply, got %+v", result)
	}

	result2, _ := r.Run(context.Background(), []string{"a.sh"}, 0)
	if result2.ExitCode != 0 {
		t.Fatalf("expected no predef for different timeout, got %+v", result2)
	}
}
