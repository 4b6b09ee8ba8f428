// Package worker implements the dequeue-poll-run loop that prepares a
// pipeline's workspace and invokes its exec entry, grounded on worker.py
// and expanded per the wire contract orchestrator.Job carries.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/bassci/bass/internal/call"
	"github.com/bassci/bass/internal/notify"
	"github.com/bassci/bass/internal/orchestrator"
	"github.com/bassci/bass/internal/telemetry"
	"github.com/bassci/bass/pkg/pipeline"
)

const pollBackoff = time.Second

// Config configures a Worker.
type Config struct {
	DequeueEndpoint string
	APIKey          string
	Tags            []string
	WorkspaceRoot   string
}

// Worker long-polls an orchestrator for jobs and runs them one at a time.
type Worker struct {
	cfg    Config
	client *call.Client
	sender *telemetry.Sender
	mailer *notify.Mailer
	logger *slog.Logger
}

// New builds a Worker. client should have retry disabled for dequeue calls
// (the poll loop's own 1-second backoff handles transient failures) and a
// timeout comfortably longer than the orchestrator's long-poll window.
func New(cfg Config, client *call.Client, sender *telemetry.Sender, mailer *notify.Mailer, logger *slog.Logger) *Worker {
	return &Worker{cfg: cfg, client: client, sender: sender, mailer: mailer, logger: logger}
}

// Run polls forever until ctx is cancelled, processing one job at a time.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := w.checkForJob(ctx)
		if err != nil {
			w.logger.Error("worker: dequeue failed", "error", err)
			if !sleepCtx(ctx, pollBackoff) {
				return ctx.Err()
			}
			continue
		}
		if job == nil {
			if !sleepCtx(ctx, pollBackoff) {
				return ctx.Err()
			}
			continue
		}

		w.process(ctx, *job)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// checkForJob performs one dequeue request. A nil job with a nil error
// means no job was available (204).
func (w *Worker) checkForJob(ctx context.Context) (*orchestrator.Job, error) {
	body, err := json.Marshal(map[string][]string{"tags": w.cfg.Tags})
	if err != nil {
		return nil, fmt.Errorf("worker: marshal dequeue body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.DequeueEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("worker: build dequeue request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", w.cfg.APIKey)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("worker: dequeue request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode == http.StatusOK:
		var job orchestrator.Job
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			return nil, fmt.Errorf("worker: decode job: %w", err)
		}
		return &job, nil
	default:
		return nil, fmt.Errorf("worker: dequeue returned status %d", resp.StatusCode)
	}
}

// process runs one dequeued job end to end: workspace prep, changeset
// resolution, exec invocation, terminal span emission, and notification.
func (w *Worker) process(ctx context.Context, job orchestrator.Job) {
	timeStart := time.Now()
	dir := workspacePath(w.cfg.WorkspaceRoot, job.Name, job.Pipeline.Repository)

	status := pipeline.StatusError
	if err := prepareWorkspace(ctx, dir, job.Pipeline.Repository, job.Pipeline.Ref); err != nil {
		w.logger.Error("worker: workspace prepare failed", "pipeline", job.Name, "error", err)
		w.finish(job, timeStart, status)
		return
	}

	runDir := dir
	if job.Pipeline.Cwd != "" {
		runDir = dir + string(os.PathSeparator) + job.Pipeline.Cwd
	}

	var changesetPath string
	if len(job.ChangedRefs) > 0 {
		paths, err := resolveChangeset(ctx, dir, job.ChangedRefs)
		if err != nil {
			w.logger.Warn("worker: changeset resolution failed", "pipeline", job.Name, "error", err)
		} else if len(paths) > 0 {
			p, err := writeChangesetFile(paths)
			if err != nil {
				w.logger.Warn("worker: changeset file failed", "pipeline", job.Name, "error", err)
			} else {
				changesetPath = p
				defer os.Remove(changesetPath)
			}
		}
	}

	status = w.runExec(ctx, job, runDir, changesetPath)
	w.finish(job, timeStart, status)
}

func (w *Worker) runExec(ctx context.Context, job orchestrator.Job, dir, changesetPath string) pipeline.Status {
	if len(job.Pipeline.Exec) == 0 {
		w.logger.Error("worker: pipeline has no exec vector", "pipeline", job.Name)
		return pipeline.StatusError
	}

	args := append([]string{}, job.Pipeline.Exec[1:]...)
	args = append(args,
		"--service-name", job.Otel.ServiceName,
		"--trace-id", job.Otel.TraceID,
		"--root-span-id", job.Otel.RootSpanID,
		"--traces-endpoint", job.Otel.TracesEndpoint,
		"--logs-endpoint", job.Otel.LogsEndpoint,
	)
	if changesetPath != "" {
		args = append(args, "--changeset", changesetPath)
	}

	cmd := exec.CommandContext(ctx, job.Pipeline.Exec[0], args...)
	cmd.Dir = dir
	cmd.Env = mergeEnv(os.Environ(), job.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if stdout.Len() > 0 {
		w.logger.Info("worker: child stdout", "pipeline", job.Name, "output", stdout.String())
		w.sender.Log(job.Otel.TraceID, job.Otel.ServiceName, job.Otel.RootSpanID, telemetry.SeverityInfo, stdout.String())
	}
	if stderr.Len() > 0 {
		w.logger.Warn("worker: child stderr", "pipeline", job.Name, "output", stderr.String())
		w.sender.Log(job.Otel.TraceID, job.Otel.ServiceName, job.Otel.RootSpanID, telemetry.SeverityError, stderr.String())
	}

	if err == nil {
		return pipeline.StatusOK
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		w.logger.Error("worker: child exited nonzero", "pipeline", job.Name, "code", exitErr.ExitCode())
		return pipeline.StatusError
	}
	w.logger.Error("worker: failed to spawn child", "pipeline", job.Name, "error", err)
	return pipeline.StatusError
}

func mergeEnv(base []string, overlay map[string]string) []string {
	env := append([]string{}, base...)
	for k, v := range overlay {
		env = append(env, k+"="+v)
	}
	return env
}

// finish emits the terminal root span and dispatches any configured
// notification for job's outcome.
func (w *Worker) finish(job orchestrator.Job, timeStart time.Time, status pipeline.Status) {
	timeEnd := time.Now()
	name := "Build: " + job.Name + " - " + status.String()
	w.sender.Span(job.Otel.TraceID, job.Otel.ServiceName, name, "", job.Otel.RootSpanID, timeStart, timeEnd, status.OTelStatusCode())

	target := job.Pipeline.Notifications.ForEvent(notifyEvent(status))
	if target == nil || target.Email == nil {
		return
	}
	if err := w.mailer.Send(*target.Email, job.Name, job.Otel.TraceID); err != nil {
		w.logger.Warn("worker: notification failed", "pipeline", job.Name, "error", err)
	}
}

func notifyEvent(status pipeline.Status) notify.Event {
	if status == pipeline.StatusOK {
		return notify.EventSuccess
	}
	return notify.EventFailure
}
