package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bassci/bass/internal/work"
)

const defaultUnorderedWorkers = 5

// SpanFunc emits one span for a node's or subtree's execution window. For the
// root node's span, parentSpanID is the parent id the caller passed to Execute.
type SpanFunc func(name string, parentSpanID, spanID string, start, end time.Time, status Status)

// LogFunc emits one log record attributed to a span, the way exec_step's
// stdout/stderr capture is surfaced via create_log_sender.
type LogFunc func(spanID string, severity string, message string)

// SpanIDFunc mints a fresh span id, grounded on generate_span_id.
type SpanIDFunc func() string

// Options configures a single Execute call. Runner, SpanID, Span, and Log
// are required; Changeset and InitialCwd may be zero values.
type Options struct {
	Runner     CommandRunner
	SpanID     SpanIDFunc
	Span       SpanFunc
	Log        LogFunc
	Changeset  Changeset
	InitialCwd string
}

// Execute walks node and its subtree, running leaves and recursing into
// branches per node.Order, emitting one span per visited node (skipped
// nodes included) and returning the aggregated Status. This mirrors
// bass/core.py's build_inner.
func Execute(ctx context.Context, node *Node, parentSpanID string, opts Options) Status {
	start := time.Now()
	spanID := opts.SpanID()

	matched, err := anyItemMatches(opts.Changeset, node.IfChangesetMatches)
	if err != nil {
		opts.Log(spanID, "ERROR", fmt.Sprintf("invalid if-changeset-matches on %q: %v", node.Name, err))
		opts.Span("step:"+node.Name, parentSpanID, spanID, start, start, StatusUnknown)
		return StatusUnknown
	}
	if !matched {
		opts.Span("step:"+node.Name+" - skipped", parentSpanID, spanID, start, start, StatusUnknown)
		return StatusOK
	}

	restoreCwd := ""
	restore := false
	if node.Cwd != "" {
		prev, err := opts.Runner.Getwd()
		if err != nil {
			opts.Log(spanID, "ERROR", fmt.Sprintf("getwd before entering %q: %v", node.Name, err))
			opts.Span("step:"+node.Name, parentSpanID, spanID, start, time.Now(), StatusError)
			return StatusError
		}
		restoreCwd = prev
		target := node.Cwd
		if !filepath.IsAbs(target) && opts.InitialCwd != "" {
			target = filepath.Join(opts.InitialCwd, node.Cwd)
		}
		if err := opts.Runner.Chdir(target); err != nil {
			opts.Log(spanID, "ERROR", fmt.Sprintf("chdir into %q for %q: %v", target, node.Name, err))
			opts.Span("step:"+node.Name, parentSpanID, spanID, start, time.Now(), StatusError)
			return StatusError
		}
		restore = true
	}

	aggregated := StatusOK
	skipRemaining := false

	if node.Setup != nil {
		setupStatus := Execute(ctx, node.Setup, spanID, opts)
		aggregated = aggregate(aggregated, setupStatus)
		if setupStatus != StatusOK {
			skipRemaining = true
		}
	}

	if !skipRemaining {
		switch {
		case node.IsLeaf():
			aggregated = aggregate(aggregated, runLeaf(ctx, node, spanID, opts))
		case node.Order == OrderUnordered:
			aggregated = aggregate(aggregated, runUnordered(ctx, node, spanID, opts))
		default:
			aggregated = aggregate(aggregated, runOrdered(ctx, node, spanID, opts))
		}
	}

	if node.Teardown != nil {
		Execute(ctx, node.Teardown, spanID, opts)
	}

	if restore {
		if err := opts.Runner.Chdir(restoreCwd); err != nil {
			opts.Log(spanID, "ERROR", fmt.Sprintf("restoring cwd %q after %q: %v", restoreCwd, node.Name, err))
			aggregated = aggregate(aggregated, StatusError)
		}
	}

	opts.Span("step:"+node.Name, parentSpanID, spanID, start, time.Now(), aggregated)
	return aggregated
}

// runLeaf runs node.Exec, mapping exit codes to Status and emitting stdout
// and stderr as log records attributed to spanID, the way exec_step does.
func runLeaf(ctx context.Context, node *Node, spanID string, opts Options) Status {
	timeout := time.Duration(0)
	if node.Timeout != nil {
		timeout = time.Duration(*node.Timeout) * time.Second
	}

	result, err := opts.Runner.Run(ctx, node.Exec, timeout)
	if err != nil {
		opts.Log(spanID, "ERROR", fmt.Sprintf("running %q: %v", node.Name, err))
		return StatusError
	}
	if result.TimedOut {
		opts.Log(spanID, "ERROR", fmt.Sprintf("%q timed out after %s", node.Name, timeout))
		return StatusTimeout
	}
	if result.Stdout != "" {
		opts.Log(spanID, "INFO", result.Stdout)
	}
	if result.Stderr != "" {
		opts.Log(spanID, "ERROR", result.Stderr)
	}
	if result.ExitCode != 0 {
		opts.Log(spanID, "ERROR", fmt.Sprintf("%q exited %d", node.Name, result.ExitCode))
		return StatusError
	}
	return StatusOK
}

// runOrdered runs node.Steps sequentially, stopping after the first non-OK
// result. Steps after the stopping point still get a span, recorded as
// StatusUnknown with zero duration, so the tree always accounts for every
// declared step.
func runOrdered(ctx context.Context, node *Node, parentSpanID string, opts Options) Status {
	aggregated := StatusOK
	stopped := false
	for _, step := range node.Steps {
		if stopped {
			now := time.Now()
			skippedID := opts.SpanID()
			opts.Span("step:"+step.Name+" - skipped", parentSpanID, skippedID, now, now, StatusUnknown)
			continue
		}
		status := Execute(ctx, step, parentSpanID, opts)
		aggregated = aggregate(aggregated, status)
		if status != StatusOK {
			stopped = true
		}
	}
	return aggregated
}

// runUnordered runs node.Steps concurrently via internal/work.All, waiting
// for every step regardless of individual failures, and aggregates by
// worst-status.
func runUnordered(ctx context.Context, node *Node, parentSpanID string, opts Options) Status {
	workers := defaultUnorderedWorkers
	if node.Parallelism > 0 {
		workers = node.Parallelism
	}

	statuses := make([]Status, len(node.Steps))
	tasks := make([]func(context.Context) error, len(node.Steps))
	for i, step := range node.Steps {
		i, step := i, step
		tasks[i] = func(ctx context.Context) error {
			statuses[i] = Execute(ctx, step, parentSpanID, opts)
			return nil
		}
	}

	_ = work.All(ctx, tasks, work.Workers(workers))

	aggregated := StatusOK
	for _, s := range statuses {
		aggregated = aggregate(aggregated, s)
	}
	return aggregated
}
