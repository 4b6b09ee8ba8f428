// Command bass-exec walks a pipeline tree and runs its leaf commands,
// emitting OpenTelemetry spans and logs for every node visited. It is the
// executable a worker invokes for each dequeued job.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bassci/bass/internal/call"
	"github.com/bassci/bass/internal/logz"
	"github.com/bassci/bass/internal/otelboot"
	"github.com/bassci/bass/internal/telemetry"
	"github.com/bassci/bass/pkg/pipeline"
)

type options struct {
	serviceName    string
	traceID        string
	rootSpanID     string
	generateRoot   bool
	tracesEndpoint string
	logsEndpoint   string
	changesetFile  string
	otelEndpoint   string
}

func bindOptions(fs *flag.FlagSet) *options {
	opt := &options{
		tracesEndpoint: "http://localhost:4318/v1/traces",
		logsEndpoint:   "http://localhost:4318/v1/logs",
	}

	fs.StringVar(&opt.serviceName, "service-name", "", "OTel service.name for every span and log emitted this run.")
	fs.StringVar(&opt.serviceName, "s", "", "Shorthand for -service-name.")

	fs.StringVar(&opt.traceID, "trace-id", "", "Trace id to correlate with (generated if empty).")
	fs.StringVar(&opt.traceID, "i", "", "Shorthand for -trace-id.")

	fs.StringVar(&opt.rootSpanID, "root-span-id", "", "Parent span id for the tree's root node (generated if empty).")
	fs.StringVar(&opt.rootSpanID, "d", "", "Shorthand for -root-span-id.")

	fs.BoolVar(&opt.generateRoot, "generate-root-span", false, "Emit a standalone root span around the whole run. Leave off when invoked by a worker, which owns the terminal root span itself.")
	fs.BoolVar(&opt.generateRoot, "g", false, "Shorthand for -generate-root-span.")

	fs.StringVar(&opt.tracesEndpoint, "traces-endpoint", opt.tracesEndpoint, "OTLP/HTTP traces collector endpoint.")
	fs.StringVar(&opt.tracesEndpoint, "t", opt.tracesEndpoint, "Shorthand for -traces-endpoint.")

	fs.StringVar(&opt.logsEndpoint, "logs-endpoint", opt.logsEndpoint, "OTLP/HTTP logs collector endpoint.")
	fs.StringVar(&opt.logsEndpoint, "l", opt.logsEndpoint, "Shorthand for -logs-endpoint.")

	fs.StringVar(&opt.changesetFile, "changeset", "", "Path to a newline-separated file of changed paths.")
	fs.StringVar(&opt.changesetFile, "c", "", "Shorthand for -changeset.")

	fs.StringVar(&opt.otelEndpoint, "otel-grpc-endpoint", "localhost:4317", "OTLP/gRPC endpoint for this process's own internal tracing (retries, circuit breakers), separate from -traces-endpoint which carries the pipeline's own spans as OTLP/HTTP JSON.")

	return opt
}

func main() {
	fs := flag.NewFlagSet("bass-exec", flag.ExitOnError)
	opt := bindOptions(fs)
	fs.Parse(os.Args[1:])

	pipelineFile := fs.Arg(0)
	if pipelineFile == "" {
		fmt.Fprintln(os.Stderr, "usage: bass-exec [flags] <pipeline-file.json>")
		os.Exit(int(pipeline.StatusError))
	}

	logger := logz.New("info")

	shutdown := otelboot.Init(otelboot.Config{
		ServiceName: "bass-exec",
		Endpoint:    opt.otelEndpoint,
		Insecure:    true,
	})
	defer shutdown(context.Background())

	node, err := loadPipeline(pipelineFile)
	if err != nil {
		logger.Error("bass-exec: load pipeline failed", "error", err)
		os.Exit(int(pipeline.StatusError))
	}

	if err := pipeline.Validate(node); err != nil {
		logger.Error("bass-exec: pipeline validation failed", "error", err)
		os.Exit(int(pipeline.StatusError))
	}

	if opt.serviceName == "" {
		opt.serviceName = "bass:pipeline:" + node.Name
	}
	if opt.traceID == "" {
		opt.traceID = telemetry.GenerateTraceID()
	}
	if opt.rootSpanID == "" {
		opt.rootSpanID = telemetry.GenerateSpanID()
	}

	changeset, err := loadChangeset(opt.changesetFile)
	if err != nil {
		logger.Error("bass-exec: load changeset failed", "error", err)
		os.Exit(int(pipeline.StatusError))
	}

	client := call.New(call.WithTimeout(30 * time.Second))
	emitter := telemetry.NewEmitter(client, opt.tracesEndpoint, opt.logsEndpoint, opt.serviceName, opt.traceID, logger)

	parent := opt.rootSpanID

	runStart := time.Now()
	status := pipeline.Execute(context.Background(), node, parent, pipeline.Options{
		Runner:    pipeline.OSRunner{},
		Changeset: changeset,
		SpanID:    telemetry.GenerateSpanID,
		Span: func(name, parentSpanID, spanID string, start, end time.Time, st pipeline.Status) {
			emitter.Span(name, parentSpanID, spanID, start, end, st.OTelStatusCode())
		},
		Log: func(spanID, severity, message string) {
			emitter.Log(spanID, telemetry.Severity(severity), message)
		},
	})

	if opt.generateRoot {
		emitter.Span(node.Name, "", opt.rootSpanID, runStart, time.Now(), status.OTelStatusCode())
	}

	os.Exit(int(status))
}

func loadPipeline(path string) (*pipeline.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	var node pipeline.Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse pipeline file: %w", err)
	}
	return &node, nil
}

func loadChangeset(path string) (pipeline.Changeset, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open changeset file: %w", err)
	}
	defer f.Close()

	var changeset pipeline.Changeset
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			changeset = append(changeset, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read changeset file: %w", err)
	}
	return changeset, nil
}
