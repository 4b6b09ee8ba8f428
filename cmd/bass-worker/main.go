// Command bass-worker polls an orchestrator for jobs, prepares each job's
// git workspace, runs bass-exec against it, and reports the outcome.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/bassci/bass/internal/call"
	"github.com/bassci/bass/internal/config"
	"github.com/bassci/bass/internal/lifecycle"
	"github.com/bassci/bass/internal/logz"
	"github.com/bassci/bass/internal/notify"
	"github.com/bassci/bass/internal/otelboot"
	"github.com/bassci/bass/internal/telemetry"
	"github.com/bassci/bass/internal/worker"
)

// env holds the settings this worker reads from its environment rather
// than flags: the dequeue API key and outbound SMTP settings, none of
// which belong in process args or a catalog file.
type env struct {
	APIKey   string   `env:"BASS_API_KEY" required:"true"`
	Tags     []string `env:"BASS_WORKER_TAGS" required:"false"`
	SMTPAddr string   `env:"BASS_SMTP_ADDR" default:"localhost:25"`
	SMTPFrom string   `env:"BASS_SMTP_FROM" default:"bass@localhost"`
}

type options struct {
	dequeueEndpoint string
	workspaceRoot   string
	tracesEndpoint  string
	logsEndpoint    string
	otelEndpoint    string
}

func bindOptions(fs *flag.FlagSet) *options {
	opt := &options{}

	fs.StringVar(&opt.dequeueEndpoint, "dequeue-endpoint", "", "Orchestrator /dequeue URL to long-poll.")
	fs.StringVar(&opt.workspaceRoot, "workspace-root", "/var/lib/bass/workspaces", "Root directory for per-pipeline git checkouts.")
	fs.StringVar(&opt.tracesEndpoint, "traces-endpoint", "http://localhost:4318/v1/traces", "OTLP/HTTP traces collector endpoint, for the terminal root span.")
	fs.StringVar(&opt.logsEndpoint, "logs-endpoint", "http://localhost:4318/v1/logs", "OTLP/HTTP logs collector endpoint.")
	fs.StringVar(&opt.otelEndpoint, "otel-grpc-endpoint", "localhost:4317", "OTLP/gRPC endpoint for this process's own internal tracing, separate from -traces-endpoint/-logs-endpoint which carry job spans as OTLP/HTTP JSON.")

	return opt
}

func main() {
	fs := flag.NewFlagSet("bass-worker", flag.ExitOnError)
	opt := bindOptions(fs)
	fs.Parse(os.Args[1:])

	logger := logz.New("info")

	if opt.dequeueEndpoint == "" {
		logger.Error("bass-worker: --dequeue-endpoint is required")
		os.Exit(1)
	}

	shutdown := otelboot.Init(otelboot.Config{
		ServiceName: "bass-worker",
		Endpoint:    opt.otelEndpoint,
		Insecure:    true,
	})
	defer shutdown(context.Background())

	envCfg := config.MustLoad[env]()

	client := call.New(
		call.WithTimeout(30*time.Second),
		call.WithRetry(3, time.Second),
	)
	sender := telemetry.NewSender(client, opt.tracesEndpoint, opt.logsEndpoint, logger)
	mailer := notify.NewMailer(envCfg.SMTPAddr, envCfg.SMTPFrom)
	dequeueClient := call.New(call.WithTimeout(30 * time.Second))

	w := worker.New(worker.Config{
		DequeueEndpoint: opt.dequeueEndpoint,
		APIKey:          envCfg.APIKey,
		Tags:            envCfg.Tags,
		WorkspaceRoot:   opt.workspaceRoot,
	}, dequeueClient, sender, mailer, logger)

	if err := lifecycle.Run(context.Background(), w.Run); err != nil {
		logger.Error("bass-worker: exited with error", "error", err)
		os.Exit(1)
	}
}
