// Command bass-orchestrator serves the pipeline catalog, accepts webhooks,
// and dispatches queued jobs to polling workers.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/bassci/bass/internal/call"
	"github.com/bassci/bass/internal/health"
	"github.com/bassci/bass/internal/lifecycle"
	"github.com/bassci/bass/internal/logz"
	"github.com/bassci/bass/internal/orchestrator"
	"github.com/bassci/bass/internal/otelboot"
	"github.com/bassci/bass/internal/telemetry"
)

type options struct {
	tracesEndpoint string
	logsEndpoint   string
	pipelinesFile  string
	envFile        string
	workerKeysFile string
	port           string
	otelEndpoint   string
}

func bindOptions(fs *flag.FlagSet) *options {
	opt := &options{port: "8080"}

	fs.StringVar(&opt.tracesEndpoint, "traces-endpoint", "http://localhost:4318/v1/traces", "OTLP/HTTP traces collector endpoint.")
	fs.StringVar(&opt.logsEndpoint, "logs-endpoint", "http://localhost:4318/v1/logs", "OTLP/HTTP logs collector endpoint.")
	fs.StringVar(&opt.pipelinesFile, "pipelines-file", "", "Path to the JSON pipeline catalog.")
	fs.StringVar(&opt.envFile, "env-file", "", "Path to a KEY=VALUE env file merged into every enqueued job.")
	fs.StringVar(&opt.workerKeysFile, "worker-keys-file", "", "Path to a file of one API key per line, required on /dequeue when non-empty.")
	fs.StringVar(&opt.port, "port", opt.port, "Port the orchestrator listens on.")
	fs.StringVar(&opt.otelEndpoint, "otel-grpc-endpoint", "localhost:4317", "OTLP/gRPC endpoint for this process's own internal tracing, separate from -traces-endpoint/-logs-endpoint which carry job spans as OTLP/HTTP JSON.")

	return opt
}

func main() {
	fs := flag.NewFlagSet("bass-orchestrator", flag.ExitOnError)
	opt := bindOptions(fs)
	fs.Parse(os.Args[1:])

	logger := logz.New("info")

	shutdown := otelboot.Init(otelboot.Config{
		ServiceName: "bass-orchestrator",
		Endpoint:    opt.otelEndpoint,
		Insecure:    true,
	})
	defer shutdown(context.Background())

	if opt.pipelinesFile == "" {
		logger.Error("bass-orchestrator: --pipelines-file is required")
		os.Exit(1)
	}

	catalog, err := orchestrator.LoadCatalog(opt.pipelinesFile)
	if err != nil {
		logger.Error("bass-orchestrator: load catalog failed", "error", err)
		os.Exit(1)
	}

	workerKeys, err := orchestrator.LoadWorkerKeys(opt.workerKeysFile)
	if err != nil {
		logger.Error("bass-orchestrator: load worker keys failed", "error", err)
		os.Exit(1)
	}

	baseEnv, err := orchestrator.LoadEnvFile(opt.envFile)
	if err != nil {
		logger.Error("bass-orchestrator: load env file failed", "error", err)
		os.Exit(1)
	}

	client := call.New(call.WithTimeout(10 * time.Second))
	sender := telemetry.NewSender(client, opt.tracesEndpoint, opt.logsEndpoint, logger)

	srv := &orchestrator.Server{
		Catalog:        catalog,
		Queue:          orchestrator.NewQueue(),
		WorkerKeys:     workerKeys,
		BaseEnv:        baseEnv,
		Sender:         sender,
		TracesEndpoint: opt.tracesEndpoint,
		LogsEndpoint:   opt.logsEndpoint,
		Logger:         logger,
	}

	mainServer := func(ctx context.Context) error {
		return runHTTPServer(ctx, ":"+opt.port, srv.Mux(), logger)
	}

	healthChecks := map[string]health.Check{
		"catalog": func(ctx context.Context) error { return nil },
	}
	adminServer := func(ctx context.Context) error {
		mux := http.NewServeMux()
		mux.Handle("GET /healthz", health.Handler(healthChecks))
		return runHTTPServer(ctx, ":"+adminPort(opt.port), mux, logger)
	}

	if err := lifecycle.Run(context.Background(), mainServer, adminServer); err != nil {
		logger.Error("bass-orchestrator: exited with error", "error", err)
		os.Exit(1)
	}
}

// adminPort derives the health-check listener's port from the main port by
// adding 1, matching the teacher's convention of a sibling admin mux.
func adminPort(port string) string {
	n, err := strconv.Atoi(port)
	if err != nil {
		return port
	}
	return strconv.Itoa(n + 1)
}

func runHTTPServer(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("bass-orchestrator: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
