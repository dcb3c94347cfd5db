package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sink/pkg/config"
	"github.com/ajitpratap0/nebula-sink/pkg/connector"
	"github.com/ajitpratap0/nebula-sink/pkg/logger"
	"github.com/ajitpratap0/nebula-sink/pkg/observability"
)

// runOptions are the run command settings. Each can be given as a flag or as
// a NEBULA_SINK_* environment variable, e.g. NEBULA_SINK_BATCH_SIZE.
type runOptions struct {
	ConfigFile  string
	Input       string
	BatchSize   int
	Base64      bool
	LogLevel    string
	MetricsAddr string
	Timeout     time.Duration
}

func newRunCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Push newline-delimited messages through a sink",
		Long: `Run reads messages, one JSON object per line, and pushes them in batches.
Each line looks like {"key": "...", "value": "...", "metadata": {...}}. With
--base64 key and value are base64 encoded, which binary payloads such as
protobuf require.

Every message the sink could not write is printed as
  <line>	<error type>	<cause>

Example:
  nebula-sink run --config sink.yaml --input messages.ndjson --base64`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := runOptions{
				ConfigFile:  v.GetString("config"),
				Input:       v.GetString("input"),
				BatchSize:   v.GetInt("batch-size"),
				Base64:      v.GetBool("base64"),
				LogLevel:    v.GetString("log-level"),
				MetricsAddr: v.GetString("metrics-addr"),
				Timeout:     v.GetDuration("timeout"),
			}
			return run(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringP("config", "c", "", "Path to the sink configuration YAML file (required)")
	flags.StringP("input", "i", "-", "Path to the newline-delimited message file, - for stdin")
	flags.Int("batch-size", 500, "Messages per push")
	flags.Bool("base64", false, "Key and value are base64 encoded")
	flags.String("log-level", "", "Override logging.level from the configuration")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	flags.Duration("timeout", 0, "Stop after this long; zero runs until the input ends")
	_ = v.BindPFlags(flags)

	return cmd
}

func run(ctx context.Context, opts runOptions, stdin io.Reader, stdout io.Writer) error {
	if opts.ConfigFile == "" {
		return fmt.Errorf("--config is required")
	}
	cfg, err := config.LoadConfig(opts.ConfigFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.With(zap.String("component", "nebula-sink-cli"))

	shutdown, err := observability.Init(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(sctx)
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	addr := opts.MetricsAddr
	if addr == "" && cfg.Metrics.Enabled {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		srv := serveMetrics(addr, cfg.Metrics.Path, log)
		defer func() { _ = srv.Close() }()
	}

	in := stdin
	if opts.Input != "" && opts.Input != "-" {
		f, err := os.Open(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	conn, err := connector.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open sink %q: %w", cfg.Sink, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warn("failed to close sink", zap.Error(err))
		}
	}()

	start := time.Now()
	stats, err := pushAll(ctx, conn, newReader(in, opts.Base64), opts.BatchSize, stdout)
	if err != nil {
		return err
	}
	log.Info("input drained",
		zap.Int("messages", stats.messages),
		zap.Int("failed", stats.failed),
		zap.Int("batches", stats.batches),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func serveMetrics(addr, path string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr), zap.String("path", path))
	return srv
}
