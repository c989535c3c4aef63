package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/resolvd/resolvd"
	"github.com/resolvd/resolvd/internal/config"
	"github.com/resolvd/resolvd/internal/logging"
	"github.com/resolvd/resolvd/pkg/adapters/file"
	httpAdapter "github.com/resolvd/resolvd/pkg/adapters/http"
	"github.com/resolvd/resolvd/pkg/adapters/memory"
	redisAdapter "github.com/resolvd/resolvd/pkg/adapters/redis"
	"github.com/resolvd/resolvd/pkg/observability"
	"github.com/resolvd/resolvd/pkg/orchestrator"
	"github.com/resolvd/resolvd/pkg/persistence/middleware"
	"github.com/resolvd/resolvd/pkg/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the support desk in server mode, exposing the session and admin APIs over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		workflowsDir, _ := cmd.Flags().GetString("workflows")
		addr, _ := cmd.Flags().GetString("addr")

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		if cmd.Flags().Changed("workflows") {
			cfg.Workflows.Dir = workflowsDir
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = addr
		}

		logger := buildLogger(cfg)

		desk, registry, err := buildDesk(cfg, logger)
		if err != nil {
			fmt.Printf("Error initializing desk: %v\n", err)
			os.Exit(1)
		}

		handler := httpAdapter.NewHandler(desk.Orchestrator(), desk.Overrides(),
			httpAdapter.WithLogger(logger),
			httpAdapter.WithGatherer(registry),
			httpAdapter.WithMetrics(desk.Metrics()),
		)

		srv := &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: handler,
		}

		watchCtx, cancelWatch := context.WithCancel(context.Background())
		defer cancelWatch()
		if cfg.Workflows.Watch {
			startWorkflowWatch(watchCtx, desk, logger)
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("server listening", "addr", srv.Addr, "workflows", cfg.Workflows.Dir, "store", cfg.Store.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			logger.Error("server error", "err", err)
			os.Exit(1)

		case sig := <-shutdown:
			logger.Info("starting shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("graceful shutdown did not complete", "timeout", cfg.Server.ShutdownTimeout, "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("error closing server", "err", err)
				}
			}
			logger.Info("server stopped")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
}

func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}

func buildDesk(cfg *config.Config, logger *slog.Logger) (*resolvd.Desk, *prometheus.Registry, error) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	opts := []resolvd.Option{
		resolvd.WithLogger(logger),
		resolvd.WithMetrics(metrics),
		resolvd.WithOverrideRepository(file.NewOverrideRepository(cfg.Overrides.Path, file.WithRepoLogger(logger))),
		resolvd.WithOrchestratorOptions(
			orchestrator.WithHopLimit(cfg.Pipeline.HopLimit),
			orchestrator.WithFailureThreshold(cfg.Pipeline.FailureThreshold),
			orchestrator.WithConfidenceThreshold(cfg.Pipeline.ConfidenceThreshold),
		),
	}

	store, err := buildStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, resolvd.WithStore(store))

	loader, err := file.NewWorkflowLoader(cfg.Workflows.Dir,
		file.WithLogger(logger),
		file.WithPollInterval(cfg.Workflows.PollInterval),
	)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, resolvd.WithLoader(loader))

	desk, err := resolvd.New(cfg.Workflows.Dir, opts...)
	if err != nil {
		return nil, nil, err
	}
	return desk, registry, nil
}

// buildStore selects the session backend and stacks the persistence
// middlewares on top: PII masking first, then encryption, so stored
// ciphertext is already redacted.
func buildStore(cfg *config.Config) (ports.SessionStore, error) {
	var store ports.SessionStore
	if strings.EqualFold(cfg.Store.Backend, "redis") {
		store = redisAdapter.New(cfg.Store.RedisAddr, cfg.Store.RedisPass, cfg.Store.RedisDB,
			redisAdapter.WithTTL(cfg.Store.TTL))
	} else {
		store = memory.NewStore()
	}

	var mws []middleware.Middleware
	if len(cfg.Store.MaskFields) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.Store.MaskFields))
	}
	if cfg.Store.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.Store.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("decode encryption key: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	return middleware.Chain(store, mws...), nil
}

func startWorkflowWatch(ctx context.Context, desk *resolvd.Desk, logger *slog.Logger) {
	ch, err := desk.Watch(ctx)
	if err != nil {
		logger.Warn("workflow watching unavailable", "err", err)
		return
	}
	go func() {
		for range ch {
			logger.Info("workflow definitions reloaded")
		}
	}()
}
