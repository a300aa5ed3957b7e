package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/safliix/console-backend/api/controllers"
	"github.com/safliix/console-backend/api/middleware"
	"github.com/safliix/console-backend/api/routes"
	"github.com/safliix/console-backend/internal/backend"
	"github.com/safliix/console-backend/internal/journal"
	"github.com/safliix/console-backend/internal/realtime"
	"github.com/safliix/console-backend/internal/retry"
	"github.com/safliix/console-backend/pkg/config"
	"github.com/safliix/console-backend/pkg/logger"
	"github.com/safliix/console-backend/pkg/metrics"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "console-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "console-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	// The operator's own session is forwarded when the request carries one;
	// the configured service credential covers everything else.
	static := backend.NewStaticTokenProvider(cfg.Backend.BearerToken)
	tokens := backend.TokenFunc(func(ctx context.Context) (string, error) {
		if token := middleware.TokenFromContext(ctx); token != "" {
			return token, nil
		}
		return static.Token(ctx)
	})

	client, err := backend.NewClient(cfg.Backend, tokens, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build backend client", err)
		os.Exit(1)
	}

	var store *journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			logg.Error(context.Background(), "failed to open submission journal", err)
			os.Exit(1)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logg.Error(context.Background(), "error closing journal", err)
			}
		}()
	}

	rtConn := realtime.NewConn(cfg.Realtime, logg)
	if cfg.Realtime.Enabled() {
		if err := rtConn.Connect(context.Background()); err != nil {
			logg.Warn(context.Background(), "realtime endpoint unreachable, progress events disabled")
		}
		defer func() {
			if err := rtConn.Disconnect(); err != nil {
				logg.Error(context.Background(), "error closing realtime connection", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	publishMetrics := metrics.NewPublishMetrics(registry)

	retryPolicy := retry.Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		Factor:     cfg.Retry.Factor,
	}

	deps := controllers.PublishDeps{
		Backend:    client,
		Metrics:    publishMetrics,
		Realtime:   rtConn,
		Retry:      retryPolicy,
		Parallel:   cfg.Upload.Parallel,
		ResetDelay: cfg.Upload.ResetDelay,
		Logger:     logg,
	}
	var journalPinger controllers.Pinger
	if store != nil {
		deps.Journal = store
		journalPinger = store
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting console api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, journalPinger, client, deps, registry),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "console api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
