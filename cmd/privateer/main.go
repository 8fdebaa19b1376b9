package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/schell/privateer/internal/config"
	"github.com/schell/privateer/internal/copyengine"
	"github.com/schell/privateer/internal/http/rest"
	"github.com/schell/privateer/internal/ledger"
	"github.com/schell/privateer/internal/logctx"
	"github.com/schell/privateer/internal/notifier"
	"github.com/schell/privateer/internal/reconcile"
	"github.com/schell/privateer/internal/scheduler"
	"github.com/schell/privateer/internal/telemetry"
	"github.com/spf13/afero"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("privateer starting...", "log_level", cfg.LogLevel, "data_dir", cfg.DataDir)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)
	fs := afero.NewOsFs()

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: "privateer",
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Stores
	ledgerStore := ledger.NewStore(fs, cfg.LedgerPath())
	settingsStore := config.NewSettingsStore(fs, cfg.SettingsPath())

	// =========================================================================
	// Start Copy Engine and Scheduler
	engine := copyengine.New(fs, ledgerStore, tel)
	defer engine.Close()

	reconciler := reconcile.New(fs, ledgerStore)

	sched := scheduler.New(
		cfg.PollInterval,
		settingsStore,
		ledgerStore,
		reconciler,
		engine,
		scheduler.Connect,
		tel,
	)

	// =========================================================================
	// Start Notifications
	setupNotifications(ctx, engine, cfg)

	// =========================================================================
	// Start API Service
	server := setupServer(ctx, cfg, settingsStore, ledgerStore, sched, tel)

	logger.Info("waiting for downloads...",
		"ledger", cfg.LedgerPath(),
		"settings", cfg.SettingsPath(),
		"poll_interval", cfg.PollInterval.String(),
		"bind_address", cfg.Web.BindAddress,
	)

	wg, ctx := errgroup.WithContext(ctx)

	wg.Go(func() error {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler error: %w", err)
		}

		return nil
	})

	wg.Go(func() error {
		logger.Info("initializing API support", "host", cfg.Web.BindAddress)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	wg.Go(func() error {
		<-ctx.Done()
		logger.Info("start shutdown")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err := server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}

		return nil
	})

	return wg.Wait()
}

// setupServer prepares the handlers and services to create the http rest server.
func setupServer(
	ctx context.Context,
	cfg *config.Config,
	settingsStore *config.SettingsStore,
	ledgerStore *ledger.Store,
	sched *scheduler.Scheduler,
	tel *telemetry.Telemetry,
) *http.Server {
	handler := rest.NewHandler(
		cfg.Web.Username,
		cfg.Web.Password,
		settingsStore,
		ledgerStore,
		sched,
		rest.Connect,
	)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	r.Method(http.MethodGet, "/metrics", tel.Handler())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      otelhttp.NewHandler(r, "privateer-api"),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

func setupNotifications(ctx context.Context, engine *copyengine.Engine, cfg *config.Config) {
	if cfg.DiscordWebhookURL == "" {
		return
	}

	logger := logctx.LoggerFromContext(ctx)
	notif := notifier.NewDiscord(cfg.DiscordWebhookURL)

	go func() {
		for entry := range engine.OnCopyFinished {
			logger.Info("download copied", "name", entry.Name, "destination", entry.Destination.Label())

			if err := notif.Notify(ctx,
				"✅ Copied "+entry.Name+" to "+entry.Destination.Label(),
			); err != nil {
				logger.Error("failed to send notification", "name", entry.Name, "err", err)
			}
		}
	}()

	go func() {
		for entry := range engine.OnCopyFailed {
			logger.Error("download copy failed", "name", entry.Name)

			if err := notif.Notify(ctx,
				"❌ Copy failed for "+entry.Name+", will retry next cycle",
			); err != nil {
				logger.Error("failed to send notification", "name", entry.Name, "err", err)
			}
		}
	}()
}
