package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres driver

	"github.com/nk2it/license-store-backend/internal/api"
	"github.com/nk2it/license-store-backend/internal/config"
	"github.com/nk2it/license-store-backend/internal/email"
	"github.com/nk2it/license-store-backend/internal/invoice"
	"github.com/nk2it/license-store-backend/internal/store"
	stripeinternal "github.com/nk2it/license-store-backend/internal/stripe"
	"github.com/nk2it/license-store-backend/internal/verify"
	"github.com/nk2it/license-store-backend/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port, "demo", cfg.Demo)

	// ── Database ──────────────────────────────────────────────────────────────
	// Absent in demo mode: the API serves the static catalogue and checkout
	// is faked, so the rest of the stack can run with zero infrastructure.
	var st *store.Store
	if !cfg.Demo {
		pool, err := store.Open(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		st = store.New(pool)
		logger.Info("database connected")
	}

	// ── Stripe ────────────────────────────────────────────────────────────────
	stripeClient := stripeinternal.NewClient(cfg.StripeSecretKey)

	// ── Invoice renderer ──────────────────────────────────────────────────────
	// A missing logo asset degrades rendering, never blocks startup.
	renderer := invoice.NewRenderer(cfg.LogoPath, logger)
	if _, err := os.Stat(cfg.LogoPath); err != nil {
		logger.Warn("invoice logo asset not found, invoices will render without it",
			"path", cfg.LogoPath)
	}

	// ── Email ─────────────────────────────────────────────────────────────────
	verifier := verify.NewVerifier(nil)

	var sender email.Sender
	if cfg.SMTP.Configured() {
		sender, err = email.NewSMTPSender(email.SMTPOptions{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Secure:   cfg.SMTP.Secure,
			User:     cfg.SMTP.User,
			Pass:     cfg.SMTP.Pass,
			FromAddr: cfg.SMTP.FromAddr,
			FromName: cfg.SMTP.FromName,
		})
		if err != nil {
			return fmt.Errorf("smtp: %w", err)
		}
		logger.Info("smtp transport configured", "host", cfg.SMTP.Host)
	} else {
		// Deliberate no-op mode: sends are verified but not dispatched.
		logger.Warn("SMTP not configured - emails will not be sent")
	}

	pipeline := email.NewPipeline(verifier, sender, logger)

	// ── Fulfillment worker ────────────────────────────────────────────────────
	var enqueuer worker.Enqueuer = noopEnqueuer{}
	var runner *worker.Runner
	if st != nil {
		job := worker.NewJob(st, renderer, pipeline, logger)
		runner = worker.NewRunner(job, st, worker.RunnerConfig{
			Workers:      cfg.WorkerCount,
			PollInterval: cfg.PollInterval,
			JobTimeout:   cfg.JobTimeout,
			MaxRetries:   cfg.MaxRetries,
		}, logger)
		enqueuer = runner
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	var storage api.Storage
	if st != nil {
		storage = st
	}
	handler := api.NewServer(
		storage,
		stripeClient,
		enqueuer,
		verifier,
		renderer,
		api.Config{
			BaseURL:             cfg.BaseURL,
			StripeWebhookSecret: cfg.StripeWebhookSecret,
			Env:                 cfg.Env,
			Demo:                cfg.Demo,
		},
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	// Root context cancelled by OS signal. Worker and HTTP server both respect it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runner != nil {
		go runner.Start(ctx)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until either a signal arrives or the server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Give in-flight HTTP requests up to 20 seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// noopEnqueuer satisfies worker.Enqueuer when no worker pool is running
// (demo mode). Checkout never reaches it; it exists so the api layer always
// has a non-nil dependency.
type noopEnqueuer struct{}

func (noopEnqueuer) Enqueue(context.Context, uuid.UUID) error { return nil }
