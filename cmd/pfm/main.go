package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JeremyJS20/PersonalFinanceManagement/internal/auth"
	"github.com/JeremyJS20/PersonalFinanceManagement/internal/config"
	"github.com/JeremyJS20/PersonalFinanceManagement/internal/events"
	apphttp "github.com/JeremyJS20/PersonalFinanceManagement/internal/http"
	applog "github.com/JeremyJS20/PersonalFinanceManagement/internal/log"
	"github.com/JeremyJS20/PersonalFinanceManagement/internal/storage"
)

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     applog.LevelFromEnv(),
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var publisher apphttp.EventPublisher
	if cfg.AMQPURL != "" {
		pub, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP broker", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		publisher = pub
		logger.Info("Event publishing enabled", "exchange", cfg.AMQPExchange)
	}

	sessions := auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL)

	srv := apphttp.NewServer(apphttp.ServerOptions{
		Addr:          cfg.Addr(),
		Store:         repo,
		Sessions:      sessions,
		Publisher:     publisher,
		CategoryLimit: cfg.CategoryLimit,
		Logger:        logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server",
			applog.FieldOperation, applog.OpStartup,
			"port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received", applog.FieldOperation, applog.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
