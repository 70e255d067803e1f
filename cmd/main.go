package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mdmc/internal/access"
	"mdmc/internal/api"
	"mdmc/internal/app"
	"mdmc/internal/config"
	"mdmc/internal/events"
	"mdmc/internal/mail"
	"mdmc/internal/tasks"
	"mdmc/internal/utils/logger"

	"github.com/joho/godotenv"
)

// @title MDMC Music Ads CRM API
// @version 1.0
// @description Accounts, leads, campaigns and analytics for the MDMC CRM.
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	logger := logger.New("mdmc")

	// check if .env file exists
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		logger.Info("No .env file found, skipping environment variable loading")
	} else {
		logger.Info("Loading environment variables from .env file")
		if err := godotenv.Load(); err != nil {
			log.Fatalf("Failed to load environment variables: %v", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("Failed to close connections", err)
		}
	}()

	if err := a.EnsureAdmin(ctx); err != nil {
		logger.Error("Failed to create admin account", err)
	}

	// Account e-mails are queued for the worker.
	taskClient := tasks.NewTaskClient(cfg.Redis)
	defer taskClient.Close()
	tasks.Bridge(taskClient)
	events.Audit(logger.With("audit"))

	var (
		taskServer    *tasks.Server
		taskScheduler *tasks.Scheduler
	)
	if cfg.Worker.Enabled {
		taskHandler := tasks.NewTaskHandler(
			mail.NewSender(cfg.SMTP),
			a.Services.Accounts,
			a.Services.Accounts,
			a.Services.Leads,
			cfg.Server.ClientURL,
		)
		taskServer = tasks.NewServer(cfg.Redis, cfg.Worker, taskHandler, logger)
		if err := taskServer.Start(); err != nil {
			logger.Error("Task server error", err)
		}

		taskScheduler = tasks.NewScheduler(cfg.Redis, logger)
		go func() {
			if err := taskScheduler.Start(); err != nil {
				logger.Error("Task scheduler error", err)
			}
		}()
	}

	if limiter, ok := a.Limiter.(*access.MemoryLimiter); ok {
		go sweep(ctx, limiter, cfg.RateLimit.Window)
	}

	apiServer, err := api.NewServer(api.Deps{
		Config:        cfg,
		Services:      a.Services,
		Authenticator: a.Authenticator,
		Limiter:       a.Limiter,
		DB:            a.DB,
	})
	if err != nil {
		log.Fatalf("Failed to build API server: %v", err)
	}
	go func() {
		logger.Success("API server listening on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("API server error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the servers
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown API server", err)
	}
	if taskScheduler != nil {
		taskScheduler.Stop()
	}
	if taskServer != nil {
		taskServer.Shutdown()
	}
	cancel()

	logger.Info("Servers shutdown gracefully")
}

// sweep drops expired in-memory rate limit windows once per window.
func sweep(ctx context.Context, l *access.MemoryLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}
