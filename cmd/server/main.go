package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/garnizeh/contactdesk/api"
	dbfs "github.com/garnizeh/contactdesk/db"
	"github.com/garnizeh/contactdesk/internal/config"
	"github.com/garnizeh/contactdesk/internal/db"
	"github.com/garnizeh/contactdesk/internal/logging"
	"github.com/garnizeh/contactdesk/internal/repository/sqlite"
	"github.com/garnizeh/contactdesk/pkg/auth"
	"github.com/garnizeh/contactdesk/pkg/contacts"
	"github.com/garnizeh/contactdesk/pkg/remote"
	"github.com/garnizeh/contactdesk/pkg/session"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	_ = godotenv.Load()

	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logging.Fatal("failed to load config", slog.Any("err", err))
	}

	logger := logging.Setup(cfg.LogLevel)
	api.SetLogger(logger)
	remote.SetLogger(logger)

	if err := cfg.Validate(); err != nil {
		logging.Fatal("invalid config", slog.Any("err", err))
	}

	logger.Info("starting contactdesk", slog.String("version", version), slog.String("build_time", buildTime))

	ctx := context.Background()

	// Session keys survive restarts in the local database.
	dbCtx, dbCancel := context.WithTimeout(ctx, cfg.APITimeout)
	database, err := db.New(dbCtx, cfg.DatabasePath, logger)
	if err != nil {
		dbCancel()
		logging.Fatal("failed to open DB", slog.Any("err", err))
	}
	if err := db.Migrate(dbCtx, database, dbfs.Migrations); err != nil {
		dbCancel()
		logging.Fatal("failed to migrate DB", slog.Any("err", err))
	}
	dbCancel()

	sess := session.New(sqlite.NewSessionStore(database))
	notifier := remote.NewAuthNotifier()

	client, err := remote.NewDefaultClient(cfg.Remote, sess, notifier)
	if err != nil {
		logging.Fatal("failed to create remote client", slog.Any("err", err))
	}

	ctrl := contacts.NewController(client, logger)
	authSvc := auth.NewService(client, sess, logger)

	handler := api.SetupRoutes(cfg, version, buildTime, ctrl, authSvc, notifier)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", slog.String("addr", cfg.Addr), slog.String("backend", cfg.Remote.BaseURL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("server failed to start", slog.Any("err", err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("err", err))
	}

	if err := client.Close(); err != nil {
		logger.Error("error closing remote client", slog.Any("err", err))
	}
	if err := database.Close(); err != nil {
		logger.Error("error closing DB", slog.Any("err", err))
	}

	logger.Info("server exited")
}
