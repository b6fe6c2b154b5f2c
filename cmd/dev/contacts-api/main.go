// Command contacts-api runs a local stand-in for the contacts backend so the
// admin panel can be exercised without the production API.
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

	dbfs "github.com/garnizeh/contactdesk/db"
	"github.com/garnizeh/contactdesk/internal/config"
	"github.com/garnizeh/contactdesk/internal/db"
	"github.com/garnizeh/contactdesk/internal/devapi"
	"github.com/garnizeh/contactdesk/internal/logging"
	"github.com/garnizeh/contactdesk/internal/repository/sqlite"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config YAML file")
	prefix := flag.String("prefix", "/api", "Path prefix the endpoints are mounted under")
	seed := flag.Bool("seed", true, "Load sample contacts into an empty database")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logging.Fatal("failed to load config", slog.Any("err", err))
	}
	logger := logging.Setup(cfg.LogLevel)
	devapi.SetLogger(logger)

	if err := cfg.Validate(); err != nil {
		logging.Fatal("invalid config", slog.Any("err", err))
	}

	ctx := context.Background()
	database, err := db.New(ctx, cfg.DevAPI.DatabasePath, logger)
	if err != nil {
		logging.Fatal("failed to open DB", slog.Any("err", err))
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
		logging.Fatal("failed to migrate DB", slog.Any("err", err))
	}

	repo := sqlite.New(database, logger)
	srv, err := devapi.New(repo, repo, repo, devapi.Options{
		JWTSecret:     cfg.DevAPI.JWTSecret,
		TokenDuration: cfg.DevAPI.TokenDuration,
		Envelope:      devapi.Envelope(cfg.DevAPI.Envelope),
	})
	if err != nil {
		logging.Fatal("failed to create dev API", slog.Any("err", err))
	}

	if _, err := devapi.EnsureAdmin(ctx, srv, cfg.DevAPI.AdminName, cfg.DevAPI.AdminEmail, cfg.DevAPI.AdminPassword); err != nil {
		logging.Fatal("failed to create admin", slog.Any("err", err))
	}
	if *seed {
		if _, err := devapi.Seed(ctx, repo, dbfs.SeedFiles); err != nil {
			logging.Fatal("failed to seed contacts", slog.Any("err", err))
		}
	}

	server := &http.Server{
		Addr:         cfg.DevAPI.Addr,
		Handler:      srv.Routes(*prefix),
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("dev contacts API starting",
			slog.String("addr", cfg.DevAPI.Addr),
			slog.String("prefix", *prefix),
			slog.String("envelope", cfg.DevAPI.Envelope),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("server failed to start", slog.Any("err", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("dev API forced to shutdown", slog.Any("err", err))
	}
	logger.Info("dev API exited")
}
