package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	dbfs "github.com/garnizeh/contactdesk/db"
	"github.com/garnizeh/contactdesk/internal/config"
	"github.com/garnizeh/contactdesk/internal/db"
	"github.com/garnizeh/contactdesk/internal/devapi"
	"github.com/garnizeh/contactdesk/internal/repository/sqlite"
)

func main() {
	devAPI := flag.Bool("dev-api", false, "Initialize the dev contacts API database (admin account and sample contacts)")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	path := cfg.DatabasePath
	if *devAPI {
		path = cfg.DevAPI.DatabasePath
	}

	database, err := db.New(ctx, path, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
		fmt.Fprintf(os.Stderr, "Migration runner error: %v\n", err)
		os.Exit(1)
	}

	if *devAPI {
		repo := sqlite.New(database, nil)
		srv, err := devapi.New(repo, repo, repo, devapi.Options{JWTSecret: cfg.DevAPI.JWTSecret, Envelope: devapi.Envelope(cfg.DevAPI.Envelope)})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Dev API error: %v\n", err)
			os.Exit(1)
		}
		if _, err := devapi.EnsureAdmin(ctx, srv, cfg.DevAPI.AdminName, cfg.DevAPI.AdminEmail, cfg.DevAPI.AdminPassword); err != nil {
			fmt.Fprintf(os.Stderr, "Admin seed error: %v\n", err)
			os.Exit(1)
		}
		n, err := devapi.Seed(ctx, repo, dbfs.SeedFiles)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Contact seed error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Seeded %d contacts.\n", n)
	}

	fmt.Printf("Database %s initialized successfully.\n", path)
}
