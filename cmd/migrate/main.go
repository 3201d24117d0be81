package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/treehole/treehole-go/treehole"
	"github.com/treehole/treehole-go/treehole/database"
	"github.com/treehole/treehole-go/treehole/logger"
)

// Standalone schema provisioning: creates tables and indexes and upserts
// the seed catalogs, then exits. The service binary does the same on
// startup; this exists for CI and for provisioning ahead of a deploy.
func main() {
	slog.SetDefault(slog.New(logger.NewHandler(slog.LevelInfo)))

	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := treehole.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Schema initialization failed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("Schema initialization completed successfully")
}
