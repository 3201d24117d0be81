package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/treehole/treehole-go/treehole"
	"github.com/treehole/treehole-go/treehole/cache"
	"github.com/treehole/treehole-go/treehole/clock"
	"github.com/treehole/treehole-go/treehole/database"
	"github.com/treehole/treehole-go/treehole/database/repositories"
	"github.com/treehole/treehole-go/treehole/logger"
	"github.com/treehole/treehole-go/treehole/services"
	"github.com/treehole/treehole-go/treehole/userlock"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(slog.LevelInfo)))

	slog.Info("Starting TreeHole progression engine",
		slog.String("version", version),
		slog.String("commit", commit))

	path := flag.String("config", "config.toml", "path to config")
	skipSchemaInit := flag.Bool("skip-schema-init", false, "skip schema and seed initialization on startup")
	flag.Parse()

	cfg, err := treehole.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))
	slog.Info("Configuration loaded successfully")

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	if !*skipSchemaInit {
		slog.Info("Initializing database schema...")
		if err := db.InitializeSchema(ctx); err != nil {
			slog.Error("Failed to initialize database schema",
				slog.String("error", err.Error()),
				slog.Duration("attempted_for", time.Since(dbStartTime)))
			os.Exit(-1)
		}
		slog.Info("Database schema initialized successfully")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		slog.Error("Redis connection failed", slog.Any("error", err))
		os.Exit(-1)
	}
	defer redisClient.Close()
	slog.Info("Redis connected successfully", slog.String("addr", cfg.Redis.Addr))

	levelRepo := repositories.NewLevelRepository(db.BunDB())
	badgeRepo := repositories.NewBadgeRepository(db.BunDB())
	taskRepo := repositories.NewTaskRepository(db.BunDB())

	definitions := cache.NewDefinitions(levelRepo, badgeRepo, taskRepo, 5*time.Minute)
	if err := definitions.Warm(ctx); err != nil {
		slog.Error("Failed to warm definition caches", slog.Any("error", err))
		os.Exit(-1)
	}

	leaderboardTTL := time.Duration(cfg.Progression.LeaderboardTTLSeconds) * time.Second
	leaderboardCache := cache.NewLeaderboardCache(redisClient, leaderboardTTL)

	locks := userlock.NewManager(5 * time.Minute)
	locksCtx, locksCancel := context.WithCancel(context.Background())
	defer locksCancel()
	locks.StartCleanupRoutine(locksCtx)

	engine := services.NewEngine(db.BunDB(), definitions, leaderboardCache, locks, clock.New(), cfg.Progression)
	slog.Info("Progression services initialized")

	// Keep the default leaderboard page warm so forum reads never pay the
	// full scan.
	refreshCtx, refreshCancel := context.WithCancel(context.Background())
	defer refreshCancel()
	go refreshLeaderboard(refreshCtx, engine.Ranks, leaderboardTTL)

	slog.Info("Progression engine is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down...")
}

func refreshLeaderboard(ctx context.Context, rankService *services.RankService, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if _, err := rankService.GetLeaderboard(opCtx, 0); err != nil {
				slog.Error("Failed to refresh leaderboard", slog.Any("error", err))
			}
			cancel()
		}
	}
}
