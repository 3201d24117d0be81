package services

import (
	"github.com/uptrace/bun"

	"github.com/treehole/treehole-go/treehole"
	"github.com/treehole/treehole-go/treehole/cache"
	"github.com/treehole/treehole-go/treehole/clock"
	"github.com/treehole/treehole-go/treehole/database/repositories"
	"github.com/treehole/treehole-go/treehole/userlock"
)

// Engine bundles the fully wired progression services. The forum backend
// embeds one Engine and calls into it from its request handlers.
type Engine struct {
	Levels   *LevelService
	Badges   *BadgeService
	Tasks    *TaskService
	CheckIns *CheckInService
	Ranks    *RankService
	Tracker  *ActionTracker
}

// NewEngine builds the repositories and wires the service graph in
// dependency order.
func NewEngine(
	db *bun.DB,
	definitions *cache.Definitions,
	leaderboard *cache.LeaderboardCache,
	locks *userlock.Manager,
	clk clock.Clock,
	cfg treehole.ProgressionConfig,
) *Engine {
	userRepo := repositories.NewUserRepository(db)
	expRepo := repositories.NewExperienceRepository(db)
	checkInRepo := repositories.NewCheckInRepository(db)
	badgeRepo := repositories.NewBadgeRepository(db)
	taskRepo := repositories.NewTaskRepository(db)

	badges := NewBadgeService(badgeRepo, userRepo, checkInRepo, definitions, definitions, clk)
	ranks := NewRankService(userRepo, definitions, leaderboard, cfg)
	levels := NewLevelService(userRepo, expRepo, definitions, badges, ranks, locks, clk, cfg)
	tasks := NewTaskService(taskRepo, definitions, levels, badges, locks, clk)
	checkIns := NewCheckInService(checkInRepo, levels, tasks, badges, locks, clk, cfg)
	tracker := NewActionTracker(userRepo, levels, tasks, badges, locks)

	return &Engine{
		Levels:   levels,
		Badges:   badges,
		Tasks:    tasks,
		CheckIns: checkIns,
		Ranks:    ranks,
		Tracker:  tracker,
	}
}
