package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/treehole/treehole-go/treehole"
	"github.com/treehole/treehole-go/treehole/clock"
	"github.com/treehole/treehole-go/treehole/database/models"
	"github.com/treehole/treehole-go/treehole/database/repositories"
	"github.com/treehole/treehole-go/treehole/userlock"
)

// TierSource supplies the level table, usually from the definition cache.
type TierSource interface {
	Tiers(ctx context.Context) ([]*models.LevelTier, error)
}

// expGranter is the internal grant surface used by services that already
// hold the per-user lock.
type expGranter interface {
	addExperienceLocked(ctx context.Context, userID int64, delta int64, actionType, description string, relatedID *int64) (*ExperienceResult, error)
}

// leaderboardInvalidator drops cached rank and leaderboard results after
// a direct experience adjustment.
type leaderboardInvalidator interface {
	InvalidateCache(ctx context.Context) error
}

// LevelService owns the experience aggregate: it appends ledger entries,
// applies the guarded atomic increment, and detects tier crossings.
type LevelService struct {
	users  repositories.UserRepository
	ledger repositories.ExperienceRepository
	tiers  TierSource
	badges BadgeTrigger
	ranks  leaderboardInvalidator
	locks  *userlock.Manager
	clock  clock.Clock
	cfg    treehole.ProgressionConfig
}

func NewLevelService(
	users repositories.UserRepository,
	ledger repositories.ExperienceRepository,
	tiers TierSource,
	badges BadgeTrigger,
	ranks leaderboardInvalidator,
	locks *userlock.Manager,
	clk clock.Clock,
	cfg treehole.ProgressionConfig,
) *LevelService {
	return &LevelService{
		users:  users,
		ledger: ledger,
		tiers:  tiers,
		badges: badges,
		ranks:  ranks,
		locks:  locks,
		clock:  clk,
		cfg:    cfg,
	}
}

// AddExperience applies a signed delta to the user's total. The mutation
// is serialized against all other progression mutations for the same user.
// Direct adjustments drop the cached leaderboard; organic gains go through
// the action tracker and rely on the cache TTL instead.
func (s *LevelService) AddExperience(ctx context.Context, userID int64, delta int64, actionType, description string, relatedID *int64) (*ExperienceResult, error) {
	unlock := s.locks.Lock(userID)
	result, err := s.addExperienceLocked(ctx, userID, delta, actionType, description, relatedID)
	unlock()
	if err != nil {
		return nil, err
	}

	if s.ranks != nil {
		if err := s.ranks.InvalidateCache(ctx); err != nil {
			slog.Warn("Failed to invalidate rank cache",
				slog.String("type", "cache"),
				slog.Int64("user_id", userID),
				slog.Any("error", err))
		}
	}
	return result, nil
}

func (s *LevelService) addExperienceLocked(ctx context.Context, userID int64, delta int64, actionType, description string, relatedID *int64) (*ExperienceResult, error) {
	if delta == 0 {
		return nil, fmt.Errorf("zero delta: %w", ErrInvalidAdjustment)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
	}

	tiers, err := s.tiers.Tiers(ctx)
	if err != nil {
		return nil, err
	}
	oldLevel := levelFor(tiers, user.Experience)

	var newTotal int64
	var applied bool
	retries := s.cfg.MaxUpdateRetries
	if retries <= 0 {
		retries = 1
	}
	for attempt := 0; attempt < retries; attempt++ {
		newTotal, applied, err = s.users.AddExperience(ctx, userID, delta)
		if err == nil {
			break
		}
		slog.Warn("Experience update failed, retrying",
			slog.String("type", "svc"),
			slog.Int64("user_id", userID),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))
	}
	if err != nil {
		return nil, fmt.Errorf("experience update exhausted %d retries: %w: %w", retries, ErrConcurrency, err)
	}
	if !applied {
		// The user row exists, so the non-negative guard fired.
		return nil, fmt.Errorf("delta %d on total %d: %w", delta, user.Experience, ErrInvalidAdjustment)
	}

	entry := &models.ExperienceLog{
		UserID:      userID,
		Delta:       delta,
		ActionType:  actionType,
		Description: description,
		RelatedID:   relatedID,
		DedupKey:    uuid.NewString(),
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		slog.Error("Failed to append experience ledger entry",
			slog.String("type", "svc"),
			slog.Int64("user_id", userID),
			slog.String("action_type", actionType),
			slog.Any("error", err))
		return nil, err
	}

	newLevel := levelFor(tiers, newTotal)
	result := &ExperienceResult{
		NewTotal:  newTotal,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		LeveledUp: newLevel > oldLevel,
	}

	if result.LeveledUp {
		if err := s.ledger.LogLevelUp(ctx, &models.LevelLog{
			UserID:     userID,
			OldLevel:   oldLevel,
			NewLevel:   newLevel,
			Experience: newTotal,
		}); err != nil {
			slog.Error("Failed to record level transition",
				slog.String("type", "svc"),
				slog.Int64("user_id", userID),
				slog.Any("error", err))
		}

		slog.Info("User leveled up",
			slog.String("type", "svc"),
			slog.Int64("user_id", userID),
			slog.Int("old_level", oldLevel),
			slog.Int("new_level", newLevel),
			slog.Int64("experience", newTotal))

		if s.badges != nil {
			s.badges.Trigger(ctx, userID, models.ActionLevelUp, map[string]interface{}{
				"level": newLevel,
			})
		}
	}

	return result, nil
}

// GetLevelInfo returns the tier snapshot for a user: tier, current
// experience, experience to the next tier (0 at the top), and progress
// through the current tier clamped to [0,100].
func (s *LevelService) GetLevelInfo(ctx context.Context, userID int64) (*LevelInfo, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
	}

	tiers, err := s.tiers.Tiers(ctx)
	if err != nil {
		return nil, err
	}

	tier := tierFor(tiers, user.Experience)
	if tier == nil {
		return nil, fmt.Errorf("no tier covers experience %d", user.Experience)
	}

	atTop := tier.Level == tiers[len(tiers)-1].Level

	var expToNext int64
	progress := 100.0
	if !atTop {
		expToNext = tier.MaxExp + 1 - user.Experience
		span := tier.MaxExp + 1 - tier.MinExp
		progress = float64(user.Experience-tier.MinExp) / float64(span) * 100
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	return &LevelInfo{
		Level:             tier.Level,
		LevelName:         tier.Name,
		Icon:              tier.Icon,
		Color:             tier.Color,
		CurrentExp:        user.Experience,
		ExpToNext:         expToNext,
		ProgressPercent:   progress,
		DailyPostLimit:    tier.DailyPostLimit,
		DailyCommentLimit: tier.DailyCommentLimit,
		CanCreateBar:      tier.CanCreateBar,
		CanPinPost:        tier.CanPinPost,
		StorageQuota:      tier.StorageQuota,
	}, nil
}

// GetAllLevels returns the full tier table.
func (s *LevelService) GetAllLevels(ctx context.Context) ([]*models.LevelTier, error) {
	return s.tiers.Tiers(ctx)
}

// GetExperienceLog returns one page of the user's ledger, newest first.
func (s *LevelService) GetExperienceLog(ctx context.Context, userID int64, page, pageSize int) (*ExperienceLogPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
	}

	entries, total, err := s.ledger.GetPage(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}

	return &ExperienceLogPage{
		Entries:  entries,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// tierFor returns the tier whose range contains exp. Ranges are
// contiguous, so a miss only happens on a malformed table; exp above the
// top range falls back to the top tier.
func tierFor(tiers []*models.LevelTier, exp int64) *models.LevelTier {
	for _, t := range tiers {
		if t.Contains(exp) {
			return t
		}
	}
	if len(tiers) > 0 && exp > tiers[len(tiers)-1].MaxExp {
		return tiers[len(tiers)-1]
	}
	return nil
}

func levelFor(tiers []*models.LevelTier, exp int64) int {
	tier := tierFor(tiers, exp)
	if tier == nil {
		return 0
	}
	return tier.Level
}

// ExperienceResult reports the outcome of one experience adjustment.
type ExperienceResult struct {
	NewTotal  int64
	OldLevel  int
	NewLevel  int
	LeveledUp bool
}

// LevelInfo is the derived level snapshot for a user.
type LevelInfo struct {
	Level             int
	LevelName         string
	Icon              string
	Color             string
	CurrentExp        int64
	ExpToNext         int64
	ProgressPercent   float64
	DailyPostLimit    int
	DailyCommentLimit int
	CanCreateBar      bool
	CanPinPost        bool
	StorageQuota      int64
}

// ExperienceLogPage is one page of ledger history.
type ExperienceLogPage struct {
	Entries  []*models.ExperienceLog
	Total    int
	Page     int
	PageSize int
}
