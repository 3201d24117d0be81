package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/treehole/treehole-go/treehole/clock"
	"github.com/treehole/treehole-go/treehole/database/models"
	"github.com/treehole/treehole-go/treehole/database/repositories"
)

// BadgeSource supplies the active badge definitions, usually from the
// definition cache.
type BadgeSource interface {
	Badges(ctx context.Context) ([]*models.BadgeDefinition, error)
}

// BadgeTrigger is the badge surface other services call into. Trigger
// never fails the calling action; GrantBadge is the direct award path
// used for task rewards.
type BadgeTrigger interface {
	Trigger(ctx context.Context, userID int64, actionType string, contextData map[string]interface{})
	GrantBadge(ctx context.Context, userID int64, badgeID string) error
}

// BadgeService evaluates unlock conditions and writes grants. Each badge
// is granted at most once ever; a failing condition is logged and skipped
// so one malformed badge never blocks the action that triggered the
// evaluation, or the other badges.
type BadgeService struct {
	badges   repositories.BadgeRepository
	users    repositories.UserRepository
	checkins repositories.CheckInRepository
	defs     BadgeSource
	tiers    TierSource
	clock    clock.Clock
}

func NewBadgeService(
	badges repositories.BadgeRepository,
	users repositories.UserRepository,
	checkins repositories.CheckInRepository,
	defs BadgeSource,
	tiers TierSource,
	clk clock.Clock,
) *BadgeService {
	return &BadgeService{
		badges:   badges,
		users:    users,
		checkins: checkins,
		defs:     defs,
		tiers:    tiers,
		clock:    clk,
	}
}

// Trigger evaluates every active, not-yet-granted badge for the user.
// It completes before returning so callers observe grants synchronously.
func (s *BadgeService) Trigger(ctx context.Context, userID int64, actionType string, contextData map[string]interface{}) {
	defs, err := s.defs.Badges(ctx)
	if err != nil {
		slog.Error("Failed to load badge definitions",
			slog.String("type", "svc"),
			slog.Any("error", err))
		return
	}

	granted, err := s.badges.GetGrantedIDs(ctx, userID)
	if err != nil {
		slog.Error("Failed to load granted badges",
			slog.String("type", "svc"),
			slog.Int64("user_id", userID),
			slog.Any("error", err))
		return
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil || user == nil {
		slog.Error("Failed to load user for badge evaluation",
			slog.String("type", "svc"),
			slog.Int64("user_id", userID),
			slog.Any("error", err))
		return
	}

	for _, def := range defs {
		if granted[def.BadgeID] {
			continue
		}

		ok, err := s.evaluate(ctx, user, def, actionType, contextData)
		if err != nil {
			// Fault isolation: one badge's bad condition must not abort
			// the rest.
			slog.Error("Badge evaluation failed",
				slog.String("type", "svc"),
				slog.String("badge_id", def.BadgeID),
				slog.Int64("user_id", userID),
				slog.Any("error", err))
			continue
		}
		if !ok {
			continue
		}

		inserted, err := s.badges.Grant(ctx, &models.UserBadge{
			UserID:    userID,
			BadgeID:   def.BadgeID,
			EarnedAt:  s.clock.Now(),
			Displayed: true,
		})
		if err != nil {
			slog.Error("Failed to grant badge",
				slog.String("type", "svc"),
				slog.String("badge_id", def.BadgeID),
				slog.Int64("user_id", userID),
				slog.Any("error", err))
			continue
		}
		if inserted {
			slog.Info("Badge earned",
				slog.String("type", "svc"),
				slog.Int64("user_id", userID),
				slog.String("badge_id", def.BadgeID),
				slog.String("badge_name", def.Name))
		}
	}
}

// evaluate checks one unlock condition against current facts. The kind
// set is closed: anything unrecognized fails closed without error.
func (s *BadgeService) evaluate(ctx context.Context, user *models.User, def *models.BadgeDefinition, actionType string, contextData map[string]interface{}) (bool, error) {
	cond := def.Condition

	switch cond.Kind {
	case models.ConditionFirstLogin:
		return actionType == models.ActionLogin, nil

	case models.ConditionFirstPost:
		return actionType == models.ActionPost && user.PostCount >= 1, nil

	case models.ConditionConsecutiveCheckIn:
		if cond.Days <= 0 {
			return false, fmt.Errorf("badge %s: non-positive days in condition", def.BadgeID)
		}
		streak, err := s.currentStreak(ctx, user.ID, contextData)
		if err != nil {
			return false, err
		}
		return streak >= cond.Days, nil

	case models.ConditionPostLikes:
		if cond.Count <= 0 {
			return false, fmt.Errorf("badge %s: non-positive count in condition", def.BadgeID)
		}
		return user.MaxPostLikes >= cond.Count, nil

	case models.ConditionCommentCount:
		if cond.Count <= 0 {
			return false, fmt.Errorf("badge %s: non-positive count in condition", def.BadgeID)
		}
		return user.CommentCount >= cond.Count, nil

	case models.ConditionFavoriteCount:
		if cond.Count <= 0 {
			return false, fmt.Errorf("badge %s: non-positive count in condition", def.BadgeID)
		}
		return user.FavoriteCount >= cond.Count, nil

	case models.ConditionFollowingCount:
		if cond.Count <= 0 {
			return false, fmt.Errorf("badge %s: non-positive count in condition", def.BadgeID)
		}
		return user.FollowingCount >= cond.Count, nil

	case models.ConditionCommunityCreated:
		return user.CommunitiesCreated >= 1, nil

	case models.ConditionRegistrationAge:
		if cond.Days <= 0 {
			return false, fmt.Errorf("badge %s: non-positive days in condition", def.BadgeID)
		}
		age := s.clock.Now().Sub(user.JoinedAt)
		return age >= time.Duration(cond.Days)*24*time.Hour, nil

	case models.ConditionLevelReached:
		if cond.Level <= 0 {
			return false, fmt.Errorf("badge %s: non-positive level in condition", def.BadgeID)
		}
		tiers, err := s.tiers.Tiers(ctx)
		if err != nil {
			return false, err
		}
		return levelFor(tiers, user.Experience) >= cond.Level, nil

	default:
		return false, nil
	}
}

func (s *BadgeService) currentStreak(ctx context.Context, userID int64, contextData map[string]interface{}) (int, error) {
	if v, ok := contextData["streak"].(int); ok {
		return v, nil
	}

	latest, err := s.checkins.GetLatest(ctx, userID)
	if err != nil {
		return 0, err
	}
	if latest == nil {
		return 0, nil
	}
	return latest.ConsecutiveDays, nil
}

// GrantBadge awards a badge directly, bypassing condition evaluation.
// Used for task badge rewards and administrative grants. Idempotent.
func (s *BadgeService) GrantBadge(ctx context.Context, userID int64, badgeID string) error {
	def, err := s.badges.GetDefinition(ctx, badgeID)
	if err != nil {
		return err
	}
	if def == nil {
		return fmt.Errorf("badge %s: %w", badgeID, ErrBadgeNotFound)
	}

	inserted, err := s.badges.Grant(ctx, &models.UserBadge{
		UserID:    userID,
		BadgeID:   badgeID,
		EarnedAt:  s.clock.Now(),
		Displayed: true,
	})
	if err != nil {
		return err
	}
	if inserted {
		slog.Info("Badge awarded",
			slog.String("type", "svc"),
			slog.Int64("user_id", userID),
			slog.String("badge_id", badgeID))
	}

	return nil
}

// GetBadges returns the user's earned badges, newest first.
func (s *BadgeService) GetBadges(ctx context.Context, userID int64) ([]*BadgeInfo, error) {
	grants, err := s.badges.GetUserBadges(ctx, userID)
	if err != nil {
		return nil, err
	}

	infos := make([]*BadgeInfo, 0, len(grants))
	for _, g := range grants {
		info := &BadgeInfo{
			BadgeID:   g.BadgeID,
			EarnedAt:  g.EarnedAt,
			Displayed: g.Displayed,
		}
		if g.Definition != nil {
			info.Name = g.Definition.Name
			info.Description = g.Definition.Description
			info.Icon = g.Definition.Icon
			info.Category = g.Definition.Category
			info.Rarity = g.Definition.Rarity
		}
		infos = append(infos, info)
	}

	return infos, nil
}

// SetDisplayed toggles whether a grant shows on the user's profile.
func (s *BadgeService) SetDisplayed(ctx context.Context, userID int64, badgeID string, displayed bool) error {
	updated, err := s.badges.SetDisplayed(ctx, userID, badgeID, displayed)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("badge %s for user %d: %w", badgeID, userID, ErrBadgeNotFound)
	}
	return nil
}

// BadgeInfo is one earned badge joined with its definition.
type BadgeInfo struct {
	BadgeID     string
	Name        string
	Description string
	Icon        string
	Category    int
	Rarity      int
	EarnedAt    time.Time
	Displayed   bool
}
