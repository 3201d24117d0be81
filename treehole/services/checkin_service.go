package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/treehole/treehole-go/treehole"
	"github.com/treehole/treehole-go/treehole/clock"
	"github.com/treehole/treehole-go/treehole/database/models"
	"github.com/treehole/treehole-go/treehole/database/repositories"
	"github.com/treehole/treehole-go/treehole/userlock"
)

// CheckInService handles the daily check-in: one record per UTC calendar
// day, a streak counter that resets after any gap, and a base reward plus
// a capped streak bonus.
type CheckInService struct {
	checkins repositories.CheckInRepository
	exp      expGranter
	tasks    actionReporter
	badges   BadgeTrigger
	locks    *userlock.Manager
	clock    clock.Clock
	cfg      treehole.ProgressionConfig
}

func NewCheckInService(
	checkins repositories.CheckInRepository,
	exp expGranter,
	tasks actionReporter,
	badges BadgeTrigger,
	locks *userlock.Manager,
	clk clock.Clock,
	cfg treehole.ProgressionConfig,
) *CheckInService {
	return &CheckInService{
		checkins: checkins,
		exp:      exp,
		tasks:    tasks,
		badges:   badges,
		locks:    locks,
		clock:    clk,
		cfg:      cfg,
	}
}

// CheckIn records today's check-in. A repeat on the same UTC day returns
// ErrAlreadyCheckedIn along with the existing record's result so callers
// can still render streak and reward.
func (s *CheckInService) CheckIn(ctx context.Context, userID int64) (*CheckInResult, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	now := s.clock.Now()
	today := clock.DayKey(now)

	existing, err := s.checkins.GetByDate(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return resultFrom(existing), fmt.Errorf("user %d on %s: %w", userID, today, ErrAlreadyCheckedIn)
	}

	streak := 1
	yesterday, err := s.checkins.GetByDate(ctx, userID, clock.PrevDayKey(now))
	if err != nil {
		return nil, err
	}
	if yesterday != nil {
		streak = yesterday.ConsecutiveDays + 1
	}

	bonus := s.streakBonus(streak)
	reward := s.cfg.CheckInBaseExp + bonus

	record := &models.CheckInRecord{
		UserID:           userID,
		CheckInDate:      today,
		ConsecutiveDays:  streak,
		ExperienceGained: reward,
		BonusApplied:     bonus > 0,
	}
	inserted, err := s.checkins.Create(ctx, record)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Lost a same-day race; the winner already paid the reward.
		return nil, fmt.Errorf("user %d on %s: %w", userID, today, ErrAlreadyCheckedIn)
	}

	desc := fmt.Sprintf("Daily check-in, day %d", streak)
	if _, err := s.exp.addExperienceLocked(ctx, userID, reward, models.ActionCheckIn, desc, nil); err != nil {
		slog.Error("Failed to pay check-in reward",
			slog.String("type", "svc"),
			slog.Int64("user_id", userID),
			slog.String("day", today),
			slog.Any("error", err))
		return nil, err
	}

	slog.Info("User checked in",
		slog.String("type", "svc"),
		slog.Int64("user_id", userID),
		slog.String("day", today),
		slog.Int("streak", streak),
		slog.Int64("reward", reward))

	if s.tasks != nil {
		s.tasks.onActionLocked(ctx, userID, models.ActionCheckIn, 1)
	}
	if s.badges != nil {
		s.badges.Trigger(ctx, userID, models.ActionCheckIn, map[string]interface{}{
			"streak": streak,
		})
	}

	return resultFrom(record), nil
}

// streakBonus grows by one step per full week of streak, capped, and only
// kicks in once the streak reaches the minimum.
func (s *CheckInService) streakBonus(streak int) int64 {
	if streak < s.cfg.CheckInBonusMinStreak {
		return 0
	}
	bonus := int64(streak/7) * s.cfg.CheckInBonusStep
	if bonus > s.cfg.CheckInBonusCap {
		bonus = s.cfg.CheckInBonusCap
	}
	return bonus
}

// GetCheckInHistory returns the user's most recent check-ins, newest
// first, plus whether today's is already done.
func (s *CheckInService) GetCheckInHistory(ctx context.Context, userID int64, days int) (*CheckInHistory, error) {
	if days < 1 || days > 365 {
		days = 30
	}

	records, err := s.checkins.GetRecent(ctx, userID, days)
	if err != nil {
		return nil, err
	}

	history := &CheckInHistory{Records: records}
	today := clock.DayKey(s.clock.Now())
	if len(records) > 0 && records[0].CheckInDate == today {
		history.CheckedInToday = true
		history.CurrentStreak = records[0].ConsecutiveDays
	}

	return history, nil
}

func resultFrom(record *models.CheckInRecord) *CheckInResult {
	return &CheckInResult{
		CheckInDate:      record.CheckInDate,
		ConsecutiveDays:  record.ConsecutiveDays,
		ExperienceGained: record.ExperienceGained,
		BonusApplied:     record.BonusApplied,
	}
}

// CheckInResult reports one day's check-in outcome.
type CheckInResult struct {
	CheckInDate      string
	ConsecutiveDays  int
	ExperienceGained int64
	BonusApplied     bool
}

// CheckInHistory is the recent check-in view.
type CheckInHistory struct {
	Records        []*models.CheckInRecord
	CheckedInToday bool
	CurrentStreak  int
}
