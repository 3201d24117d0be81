package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/treehole/treehole-go/treehole"
	"github.com/treehole/treehole-go/treehole/cache"
	"github.com/treehole/treehole-go/treehole/database/repositories"
)

// rankCache is the cached-result surface of the leaderboard cache.
type rankCache interface {
	GetTop(ctx context.Context, limit int) ([]cache.LeaderboardEntry, error)
	SetTop(ctx context.Context, limit int, entries []cache.LeaderboardEntry) error
	GetRank(ctx context.Context, userID int64) (*cache.RankInfo, error)
	SetRank(ctx context.Context, userID int64, info cache.RankInfo) error
	Invalidate(ctx context.Context) error
}

// RankService computes ranks and leaderboard pages from the experience
// aggregate. Rank is the count of users with strictly more experience
// plus one, so tied users share a rank. Results are cached with a short
// TTL; reads tolerate that staleness.
type RankService struct {
	users repositories.UserRepository
	tiers TierSource
	cache rankCache
	cfg   treehole.ProgressionConfig
}

func NewRankService(users repositories.UserRepository, tiers TierSource, rc rankCache, cfg treehole.ProgressionConfig) *RankService {
	return &RankService{
		users: users,
		tiers: tiers,
		cache: rc,
		cfg:   cfg,
	}
}

// GetRank returns the user's rank, the total user count, and the
// percentile of users at or below their rank, rounded to one decimal.
func (s *RankService) GetRank(ctx context.Context, userID int64) (*RankResult, error) {
	if s.cache != nil {
		cached, err := s.cache.GetRank(ctx, userID)
		if err == nil {
			return &RankResult{
				Rank:       cached.Rank,
				TotalUsers: cached.TotalUsers,
				Percentile: cached.Percentile,
			}, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.Warn("Rank cache read failed",
				slog.String("type", "cache"),
				slog.Int64("user_id", userID),
				slog.Any("error", err))
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
	}

	higher, err := s.users.CountWithMoreExperience(ctx, user.Experience)
	if err != nil {
		return nil, err
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}

	rank := higher + 1
	percentile := 0.0
	if total > 0 {
		percentile = float64(total-rank+1) / float64(total) * 100
		percentile = math.Round(percentile*10) / 10
	}

	result := &RankResult{
		Rank:       rank,
		TotalUsers: total,
		Percentile: percentile,
	}

	if s.cache != nil {
		if err := s.cache.SetRank(ctx, userID, cache.RankInfo{
			Rank:       result.Rank,
			TotalUsers: result.TotalUsers,
			Percentile: result.Percentile,
		}); err != nil {
			slog.Warn("Rank cache write failed",
				slog.String("type", "cache"),
				slog.Int64("user_id", userID),
				slog.Any("error", err))
		}
	}

	return result, nil
}

// GetLeaderboard returns up to limit users ordered by experience
// descending, ties broken by ascending user id.
func (s *RankService) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	if limit < 1 {
		limit = s.cfg.LeaderboardLimit
	}
	if limit < 1 {
		limit = 50
	}

	if s.cache != nil {
		cached, err := s.cache.GetTop(ctx, limit)
		if err == nil {
			return rowsFrom(cached), nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.Warn("Leaderboard cache read failed",
				slog.String("type", "cache"),
				slog.Any("error", err))
		}
	}

	users, err := s.users.GetTopByExperience(ctx, limit)
	if err != nil {
		return nil, err
	}

	tiers, err := s.tiers.Tiers(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]cache.LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, cache.LeaderboardEntry{
			Rank:       i + 1,
			UserID:     u.ID,
			Username:   u.Username,
			Experience: u.Experience,
			Level:      levelFor(tiers, u.Experience),
		})
	}

	if s.cache != nil {
		if err := s.cache.SetTop(ctx, limit, entries); err != nil {
			slog.Warn("Leaderboard cache write failed",
				slog.String("type", "cache"),
				slog.Any("error", err))
		}
	}

	return rowsFrom(entries), nil
}

// InvalidateCache drops every cached leaderboard page and rank lookup.
// Called after administrative experience adjustments.
func (s *RankService) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

func rowsFrom(entries []cache.LeaderboardEntry) []LeaderboardRow {
	rows := make([]LeaderboardRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, LeaderboardRow{
			Rank:       e.Rank,
			UserID:     e.UserID,
			Username:   e.Username,
			Experience: e.Experience,
			Level:      e.Level,
		})
	}
	return rows
}

// RankResult is a single user's standing.
type RankResult struct {
	Rank       int
	TotalUsers int
	Percentile float64
}

// LeaderboardRow is one row of the experience leaderboard.
type LeaderboardRow struct {
	Rank       int
	UserID     int64
	Username   string
	Experience int64
	Level      int
}
