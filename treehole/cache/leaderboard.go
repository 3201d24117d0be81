package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when no cached value exists for a key.
var ErrCacheMiss = errors.New("cache miss")

const (
	keyLeaderboardTop = "leaderboard:top:"
	keyRank           = "leaderboard:rank:"
)

// LeaderboardEntry is the cached shape of one leaderboard row.
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	Experience int64  `json:"experience"`
	Level      int    `json:"level"`
}

// RankInfo is the cached shape of a single user's rank lookup.
type RankInfo struct {
	Rank       int     `json:"rank"`
	TotalUsers int     `json:"total_users"`
	Percentile float64 `json:"percentile"`
}

// LeaderboardCache stores computed leaderboard pages and per-user ranks
// in Redis with a short TTL. Rank reads tolerate staleness; the TTL
// bounds it and Invalidate cuts it short after administrative changes.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &LeaderboardCache{client: client, ttl: ttl}
}

func (c *LeaderboardCache) GetTop(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("%s%d", keyLeaderboardTop, limit)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var entries []LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

func (c *LeaderboardCache) SetTop(ctx context.Context, limit int, entries []LeaderboardEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, fmt.Sprintf("%s%d", keyLeaderboardTop, limit), data, c.ttl).Err()
}

func (c *LeaderboardCache) GetRank(ctx context.Context, userID int64) (*RankInfo, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("%s%d", keyRank, userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var info RankInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}

	return &info, nil
}

func (c *LeaderboardCache) SetRank(ctx context.Context, userID int64, info RankInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, fmt.Sprintf("%s%d", keyRank, userID), data, c.ttl).Err()
}

// Invalidate removes all cached leaderboard pages and rank lookups.
func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	for _, pattern := range []string{keyLeaderboardTop + "*", keyRank + "*"} {
		if err := c.deleteByPattern(ctx, pattern); err != nil {
			return err
		}
	}
	return nil
}

func (c *LeaderboardCache) deleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
