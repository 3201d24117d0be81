package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRank(t *testing.T) {
	e := newTestEnv()
	e.addUser(1, 500)
	e.addUser(2, 1200)
	e.addUser(3, 1200)
	e.addUser(4, 80)
	ctx := context.Background()

	tests := []struct {
		name           string
		userID         int64
		wantRank       int
		wantPercentile float64
	}{
		// Tied users share the rank above the gap.
		{name: "tied leader a", userID: 2, wantRank: 1, wantPercentile: 100},
		{name: "tied leader b", userID: 3, wantRank: 1, wantPercentile: 100},
		{name: "third", userID: 1, wantRank: 3, wantPercentile: 50},
		{name: "last", userID: 4, wantRank: 4, wantPercentile: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.rank.GetRank(ctx, tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRank, res.Rank)
			assert.Equal(t, 4, res.TotalUsers)
			assert.InDelta(t, tt.wantPercentile, res.Percentile, 0.001)
		})
	}
}

func TestGetRank_PercentileRounding(t *testing.T) {
	e := newTestEnv()
	for i := int64(1); i <= 3; i++ {
		e.addUser(i, i*100)
	}

	// Rank 2 of 3: (3-2+1)/3*100 = 66.666... rounds to 66.7.
	res, err := e.rank.GetRank(context.Background(), 2)
	require.NoError(t, err)
	assert.InDelta(t, 66.7, res.Percentile, 0.001)
}

func TestGetRank_UnknownUser(t *testing.T) {
	e := newTestEnv()

	_, err := e.rank.GetRank(context.Background(), 99)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetRank_ServesCachedResult(t *testing.T) {
	e := newTestEnv()
	e.addUser(1, 500)
	ctx := context.Background()

	res, err := e.rank.GetRank(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rank)

	// A new high scorer does not change the cached answer until the TTL
	// or an invalidation.
	e.addUser(2, 9000)
	res, err = e.rank.GetRank(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rank)

	require.NoError(t, e.rank.InvalidateCache(ctx))
	res, err = e.rank.GetRank(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rank)
}

func TestGetLeaderboard(t *testing.T) {
	e := newTestEnv()
	e.addUser(1, 500)
	e.addUser(2, 1200)
	e.addUser(3, 1200)
	e.addUser(4, 80)
	ctx := context.Background()

	rows, err := e.rank.GetLeaderboard(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Descending experience; the tie between users 2 and 3 breaks by
	// ascending user id.
	assert.Equal(t, int64(2), rows[0].UserID)
	assert.Equal(t, int64(3), rows[1].UserID)
	assert.Equal(t, int64(1), rows[2].UserID)

	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, 2, rows[1].Rank)
	assert.Equal(t, 3, rows[2].Rank)

	// Levels come from the tier table: 1200 exp is tier 5, 500 is tier 3.
	assert.Equal(t, 5, rows[0].Level)
	assert.Equal(t, 3, rows[2].Level)
}

func TestGetLeaderboard_FewerUsersThanLimit(t *testing.T) {
	e := newTestEnv()
	e.addUser(1, 100)

	rows, err := e.rank.GetLeaderboard(context.Background(), 50)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestGetLeaderboard_DefaultLimit(t *testing.T) {
	e := newTestEnv()
	for i := int64(1); i <= 60; i++ {
		e.addUser(i, i)
	}

	rows, err := e.rank.GetLeaderboard(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, rows, 50)
}
