package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treehole/treehole-go/treehole/database/models"
)

func TestCheckIn_FirstDay(t *testing.T) {
	e := newTestEnv()
	e.addUser(1, 0)
	ctx := context.Background()

	res, err := e.checkin.CheckIn(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ConsecutiveDays)
	assert.Equal(t, int64(5), res.ExperienceGained)
	assert.False(t, res.BonusApplied)

	user, _ := e.users.GetByID(ctx, 1)
	assert.Equal(t, int64(5), user.Experience)
}

func TestCheckIn_SameDayIsRejected(t *testing.T) {
	e := newTestEnv()
	e.addUser(1, 0)
	ctx := context.Background()

	_, err := e.checkin.CheckIn(ctx, 1)
	require.NoError(t, err)

	// The repeat carries the existing record so callers can still render
	// the streak, but the reward is not paid again.
	res, err := e.checkin.CheckIn(ctx, 1)
	require.ErrorIs(t, err, ErrAlreadyCheckedIn)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.ConsecutiveDays)

	user, _ := e.users.GetByID(ctx, 1)
	assert.Equal(t, int64(5), user.Experience)
}

func TestCheckIn_ConsecutiveDaysExtendStreak(t *testing.T) {
	e := newTestEnv()
	e.addUser(1, 0)
	ctx := context.Background()

	res, err := e.checkin.CheckIn(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ConsecutiveDays)

	e.clk.advance(24 * time.Hour)
	res, err = e.checkin.CheckIn(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ConsecutiveDays)

	e.clk.advance(24 * time.Hour)
	res, err = e.checkin.CheckIn(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ConsecutiveDays)
}

func TestCheckIn_GapResetsStreak(t *testing.T) {
	e := newTestEnv()
	e.addUser(1, 0)
	ctx := context.Background()

	_, err := e.checkin.CheckIn(ctx, 1)
	require.NoError(t, err)
	e.clk.advance(24 * time.Hour)
	_, err = e.checkin.CheckIn(ctx, 1)
	require.NoError(t, err)

	// Skip a day.
	e.clk.advance(48 * time.Hour)
	res, err := e.checkin.CheckIn(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ConsecutiveDays)
}

func TestCheckIn_StreakBonus(t *testing.T) {
	tests := []struct {
		name       string
		streak     int
		wantReward int64
		wantBonus  bool
	}{
		{name: "below minimum", streak: 6, wantReward: 5, wantBonus: false},
		{name: "one week", streak: 7, wantReward: 10, wantBonus: true},
		{name: "mid second week", streak: 10, wantReward: 10, wantBonus: true},
		{name: "two weeks", streak: 14, wantReward: 15, wantBonus: true},
		{name: "three weeks", streak: 21, wantReward: 20, wantBonus: true},
		{name: "four weeks hits cap", streak: 28, wantReward: 25, wantBonus: true},
		{name: "beyond cap", streak: 70, wantReward: 25, wantBonus: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv()
			e.addUser(1, 0)
			ctx := context.Background()

			// Seed yesterday's record so today continues the streak.
			yesterday := e.clk.Now().Add(-24 * time.Hour)
			_, err := e.checkins.Create(ctx, &models.CheckInRecord{
				UserID:          1,
				CheckInDate:     yesterday.Format("2006-01-02"),
				ConsecutiveDays: tt.streak - 1,
			})
			require.NoError(t, err)

			res, err := e.checkin.CheckIn(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.streak, res.ConsecutiveDays)
			assert.Equal(t, tt.wantReward, res.ExperienceGained)
			assert.Equal(t, tt.wantBonus, res.BonusApplied)
		})
	}
}

func TestCheckIn_AdvancesCheckInTask(t *testing.T) {
	e := newTestEnv()
	e.addUser(1, 0)
	ctx := context.Background()

	require.NoError(t, e.taskRepo.UpsertDefinition(ctx, &models.TaskDefinition{
		TaskID:    "daily_checkin",
		Name:      "Daily check-in",
		Cycle:     models.CycleDaily,
		Condition: models.TaskCondition{ActionType: models.ActionCheckIn, Count: 1},
		ExpReward: 5,
		Active:    true,
	}))

	_, err := e.checkin.CheckIn(ctx, 1)
	require.NoError(t, err)

	// Check-in base reward plus task completion reward.
	user, _ := e.users.GetByID(ctx, 1)
	assert.Equal(t, int64(10), user.Experience)

	infos, err := e.tasks.GetTasks(ctx, 1)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.True(t, infos[0].Completed)
}

func TestCheckIn_StreakBadge(t *testing.T) {
	e := newTestEnv()
	e.addUser(1, 0)
	ctx := context.Background()

	require.NoError(t, e.badgeRepo.UpsertDefinition(ctx, &models.BadgeDefinition{
		BadgeID:   "week_streak",
		Name:      "Week streak",
		Condition: models.UnlockCondition{Kind: models.ConditionConsecutiveCheckIn, Days: 3},
		Active:    true,
	}))

	for day := 0; day < 3; day++ {
		if day > 0 {
			e.clk.advance(24 * time.Hour)
		}
		_, err := e.checkin.CheckIn(ctx, 1)
		require.NoError(t, err)
	}

	granted, err := e.badgeRepo.GetGrantedIDs(ctx, 1)
	require.NoError(t, err)
	assert.True(t, granted["week_streak"])
}

func TestGetCheckInHistory(t *testing.T) {
	e := newTestEnv()
	e.addUser(1, 0)
	ctx := context.Background()

	for day := 0; day < 3; day++ {
		if day > 0 {
			e.clk.advance(24 * time.Hour)
		}
		_, err := e.checkin.CheckIn(ctx, 1)
		require.NoError(t, err)
	}

	history, err := e.checkin.GetCheckInHistory(ctx, 1, 30)
	require.NoError(t, err)
	assert.Len(t, history.Records, 3)
	assert.True(t, history.CheckedInToday)
	assert.Equal(t, 3, history.CurrentStreak)

	// Newest first.
	assert.Equal(t, 3, history.Records[0].ConsecutiveDays)

	e.clk.advance(24 * time.Hour)
	history, err = e.checkin.GetCheckInHistory(ctx, 1, 30)
	require.NoError(t, err)
	assert.False(t, history.CheckedInToday)
}
