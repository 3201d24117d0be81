package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/treehole/treehole-go/treehole/database/models"
)

// InitializeLevelData upserts the ten level tiers. Ranges are contiguous:
// each tier's min is the previous tier's max + 1, and the top tier is
// unbounded.
func (db *DB) InitializeLevelData(ctx context.Context) error {
	type tierDef struct {
		Level        int
		Name         string
		MinExp       int64
		MaxExp       int64
		Icon         string
		PostLimit    int
		CommentLimit int
		CanCreateBar bool
		CanPinPost   bool
		StorageQuota int64
	}

	const (
		baseQuota = int64(104857600)
		bigQuota  = int64(524288000)
	)

	tiers := []tierDef{
		{1, "Sapling", 0, 99, "🌱", 10, 50, false, false, baseQuota},
		{2, "Sprout", 100, 299, "🌿", 10, 50, false, false, baseQuota},
		{3, "Seedling", 300, 599, "🍀", 15, 60, false, false, baseQuota},
		{4, "Young Tree", 600, 999, "🌳", 15, 60, false, false, baseQuota},
		{5, "Grown Tree", 1000, 1499, "🌲", 20, 80, true, false, baseQuota},
		{6, "Old Tree", 1500, 2099, "🎋", 20, 80, true, false, bigQuota},
		{7, "Ancient Tree", 2100, 2799, "🎄", 30, 100, true, true, bigQuota},
		{8, "Forest Guard", 2800, 3599, "🏞️", 30, 100, true, true, bigQuota},
		{9, "Forest Sage", 3600, 4499, "⛰️", 50, 150, true, true, bigQuota},
		{10, "Tree Spirit", 4500, models.TopTierMaxExp, "✨", 50, 150, true, true, bigQuota},
	}

	insertSQL := `
        INSERT INTO level_tiers (
            level, name, min_exp, max_exp, icon, color,
            daily_post_limit, daily_comment_limit, can_create_bar, can_pin_post, storage_quota,
            created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, '#409eff',
            $6, $7, $8, $9, $10,
            CURRENT_TIMESTAMP, CURRENT_TIMESTAMP
        ) ON CONFLICT (level) DO UPDATE SET
            name = EXCLUDED.name,
            min_exp = EXCLUDED.min_exp,
            max_exp = EXCLUDED.max_exp,
            icon = EXCLUDED.icon,
            daily_post_limit = EXCLUDED.daily_post_limit,
            daily_comment_limit = EXCLUDED.daily_comment_limit,
            can_create_bar = EXCLUDED.can_create_bar,
            can_pin_post = EXCLUDED.can_pin_post,
            storage_quota = EXCLUDED.storage_quota,
            updated_at = CURRENT_TIMESTAMP;
    `

	for _, t := range tiers {
		if _, err := db.ExecWithLog(ctx, insertSQL,
			t.Level, t.Name, t.MinExp, t.MaxExp, t.Icon,
			t.PostLimit, t.CommentLimit, t.CanCreateBar, t.CanPinPost, t.StorageQuota,
		); err != nil {
			return fmt.Errorf("failed to upsert level tier %d: %w", t.Level, err)
		}
	}

	slog.Info("Level tiers initialized/updated successfully", slog.Int("count", len(tiers)))
	return nil
}

// InitializeBadgeData upserts the starter badge definitions. Every
// condition kind has at least one badge so a misconfigured kind shows up
// early in staging.
func (db *DB) InitializeBadgeData(ctx context.Context) error {
	type badgeDef struct {
		ID          string
		Name        string
		Description string
		Icon        string
		Category    int
		Rarity      int
		Condition   models.UnlockCondition
	}

	badges := []badgeDef{
		{"first_login", "Hello, Hole", "Log in for the first time", "👋",
			models.BadgeCategoryActivity, models.BadgeRarityCommon,
			models.UnlockCondition{Kind: models.ConditionFirstLogin}},
		{"first_post", "First Words", "Publish your first post", "📝",
			models.BadgeCategoryContent, models.BadgeRarityCommon,
			models.UnlockCondition{Kind: models.ConditionFirstPost}},
		{"week_streak", "Regular Visitor", "Check in 7 days in a row", "📅",
			models.BadgeCategoryActivity, models.BadgeRarityRare,
			models.UnlockCondition{Kind: models.ConditionConsecutiveCheckIn, Days: 7}},
		{"month_streak", "Daily Devotee", "Check in 30 days in a row", "🗓️",
			models.BadgeCategoryActivity, models.BadgeRarityEpic,
			models.UnlockCondition{Kind: models.ConditionConsecutiveCheckIn, Days: 30}},
		{"popular_post", "Crowd Pleaser", "Have a post reach 10 likes", "❤️",
			models.BadgeCategoryContent, models.BadgeRarityRare,
			models.UnlockCondition{Kind: models.ConditionPostLikes, Count: 10}},
		{"viral_post", "Talk of the Hole", "Have a post reach 100 likes", "🔥",
			models.BadgeCategoryContent, models.BadgeRarityLegendary,
			models.UnlockCondition{Kind: models.ConditionPostLikes, Count: 100}},
		{"conversationalist", "Conversationalist", "Write 50 comments", "💬",
			models.BadgeCategorySocial, models.BadgeRarityRare,
			models.UnlockCondition{Kind: models.ConditionCommentCount, Count: 50}},
		{"curator", "Curator", "Favorite 20 posts", "⭐",
			models.BadgeCategorySocial, models.BadgeRarityCommon,
			models.UnlockCondition{Kind: models.ConditionFavoriteCount, Count: 20}},
		{"connector", "Connector", "Follow 10 users", "🤝",
			models.BadgeCategorySocial, models.BadgeRarityCommon,
			models.UnlockCondition{Kind: models.ConditionFollowingCount, Count: 10}},
		{"founder", "Founder", "Create a community", "🏛️",
			models.BadgeCategoryMilestone, models.BadgeRarityEpic,
			models.UnlockCondition{Kind: models.ConditionCommunityCreated}},
		{"one_year", "Annual Ring", "Be a member for a year", "🎂",
			models.BadgeCategoryMilestone, models.BadgeRarityRare,
			models.UnlockCondition{Kind: models.ConditionRegistrationAge, Days: 365}},
		{"level_5", "Halfway Up", "Reach level 5", "🌲",
			models.BadgeCategoryLevel, models.BadgeRarityRare,
			models.UnlockCondition{Kind: models.ConditionLevelReached, Level: 5}},
		{"level_10", "Tree Spirit", "Reach the top level", "✨",
			models.BadgeCategoryLevel, models.BadgeRarityLegendary,
			models.UnlockCondition{Kind: models.ConditionLevelReached, Level: 10}},
	}

	insertSQL := `
        INSERT INTO badge_definitions (
            badge_id, name, description, icon, category, rarity,
            unlock_condition, active, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6,
            $7::jsonb, true, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP
        ) ON CONFLICT (badge_id) DO UPDATE SET
            name = EXCLUDED.name,
            description = EXCLUDED.description,
            icon = EXCLUDED.icon,
            category = EXCLUDED.category,
            rarity = EXCLUDED.rarity,
            unlock_condition = EXCLUDED.unlock_condition,
            updated_at = CURRENT_TIMESTAMP;
    `

	for _, b := range badges {
		condBytes, err := json.Marshal(b.Condition)
		if err != nil {
			return fmt.Errorf("failed to marshal badge condition for %s: %w", b.ID, err)
		}

		if _, err := db.ExecWithLog(ctx, insertSQL,
			b.ID, b.Name, b.Description, b.Icon, b.Category, b.Rarity, string(condBytes),
		); err != nil {
			return fmt.Errorf("failed to upsert badge %s: %w", b.ID, err)
		}
	}

	slog.Info("Badge definitions initialized/updated successfully", slog.Int("count", len(badges)))
	return nil
}

// InitializeTaskData upserts the starter task definitions.
func (db *DB) InitializeTaskData(ctx context.Context) error {
	type taskDef struct {
		ID          string
		Name        string
		Description string
		Cycle       string
		Condition   models.TaskCondition
		ExpReward   int64
		BadgeReward *string
	}

	tasks := []taskDef{
		{"daily_checkin", "Daily Check-In", "Check in once today", models.CycleDaily,
			models.TaskCondition{ActionType: models.ActionCheckIn, Count: 1}, 5, nil},
		{"daily_post", "Daily Voice", "Publish a post today", models.CycleDaily,
			models.TaskCondition{ActionType: models.ActionPost, Count: 1}, 10, nil},
		{"daily_comments", "Daily Chatter", "Write 3 comments today", models.CycleDaily,
			models.TaskCondition{ActionType: models.ActionComment, Count: 3}, 10, nil},
		{"weekly_posts", "Weekly Author", "Publish 5 posts this week", models.CycleWeekly,
			models.TaskCondition{ActionType: models.ActionPost, Count: 5}, 50, nil},
		{"weekly_comments", "Weekly Voice", "Write 15 comments this week", models.CycleWeekly,
			models.TaskCondition{ActionType: models.ActionComment, Count: 15}, 50, nil},
		{"growth_first_follow", "Make a Friend", "Follow your first user", models.CycleOneTime,
			models.TaskCondition{ActionType: models.ActionFollow, Count: 1}, 20, nil},
		{"growth_ten_posts", "Finding Your Voice", "Publish 10 posts", models.CycleOneTime,
			models.TaskCondition{ActionType: models.ActionPost, Count: 10}, 100, nil},
	}

	insertSQL := `
        INSERT INTO task_definitions (
            task_id, name, description, cycle, condition,
            exp_reward, badge_reward, active, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5::jsonb,
            $6, $7, true, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP
        ) ON CONFLICT (task_id) DO UPDATE SET
            name = EXCLUDED.name,
            description = EXCLUDED.description,
            cycle = EXCLUDED.cycle,
            condition = EXCLUDED.condition,
            exp_reward = EXCLUDED.exp_reward,
            badge_reward = EXCLUDED.badge_reward,
            updated_at = CURRENT_TIMESTAMP;
    `

	for _, t := range tasks {
		condBytes, err := json.Marshal(t.Condition)
		if err != nil {
			return fmt.Errorf("failed to marshal task condition for %s: %w", t.ID, err)
		}

		if _, err := db.ExecWithLog(ctx, insertSQL,
			t.ID, t.Name, t.Description, t.Cycle, string(condBytes),
			t.ExpReward, t.BadgeReward,
		); err != nil {
			return fmt.Errorf("failed to upsert task %s: %w", t.ID, err)
		}
	}

	slog.Info("Task definitions initialized/updated successfully", slog.Int("count", len(tasks)))
	return nil
}
