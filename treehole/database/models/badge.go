package models

import (
	"time"

	"github.com/uptrace/bun"
)

// BadgeDefinition is operator-authored configuration. The unlock condition
// is a closed tagged union stored as jsonb; an unrecognized kind never
// grants (fails closed).
type BadgeDefinition struct {
	bun.BaseModel `bun:"table:badge_definitions,alias:bd"`

	ID          int64           `bun:"id,pk,autoincrement"`
	BadgeID     string          `bun:"badge_id,notnull,unique"`
	Name        string          `bun:"name,notnull"`
	Description string          `bun:"description,notnull"`
	Icon        string          `bun:"icon"`
	Category    int             `bun:"category,notnull,default:1"`
	Rarity      int             `bun:"rarity,notnull,default:1"`
	Condition   UnlockCondition `bun:"unlock_condition,type:jsonb"`
	Active      bool            `bun:"active,notnull,default:true"`
	CreatedAt   time.Time       `bun:"created_at,notnull"`
	UpdatedAt   time.Time       `bun:"updated_at,notnull"`
}

// UnlockCondition is the tagged unlock predicate. Kind selects which of the
// parameter fields is meaningful; the rest stay zero.
type UnlockCondition struct {
	Kind  string `json:"kind"`
	Days  int    `json:"days,omitempty"`
	Count int    `json:"count,omitempty"`
	Level int    `json:"level,omitempty"`
}

// Condition kinds. The set is closed: evaluation of any other value
// returns false without error.
const (
	ConditionFirstLogin         = "first_login"
	ConditionFirstPost          = "first_post"
	ConditionConsecutiveCheckIn = "consecutive_check_in"
	ConditionPostLikes          = "post_likes"
	ConditionCommentCount       = "comment_count"
	ConditionFavoriteCount      = "favorite_count"
	ConditionFollowingCount     = "following_count"
	ConditionCommunityCreated   = "community_created"
	ConditionRegistrationAge    = "registration_age"
	ConditionLevelReached       = "level_reached"
)

// Badge categories, mirroring the forum's classification.
const (
	BadgeCategoryActivity  = 1
	BadgeCategoryContent   = 2
	BadgeCategorySocial    = 3
	BadgeCategoryLevel     = 4
	BadgeCategoryMilestone = 5
)

// Badge rarities.
const (
	BadgeRarityCommon    = 1
	BadgeRarityRare      = 2
	BadgeRarityEpic      = 3
	BadgeRarityLegendary = 4
)
