package models

import (
	"time"

	"github.com/uptrace/bun"
)

// LevelTier is one row of the level table. Tiers are contiguous and
// non-overlapping: every non-negative experience total falls into exactly
// one tier. MaxExp is inclusive; the top tier uses TopTierMaxExp.
type LevelTier struct {
	bun.BaseModel `bun:"table:level_tiers,alias:lt"`

	Level             int       `bun:"level,pk"`
	Name              string    `bun:"name,notnull"`
	MinExp            int64     `bun:"min_exp,notnull"`
	MaxExp            int64     `bun:"max_exp,notnull"`
	Icon              string    `bun:"icon"`
	Color             string    `bun:"color,notnull,default:'#409eff'"`
	DailyPostLimit    int       `bun:"daily_post_limit,notnull,default:10"`
	DailyCommentLimit int       `bun:"daily_comment_limit,notnull,default:50"`
	CanCreateBar      bool      `bun:"can_create_bar,notnull,default:false"`
	CanPinPost        bool      `bun:"can_pin_post,notnull,default:false"`
	StorageQuota      int64     `bun:"storage_quota,notnull,default:104857600"`
	CreatedAt         time.Time `bun:"created_at,notnull"`
	UpdatedAt         time.Time `bun:"updated_at,notnull"`
}

// TopTierMaxExp marks an unbounded top tier.
const TopTierMaxExp int64 = 1<<62 - 1

// Contains reports whether exp falls inside this tier's range.
func (t *LevelTier) Contains(exp int64) bool {
	return exp >= t.MinExp && exp <= t.MaxExp
}
