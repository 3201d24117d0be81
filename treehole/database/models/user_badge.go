package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UserBadge is a grant row. Unique per (user, badge): a badge is earned at
// most once ever, no matter how often its condition re-fires.
type UserBadge struct {
	bun.BaseModel `bun:"table:user_badges,alias:ub"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    int64     `bun:"user_id,notnull"`
	BadgeID   string    `bun:"badge_id,notnull"`
	EarnedAt  time.Time `bun:"earned_at,notnull"`
	Displayed bool      `bun:"displayed,notnull,default:true"`

	Definition *BadgeDefinition `bun:"rel:has-one,join:badge_id=badge_id"`
}
