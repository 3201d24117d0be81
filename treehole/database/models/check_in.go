package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CheckInRecord stores one check-in per user per UTC calendar day.
// CheckInDate is the day key in "2006-01-02" form.
type CheckInRecord struct {
	bun.BaseModel `bun:"table:user_check_ins,alias:ci"`

	ID               int64     `bun:"id,pk,autoincrement"`
	UserID           int64     `bun:"user_id,notnull"`
	CheckInDate      string    `bun:"check_in_date,notnull"`
	ConsecutiveDays  int       `bun:"consecutive_days,notnull,default:1"`
	ExperienceGained int64     `bun:"experience_gained,notnull,default:5"`
	BonusApplied     bool      `bun:"bonus_applied,notnull,default:false"`
	CreatedAt        time.Time `bun:"created_at,notnull"`
}
