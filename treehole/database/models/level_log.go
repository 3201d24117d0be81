package models

import (
	"time"

	"github.com/uptrace/bun"
)

// LevelLog records a tier crossing, written whenever AddExperience moves a
// user into a higher tier.
type LevelLog struct {
	bun.BaseModel `bun:"table:user_level_logs,alias:ll"`

	ID         int64     `bun:"id,pk,autoincrement"`
	UserID     int64     `bun:"user_id,notnull"`
	OldLevel   int       `bun:"old_level,notnull"`
	NewLevel   int       `bun:"new_level,notnull"`
	Experience int64     `bun:"experience,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}
