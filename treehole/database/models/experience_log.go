package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ExperienceLog is an append-only ledger entry. Rows are never updated or
// deleted; the sum of a user's deltas equals the experience aggregate on
// the users row. DedupKey rejects infrastructure-level replays of the same
// logical grant.
type ExperienceLog struct {
	bun.BaseModel `bun:"table:user_experience_logs,alias:xl"`

	ID          int64     `bun:"id,pk,autoincrement"`
	UserID      int64     `bun:"user_id,notnull"`
	Delta       int64     `bun:"delta,notnull"`
	ActionType  string    `bun:"action_type,notnull"`
	Description string    `bun:"description"`
	RelatedID   *int64    `bun:"related_id"`
	DedupKey    string    `bun:"dedup_key,notnull,unique"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

// Action type tags recorded in the ledger.
const (
	ActionLogin        = "LOGIN"
	ActionPost         = "POST"
	ActionComment      = "COMMENT"
	ActionLikeReceived = "LIKE_RECEIVED"
	ActionFavorite     = "FAVORITE"
	ActionFollow       = "FOLLOW"
	ActionCreateBar    = "CREATE_BAR"
	ActionCheckIn      = "CHECK_IN"
	ActionTaskComplete = "TASK_COMPLETE"
	ActionLevelUp      = "LEVEL_UP"
	ActionAdmin        = "ADMIN"
)
