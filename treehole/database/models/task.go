package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TaskDefinition describes a recurring or one-shot task. The condition is
// the action tag that advances it plus the count needed to complete.
type TaskDefinition struct {
	bun.BaseModel `bun:"table:task_definitions,alias:td"`

	ID          int64         `bun:"id,pk,autoincrement"`
	TaskID      string        `bun:"task_id,notnull,unique"`
	Name        string        `bun:"name,notnull"`
	Description string        `bun:"description,notnull"`
	Cycle       string        `bun:"cycle,notnull"`
	Condition   TaskCondition `bun:"condition,type:jsonb"`
	ExpReward   int64         `bun:"exp_reward,notnull,default:0"`
	BadgeReward *string       `bun:"badge_reward"`
	StartsAt    *time.Time    `bun:"starts_at"`
	EndsAt      *time.Time    `bun:"ends_at"`
	Active      bool          `bun:"active,notnull,default:true"`
	CreatedAt   time.Time     `bun:"created_at,notnull"`
	UpdatedAt   time.Time     `bun:"updated_at,notnull"`
}

// TaskCondition names the action that advances the task and the target count.
type TaskCondition struct {
	ActionType string `json:"action_type"`
	Count      int    `json:"count"`
}

// Task cycles. Daily and weekly tasks reset per cycle key; one-time and
// time-limited tasks keep a single progress row for their whole lifetime.
const (
	CycleDaily       = "daily"
	CycleWeekly      = "weekly"
	CycleOneTime     = "one_time"
	CycleTimeLimited = "time_limited"
)

// InWindow reports whether the task is active at the given instant.
func (t *TaskDefinition) InWindow(now time.Time) bool {
	if !t.Active {
		return false
	}
	if t.StartsAt != nil && now.Before(*t.StartsAt) {
		return false
	}
	if t.EndsAt != nil && now.After(*t.EndsAt) {
		return false
	}
	return true
}
