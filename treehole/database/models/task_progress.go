package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TaskProgress is scoped by (user, task, cycle key). A new cycle key starts
// a fresh row; completion is granted at most once per cycle key.
type TaskProgress struct {
	bun.BaseModel `bun:"table:user_task_progress,alias:tp"`

	ID           int64      `bun:"id,pk,autoincrement"`
	UserID       int64      `bun:"user_id,notnull"`
	TaskID       string     `bun:"task_id,notnull"`
	CycleKey     string     `bun:"cycle_key,notnull"`
	CurrentCount int        `bun:"current_count,notnull,default:0"`
	TargetCount  int        `bun:"target_count,notnull"`
	Completed    bool       `bun:"completed,notnull,default:false"`
	CompletedAt  *time.Time `bun:"completed_at"`
	CreatedAt    time.Time  `bun:"created_at,notnull"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull"`

	Definition *TaskDefinition `bun:"rel:has-one,join:task_id=task_id"`
}

// ProgressPercentage clamps current/target to [0,100].
func (p *TaskProgress) ProgressPercentage() float64 {
	if p.TargetCount <= 0 {
		return 0
	}
	pct := float64(p.CurrentCount) / float64(p.TargetCount) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
