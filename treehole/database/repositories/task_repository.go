package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/treehole/treehole-go/treehole/database/models"
	"github.com/uptrace/bun"
)

type TaskRepository interface {
	GetActiveDefinitions(ctx context.Context) ([]*models.TaskDefinition, error)
	GetDefinition(ctx context.Context, taskID string) (*models.TaskDefinition, error)
	UpsertDefinition(ctx context.Context, def *models.TaskDefinition) error

	GetProgress(ctx context.Context, userID int64, taskID, cycleKey string) (*models.TaskProgress, error)

	// CreateProgress inserts a fresh progress row unless one already exists
	// for the same (user, task, cycle key). Returns whether it was inserted.
	CreateProgress(ctx context.Context, progress *models.TaskProgress) (bool, error)

	// IncrementProgress bumps the counter and returns the updated row.
	IncrementProgress(ctx context.Context, userID int64, taskID, cycleKey string, by int) (*models.TaskProgress, error)

	// MarkCompleted flips the completed flag if it is not set yet. Returns
	// whether this call won the completion; losers must not grant rewards.
	MarkCompleted(ctx context.Context, progressID int64, at time.Time) (bool, error)
}

type taskRepository struct {
	db *bun.DB
}

func NewTaskRepository(db *bun.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) GetActiveDefinitions(ctx context.Context) ([]*models.TaskDefinition, error) {
	var defs []*models.TaskDefinition
	err := r.db.NewSelect().
		Model(&defs).
		Where("active = ?", true).
		Order("cycle ASC", "task_id ASC").
		Scan(ctx)

	return defs, err
}

func (r *taskRepository) GetDefinition(ctx context.Context, taskID string) (*models.TaskDefinition, error) {
	def := new(models.TaskDefinition)
	err := r.db.NewSelect().
		Model(def).
		Where("task_id = ?", taskID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return def, nil
}

func (r *taskRepository) UpsertDefinition(ctx context.Context, def *models.TaskDefinition) error {
	def.UpdatedAt = time.Now()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = def.UpdatedAt
	}

	_, err := r.db.NewInsert().
		Model(def).
		On("CONFLICT (task_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("description = EXCLUDED.description").
		Set("cycle = EXCLUDED.cycle").
		Set("condition = EXCLUDED.condition").
		Set("exp_reward = EXCLUDED.exp_reward").
		Set("badge_reward = EXCLUDED.badge_reward").
		Set("starts_at = EXCLUDED.starts_at").
		Set("ends_at = EXCLUDED.ends_at").
		Set("active = EXCLUDED.active").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}

func (r *taskRepository) GetProgress(ctx context.Context, userID int64, taskID, cycleKey string) (*models.TaskProgress, error) {
	progress := new(models.TaskProgress)
	err := r.db.NewSelect().
		Model(progress).
		Where("user_id = ? AND task_id = ? AND cycle_key = ?", userID, taskID, cycleKey).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return progress, nil
}

func (r *taskRepository) CreateProgress(ctx context.Context, progress *models.TaskProgress) (bool, error) {
	now := time.Now()
	progress.CreatedAt = now
	progress.UpdatedAt = now

	res, err := r.db.NewInsert().
		Model(progress).
		On("CONFLICT (user_id, task_id, cycle_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return inserted > 0, nil
}

func (r *taskRepository) IncrementProgress(ctx context.Context, userID int64, taskID, cycleKey string, by int) (*models.TaskProgress, error) {
	progress := new(models.TaskProgress)
	err := r.db.NewUpdate().
		Model(progress).
		Set("current_count = current_count + ?", by).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ? AND task_id = ? AND cycle_key = ?", userID, taskID, cycleKey).
		Returning("*").
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return progress, nil
}

func (r *taskRepository) MarkCompleted(ctx context.Context, progressID int64, at time.Time) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.TaskProgress)(nil)).
		Set("completed = ?", true).
		Set("completed_at = ?", at).
		Set("current_count = GREATEST(current_count, target_count)").
		Set("updated_at = ?", at).
		Where("id = ? AND completed = ?", progressID, false).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	updated, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return updated > 0, nil
}
