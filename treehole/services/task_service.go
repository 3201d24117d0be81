package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/treehole/treehole-go/treehole/clock"
	"github.com/treehole/treehole-go/treehole/database/models"
	"github.com/treehole/treehole-go/treehole/database/repositories"
	"github.com/treehole/treehole-go/treehole/userlock"
)

// TaskSource supplies the active task definitions, usually from the
// definition cache.
type TaskSource interface {
	Tasks(ctx context.Context) ([]*models.TaskDefinition, error)
}

// actionReporter is the internal task surface for services that already
// hold the per-user lock. Progress advancement is best effort and never
// fails the action that produced it.
type actionReporter interface {
	onActionLocked(ctx context.Context, userID int64, actionType string, count int)
}

// TaskService tracks per-cycle progress. Daily tasks reset at the UTC
// day boundary, weekly tasks at the ISO Monday; one-time and time-limited
// tasks keep a single progress row. Completion rewards are paid exactly
// once per cycle.
type TaskService struct {
	tasks  repositories.TaskRepository
	defs   TaskSource
	exp    expGranter
	badges BadgeTrigger
	locks  *userlock.Manager
	clock  clock.Clock
}

func NewTaskService(
	tasks repositories.TaskRepository,
	defs TaskSource,
	exp expGranter,
	badges BadgeTrigger,
	locks *userlock.Manager,
	clk clock.Clock,
) *TaskService {
	return &TaskService{
		tasks:  tasks,
		defs:   defs,
		exp:    exp,
		badges: badges,
		locks:  locks,
		clock:  clk,
	}
}

// OnAction advances every active task matching the action type by count.
func (s *TaskService) OnAction(ctx context.Context, userID int64, actionType string, count int) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	s.onActionLocked(ctx, userID, actionType, count)
}

func (s *TaskService) onActionLocked(ctx context.Context, userID int64, actionType string, count int) {
	if count <= 0 {
		return
	}

	defs, err := s.defs.Tasks(ctx)
	if err != nil {
		slog.Error("Failed to load task definitions",
			slog.String("type", "svc"),
			slog.Any("error", err))
		return
	}

	now := s.clock.Now()
	for _, def := range defs {
		if def.Condition.ActionType != actionType || !def.InWindow(now) {
			continue
		}

		if err := s.advance(ctx, userID, def, count, now); err != nil {
			slog.Error("Failed to advance task progress",
				slog.String("type", "svc"),
				slog.Int64("user_id", userID),
				slog.String("task_id", def.TaskID),
				slog.Any("error", err))
		}
	}
}

// advance bumps one task's progress row for the current cycle and pays
// the completion reward if this increment crossed the target.
func (s *TaskService) advance(ctx context.Context, userID int64, def *models.TaskDefinition, count int, now time.Time) error {
	cycleKey := s.cycleKeyFor(def, now)

	progress, err := s.ensureProgress(ctx, userID, def, cycleKey)
	if err != nil {
		return err
	}
	if progress.Completed {
		return nil
	}

	updated, err := s.tasks.IncrementProgress(ctx, userID, def.TaskID, cycleKey, count)
	if err != nil {
		return err
	}
	if updated == nil || updated.Completed || updated.CurrentCount < updated.TargetCount {
		return nil
	}

	_, err = s.complete(ctx, userID, def, updated, now)
	return err
}

// complete flips the completed flag and pays rewards if this call won
// the flip. Losing the flip means a concurrent path already paid.
func (s *TaskService) complete(ctx context.Context, userID int64, def *models.TaskDefinition, progress *models.TaskProgress, now time.Time) (bool, error) {
	won, err := s.tasks.MarkCompleted(ctx, progress.ID, now)
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}

	slog.Info("Task completed",
		slog.String("type", "svc"),
		slog.Int64("user_id", userID),
		slog.String("task_id", def.TaskID),
		slog.String("cycle_key", progress.CycleKey))

	if def.ExpReward > 0 {
		desc := fmt.Sprintf("Completed task: %s", def.Name)
		if _, err := s.exp.addExperienceLocked(ctx, userID, def.ExpReward, models.ActionTaskComplete, desc, nil); err != nil {
			slog.Error("Failed to pay task experience reward",
				slog.String("type", "svc"),
				slog.Int64("user_id", userID),
				slog.String("task_id", def.TaskID),
				slog.Any("error", err))
		}
	}

	if def.BadgeReward != nil && s.badges != nil {
		if err := s.badges.GrantBadge(ctx, userID, *def.BadgeReward); err != nil {
			slog.Error("Failed to pay task badge reward",
				slog.String("type", "svc"),
				slog.Int64("user_id", userID),
				slog.String("task_id", def.TaskID),
				slog.String("badge_id", *def.BadgeReward),
				slog.Any("error", err))
		}
	}

	return true, nil
}

// ensureProgress returns the cycle's progress row, creating it on first
// touch. A lost insert race is resolved by re-reading the winner's row.
func (s *TaskService) ensureProgress(ctx context.Context, userID int64, def *models.TaskDefinition, cycleKey string) (*models.TaskProgress, error) {
	progress, err := s.tasks.GetProgress(ctx, userID, def.TaskID, cycleKey)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		return progress, nil
	}

	fresh := &models.TaskProgress{
		UserID:      userID,
		TaskID:      def.TaskID,
		CycleKey:    cycleKey,
		TargetCount: def.Condition.Count,
	}
	if _, err := s.tasks.CreateProgress(ctx, fresh); err != nil {
		return nil, err
	}

	progress, err = s.tasks.GetProgress(ctx, userID, def.TaskID, cycleKey)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		return nil, fmt.Errorf("progress row for task %s vanished after insert", def.TaskID)
	}

	return progress, nil
}

// CompleteTask marks a task done directly, for tasks claimed from the
// task panel rather than advanced by counted actions.
func (s *TaskService) CompleteTask(ctx context.Context, userID int64, taskID string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	def, err := s.tasks.GetDefinition(ctx, taskID)
	if err != nil {
		return err
	}
	if def == nil {
		return fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}

	now := s.clock.Now()
	if !def.InWindow(now) {
		return fmt.Errorf("task %s: %w", taskID, ErrTaskInactive)
	}

	cycleKey := s.cycleKeyFor(def, now)
	progress, err := s.ensureProgress(ctx, userID, def, cycleKey)
	if err != nil {
		return err
	}
	if progress.Completed {
		return fmt.Errorf("task %s cycle %s: %w", taskID, cycleKey, ErrAlreadyCompleted)
	}

	won, err := s.complete(ctx, userID, def, progress, now)
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("task %s cycle %s: %w", taskID, cycleKey, ErrAlreadyCompleted)
	}

	return nil
}

// GetTasks returns the user's view of every active task in its current
// cycle. Tasks never touched this cycle show zero progress.
func (s *TaskService) GetTasks(ctx context.Context, userID int64) ([]*TaskInfo, error) {
	defs, err := s.defs.Tasks(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	infos := make([]*TaskInfo, 0, len(defs))
	for _, def := range defs {
		if !def.InWindow(now) {
			continue
		}

		cycleKey := s.cycleKeyFor(def, now)
		info := &TaskInfo{
			TaskID:      def.TaskID,
			Name:        def.Name,
			Description: def.Description,
			Cycle:       def.Cycle,
			CycleKey:    cycleKey,
			TargetCount: def.Condition.Count,
			ExpReward:   def.ExpReward,
			BadgeReward: def.BadgeReward,
		}

		progress, err := s.tasks.GetProgress(ctx, userID, def.TaskID, cycleKey)
		if err != nil {
			return nil, err
		}
		if progress != nil {
			info.CurrentCount = progress.CurrentCount
			info.Completed = progress.Completed
			info.CompletedAt = progress.CompletedAt
			info.ProgressPercent = progress.ProgressPercentage()
		}

		infos = append(infos, info)
	}

	return infos, nil
}

// cycleKeyFor scopes progress rows: daily tasks by UTC day, weekly tasks
// by ISO week, everything else shares one lifetime row.
func (s *TaskService) cycleKeyFor(def *models.TaskDefinition, now time.Time) string {
	switch def.Cycle {
	case models.CycleDaily:
		return clock.DayKey(now)
	case models.CycleWeekly:
		return clock.WeekKey(now)
	default:
		return "all"
	}
}

// TaskInfo is one task joined with the user's progress for the current
// cycle.
type TaskInfo struct {
	TaskID          string
	Name            string
	Description     string
	Cycle           string
	CycleKey        string
	CurrentCount    int
	TargetCount     int
	Completed       bool
	CompletedAt     *time.Time
	ProgressPercent float64
	ExpReward       int64
	BadgeReward     *string
}
