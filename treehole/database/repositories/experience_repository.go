package repositories

import (
	"context"
	"time"

	"github.com/treehole/treehole-go/treehole/database/models"
	"github.com/uptrace/bun"
)

type ExperienceRepository interface {
	// Append writes a ledger entry. Entries are immutable; a duplicate
	// dedup key is rejected by the unique index.
	Append(ctx context.Context, entry *models.ExperienceLog) error

	SumByUser(ctx context.Context, userID int64) (int64, error)
	GetPage(ctx context.Context, userID int64, page, pageSize int) ([]*models.ExperienceLog, int, error)

	LogLevelUp(ctx context.Context, log *models.LevelLog) error
	GetLevelLogs(ctx context.Context, userID int64, limit int) ([]*models.LevelLog, error)
}

type experienceRepository struct {
	db *bun.DB
}

func NewExperienceRepository(db *bun.DB) ExperienceRepository {
	return &experienceRepository{db: db}
}

func (r *experienceRepository) Append(ctx context.Context, entry *models.ExperienceLog) error {
	entry.CreatedAt = time.Now()
	_, err := r.db.NewInsert().Model(entry).Exec(ctx)
	return err
}

func (r *experienceRepository) SumByUser(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	err := r.db.NewSelect().
		Model((*models.ExperienceLog)(nil)).
		ColumnExpr("COALESCE(SUM(delta), 0)").
		Where("user_id = ?", userID).
		Scan(ctx, &sum)

	return sum, err
}

func (r *experienceRepository) GetPage(ctx context.Context, userID int64, page, pageSize int) ([]*models.ExperienceLog, int, error) {
	var entries []*models.ExperienceLog
	total, err := r.db.NewSelect().
		Model(&entries).
		Where("user_id = ?", userID).
		Order("created_at DESC", "id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		ScanAndCount(ctx)

	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *experienceRepository) LogLevelUp(ctx context.Context, log *models.LevelLog) error {
	log.CreatedAt = time.Now()
	_, err := r.db.NewInsert().Model(log).Exec(ctx)
	return err
}

func (r *experienceRepository) GetLevelLogs(ctx context.Context, userID int64, limit int) ([]*models.LevelLog, error) {
	var logs []*models.LevelLog
	err := r.db.NewSelect().
		Model(&logs).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)

	return logs, err
}
