package repositories

import (
	"context"
	"time"

	"github.com/treehole/treehole-go/treehole/database/models"
	"github.com/uptrace/bun"
)

type LevelRepository interface {
	// GetAll returns the full tier table ordered by level ascending.
	GetAll(ctx context.Context) ([]*models.LevelTier, error)
	Upsert(ctx context.Context, tier *models.LevelTier) error
}

type levelRepository struct {
	db *bun.DB
}

func NewLevelRepository(db *bun.DB) LevelRepository {
	return &levelRepository{db: db}
}

func (r *levelRepository) GetAll(ctx context.Context) ([]*models.LevelTier, error) {
	var tiers []*models.LevelTier
	err := r.db.NewSelect().
		Model(&tiers).
		Order("level ASC").
		Scan(ctx)

	return tiers, err
}

func (r *levelRepository) Upsert(ctx context.Context, tier *models.LevelTier) error {
	tier.UpdatedAt = time.Now()
	if tier.CreatedAt.IsZero() {
		tier.CreatedAt = tier.UpdatedAt
	}

	_, err := r.db.NewInsert().
		Model(tier).
		On("CONFLICT (level) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("min_exp = EXCLUDED.min_exp").
		Set("max_exp = EXCLUDED.max_exp").
		Set("icon = EXCLUDED.icon").
		Set("color = EXCLUDED.color").
		Set("daily_post_limit = EXCLUDED.daily_post_limit").
		Set("daily_comment_limit = EXCLUDED.daily_comment_limit").
		Set("can_create_bar = EXCLUDED.can_create_bar").
		Set("can_pin_post = EXCLUDED.can_pin_post").
		Set("storage_quota = EXCLUDED.storage_quota").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}
