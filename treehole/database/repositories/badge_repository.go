package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/treehole/treehole-go/treehole/database/models"
	"github.com/uptrace/bun"
)

type BadgeRepository interface {
	GetActiveDefinitions(ctx context.Context) ([]*models.BadgeDefinition, error)
	GetDefinition(ctx context.Context, badgeID string) (*models.BadgeDefinition, error)
	UpsertDefinition(ctx context.Context, def *models.BadgeDefinition) error

	GetUserBadges(ctx context.Context, userID int64) ([]*models.UserBadge, error)
	GetGrantedIDs(ctx context.Context, userID int64) (map[string]bool, error)

	// Grant inserts the grant row unless one already exists for the same
	// (user, badge). Returns whether the row was inserted.
	Grant(ctx context.Context, grant *models.UserBadge) (bool, error)

	SetDisplayed(ctx context.Context, userID int64, badgeID string, displayed bool) (bool, error)
}

type badgeRepository struct {
	db *bun.DB
}

func NewBadgeRepository(db *bun.DB) BadgeRepository {
	return &badgeRepository{db: db}
}

func (r *badgeRepository) GetActiveDefinitions(ctx context.Context) ([]*models.BadgeDefinition, error) {
	var defs []*models.BadgeDefinition
	err := r.db.NewSelect().
		Model(&defs).
		Where("active = ?", true).
		Order("category ASC", "badge_id ASC").
		Scan(ctx)

	return defs, err
}

func (r *badgeRepository) GetDefinition(ctx context.Context, badgeID string) (*models.BadgeDefinition, error) {
	def := new(models.BadgeDefinition)
	err := r.db.NewSelect().
		Model(def).
		Where("badge_id = ?", badgeID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return def, nil
}

func (r *badgeRepository) UpsertDefinition(ctx context.Context, def *models.BadgeDefinition) error {
	def.UpdatedAt = time.Now()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = def.UpdatedAt
	}

	_, err := r.db.NewInsert().
		Model(def).
		On("CONFLICT (badge_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("description = EXCLUDED.description").
		Set("icon = EXCLUDED.icon").
		Set("category = EXCLUDED.category").
		Set("rarity = EXCLUDED.rarity").
		Set("unlock_condition = EXCLUDED.unlock_condition").
		Set("active = EXCLUDED.active").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}

func (r *badgeRepository) GetUserBadges(ctx context.Context, userID int64) ([]*models.UserBadge, error) {
	var badges []*models.UserBadge
	err := r.db.NewSelect().
		Model(&badges).
		Relation("Definition").
		Where("ub.user_id = ?", userID).
		Order("ub.earned_at DESC").
		Scan(ctx)

	return badges, err
}

func (r *badgeRepository) GetGrantedIDs(ctx context.Context, userID int64) (map[string]bool, error) {
	var ids []string
	err := r.db.NewSelect().
		Model((*models.UserBadge)(nil)).
		Column("badge_id").
		Where("user_id = ?", userID).
		Scan(ctx, &ids)

	if err != nil {
		return nil, err
	}

	granted := make(map[string]bool, len(ids))
	for _, id := range ids {
		granted[id] = true
	}

	return granted, nil
}

func (r *badgeRepository) Grant(ctx context.Context, grant *models.UserBadge) (bool, error) {
	if grant.EarnedAt.IsZero() {
		grant.EarnedAt = time.Now()
	}

	res, err := r.db.NewInsert().
		Model(grant).
		On("CONFLICT (user_id, badge_id) DO NOTHING").
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

func (r *badgeRepository) SetDisplayed(ctx context.Context, userID int64, badgeID string, displayed bool) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.UserBadge)(nil)).
		Set("displayed = ?", displayed).
		Where("user_id = ? AND badge_id = ?", userID, badgeID).
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
