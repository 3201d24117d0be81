package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/treehole/treehole-go/treehole/database/models"
	"github.com/uptrace/bun"
)

type UserRepository interface {
	GetByID(ctx context.Context, userID int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error

	// AddExperience applies the delta atomically, guarded so the aggregate
	// never goes negative. Returns the new total and whether the update
	// was applied.
	AddExperience(ctx context.Context, userID int64, delta int64) (int64, bool, error)

	IncrementCounter(ctx context.Context, userID int64, column string, by int) error
	RaiseMaxPostLikes(ctx context.Context, userID int64, likes int) error

	Count(ctx context.Context) (int, error)
	CountWithMoreExperience(ctx context.Context, exp int64) (int, error)
	GetTopByExperience(ctx context.Context, limit int) ([]*models.User, error)
}

type userRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("id = ?", userID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("username = ?", username).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	if user.JoinedAt.IsZero() {
		user.JoinedAt = now
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.NewInsert().Model(user).Exec(ctx)
	return err
}

func (r *userRepository) AddExperience(ctx context.Context, userID int64, delta int64) (int64, bool, error) {
	var newTotal int64
	err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("experience = experience + ?", delta).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", userID).
		Where("experience + ? >= 0", delta).
		Returning("experience").
		Scan(ctx, &newTotal)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}

	return newTotal, true, nil
}

// counterColumns whitelists columns IncrementCounter may touch; the column
// name is spliced into SQL.
var counterColumns = map[string]bool{
	models.CounterPosts:              true,
	models.CounterComments:           true,
	models.CounterFavorites:          true,
	models.CounterFollowing:          true,
	models.CounterMaxPostLikes:       true,
	models.CounterCommunitiesCreated: true,
}

func (r *userRepository) IncrementCounter(ctx context.Context, userID int64, column string, by int) error {
	if !counterColumns[column] {
		return fmt.Errorf("unknown counter column: %s", column)
	}

	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set(fmt.Sprintf("%s = %s + ?", column, column), by).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", userID).
		Exec(ctx)

	return err
}

func (r *userRepository) RaiseMaxPostLikes(ctx context.Context, userID int64, likes int) error {
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("max_post_likes = GREATEST(max_post_likes, ?)", likes).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", userID).
		Exec(ctx)

	return err
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	return r.db.NewSelect().
		Model((*models.User)(nil)).
		Count(ctx)
}

func (r *userRepository) CountWithMoreExperience(ctx context.Context, exp int64) (int, error) {
	return r.db.NewSelect().
		Model((*models.User)(nil)).
		Where("experience > ?", exp).
		Count(ctx)
}

func (r *userRepository) GetTopByExperience(ctx context.Context, limit int) ([]*models.User, error) {
	var users []*models.User
	err := r.db.NewSelect().
		Model(&users).
		Order("experience DESC", "id ASC").
		Limit(limit).
		Scan(ctx)

	return users, err
}
