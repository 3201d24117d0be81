package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/treehole/treehole-go/treehole/database/models"
	"github.com/uptrace/bun"
)

type CheckInRepository interface {
	GetByDate(ctx context.Context, userID int64, dayKey string) (*models.CheckInRecord, error)
	GetLatest(ctx context.Context, userID int64) (*models.CheckInRecord, error)

	// Create inserts the record unless one already exists for the same
	// (user, day). Returns whether the row was inserted.
	Create(ctx context.Context, record *models.CheckInRecord) (bool, error)

	GetRecent(ctx context.Context, userID int64, days int) ([]*models.CheckInRecord, error)
}

type checkInRepository struct {
	db *bun.DB
}

func NewCheckInRepository(db *bun.DB) CheckInRepository {
	return &checkInRepository{db: db}
}

func (r *checkInRepository) GetByDate(ctx context.Context, userID int64, dayKey string) (*models.CheckInRecord, error) {
	record := new(models.CheckInRecord)
	err := r.db.NewSelect().
		Model(record).
		Where("user_id = ? AND check_in_date = ?", userID, dayKey).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return record, nil
}

func (r *checkInRepository) GetLatest(ctx context.Context, userID int64) (*models.CheckInRecord, error) {
	record := new(models.CheckInRecord)
	err := r.db.NewSelect().
		Model(record).
		Where("user_id = ?", userID).
		Order("check_in_date DESC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return record, nil
}

func (r *checkInRepository) Create(ctx context.Context, record *models.CheckInRecord) (bool, error) {
	record.CreatedAt = time.Now()

	res, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT (user_id, check_in_date) DO NOTHING").
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

func (r *checkInRepository) GetRecent(ctx context.Context, userID int64, days int) ([]*models.CheckInRecord, error) {
	var records []*models.CheckInRecord
	err := r.db.NewSelect().
		Model(&records).
		Where("user_id = ?", userID).
		Order("check_in_date DESC").
		Limit(days).
		Scan(ctx)

	return records, err
}
