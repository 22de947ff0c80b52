package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/perkhub/loyalty-gateway/internal/model"
)

type RewardsRepository interface {
	GetByID(ctx context.Context, businessID int64, id string) (*model.Reward, error)
	List(ctx context.Context, businessID int64) ([]model.Reward, error)
	Insert(ctx context.Context, rw model.Reward) error
	HasRedemptions(ctx context.Context, businessID int64, id string) (bool, error)
	Delete(ctx context.Context, businessID int64, id string) (bool, error)
}

type RewardsRepositoryImpl struct {
	db *sqlx.DB
}

func NewRewardsRepository(db *sqlx.DB) *RewardsRepositoryImpl {
	return &RewardsRepositoryImpl{db: db}
}

var _ RewardsRepository = (*RewardsRepositoryImpl)(nil)

const rewardCols = `id, business_id, title, description, points_required, created_at, updated_at`

func (r *RewardsRepositoryImpl) GetByID(ctx context.Context, businessID int64, id string) (*model.Reward, error) {
	var rw model.Reward
	err := r.db.GetContext(ctx, &rw, `
		SELECT `+rewardCols+` FROM rewards
		 WHERE business_id = ? AND id = ? LIMIT 1
	`, businessID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rw, nil
}

func (r *RewardsRepositoryImpl) List(ctx context.Context, businessID int64) ([]model.Reward, error) {
	var rows []model.Reward
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+rewardCols+` FROM rewards
		 WHERE business_id = ?
		 ORDER BY created_at
	`, businessID)
	return rows, err
}

func (r *RewardsRepositoryImpl) Insert(ctx context.Context, rw model.Reward) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rewards (id, business_id, title, description, points_required, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NOW(), NOW())
	`, rw.ID, rw.BusinessID, rw.Title, rw.Description, rw.PointsRequired)
	return err
}

// HasRedemptions is the referential guard: a reward with redemptions cannot
// be deleted. Scoped to the business so a foreign reward id reads as absent,
// not as in-use.
func (r *RewardsRepositoryImpl) HasRedemptions(ctx context.Context, businessID int64, id string) (bool, error) {
	var one int
	err := r.db.QueryRowxContext(ctx,
		`SELECT 1 FROM redemptions WHERE business_id = ? AND reward_id = ? LIMIT 1`, businessID, id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *RewardsRepositoryImpl) Delete(ctx context.Context, businessID int64, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM rewards WHERE business_id = ? AND id = ?
	`, businessID, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
