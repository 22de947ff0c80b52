package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/perkhub/loyalty-gateway/internal/model"
)

type RedemptionsRepository interface {
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, businessID int64, id string) (*model.Redemption, error)
	Insert(ctx context.Context, tx *sqlx.Tx, rd model.Redemption) error
	Delete(ctx context.Context, tx *sqlx.Tx, id string) error
}

type RedemptionsRepositoryImpl struct {
	db *sqlx.DB
}

func NewRedemptionsRepository(db *sqlx.DB) *RedemptionsRepositoryImpl {
	return &RedemptionsRepositoryImpl{db: db}
}

var _ RedemptionsRepository = (*RedemptionsRepositoryImpl)(nil)

func (r *RedemptionsRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, businessID int64, id string) (*model.Redemption, error) {
	var rd model.Redemption
	err := tx.GetContext(ctx, &rd, `
		SELECT id, business_id, customer_id, reward_id, points_spent, date, created_at
		  FROM redemptions
		 WHERE business_id = ? AND id = ?
		 FOR UPDATE
	`, businessID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rd, nil
}

func (r *RedemptionsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, rd model.Redemption) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO redemptions (id, business_id, customer_id, reward_id, points_spent, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW())
	`, rd.ID, rd.BusinessID, rd.CustomerID, rd.RewardID, rd.PointsSpent, rd.Date)
	return err
}

func (r *RedemptionsRepositoryImpl) Delete(ctx context.Context, tx *sqlx.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM redemptions WHERE id = ?`, id)
	return err
}
