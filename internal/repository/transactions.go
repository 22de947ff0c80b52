package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/perkhub/loyalty-gateway/internal/model"
)

type TransactionsRepository interface {
	GetByID(ctx context.Context, businessID int64, id string) (*model.Transaction, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, businessID int64, id string) (*model.Transaction, error)
	Insert(ctx context.Context, tx *sqlx.Tx, t model.Transaction) error
	UpdateAmount(ctx context.Context, tx *sqlx.Tx, id string, amount int64) error
	Delete(ctx context.Context, tx *sqlx.Tx, id string) error
}

type TransactionsRepositoryImpl struct {
	db *sqlx.DB
}

func NewTransactionsRepository(db *sqlx.DB) *TransactionsRepositoryImpl {
	return &TransactionsRepositoryImpl{db: db}
}

var _ TransactionsRepository = (*TransactionsRepositoryImpl)(nil)

const transactionCols = `id, business_id, customer_id, amount, date, created_at, updated_at`

func (r *TransactionsRepositoryImpl) GetByID(ctx context.Context, businessID int64, id string) (*model.Transaction, error) {
	var t model.Transaction
	err := r.db.GetContext(ctx, &t, `
		SELECT `+transactionCols+` FROM transactions
		 WHERE business_id = ? AND id = ? LIMIT 1
	`, businessID, id)
	return oneTransaction(&t, err)
}

// GetForUpdate locks the transaction row so the reversal delta is computed
// from a stable amount.
func (r *TransactionsRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, businessID int64, id string) (*model.Transaction, error) {
	var t model.Transaction
	err := tx.GetContext(ctx, &t, `
		SELECT `+transactionCols+` FROM transactions
		 WHERE business_id = ? AND id = ?
		 FOR UPDATE
	`, businessID, id)
	return oneTransaction(&t, err)
}

func (r *TransactionsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, t model.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, business_id, customer_id, amount, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NOW(), NOW())
	`, t.ID, t.BusinessID, t.CustomerID, t.Amount, t.Date)
	return err
}

func (r *TransactionsRepositoryImpl) UpdateAmount(ctx context.Context, tx *sqlx.Tx, id string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE transactions SET amount = ?, updated_at = NOW() WHERE id = ?
	`, amount, id)
	return err
}

func (r *TransactionsRepositoryImpl) Delete(ctx context.Context, tx *sqlx.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	return err
}

func oneTransaction(t *model.Transaction, err error) (*model.Transaction, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}
