package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/perkhub/loyalty-gateway/internal/model"
)

const customerCols = `id, business_id, email, name, phone, points, created_at, updated_at`

// CustomersRepository persists loyalty members. Point adjustments always run
// inside a caller-owned transaction, alongside the row that caused them.
type CustomersRepository interface {
	GetByID(ctx context.Context, businessID int64, id string) (*model.Customer, error)
	GetByEmail(ctx context.Context, businessID int64, email string) (*model.Customer, error)

	GetForUpdate(ctx context.Context, tx *sqlx.Tx, businessID int64, id string) (*model.Customer, error)
	GetForUpdateByEmail(ctx context.Context, tx *sqlx.Tx, businessID int64, email string) (*model.Customer, error)
	Insert(ctx context.Context, tx *sqlx.Tx, c model.Customer) error
	UpdateProfile(ctx context.Context, tx *sqlx.Tx, id, name string, phone *string) error
	AdjustPoints(ctx context.Context, tx *sqlx.Tx, id string, delta int64) error
}

type CustomersRepositoryImpl struct {
	db *sqlx.DB
}

func NewCustomersRepository(db *sqlx.DB) *CustomersRepositoryImpl {
	return &CustomersRepositoryImpl{db: db}
}

var _ CustomersRepository = (*CustomersRepositoryImpl)(nil)

func (r *CustomersRepositoryImpl) GetByID(ctx context.Context, businessID int64, id string) (*model.Customer, error) {
	var c model.Customer
	err := r.db.GetContext(ctx, &c, `
		SELECT `+customerCols+` FROM customers
		 WHERE business_id = ? AND id = ? LIMIT 1
	`, businessID, id)
	return oneCustomer(&c, err)
}

func (r *CustomersRepositoryImpl) GetByEmail(ctx context.Context, businessID int64, email string) (*model.Customer, error) {
	var c model.Customer
	err := r.db.GetContext(ctx, &c, `
		SELECT `+customerCols+` FROM customers
		 WHERE business_id = ? AND email = ? LIMIT 1
	`, businessID, email)
	return oneCustomer(&c, err)
}

// GetForUpdate locks the customer row for the rest of the transaction. Every
// balance check-and-adjust goes through this lock; it is what prevents the
// lost-update race between concurrent earns and redemptions.
func (r *CustomersRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, businessID int64, id string) (*model.Customer, error) {
	var c model.Customer
	err := tx.GetContext(ctx, &c, `
		SELECT `+customerCols+` FROM customers
		 WHERE business_id = ? AND id = ?
		 FOR UPDATE
	`, businessID, id)
	return oneCustomer(&c, err)
}

func (r *CustomersRepositoryImpl) GetForUpdateByEmail(ctx context.Context, tx *sqlx.Tx, businessID int64, email string) (*model.Customer, error) {
	var c model.Customer
	err := tx.GetContext(ctx, &c, `
		SELECT `+customerCols+` FROM customers
		 WHERE business_id = ? AND email = ?
		 FOR UPDATE
	`, businessID, email)
	return oneCustomer(&c, err)
}

func (r *CustomersRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, c model.Customer) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO customers (id, business_id, email, name, phone, points, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW(), NOW())
	`, c.ID, c.BusinessID, c.Email, c.Name, c.Phone, c.Points)
	return err
}

func (r *CustomersRepositoryImpl) UpdateProfile(ctx context.Context, tx *sqlx.Tx, id, name string, phone *string) error {
	if phone != nil {
		_, err := tx.ExecContext(ctx, `
			UPDATE customers SET name = ?, phone = ?, updated_at = NOW() WHERE id = ?
		`, name, phone, id)
		return err
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE customers SET name = ?, updated_at = NOW() WHERE id = ?
	`, name, id)
	return err
}

func (r *CustomersRepositoryImpl) AdjustPoints(ctx context.Context, tx *sqlx.Tx, id string, delta int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE customers SET points = points + ?, updated_at = NOW() WHERE id = ?
	`, delta, id)
	return err
}

func oneCustomer(c *model.Customer, err error) (*model.Customer, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
