package model

import "time"

// Transaction is a point-earning purchase. Amount is in minor currency units
// and must be positive. Points awarded are never stored on the row; they are
// recomputed from Amount with the same function at create, edit, and delete
// time so reversals are exact.
type Transaction struct {
	ID         string    `db:"id"` // ULID
	BusinessID int64     `db:"business_id"`
	CustomerID string    `db:"customer_id"`
	Amount     int64     `db:"amount"`
	Date       time.Time `db:"date"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}
