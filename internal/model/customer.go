package model

import "time"

// Customer is a loyalty-program member. Points is the ledger balance and is
// only ever adjusted inside the same transaction as the row that caused the
// adjustment (transaction or redemption).
type Customer struct {
	ID         string    `db:"id"` // ULID
	BusinessID int64     `db:"business_id"`
	Email      string    `db:"email"` // unique per business
	Name       string    `db:"name"`
	Phone      *string   `db:"phone"`
	Points     int64     `db:"points"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}
