package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/perkhub/loyalty-gateway/internal/model"
)

// IdempotencyRepository backs the idempotency store with MySQL rows protected
// by a composite unique constraint on (business_id, idem_key).
type IdempotencyRepository interface {
	// InsertInFlight claims the key. Returns (true, nil, nil) when this
	// request now owns the key, or (false, existing, nil) when another
	// request got there first.
	InsertInFlight(ctx context.Context, businessID int64, key string) (bool, *model.IdempotencyRecord, error)
	Complete(ctx context.Context, businessID int64, key string, status int, body []byte, ttlHours int) error
	Delete(ctx context.Context, businessID int64, key string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type IdempotencyRepositoryImpl struct {
	db *sqlx.DB
}

func NewIdempotencyRepository(db *sqlx.DB) *IdempotencyRepositoryImpl {
	return &IdempotencyRepositoryImpl{db: db}
}

var _ IdempotencyRepository = (*IdempotencyRepositoryImpl)(nil)

// staleClaimMinutes bounds how long a crashed request can hold an in-flight
// claim. An in_flight row never gets an expires_at (only Complete sets one),
// so without this age-out a crash between claim and complete would answer 409
// for that key forever.
const staleClaimMinutes = 15

func (r *IdempotencyRepositoryImpl) InsertInFlight(ctx context.Context, businessID int64, key string) (bool, *model.IdempotencyRecord, error) {
	// Expired or abandoned leftovers under the same key would block the
	// insert forever.
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM idempotency_keys
		 WHERE business_id = ? AND idem_key = ?
		   AND ((expires_at IS NOT NULL AND expires_at <= NOW())
		     OR (status = 'in_flight' AND created_at <= NOW() - INTERVAL ? MINUTE))
	`, businessID, key, staleClaimMinutes); err != nil {
		return false, nil, err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (business_id, idem_key, status, created_at, updated_at)
		VALUES (?, ?, 'in_flight', NOW(), NOW())
	`, businessID, key)
	if err == nil {
		return true, nil, nil
	}
	if !isDuplicateKey(err) {
		return false, nil, err
	}

	var rec model.IdempotencyRecord
	err = r.db.GetContext(ctx, &rec, `
		SELECT id, business_id, idem_key, status, response_status, response_body,
		       COALESCE(expires_at, NOW() + INTERVAL 1 DAY) AS expires_at,
		       created_at, updated_at
		  FROM idempotency_keys
		 WHERE business_id = ? AND idem_key = ? LIMIT 1
	`, businessID, key)
	if errors.Is(err, sql.ErrNoRows) {
		// Raced with a sweep between insert and read; caller treats this as
		// owning nothing and proceeds uncached.
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return false, &rec, nil
}

func (r *IdempotencyRepositoryImpl) Complete(ctx context.Context, businessID int64, key string, status int, body []byte, ttlHours int) error {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE idempotency_keys
		   SET status = 'completed', response_status = ?, response_body = ?,
		       expires_at = NOW() + INTERVAL ? HOUR, updated_at = NOW()
		 WHERE business_id = ? AND idem_key = ?
	`, status, body, ttlHours, businessID, key)
	return err
}

func (r *IdempotencyRepositoryImpl) Delete(ctx context.Context, businessID int64, key string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM idempotency_keys WHERE business_id = ? AND idem_key = ?
	`, businessID, key)
	return err
}

func (r *IdempotencyRepositoryImpl) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM idempotency_keys
		 WHERE (expires_at IS NOT NULL AND expires_at <= NOW())
		    OR (status = 'in_flight' AND created_at <= NOW() - INTERVAL ? MINUTE)
	`, staleClaimMinutes)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
