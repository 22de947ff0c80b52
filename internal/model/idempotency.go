package model

import "time"

type IdempotencyStatus string

const (
	IdemInFlight  IdempotencyStatus = "in_flight"
	IdemCompleted IdempotencyStatus = "completed"
)

// IdempotencyRecord caches the response of a mutating request keyed by
// (business_id, idem_key). The row is inserted with status=in_flight before
// the handler runs; the composite unique constraint is what makes concurrent
// retries safe.
type IdempotencyRecord struct {
	ID             int64             `db:"id"`
	BusinessID     int64             `db:"business_id"`
	IdemKey        string            `db:"idem_key"`
	Status         IdempotencyStatus `db:"status"`
	ResponseStatus int               `db:"response_status"`
	ResponseBody   []byte            `db:"response_body"`
	ExpiresAt      time.Time         `db:"expires_at"`
	CreatedAt      time.Time         `db:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at"`
}
