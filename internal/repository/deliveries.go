package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/perkhub/loyalty-gateway/internal/model"
)

// DeliveryResult is the outcome of one POST attempt, applied in batch by the
// delivery worker. Terminal statuses (success, failed) are never revisited
// because SelectDue only ever returns pending rows.
type DeliveryResult struct {
	ID            string
	Status        model.DeliveryStatus
	Attempts      int
	LastError     *string
	NextAttemptAt time.Time
}

type DeliveriesRepository interface {
	InsertBatch(ctx context.Context, ds []model.Delivery) error
	// SelectDue returns pending deliveries whose backoff window has elapsed,
	// joined with the owning webhook's url and secret.
	SelectDue(ctx context.Context, limit, maxAttempts int) ([]model.Delivery, error)
	ApplyResults(ctx context.Context, results []DeliveryResult) error
}

type DeliveriesRepositoryImpl struct {
	db *sqlx.DB
}

func NewDeliveriesRepository(db *sqlx.DB) *DeliveriesRepositoryImpl {
	return &DeliveriesRepositoryImpl{db: db}
}

var _ DeliveriesRepository = (*DeliveriesRepositoryImpl)(nil)

func (r *DeliveriesRepositoryImpl) InsertBatch(ctx context.Context, ds []model.Delivery) error {
	if len(ds) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(ds)*7)

	sb.WriteString(`INSERT INTO webhook_deliveries
		(id, webhook_id, business_id, event, payload, status, next_attempt_at, created_at, updated_at) VALUES `)
	for i, d := range ds {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, 'pending', ?, NOW(), NOW())")
		args = append(args, d.ID, d.WebhookID, d.BusinessID, d.Event.String(), d.Payload, d.NextAttemptAt)
	}

	_, err := r.db.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *DeliveriesRepositoryImpl) SelectDue(ctx context.Context, limit, maxAttempts int) ([]model.Delivery, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []model.Delivery
	err := r.db.SelectContext(ctx, &rows, `
		SELECT d.id, d.webhook_id, d.business_id, d.event, d.payload, d.status,
		       d.attempts, d.last_error, d.last_attempt_at, d.next_attempt_at,
		       d.created_at, d.updated_at,
		       w.url, w.secret
		  FROM webhook_deliveries d
		  JOIN webhooks w ON w.id = d.webhook_id
		 WHERE d.status = 'pending'
		   AND d.attempts < ?
		   AND d.next_attempt_at <= NOW()
		 ORDER BY d.next_attempt_at
		 LIMIT ?
	`, maxAttempts, limit)
	return rows, err
}

// ApplyResults flushes one worker tick's outcomes in a single transaction.
func (r *DeliveriesRepositoryImpl) ApplyResults(ctx context.Context, results []DeliveryResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		UPDATE webhook_deliveries
		   SET status = ?, attempts = ?, last_error = ?,
		       last_attempt_at = NOW(), next_attempt_at = ?, updated_at = NOW()
		 WHERE id = ? AND status = 'pending'
	`
	stmt, err := tx.PreparexContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, res := range results {
		if !res.Status.Valid() {
			return fmt.Errorf("invalid delivery status %q for %s", res.Status, res.ID)
		}
		if _, err := stmt.ExecContext(ctx,
			res.Status.String(), res.Attempts, res.LastError, res.NextAttemptAt, res.ID,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}
