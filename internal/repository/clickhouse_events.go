package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/perkhub/loyalty-gateway/internal/model"
)

// EventArchiveRepository reads and writes the ClickHouse event archive fed by
// the archiver worker.
type EventArchiveRepository interface {
	InsertBatch(ctx context.Context, events []model.ArchivedEvent) error
	ListByBusiness(ctx context.Context, businessID int64, event model.EventName, limit, offset int) ([]model.ArchivedEvent, error)
}

type eventArchiveRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewEventArchiveRepository(ch *sqlx.DB) EventArchiveRepository {
	return &eventArchiveRepository{ch: ch}
}

func (r *eventArchiveRepository) InsertBatch(ctx context.Context, events []model.ArchivedEvent) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(events)*5)

	sb.WriteString(`INSERT INTO loygw.events (id, business_id, event, payload, emitted_at) VALUES `)
	for i, e := range events {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, e.ID, e.BusinessID, e.Event.String(), e.Payload, e.EmittedAt)
	}

	_, err := r.ch.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *eventArchiveRepository) ListByBusiness(ctx context.Context, businessID int64, event model.EventName, limit, offset int) ([]model.ArchivedEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, business_id, event, payload, emitted_at
		FROM loygw.events
		WHERE business_id = ?
	`
	args := []any{businessID}

	if event != "" {
		q += " AND event = ?"
		args = append(args, event.String())
	}

	q += " ORDER BY emitted_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.ArchivedEvent
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
