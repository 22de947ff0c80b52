package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/perkhub/loyalty-gateway/internal/model"
)

type WebhooksRepository interface {
	Insert(ctx context.Context, w model.Webhook) error
	List(ctx context.Context, businessID int64) ([]model.Webhook, error)
	ListActive(ctx context.Context, businessID int64) ([]model.Webhook, error)
	Delete(ctx context.Context, businessID int64, id string) (bool, error)
}

type WebhooksRepositoryImpl struct {
	db *sqlx.DB
}

func NewWebhooksRepository(db *sqlx.DB) *WebhooksRepositoryImpl {
	return &WebhooksRepositoryImpl{db: db}
}

var _ WebhooksRepository = (*WebhooksRepositoryImpl)(nil)

const webhookCols = `id, business_id, url, secret, events, is_active, created_at, updated_at`

func (r *WebhooksRepositoryImpl) Insert(ctx context.Context, w model.Webhook) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhooks (id, business_id, url, secret, events, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW(), NOW())
	`, w.ID, w.BusinessID, w.URL, w.Secret, w.Events, w.IsActive)
	return err
}

func (r *WebhooksRepositoryImpl) List(ctx context.Context, businessID int64) ([]model.Webhook, error) {
	var rows []model.Webhook
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+webhookCols+` FROM webhooks
		 WHERE business_id = ?
		 ORDER BY created_at
	`, businessID)
	return rows, err
}

func (r *WebhooksRepositoryImpl) ListActive(ctx context.Context, businessID int64) ([]model.Webhook, error) {
	var rows []model.Webhook
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+webhookCols+` FROM webhooks
		 WHERE business_id = ? AND is_active = 1
	`, businessID)
	return rows, err
}

func (r *WebhooksRepositoryImpl) Delete(ctx context.Context, businessID int64, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM webhooks WHERE business_id = ? AND id = ?
	`, businessID, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
