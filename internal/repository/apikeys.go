package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/perkhub/loyalty-gateway/internal/model"
)

// AuthenticatedKey is an API key joined with its owning business's status,
// so the auth middleware can reject suspended tenants in one lookup.
type AuthenticatedKey struct {
	model.APIKey
	BusinessStatus string `db:"business_status"`
	RateLimitRPS   *int   `db:"rate_limit_rps"`
}

type APIKeysRepository interface {
	GetByKey(ctx context.Context, apiKey string) (*AuthenticatedKey, error)
	Insert(ctx context.Context, k *model.APIKey) error
	TouchLastUsed(ctx context.Context, id int64) error
}

type APIKeysRepositoryImpl struct {
	db *sqlx.DB
}

func NewAPIKeysRepository(db *sqlx.DB) *APIKeysRepositoryImpl {
	return &APIKeysRepositoryImpl{db: db}
}

var _ APIKeysRepository = (*APIKeysRepositoryImpl)(nil)

func (r *APIKeysRepositoryImpl) GetByKey(ctx context.Context, apiKey string) (*AuthenticatedKey, error) {
	var k AuthenticatedKey
	err := r.db.GetContext(ctx, &k, `
		SELECT k.id, k.business_id, k.api_key, k.name, k.environment, k.is_active,
		       k.last_used_at, k.created_at, k.updated_at,
		       b.status AS business_status, b.rate_limit_rps
		  FROM api_keys k
		  JOIN businesses b ON b.id = k.business_id
		 WHERE k.api_key = ? LIMIT 1
	`, apiKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (r *APIKeysRepositoryImpl) Insert(ctx context.Context, k *model.APIKey) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (business_id, api_key, name, environment, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NOW(), NOW())
	`, k.BusinessID, k.Key, k.Name, k.Environment.String(), k.IsActive)
	if err != nil {
		return err
	}
	k.ID, _ = res.LastInsertId()
	return nil
}

// TouchLastUsed stamps last_used_at. Called off the request path; a failure
// here must never fail the request.
func (r *APIKeysRepositoryImpl) TouchLastUsed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE api_keys SET last_used_at = NOW() WHERE id = ?
	`, id)
	return err
}
