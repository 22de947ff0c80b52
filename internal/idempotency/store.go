// Package idempotency gates repeated mutating requests behind a client-supplied
// key. A row is claimed with status=in_flight before the handler runs; the
// composite unique constraint on (business_id, idem_key) is what decides who
// owns a contended key. Store failures never fail the request, they only
// disable caching for that call.
package idempotency

import (
	"context"
	"time"

	"github.com/perkhub/loyalty-gateway/internal/model"
	"github.com/perkhub/loyalty-gateway/internal/repository"
	"go.uber.org/zap"
)

type Outcome int

const (
	// OutcomeOwned means this request claimed the key: run the handler and
	// record the response.
	OutcomeOwned Outcome = iota
	// OutcomeReplay means a completed record exists: answer from cache.
	OutcomeReplay
	// OutcomeInProgress means another request holds the key right now.
	OutcomeInProgress
	// OutcomeBypass means the store is unavailable: run the handler uncached.
	OutcomeBypass
)

// Ticket is the result of Begin. Status/Body are set only for OutcomeReplay.
type Ticket struct {
	Outcome Outcome
	Status  int
	Body    []byte
}

type Store struct {
	repo repository.IdempotencyRepository
	ttl  time.Duration
	log  *zap.Logger
}

func NewStore(repo repository.IdempotencyRepository, ttl time.Duration, log *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{repo: repo, ttl: ttl, log: log}
}

// Begin claims the key for this request, or reports who already has it.
func (s *Store) Begin(ctx context.Context, businessID int64, key string) Ticket {
	inserted, existing, err := s.repo.InsertInFlight(ctx, businessID, key)
	if err != nil {
		s.log.Warn("idempotency claim failed, bypassing cache",
			zap.Int64("business_id", businessID), zap.Error(err))
		return Ticket{Outcome: OutcomeBypass}
	}
	if inserted {
		return Ticket{Outcome: OutcomeOwned}
	}
	if existing == nil {
		return Ticket{Outcome: OutcomeBypass}
	}
	if existing.Status == model.IdemCompleted {
		return Ticket{Outcome: OutcomeReplay, Status: existing.ResponseStatus, Body: existing.ResponseBody}
	}
	return Ticket{Outcome: OutcomeInProgress}
}

// Complete promotes an owned key with the final successful response.
func (s *Store) Complete(ctx context.Context, businessID int64, key string, status int, body []byte) {
	ttlHours := int(s.ttl / time.Hour)
	if err := s.repo.Complete(ctx, businessID, key, status, body, ttlHours); err != nil {
		s.log.Warn("idempotency complete failed",
			zap.Int64("business_id", businessID), zap.Error(err))
	}
}

// Abort releases an owned key after a failed handler so the client can retry.
func (s *Store) Abort(ctx context.Context, businessID int64, key string) {
	if err := s.repo.Delete(ctx, businessID, key); err != nil {
		s.log.Warn("idempotency abort failed",
			zap.Int64("business_id", businessID), zap.Error(err))
	}
}

// Sweep removes expired records and abandoned in-flight claims, returning how
// many were deleted.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}
