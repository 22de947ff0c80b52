package worker

import (
	"context"
	"time"

	"github.com/perkhub/loyalty-gateway/internal/idempotency"
	"go.uber.org/zap"
)

// Sweeper garbage-collects expired idempotency records on a fixed interval.
type Sweeper struct {
	Store    *idempotency.Store
	Log      *zap.Logger
	Interval time.Duration
}

func NewSweeper(store *idempotency.Store, log *zap.Logger, interval time.Duration) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{Store: store, Log: log, Interval: interval}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	tick := time.NewTicker(s.Interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			n, err := s.Store.Sweep(ctx)
			if err != nil {
				s.Log.Error("idempotency sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.Log.Info("idempotency sweep", zap.Int64("removed", n))
			}
		}
	}
}
