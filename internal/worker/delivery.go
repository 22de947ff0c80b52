package worker

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/perkhub/loyalty-gateway/internal/event"
	"github.com/perkhub/loyalty-gateway/internal/metrics"
	"github.com/perkhub/loyalty-gateway/internal/model"
	"github.com/perkhub/loyalty-gateway/internal/repository"
	"go.uber.org/zap"
)

// DeliveryWorker drains pending webhook deliveries:
// - selects a bounded batch of due rows,
// - signs and POSTs each payload concurrently,
// - flushes all outcomes in one transaction.
// Delivery is at-least-once; receivers dedup on the IDs in the payload.
type DeliveryWorker struct {
	// Dependencies
	Deliveries repository.DeliveriesRepository
	Client     *http.Client
	Log        *zap.Logger

	// Behavior
	Workers     int           // goroutines POSTing per tick
	BatchSize   int           // max deliveries per tick
	MaxAttempts int           // terminal failure ceiling
	Interval    time.Duration // tick period
	BackoffBase time.Duration // retry delay, doubled per attempt

	breakerThreshold int
	breakerOpenFor   time.Duration

	mu       sync.Mutex
	breakers map[string]*MicroBreaker // keyed by webhook host
}

// NewDeliveryWorker builds a worker with sane defaults.
func NewDeliveryWorker(deliveriesRepo repository.DeliveriesRepository, log *zap.Logger) *DeliveryWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &DeliveryWorker{
		Deliveries:       deliveriesRepo,
		Client:           &http.Client{Timeout: 10 * time.Second},
		Log:              log,
		Workers:          16,
		BatchSize:        100,
		MaxAttempts:      5,
		Interval:         5 * time.Second,
		BackoffBase:      30 * time.Second,
		breakerThreshold: 3,
		breakerOpenFor:   15 * time.Second,
		breakers:         make(map[string]*MicroBreaker),
	}
}

// SetBreaker tunes the per-host circuit breaker.
func (w *DeliveryWorker) SetBreaker(threshold int, openFor time.Duration) {
	if threshold > 0 {
		w.breakerThreshold = threshold
	}
	if openFor > 0 {
		w.breakerOpenFor = openFor
	}
}

// Run ticks until ctx is cancelled.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = 5 * time.Second
	}

	tick := time.NewTicker(w.Interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			n, err := w.ProcessPending(ctx, w.BatchSize)
			if err != nil {
				w.Log.Error("delivery sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				w.Log.Info("delivery sweep", zap.Int("processed", n))
			}
		}
	}
}

// ProcessPending handles up to limit due deliveries and returns how many were
// attempted or skipped.
func (w *DeliveryWorker) ProcessPending(ctx context.Context, limit int) (int, error) {
	due, err := w.Deliveries.SelectDue(ctx, limit, w.MaxAttempts)
	if err != nil {
		return 0, fmt.Errorf("select due: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	workers := w.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(due) {
		workers = len(due)
	}

	in := make(chan model.Delivery)
	out := make(chan repository.DeliveryResult, len(due))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range in {
				out <- w.attempt(ctx, d)
			}
		}()
	}

	for _, d := range due {
		in <- d
	}
	close(in)
	wg.Wait()
	close(out)

	results := make([]repository.DeliveryResult, 0, len(due))
	for res := range out {
		results = append(results, res)
	}

	if err := w.Deliveries.ApplyResults(ctx, results); err != nil {
		return 0, fmt.Errorf("apply results: %w", err)
	}
	return len(results), nil
}

// attempt POSTs a single delivery and computes its next state.
func (w *DeliveryWorker) attempt(ctx context.Context, d model.Delivery) repository.DeliveryResult {
	now := time.Now().UTC()
	br := w.breakerFor(d.URL)

	if !br.TryAcquire() {
		// Endpoint is cooling off: defer without burning an attempt.
		metrics.DeliveriesTotal.WithLabelValues("skipped").Inc()
		return repository.DeliveryResult{
			ID:            d.ID,
			Status:        model.DeliveryPending,
			Attempts:      d.Attempts,
			LastError:     d.LastError,
			NextAttemptAt: now.Add(w.breakerOpenFor),
		}
	}

	err := w.post(ctx, d)
	attempts := d.Attempts + 1

	if err == nil {
		br.OnSuccess()
		metrics.DeliveriesTotal.WithLabelValues("success").Inc()
		return repository.DeliveryResult{
			ID:            d.ID,
			Status:        model.DeliverySuccess,
			Attempts:      attempts,
			NextAttemptAt: now,
		}
	}

	br.OnFailure()
	msg := err.Error()

	if attempts >= w.MaxAttempts {
		metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
		w.Log.Warn("delivery exhausted",
			zap.String("delivery_id", d.ID), zap.String("url", d.URL),
			zap.Int("attempts", attempts), zap.String("last_error", msg))
		return repository.DeliveryResult{
			ID:            d.ID,
			Status:        model.DeliveryFailed,
			Attempts:      attempts,
			LastError:     &msg,
			NextAttemptAt: now,
		}
	}

	metrics.DeliveriesTotal.WithLabelValues("retry").Inc()
	return repository.DeliveryResult{
		ID:            d.ID,
		Status:        model.DeliveryPending,
		Attempts:      attempts,
		LastError:     &msg,
		NextAttemptAt: now.Add(w.backoff(attempts)),
	}
}

func (w *DeliveryWorker) post(ctx context.Context, d model.Delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", d.Event.String())
	req.Header.Set("X-Webhook-Signature", event.Sign(d.Payload, d.Secret))

	res, err := w.Client.Do(req)
	if err != nil {
		return err
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return fmt.Errorf("webhook=%s status=%d", d.WebhookID, res.StatusCode)
	}

	return nil
}

// backoff doubles the base delay per completed attempt: 30s, 1m, 2m, 4m.
func (w *DeliveryWorker) backoff(attempts int) time.Duration {
	base := w.BackoffBase
	if base <= 0 {
		base = 30 * time.Second
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
	}
	return d
}

func (w *DeliveryWorker) breakerFor(rawURL string) *MicroBreaker {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	br, ok := w.breakers[host]
	if !ok {
		br = NewMicroBreaker(w.breakerThreshold, w.breakerOpenFor)
		w.breakers[host] = br
	}
	return br
}
