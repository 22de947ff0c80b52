// Package event fans domain events out to webhook deliveries and the Kafka
// event stream. Emission runs after the triggering transaction has committed
// and is strictly best-effort: a failure here is logged and swallowed, never
// surfaced to the mutation that emitted the event.
package event

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/perkhub/loyalty-gateway/internal/kafka"
	"github.com/perkhub/loyalty-gateway/internal/metrics"
	"github.com/perkhub/loyalty-gateway/internal/model"
	"github.com/perkhub/loyalty-gateway/internal/repository"
	"github.com/perkhub/loyalty-gateway/internal/util"
	"go.uber.org/zap"
)

// Stream publishes emitted events to the archive pipeline. *kafka.Producer
// satisfies it; tests use a recorder.
type Stream interface {
	Publish(ctx context.Context, key, value []byte) error
}

type Dispatcher struct {
	webhooks   repository.WebhooksRepository
	deliveries repository.DeliveriesRepository
	stream     Stream // nil disables the archive pipeline
	log        *zap.Logger
}

func NewDispatcher(
	webhooksRepo repository.WebhooksRepository,
	deliveriesRepo repository.DeliveriesRepository,
	stream Stream,
	log *zap.Logger,
) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		webhooks:   webhooksRepo,
		deliveries: deliveriesRepo,
		stream:     stream,
		log:        log,
	}
}

// Emit serializes the event once, creates one pending delivery per active
// subscribed webhook, and publishes to the event stream.
func (d *Dispatcher) Emit(ctx context.Context, businessID int64, name model.EventName, data map[string]any) {
	now := time.Now().UTC()
	env := model.EventEnvelope{
		Event:      name,
		Data:       data,
		BusinessID: businessID,
		Timestamp:  now,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		d.log.Error("event marshal failed", zap.String("event", name.String()), zap.Error(err))
		return
	}

	metrics.EventsEmittedTotal.WithLabelValues(name.String()).Inc()

	d.enqueueDeliveries(ctx, businessID, name, payload, now)
	d.publishToStream(businessID, name, payload, now)
}

func (d *Dispatcher) enqueueDeliveries(ctx context.Context, businessID int64, name model.EventName, payload []byte, now time.Time) {
	hooks, err := d.webhooks.ListActive(ctx, businessID)
	if err != nil {
		d.log.Error("webhook lookup failed",
			zap.Int64("business_id", businessID), zap.String("event", name.String()), zap.Error(err))
		return
	}

	var ds []model.Delivery
	for _, h := range hooks {
		if !h.SubscribesTo(name) {
			continue
		}
		ds = append(ds, model.Delivery{
			ID:            util.New(),
			WebhookID:     h.ID,
			BusinessID:    businessID,
			Event:         name,
			Payload:       payload,
			Status:        model.DeliveryPending,
			NextAttemptAt: now,
		})
	}
	if len(ds) == 0 {
		return
	}

	if err := d.deliveries.InsertBatch(ctx, ds); err != nil {
		d.log.Error("delivery enqueue failed",
			zap.Int64("business_id", businessID), zap.String("event", name.String()),
			zap.Int("count", len(ds)), zap.Error(err))
		return
	}

	d.log.Debug("deliveries enqueued",
		zap.Int64("business_id", businessID), zap.String("event", name.String()), zap.Int("count", len(ds)))
}

// streamPublishTimeout bounds how long a single stream publish may hang on an
// unreachable broker before the record is dropped.
const streamPublishTimeout = 3 * time.Second

func (d *Dispatcher) publishToStream(businessID int64, name model.EventName, payload []byte, now time.Time) {
	if d.stream == nil {
		return
	}

	rec := model.ArchivedEvent{
		ID:         util.New(),
		BusinessID: businessID,
		Event:      name,
		Payload:    string(payload),
		EmittedAt:  now,
	}
	value, err := json.Marshal(rec)
	if err != nil {
		d.log.Error("stream record marshal failed", zap.Error(err))
		return
	}

	// Publish off the request path: a slow or dead broker must not stall the
	// mutation that emitted the event.
	key := []byte(strconv.FormatInt(businessID, 10))
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), streamPublishTimeout)
		defer cancel()
		if err := d.stream.Publish(ctx, key, value); err != nil {
			// Losing a stream publish loses a report row, never a webhook.
			d.log.Warn("event stream publish failed",
				zap.Int64("business_id", businessID), zap.String("event", name.String()), zap.Error(err))
		}
	}()
}

var _ Stream = (*kafka.Producer)(nil)
