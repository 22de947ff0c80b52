package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/perkhub/loyalty-gateway/internal/model"
	"github.com/perkhub/loyalty-gateway/internal/repository"
)

type fakeWebhooksRepo struct {
	hooks []model.Webhook
	err   error
}

func (f *fakeWebhooksRepo) Insert(ctx context.Context, w model.Webhook) error { return nil }
func (f *fakeWebhooksRepo) List(ctx context.Context, businessID int64) ([]model.Webhook, error) {
	return f.hooks, f.err
}
func (f *fakeWebhooksRepo) ListActive(ctx context.Context, businessID int64) ([]model.Webhook, error) {
	return f.hooks, f.err
}
func (f *fakeWebhooksRepo) Delete(ctx context.Context, businessID int64, id string) (bool, error) {
	return false, nil
}

type fakeDeliveriesRepo struct {
	inserted []model.Delivery
	err      error
}

func (f *fakeDeliveriesRepo) InsertBatch(ctx context.Context, ds []model.Delivery) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, ds...)
	return nil
}
func (f *fakeDeliveriesRepo) SelectDue(ctx context.Context, limit, maxAttempts int) ([]model.Delivery, error) {
	return nil, nil
}
func (f *fakeDeliveriesRepo) ApplyResults(ctx context.Context, results []repository.DeliveryResult) error {
	return nil
}

// recorderStream is mutex-protected: stream publishes run on their own
// goroutine off the request path.
type recorderStream struct {
	mu     sync.Mutex
	keys   []string
	values [][]byte
	err    error
}

func (r *recorderStream) Publish(ctx context.Context, key, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.keys = append(r.keys, string(key))
	r.values = append(r.values, value)
	return nil
}

func (r *recorderStream) snapshot() ([]string, [][]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...), append([][]byte(nil), r.values...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func hook(id string, events string) model.Webhook {
	return model.Webhook{ID: id, BusinessID: 7, URL: "https://example.com/" + id, Secret: "s", Events: events, IsActive: true}
}

func TestEmitEnqueuesSubscribedWebhooksOnly(t *testing.T) {
	webhooks := &fakeWebhooksRepo{hooks: []model.Webhook{
		hook("wh1", `["transaction_created","points_awarded"]`),
		hook("wh2", `["customer_created"]`),
		hook("wh3", `["*"]`),
	}}
	deliveries := &fakeDeliveriesRepo{}
	d := NewDispatcher(webhooks, deliveries, nil, nil)

	d.Emit(context.Background(), 7, model.EventPointsAwarded, map[string]any{"points": int64(5)})

	if len(deliveries.inserted) != 2 {
		t.Fatalf("expected 2 deliveries (exact match + wildcard), got %d", len(deliveries.inserted))
	}
	got := map[string]bool{}
	for _, del := range deliveries.inserted {
		got[del.WebhookID] = true
		if del.Status != model.DeliveryPending {
			t.Errorf("delivery %s status = %q, want pending", del.ID, del.Status)
		}
		if del.BusinessID != 7 {
			t.Errorf("delivery %s business_id = %d, want 7", del.ID, del.BusinessID)
		}
		if del.Event != model.EventPointsAwarded {
			t.Errorf("delivery %s event = %q", del.ID, del.Event)
		}
	}
	if !got["wh1"] || !got["wh3"] {
		t.Fatalf("expected deliveries for wh1 and wh3, got %v", got)
	}
}

func TestEmitPayloadIsSharedEnvelope(t *testing.T) {
	webhooks := &fakeWebhooksRepo{hooks: []model.Webhook{
		hook("wh1", `["*"]`),
		hook("wh2", `["*"]`),
	}}
	deliveries := &fakeDeliveriesRepo{}
	d := NewDispatcher(webhooks, deliveries, nil, nil)

	d.Emit(context.Background(), 42, model.EventCustomerCreated, map[string]any{"customer_id": "abc"})

	if len(deliveries.inserted) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(deliveries.inserted))
	}
	if string(deliveries.inserted[0].Payload) != string(deliveries.inserted[1].Payload) {
		t.Fatal("deliveries for the same event should share one serialized payload")
	}

	var env model.EventEnvelope
	if err := json.Unmarshal(deliveries.inserted[0].Payload, &env); err != nil {
		t.Fatalf("payload is not a valid envelope: %v", err)
	}
	if env.Event != model.EventCustomerCreated {
		t.Errorf("envelope event = %q", env.Event)
	}
	if env.BusinessID != 42 {
		t.Errorf("envelope business_id = %d", env.BusinessID)
	}
	if env.Data["customer_id"] != "abc" {
		t.Errorf("envelope data = %v", env.Data)
	}
	if env.Timestamp.IsZero() {
		t.Error("envelope timestamp is zero")
	}
}

func TestEmitPublishesToStream(t *testing.T) {
	webhooks := &fakeWebhooksRepo{}
	stream := &recorderStream{}
	d := NewDispatcher(webhooks, &fakeDeliveriesRepo{}, stream, nil)

	d.Emit(context.Background(), 9, model.EventRedemptionCompleted, map[string]any{"redemption_id": "r1"})

	waitFor(t, func() bool {
		_, values := stream.snapshot()
		return len(values) == 1
	})
	keys, values := stream.snapshot()
	if keys[0] != "9" {
		t.Errorf("stream key = %q, want business id", keys[0])
	}

	var rec model.ArchivedEvent
	if err := json.Unmarshal(values[0], &rec); err != nil {
		t.Fatalf("stream record is not valid JSON: %v", err)
	}
	if rec.Event != model.EventRedemptionCompleted || rec.BusinessID != 9 {
		t.Errorf("stream record = %+v", rec)
	}
	if rec.ID == "" {
		t.Error("stream record has no id")
	}
}

func TestEmitSurvivesEnqueueAndStreamFailures(t *testing.T) {
	webhooks := &fakeWebhooksRepo{hooks: []model.Webhook{hook("wh1", `["*"]`)}}
	deliveries := &fakeDeliveriesRepo{err: errors.New("db down")}
	stream := &recorderStream{err: errors.New("kafka down")}
	d := NewDispatcher(webhooks, deliveries, stream, nil)

	// must not panic or surface anything
	d.Emit(context.Background(), 1, model.EventTransactionCreated, nil)

	if len(deliveries.inserted) != 0 {
		t.Fatal("insert should have failed")
	}
}

type blockingStream struct {
	release chan struct{}
}

func (b *blockingStream) Publish(ctx context.Context, key, value []byte) error {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return ctx.Err()
}

// A hung broker must not stall Emit: publishing happens off the caller's
// goroutine with its own deadline.
func TestEmitDoesNotBlockOnSlowStream(t *testing.T) {
	stream := &blockingStream{release: make(chan struct{})}
	defer close(stream.release)
	d := NewDispatcher(&fakeWebhooksRepo{}, &fakeDeliveriesRepo{}, stream, nil)

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), 3, model.EventTransactionCreated, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on the stream publish")
	}
}

func TestEmitNilStream(t *testing.T) {
	d := NewDispatcher(&fakeWebhooksRepo{}, &fakeDeliveriesRepo{}, nil, nil)
	d.Emit(context.Background(), 1, model.EventCustomerCreated, nil)
}

func TestEmitWebhookLookupFailure(t *testing.T) {
	webhooks := &fakeWebhooksRepo{err: errors.New("db down")}
	deliveries := &fakeDeliveriesRepo{}
	d := NewDispatcher(webhooks, deliveries, nil, nil)

	d.Emit(context.Background(), 1, model.EventCustomerCreated, nil)

	if len(deliveries.inserted) != 0 {
		t.Fatal("no deliveries expected when webhook lookup fails")
	}
}
