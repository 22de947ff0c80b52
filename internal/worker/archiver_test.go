package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/perkhub/loyalty-gateway/internal/kafka"
	"github.com/perkhub/loyalty-gateway/internal/model"
)

type fakeSource struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (f *fakeSource) Fetch(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.msgs) > 0 {
		m := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeSource) Commit(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeSource) committedOffsets() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

type fakeArchive struct {
	mu        sync.Mutex
	insertErr error
	rows      []model.ArchivedEvent
}

func (f *fakeArchive) InsertBatch(ctx context.Context, rows []model.ArchivedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeArchive) ListByBusiness(ctx context.Context, businessID int64, event model.EventName, limit, offset int) ([]model.ArchivedEvent, error) {
	return nil, nil
}

func (f *fakeArchive) archived() []model.ArchivedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ArchivedEvent(nil), f.rows...)
}

func eventMessage(t *testing.T, offset int64, id string) kafka.Message {
	t.Helper()
	v, err := json.Marshal(model.ArchivedEvent{
		ID: id, BusinessID: 7, Event: model.EventPointsAwarded, Payload: "{}", EmittedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Offset: offset, Value: v}
}

func runArchiver(t *testing.T, src *fakeSource, arc *fakeArchive) context.CancelFunc {
	t.Helper()
	a := NewArchiver(src, arc, nil)
	a.Workers = 2
	a.BatchSize = 10
	a.BatchWait = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = a.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel
}

func waitUntil(t *testing.T, cond func() bool) {
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

func TestArchiverWritesAndCommitsBatch(t *testing.T) {
	src := &fakeSource{msgs: []kafka.Message{
		eventMessage(t, 10, "ev1"),
		eventMessage(t, 11, "ev2"),
		eventMessage(t, 12, "ev3"),
	}}
	arc := &fakeArchive{}
	runArchiver(t, src, arc)

	waitUntil(t, func() bool { return len(arc.archived()) == 3 })
	waitUntil(t, func() bool { return len(src.committedOffsets()) == 3 })

	seen := map[int64]bool{}
	for _, off := range src.committedOffsets() {
		seen[off] = true
	}
	for _, off := range []int64{10, 11, 12} {
		if !seen[off] {
			t.Errorf("offset %d not committed after flush", off)
		}
	}
}

// A failed archive insert must leave the offsets uncommitted so the stream
// redelivers the batch; committing before the write would silently drop rows.
func TestArchiverDoesNotCommitFailedBatch(t *testing.T) {
	src := &fakeSource{msgs: []kafka.Message{
		eventMessage(t, 5, "ev1"),
		eventMessage(t, 6, "ev2"),
	}}
	arc := &fakeArchive{insertErr: errors.New("clickhouse down")}
	runArchiver(t, src, arc)

	// Give the batch writer several flush intervals to misbehave.
	time.Sleep(150 * time.Millisecond)

	if got := src.committedOffsets(); len(got) != 0 {
		t.Fatalf("committed %v with the archive down, want nothing", got)
	}
	if got := arc.archived(); len(got) != 0 {
		t.Fatalf("archived %d rows, want none", len(got))
	}
}

// Unparseable records can never succeed; they are committed immediately and
// skipped instead of wedging the partition.
func TestArchiverCommitsPoisonMessages(t *testing.T) {
	src := &fakeSource{msgs: []kafka.Message{
		{Offset: 20, Value: []byte("not-json")},
		eventMessage(t, 21, "ev1"),
	}}
	arc := &fakeArchive{}
	runArchiver(t, src, arc)

	waitUntil(t, func() bool { return len(src.committedOffsets()) == 2 })

	rows := arc.archived()
	if len(rows) != 1 || rows[0].ID != "ev1" {
		t.Fatalf("archived = %+v, want only the valid record", rows)
	}
}
