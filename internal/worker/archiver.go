package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/perkhub/loyalty-gateway/internal/kafka"
	"github.com/perkhub/loyalty-gateway/internal/model"
	"github.com/perkhub/loyalty-gateway/internal/repository"
	"go.uber.org/zap"
)

// ArchiveSource is the stream the archiver drains. *kafka.Consumer satisfies
// it; tests use an in-memory fake.
type ArchiveSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// Archiver drains the Kafka event stream into the ClickHouse archive:
// - fetches event records from Kafka,
// - fans them out to parser goroutines,
// - batches inserts on size or time.
// At-least-once: an offset is committed only after the batch holding its row
// has been written, so a failed insert is redelivered after restart.
// Duplicate archive rows are harmless report noise.
type Archiver struct {
	// Dependencies
	Source  ArchiveSource
	Archive repository.EventArchiveRepository
	Log     *zap.Logger

	// Behavior
	Workers   int
	BatchSize int
	BatchWait time.Duration
}

func NewArchiver(source ArchiveSource, archive repository.EventArchiveRepository, log *zap.Logger) *Archiver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Archiver{
		Source:    source,
		Archive:   archive,
		Log:       log,
		Workers:   8,
		BatchSize: 200,
		BatchWait: 300 * time.Millisecond,
	}
}

// archiveItem pairs a parsed row with the message it came from, so the batch
// writer can commit the offset once the row is durably archived.
type archiveItem struct {
	rec model.ArchivedEvent
	msg kafka.Message
}

// Run starts the archiver and blocks until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	if a.Workers <= 0 {
		a.Workers = 8
	}
	if a.BatchSize <= 0 {
		a.BatchSize = 200
	}
	if a.BatchWait <= 0 {
		a.BatchWait = 300 * time.Millisecond
	}

	items := make(chan archiveItem, a.BatchSize*2)
	go a.runBatchWriter(ctx, items)

	msgCh := make(chan kafka.Message, a.Workers*2)

	// Fetcher goroutine
	go func() {
		defer close(msgCh)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				m, err := a.Source.Fetch(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					a.Log.Warn("kafka fetch failed", zap.Error(err))
					time.Sleep(200 * time.Millisecond)
					continue
				}
				msgCh <- m
			}
		}
	}()

	for i := 0; i < a.Workers; i++ {
		go a.runProcessor(ctx, msgCh, items)
	}

	<-ctx.Done()
	return ctx.Err()
}

func (a *Archiver) runProcessor(ctx context.Context, in <-chan kafka.Message, out chan<- archiveItem) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}

			var rec model.ArchivedEvent
			if err := json.Unmarshal(m.Value, &rec); err != nil || rec.ID == "" {
				// poison message: it will never parse, commit and skip
				_ = a.Source.Commit(ctx, m)
				a.Log.Warn("bad event record", zap.Error(err))
				continue
			}

			out <- archiveItem{rec: rec, msg: m}
		}
	}
}

func (a *Archiver) runBatchWriter(ctx context.Context, in <-chan archiveItem) {
	tick := time.NewTicker(a.BatchWait)
	defer tick.Stop()

	rows := make([]model.ArchivedEvent, 0, a.BatchSize)
	msgs := make([]kafka.Message, 0, a.BatchSize)

	flush := func() {
		if len(rows) == 0 {
			return
		}
		if err := a.Archive.InsertBatch(ctx, rows); err != nil {
			// Offsets stay uncommitted: the batch is redelivered after the
			// consumer restarts or rebalances.
			a.Log.Error("archive insert failed", zap.Int("count", len(rows)), zap.Error(err))
		} else {
			if err := a.Source.Commit(ctx, msgs...); err != nil {
				a.Log.Warn("kafka commit failed", zap.Error(err))
			}
			a.Log.Debug("archived events", zap.Int("count", len(rows)))
		}
		rows = rows[:0]
		msgs = msgs[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case it, ok := <-in:
			if !ok {
				flush()
				return
			}
			rows = append(rows, it.rec)
			msgs = append(msgs, it.msg)
			if len(rows) >= a.BatchSize {
				flush()
			}

		case <-tick.C:
			flush()
		}
	}
}
