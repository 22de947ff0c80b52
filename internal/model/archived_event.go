package model

import "time"

// ArchivedEvent is a row in the ClickHouse event archive, written by the
// archiver worker from the Kafka event stream.
type ArchivedEvent struct {
	ID         string    `db:"id" json:"id"` // ULID, assigned at emit time
	BusinessID int64     `db:"business_id" json:"business_id"`
	Event      EventName `db:"event" json:"event"`
	Payload    string    `db:"payload" json:"payload"`
	EmittedAt  time.Time `db:"emitted_at" json:"emitted_at"`
}
