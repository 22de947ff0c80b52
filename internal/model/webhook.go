package model

import (
	"encoding/json"
	"time"
)

// Webhook is a registered delivery endpoint. Secret is generated server-side,
// returned once at registration, and afterwards only used to sign outbound
// payloads.
type Webhook struct {
	ID         string    `db:"id"` // ULID
	BusinessID int64     `db:"business_id"`
	URL        string    `db:"url"`
	Secret     string    `db:"secret"`
	Events     string    `db:"events"` // JSON array of event names
	IsActive   bool      `db:"is_active"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// EventList decodes the subscribed-events column.
func (w Webhook) EventList() []EventName {
	var names []EventName
	if err := json.Unmarshal([]byte(w.Events), &names); err != nil {
		return nil
	}
	return names
}

// SubscribesTo reports whether the webhook wants the given event, either by
// exact name or via the wildcard.
func (w Webhook) SubscribesTo(event EventName) bool {
	for _, e := range w.EventList() {
		if e == event || e == EventWildcard {
			return true
		}
	}
	return false
}

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) Valid() bool {
	return s == DeliveryPending || s == DeliverySuccess || s == DeliveryFailed
}

// Delivery is one pending or attempted webhook notification. State machine:
// pending -> success, or pending -> ... -> failed once attempts hit the
// ceiling. Terminal states never transition.
type Delivery struct {
	ID            string         `db:"id"` // ULID
	WebhookID     string         `db:"webhook_id"`
	BusinessID    int64          `db:"business_id"`
	Event         EventName      `db:"event"`
	Payload       []byte         `db:"payload"`
	Status        DeliveryStatus `db:"status"`
	Attempts      int            `db:"attempts"`
	LastError     *string        `db:"last_error"`
	LastAttemptAt *time.Time     `db:"last_attempt_at"`
	NextAttemptAt time.Time      `db:"next_attempt_at"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`

	// URL and Secret are joined in from the owning webhook when selecting
	// work for the delivery worker; they are not columns on deliveries.
	URL    string `db:"url"`
	Secret string `db:"secret"`
}
