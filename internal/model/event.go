package model

import "time"

type EventName string

const (
	EventCustomerCreated     EventName = "customer_created"
	EventTransactionCreated  EventName = "transaction_created"
	EventPointsAwarded       EventName = "points_awarded"
	EventRedemptionCompleted EventName = "redemption_completed"

	// EventWildcard subscribes a webhook to every event.
	EventWildcard EventName = "*"
)

func (e EventName) String() string { return string(e) }

func (e EventName) Valid() bool {
	switch e {
	case EventCustomerCreated, EventTransactionCreated, EventPointsAwarded, EventRedemptionCompleted, EventWildcard:
		return true
	default:
		return false
	}
}

// EventEnvelope is the payload serialized once at enqueue time. Delivery
// POSTs the exact stored bytes, so the signature stays stable across retries.
type EventEnvelope struct {
	Event      EventName      `json:"event"`
	Data       map[string]any `json:"data"`
	BusinessID int64          `json:"business_id"`
	Timestamp  time.Time      `json:"timestamp"`
}
