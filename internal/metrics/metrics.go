package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loygw_mutations_total",
			Help: "Integration-API mutations by kind and outcome",
		},
		[]string{"kind", "outcome"}, // customer_upsert|transaction_create|... , ok|rejected|error
	)

	EventsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loygw_events_emitted_total",
			Help: "Domain events emitted by the webhook dispatcher",
		},
		[]string{"event"},
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loygw_webhook_deliveries_total",
			Help: "Webhook delivery attempts by result",
		},
		[]string{"result"}, // success|retry|failed|skipped
	)

	IdempotencyHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loygw_idempotency_replays_total",
			Help: "Mutating requests answered from the idempotency cache",
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		MutationsTotal,
		EventsEmittedTotal,
		DeliveriesTotal,
		IdempotencyHitsTotal,
	)
}
