package model

import "testing"

func TestWebhookSubscribesTo(t *testing.T) {
	cases := []struct {
		name   string
		events string
		event  EventName
		want   bool
	}{
		{"exact match", `["transaction_created"]`, EventTransactionCreated, true},
		{"not subscribed", `["transaction_created"]`, EventCustomerCreated, false},
		{"wildcard", `["*"]`, EventRedemptionCompleted, true},
		{"wildcard among others", `["customer_created","*"]`, EventPointsAwarded, true},
		{"empty list", `[]`, EventCustomerCreated, false},
		{"malformed json", `not-json`, EventCustomerCreated, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := Webhook{Events: tc.events}
			if got := w.SubscribesTo(tc.event); got != tc.want {
				t.Errorf("SubscribesTo(%q) with events=%s = %v, want %v", tc.event, tc.events, got, tc.want)
			}
		})
	}
}

func TestEventNameValid(t *testing.T) {
	for _, e := range []EventName{EventCustomerCreated, EventTransactionCreated, EventPointsAwarded, EventRedemptionCompleted, EventWildcard} {
		if !e.Valid() {
			t.Errorf("%q should be valid", e)
		}
	}
	if EventName("order_shipped").Valid() {
		t.Error("unknown event name should be invalid")
	}
}

func TestDeliveryStatusValid(t *testing.T) {
	for _, s := range []DeliveryStatus{DeliveryPending, DeliverySuccess, DeliveryFailed} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if DeliveryStatus("retrying").Valid() {
		t.Error("unknown delivery status should be invalid")
	}
}
