package worker

import (
	"testing"
	"time"
)

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	b := NewMicroBreaker(3, time.Minute)

	b.OnFailure()
	b.OnFailure()
	if !b.TryAcquire() {
		t.Fatal("breaker opened below the failure threshold")
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewMicroBreaker(2, time.Minute)

	b.OnFailure()
	b.OnFailure()
	if b.TryAcquire() {
		t.Fatal("breaker should be open after reaching the threshold")
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := NewMicroBreaker(2, time.Minute)

	b.OnFailure()
	b.OnSuccess()
	b.OnFailure()
	if !b.TryAcquire() {
		t.Fatal("success should have reset the consecutive failure count")
	}
}

func TestBreakerAdmitsSingleProbeAfterCoolOff(t *testing.T) {
	b := NewMicroBreaker(1, 10*time.Millisecond)

	b.OnFailure()
	if b.TryAcquire() {
		t.Fatal("breaker should be open immediately after tripping")
	}

	time.Sleep(20 * time.Millisecond)

	if !b.TryAcquire() {
		t.Fatal("breaker should admit one probe after the cool-off")
	}
	if b.TryAcquire() {
		t.Fatal("only one probe may be in flight")
	}

	// probe succeeds: breaker closes fully
	b.OnSuccess()
	if !b.TryAcquire() {
		t.Fatal("breaker should be closed after a successful probe")
	}
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b := NewMicroBreaker(1, 10*time.Millisecond)

	b.OnFailure()
	time.Sleep(20 * time.Millisecond)
	if !b.TryAcquire() {
		t.Fatal("expected probe admission")
	}
	b.OnFailure()

	if b.TryAcquire() {
		t.Fatal("breaker should be open again right after a failed probe")
	}
}
