package worker

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// MicroBreaker is a small per-endpoint circuit breaker. The delivery worker
// keeps one per webhook host so a dead receiver is probed, not hammered, and
// a skipped sweep does not count against the delivery's attempt ceiling.
type MicroBreaker struct {
	mu               sync.Mutex
	st               breakerState
	consecutiveFails int
	failThreshold    int
	openFor          time.Duration
	nextTryAt        time.Time
	probeInFlight    bool
}

func NewMicroBreaker(threshold int, openFor time.Duration) *MicroBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if openFor <= 0 {
		openFor = 15 * time.Second
	}
	return &MicroBreaker{failThreshold: threshold, openFor: openFor}
}

// TryAcquire reports whether a request may go out now. In the open state it
// admits a single probe once the cool-off has elapsed.
func (b *MicroBreaker) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	switch b.st {
	case breakerClosed:
		return true
	case breakerOpen:
		if now.After(b.nextTryAt) && !b.probeInFlight {
			b.st = breakerHalfOpen
			b.probeInFlight = true
			return true
		}
		return false
	case breakerHalfOpen:
		if !b.probeInFlight {
			b.probeInFlight = true
			return true
		}
		return false
	default:
		return true
	}
}

func (b *MicroBreaker) OnSuccess() {
	b.mu.Lock()
	b.consecutiveFails = 0
	b.st = breakerClosed
	b.probeInFlight = false
	b.mu.Unlock()
}

func (b *MicroBreaker) OnFailure() {
	b.mu.Lock()
	if b.st == breakerHalfOpen {
		b.st = breakerOpen
		b.nextTryAt = time.Now().Add(b.openFor)
		b.probeInFlight = false
		b.mu.Unlock()
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failThreshold {
		b.st = breakerOpen
		b.nextTryAt = time.Now().Add(b.openFor)
	}

	b.mu.Unlock()
}
