package scheduler

import (
	"sync"
	"time"

	"github.com/davidortega/channelsync-backend/pkg/enums"
)

// breaker is a per-channel circuit breaker. After threshold consecutive
// failures it opens; once the cooldown passes it admits exactly one probe,
// whose outcome either closes the circuit or reopens it.
type breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	state    enums.CircuitState
	failures int
	openedAt time.Time
	probing  bool
}

func newBreaker(threshold int, cooldown time.Duration, now func() time.Time) *breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       now,
		state:     enums.CircuitClosed,
	}
}

// Allow reports whether a call may proceed. In half-open it grants the
// probe slot to exactly one caller.
func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case enums.CircuitClosed:
		return true
	case enums.CircuitOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = enums.CircuitHalfOpen
		b.probing = true
		return true
	case enums.CircuitHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return false
}

// Success records a delivered call.
func (b *breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = enums.CircuitClosed
	b.failures = 0
	b.probing = false
}

// Failure records a failed call and returns true when the circuit opened.
func (b *breaker) Failure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == enums.CircuitHalfOpen {
		b.state = enums.CircuitOpen
		b.openedAt = b.now()
		b.probing = false
		return true
	}

	b.failures++
	if b.failures >= b.threshold && b.state == enums.CircuitClosed {
		b.state = enums.CircuitOpen
		b.openedAt = b.now()
		return true
	}
	return false
}

// State returns the current circuit state.
func (b *breaker) State() enums.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
