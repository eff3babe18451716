package query

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrServiceUnavailable is returned without contacting the service while the
// breaker is cooling down after a run of dispatch failures.
var ErrServiceUnavailable = errors.New("query: service unavailable")

const (
	defaultTripAfter = 5
	defaultCooldown  = 30 * time.Second
)

// breaker trips after consecutive dispatch failures and rejects further calls
// until the cooldown elapses. The first call after the cooldown goes through
// as a probe; its outcome decides whether the breaker closes again or keeps
// rejecting. Safe for concurrent use.
type breaker struct {
	tripAfter int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	tripped  bool
	probing  bool
	openedAt time.Time
}

func newBreaker(tripAfter int, cooldown time.Duration) *breaker {
	if tripAfter <= 0 {
		tripAfter = defaultTripAfter
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &breaker{tripAfter: tripAfter, cooldown: cooldown}
}

// allow reports whether a dispatch may proceed. While tripped, at most one
// probe call is admitted per elapsed cooldown.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.tripped {
		return true
	}
	if b.probing || time.Since(b.openedAt) < b.cooldown {
		return false
	}
	b.probing = true
	slog.Info("query: breaker cooldown elapsed, probing service")
	return true
}

// record feeds a dispatch outcome back into the breaker.
func (b *breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.tripped = false
		b.probing = false
		return
	}

	if b.probing {
		b.probing = false
		b.openedAt = time.Now()
		slog.Warn("query: probe dispatch failed, breaker stays open")
		return
	}

	b.failures++
	if !b.tripped && b.failures >= b.tripAfter {
		b.tripped = true
		b.openedAt = time.Now()
		slog.Warn("query: breaker tripped after consecutive failures",
			"failures", b.failures)
	}
}
