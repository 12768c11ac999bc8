package redis

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned for writes rejected while the breaker is open.
var ErrBreakerOpen = errors.New("redis breaker open")

// BreakerState is the breaker's position.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // writes pass through
	BreakerOpen                         // writes rejected until the cooldown
	BreakerHalfOpen                     // one probe write allowed
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Breaker trips after a run of consecutive write failures so a down Redis
// does not stall the quote loop on per-call timeouts. Once tripped it
// rejects writes for the cooldown, then lets a single probe through; the
// probe's outcome decides whether it closes again or reopens.
type Breaker struct {
	mu       sync.Mutex
	state    BreakerState
	failures int
	tripped  time.Time

	maxFailures int
	cooldown    time.Duration

	// OnStateChange is called on every transition (optional).
	OnStateChange func(from, to BreakerState)
}

// NewBreaker returns a closed breaker that trips after maxFailures
// consecutive errors and probes again after cooldown.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{maxFailures: maxFailures, cooldown: cooldown}
}

// Do runs fn unless the breaker is open inside its cooldown, in which case
// it returns ErrBreakerOpen without calling fn.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.state == BreakerOpen {
		if time.Since(b.tripped) <= b.cooldown {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.shift(BreakerHalfOpen)
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		b.tripped = time.Now()
		if b.state == BreakerHalfOpen || b.failures >= b.maxFailures {
			b.shift(BreakerOpen)
		}
		return err
	}
	if b.state == BreakerHalfOpen {
		b.shift(BreakerClosed)
	}
	b.failures = 0
	return nil
}

// State reports the current position.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) shift(to BreakerState) {
	from := b.state
	b.state = to
	if to == BreakerClosed {
		b.failures = 0
	}
	if b.OnStateChange != nil {
		b.OnStateChange(from, to)
	}
}
