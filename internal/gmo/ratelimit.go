package gmo

import (
	"context"
	"sync"
	"time"
)

// MethodClass keys one grant window. The broker limits private GETs,
// private POSTs and WS (un)subscribes independently.
type MethodClass int

const (
	ClassPrivateGet MethodClass = iota
	ClassPrivatePost
	ClassWSSubscribe
	ClassPublicGet // broker publishes no public ceiling; governed anyway
)

func (c MethodClass) String() string {
	switch c {
	case ClassPrivateGet:
		return "private_get"
	case ClassPrivatePost:
		return "private_post"
	case ClassWSSubscribe:
		return "ws_subscribe"
	default:
		return "public_get"
	}
}

// window books grant times so that no 1-second span ever holds more than
// limit grants. A plain refilling bucket cannot give that guarantee: a
// cold burst plus continuous refill lands limit extra calls inside the
// first second.
type window struct {
	mu     sync.Mutex
	limit  int
	span   time.Duration
	grants []time.Time // ascending; at most limit entries kept
}

func newWindow(perSec float64) *window {
	limit := int(perSec)
	if limit < 1 {
		limit = 1
	}
	return &window{limit: limit, span: time.Second}
}

// reserve books the caller's grant slot and returns how long to wait for
// it. The slot is the later of now and one span after the limit-th most
// recent grant, so consecutive grants always satisfy
// grant[k] - grant[k-limit] >= span.
func (w *window) reserve(now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	at := now
	if len(w.grants) >= w.limit {
		if earliest := w.grants[len(w.grants)-w.limit].Add(w.span); earliest.After(at) {
			at = earliest
		}
	}
	w.grants = append(w.grants, at)
	if n := len(w.grants) - w.limit; n > 0 {
		w.grants = w.grants[n:]
	}
	return at.Sub(now)
}

// Limits configures the per-class ceilings (calls per second).
type Limits struct {
	PrivateGetPerSec  float64
	PrivatePostPerSec float64
	WSSubPerSec       float64
	PublicGetPerSec   float64
}

// DefaultLimits matches the broker's documented ceilings.
func DefaultLimits() Limits {
	return Limits{
		PrivateGetPerSec:  6,
		PrivatePostPerSec: 1,
		WSSubPerSec:       1,
		PublicGetPerSec:   6,
	}
}

// Limiter is the single chokepoint for all outgoing broker calls.
// One instance is shared by the REST client and both WS clients.
type Limiter struct {
	windows map[MethodClass]*window

	// OnWait is called with the class and wait duration whenever a
	// caller is delayed (optional, for metrics).
	OnWait func(class MethodClass, wait time.Duration)
}

// NewLimiter creates the per-class windows.
func NewLimiter(l Limits) *Limiter {
	return &Limiter{
		windows: map[MethodClass]*window{
			ClassPrivateGet:  newWindow(l.PrivateGetPerSec),
			ClassPrivatePost: newWindow(l.PrivatePostPerSec),
			ClassWSSubscribe: newWindow(l.WSSubPerSec),
			ClassPublicGet:   newWindow(l.PublicGetPerSec),
		},
	}
}

// Wait blocks until the class grants a slot or ctx is done. Callers whose
// deadline elapses get a CANCELLED error promptly; the booked slot is not
// released (it slides out of the window within a second).
func (l *Limiter) Wait(ctx context.Context, class MethodClass) error {
	if err := ctx.Err(); err != nil {
		return &APIError{Category: CatCancelled, Err: err}
	}

	wait := l.windows[class].reserve(time.Now())
	if wait <= 0 {
		return nil
	}
	if l.OnWait != nil {
		l.OnWait(class, wait)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return &APIError{Category: CatCancelled, Err: ctx.Err()}
	case <-timer.C:
		return nil
	}
}
