package gmo

import (
	"context"
	"time"

	"fxassist/internal/model"
	"fxassist/internal/ringbuf"
)

// Inbound WS frames are dispatched into typed bounded queues, one per
// channel. Quote channels keep the newest and drop the oldest — a stale
// quote has no value. Execution/order/position channels are lossless: a
// dropped fill would corrupt accounting, so a slow consumer blocks the
// producer and a watchdog surfaces WS_CONSUMER_STALL instead.

const (
	quoteQueueCap = 1024
	eventQueueCap = 256

	stallTimeout = 5 * time.Second
)

// QuoteQueue is the bounded drop-oldest queue for ticker frames.
type QuoteQueue struct {
	ring   *ringbuf.Ring
	notify chan struct{}
}

// NewQuoteQueue creates a quote queue with the standard 1024 capacity.
func NewQuoteQueue() *QuoteQueue {
	return &QuoteQueue{
		ring:   ringbuf.New(quoteQueueCap),
		notify: make(chan struct{}, 1),
	}
}

// Publish enqueues a quote, overwriting the oldest entry when full.
// Never blocks.
func (q *QuoteQueue) Publish(quote model.Quote) {
	q.ring.PushLatest(quote)
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Consume drains quotes into fn until ctx is done. Single consumer.
func (q *QuoteQueue) Consume(ctx context.Context, fn func(model.Quote)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
			for {
				quote, ok := q.ring.Pop()
				if !ok {
					break
				}
				fn(quote)
			}
		}
	}
}

// Dropped returns the number of quotes overwritten before consumption.
func (q *QuoteQueue) Dropped() uint64 { return q.ring.Dropped() }

// EventQueue is the lossless bounded queue for private event frames.
type EventQueue struct {
	ch chan WSPrivateEvent

	// OnStall is called once per stall episode when the consumer has not
	// drained the queue for stallTimeout (optional, operator alert).
	OnStall func(channel string, waited time.Duration)
}

// NewEventQueue creates an event queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{ch: make(chan WSPrivateEvent, eventQueueCap)}
}

// Publish enqueues an event, blocking until the consumer makes room or ctx
// is cancelled. Broker-emitted order within the channel is preserved.
func (q *EventQueue) Publish(ctx context.Context, ev WSPrivateEvent) error {
	select {
	case q.ch <- ev:
		return nil
	default:
	}

	// Queue full: block, but tell the operator if this takes too long.
	timer := time.NewTimer(stallTimeout)
	defer timer.Stop()
	start := time.Now()
	for {
		select {
		case q.ch <- ev:
			return nil
		case <-timer.C:
			if q.OnStall != nil {
				q.OnStall(ev.Channel, time.Since(start))
			}
			timer.Reset(stallTimeout)
		case <-ctx.Done():
			return &APIError{Category: CatCancelled, Err: ctx.Err()}
		}
	}
}

// Events exposes the consumer side of the queue.
func (q *EventQueue) Events() <-chan WSPrivateEvent { return q.ch }
