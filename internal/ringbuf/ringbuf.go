// Package ringbuf provides a lock-free, single-producer single-consumer
// (SPSC) ring buffer for model.Quote. It uses atomic operations and
// cache-line padding to achieve minimal latency with zero contention.
//
// Quotes are latest-wins data, so alongside the classic reject-on-full Push
// the ring offers PushLatest, which overwrites the oldest entry instead of
// dropping the new one. Stale quotes have no value; fresh ones do.
package ringbuf

import (
	"sync/atomic"

	"fxassist/internal/model"
)

// cacheLine is the typical x86-64 cache line size used for padding.
const cacheLine = 64

// Ring is a lock-free SPSC ring buffer for Quote values.
// Size must be a power of two for fast bitwise modulo.
type Ring struct {
	buf  []model.Quote
	mask uint64

	// Separate cache lines to prevent false sharing between producer and consumer.
	_pad0 [cacheLine]byte
	head  atomic.Uint64 // written by producer
	_pad1 [cacheLine]byte
	tail  atomic.Uint64 // written by consumer
	_pad2 [cacheLine]byte

	// Drop counter (atomic, for metrics)
	dropped atomic.Uint64
}

// New creates a ring buffer. capacity is rounded up to the next power of two.
// Minimum capacity is 2.
func New(capacity int) *Ring {
	cap := nextPow2(capacity)
	if cap < 2 {
		cap = 2
	}
	return &Ring{
		buf:  make([]model.Quote, cap),
		mask: uint64(cap - 1),
	}
}

// Push appends a quote. Returns false if the buffer is full (the quote is
// NOT written in that case). Non-blocking.
func (r *Ring) Push(q model.Quote) bool {
	head := r.head.Load()
	tail := r.tail.Load()

	if head-tail >= uint64(len(r.buf)) {
		r.dropped.Add(1)
		return false
	}

	r.buf[head&r.mask] = q
	r.head.Store(head + 1)
	return true
}

// PushLatest appends a quote, discarding the oldest entry when full.
// The producer advances the consumer's tail; this is safe only in the
// SPSC discipline where a lagging consumer tolerates a skipped slot.
func (r *Ring) PushLatest(q model.Quote) {
	head := r.head.Load()
	tail := r.tail.Load()

	if head-tail >= uint64(len(r.buf)) {
		// Full: sacrifice the oldest quote.
		r.tail.Store(tail + 1)
		r.dropped.Add(1)
	}

	r.buf[head&r.mask] = q
	r.head.Store(head + 1)
}

// Pop retrieves the next quote. Returns false if the buffer is empty.
// Non-blocking.
func (r *Ring) Pop() (model.Quote, bool) {
	tail := r.tail.Load()
	head := r.head.Load()

	if tail >= head {
		return model.Quote{}, false
	}

	q := r.buf[tail&r.mask]
	r.tail.Store(tail + 1)
	return q, true
}

// Len returns the current number of items in the buffer.
func (r *Ring) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Cap returns the buffer capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Dropped returns the total number of quotes discarded due to a full buffer.
func (r *Ring) Dropped() uint64 {
	return r.dropped.Load()
}

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
