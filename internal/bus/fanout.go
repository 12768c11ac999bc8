// Package bus broadcasts quotes from the single gateway consumer to N
// engine-side subscribers (candle aggregation, the latest-quote table, the
// cache writer). Subscribers are decoupled: a slow one loses quotes, it
// never blocks the pipeline.
package bus

import (
	"context"
	"log"
	"sync"

	"fxassist/internal/model"
)

// FanOut broadcasts quotes from a single input to N output channels.
// If an output channel is full, the quote is dropped for that consumer.
type FanOut struct {
	mu      sync.RWMutex
	outputs []chan model.Quote
	bufSize int

	// OnDrop is called when a quote is dropped for a subscriber.
	// subscriberIdx is the 0-based index of the slow consumer.
	OnDrop func(subscriberIdx int)
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int) *FanOut {
	return &FanOut{
		bufSize: outputBufferSize,
	}
}

// Subscribe creates and returns a new output channel.
func (f *FanOut) Subscribe() <-chan model.Quote {
	ch := make(chan model.Quote, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, ch)
	f.mu.Unlock()
	return ch
}

// Publish broadcasts one quote to all subscribers. Never blocks.
func (f *FanOut) Publish(q model.Quote) {
	f.mu.RLock()
	for i, ch := range f.outputs {
		select {
		case ch <- q:
		default:
			if f.OnDrop != nil {
				f.OnDrop(i)
			} else {
				log.Printf("[bus] output channel %d full, dropping %s quote", i, q.Symbol)
			}
		}
	}
	f.mu.RUnlock()
}

// Run reads from the input channel and fans out to all subscribers.
// Blocks until ctx is cancelled or input is closed.
func (f *FanOut) Run(ctx context.Context, input <-chan model.Quote) {
	defer func() {
		f.mu.RLock()
		for _, ch := range f.outputs {
			close(ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case q, ok := <-input:
			if !ok {
				return
			}
			f.Publish(q)
		}
	}
}

// ChannelStat is (length, capacity) for one subscriber channel.
// Used for reporting channel saturation percentage.
type ChannelStat struct {
	Len int
	Cap int
}

func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, ch := range f.outputs {
		stats[i] = ChannelStat{Len: len(ch), Cap: cap(ch)}
	}
	return stats
}
