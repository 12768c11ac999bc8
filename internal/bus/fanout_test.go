package bus

import (
	"context"
	"testing"
	"time"

	"fxassist/internal/model"
)

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New(10)
	out1 := fo.Subscribe()
	out2 := fo.Subscribe()

	input := make(chan model.Quote, 10)
	ctx, cancel := context.WithCancel(context.Background())
	go fo.Run(ctx, input)

	quote := model.Quote{
		Symbol:    model.USDJPY,
		Bid:       150.118,
		Ask:       150.122,
		Timestamp: time.Now(),
		Status:    model.MarketOpen,
	}

	input <- quote
	time.Sleep(50 * time.Millisecond)

	select {
	case q := <-out1:
		if q.Symbol != model.USDJPY {
			t.Errorf("out1: expected USD_JPY, got %s", q.Symbol)
		}
	case <-time.After(time.Second):
		t.Fatal("out1: timed out waiting for quote")
	}

	select {
	case q := <-out2:
		if q.Symbol != model.USDJPY {
			t.Errorf("out2: expected USD_JPY, got %s", q.Symbol)
		}
	case <-time.After(time.Second):
		t.Fatal("out2: timed out waiting for quote")
	}

	cancel()
}

func TestFanOut_SlowSubscriberLosesQuotes(t *testing.T) {
	fo := New(2)
	slow := fo.Subscribe()

	var drops []int
	fo.OnDrop = func(idx int) { drops = append(drops, idx) }

	for i := 0; i < 5; i++ {
		fo.Publish(model.Quote{Symbol: model.USDJPY, Bid: float64(i)})
	}

	if len(drops) != 3 {
		t.Fatalf("drops = %d, want 3", len(drops))
	}
	for _, idx := range drops {
		if idx != 0 {
			t.Errorf("drop reported for subscriber %d", idx)
		}
	}

	// The two buffered quotes are the earliest ones; a full channel drops
	// the new quote, not the queued ones.
	q := <-slow
	if q.Bid != 0 {
		t.Errorf("first delivered quote = %v, want 0", q.Bid)
	}
}

func TestFanOut_ChannelStats(t *testing.T) {
	fo := New(4)
	fo.Subscribe()
	fo.Subscribe()

	fo.Publish(model.Quote{Symbol: model.USDJPY})
	fo.Publish(model.Quote{Symbol: model.USDJPY})

	stats := fo.ChannelStats()
	if len(stats) != 2 {
		t.Fatalf("stats = %d entries", len(stats))
	}
	for i, st := range stats {
		if st.Len != 2 || st.Cap != 4 {
			t.Errorf("subscriber %d: %+v, want {2 4}", i, st)
		}
	}
}

func TestFanOut_RunClosesOutputsOnCancel(t *testing.T) {
	fo := New(1)
	out := fo.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		fo.Run(ctx, make(chan model.Quote))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit on cancel")
	}
	if _, ok := <-out; ok {
		t.Error("output channel not closed after Run exits")
	}
}

func TestLatest_Table(t *testing.T) {
	l := NewLatest()

	if _, ok := l.Get(model.USDJPY); ok {
		t.Error("empty table returned a quote")
	}

	now := time.Date(2026, 3, 17, 10, 0, 0, 0, time.UTC)
	l.Update(model.Quote{Symbol: model.USDJPY, Bid: 150.10, Timestamp: now})
	l.Update(model.Quote{Symbol: model.EURJPY, Bid: 162.50, Timestamp: now})
	l.Update(model.Quote{Symbol: model.USDJPY, Bid: 150.12, Timestamp: now.Add(time.Second)})

	q, ok := l.Get(model.USDJPY)
	if !ok || q.Bid != 150.12 {
		t.Errorf("Get = %v %v, want latest 150.12", q.Bid, ok)
	}

	snap := l.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot = %d entries, want 2", len(snap))
	}
	// The snapshot is a copy: mutating it must not touch the table.
	snap[model.USDJPY] = model.Quote{Symbol: model.USDJPY, Bid: 0}
	if q, _ := l.Get(model.USDJPY); q.Bid != 150.12 {
		t.Error("snapshot mutation leaked into the table")
	}

	age, ok := l.Age(model.USDJPY, now.Add(3*time.Second))
	if !ok || age != 2*time.Second {
		t.Errorf("Age = %v %v, want 2s", age, ok)
	}
	if _, ok := l.Age(model.GBPJPY, now); ok {
		t.Error("Age for unseen symbol must report false")
	}
}
