package ringbuf

import (
	"sync"
	"testing"
	"time"

	"fxassist/internal/model"
)

func TestRing_BasicPushPop(t *testing.T) {
	r := New(4)

	q1 := model.Quote{Symbol: "USD_JPY", Bid: 150.10}
	q2 := model.Quote{Symbol: "EUR_JPY", Bid: 162.50}

	if !r.Push(q1) {
		t.Fatal("push q1 should succeed")
	}
	if !r.Push(q2) {
		t.Fatal("push q2 should succeed")
	}

	if r.Len() != 2 {
		t.Fatalf("expected len=2, got %d", r.Len())
	}

	got, ok := r.Pop()
	if !ok || got.Symbol != "USD_JPY" {
		t.Fatalf("expected USD_JPY, got %v ok=%v", got.Symbol, ok)
	}

	got, ok = r.Pop()
	if !ok || got.Symbol != "EUR_JPY" {
		t.Fatalf("expected EUR_JPY, got %v ok=%v", got.Symbol, ok)
	}

	_, ok = r.Pop()
	if ok {
		t.Fatal("pop from empty should return false")
	}
}

func TestRing_PushRejectsWhenFull(t *testing.T) {
	r := New(2)

	r.Push(model.Quote{Bid: 1})
	r.Push(model.Quote{Bid: 2})

	if r.Push(model.Quote{Bid: 3}) {
		t.Fatal("push to full buffer should return false")
	}
	if r.Dropped() != 1 {
		t.Fatalf("expected dropped=1, got %d", r.Dropped())
	}
}

func TestRing_PushLatestOverwritesOldest(t *testing.T) {
	r := New(2)

	r.PushLatest(model.Quote{Bid: 1})
	r.PushLatest(model.Quote{Bid: 2})
	r.PushLatest(model.Quote{Bid: 3}) // evicts Bid: 1

	if r.Dropped() != 1 {
		t.Fatalf("expected dropped=1, got %d", r.Dropped())
	}
	got, ok := r.Pop()
	if !ok || got.Bid != 2 {
		t.Fatalf("expected oldest surviving quote 2, got %v ok=%v", got.Bid, ok)
	}
	got, ok = r.Pop()
	if !ok || got.Bid != 3 {
		t.Fatalf("expected 3, got %v ok=%v", got.Bid, ok)
	}
}

func TestRing_Wraparound(t *testing.T) {
	r := New(4)

	for round := 0; round < 5; round++ {
		for i := 0; i < 4; i++ {
			if !r.Push(model.Quote{Bid: float64(round*10 + i)}) {
				t.Fatalf("round %d push %d failed", round, i)
			}
		}
		for i := 0; i < 4; i++ {
			q, ok := r.Pop()
			if !ok {
				t.Fatalf("round %d pop %d failed", round, i)
			}
			if q.Bid != float64(round*10+i) {
				t.Fatalf("round %d pop %d: expected bid=%d, got %v", round, i, round*10+i, q.Bid)
			}
		}
	}
}

func TestRing_SPSC_Concurrent(t *testing.T) {
	const count = 100_000
	r := New(1024)

	var wg sync.WaitGroup
	wg.Add(2)

	// Producer
	go func() {
		defer wg.Done()
		for i := 0; i < count; i++ {
			for !r.Push(model.Quote{Bid: float64(i)}) {
				// spin-wait (busy loop for test only)
			}
		}
	}()

	// Consumer
	received := make([]float64, 0, count)
	go func() {
		defer wg.Done()
		for len(received) < count {
			q, ok := r.Pop()
			if ok {
				received = append(received, q.Bid)
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("SPSC test timed out")
	}

	// Verify ordering
	for i, v := range received {
		if v != float64(i) {
			t.Fatalf("at index %d: expected %d, got %v", i, i, v)
		}
	}
}

func TestRing_NextPow2(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {5, 8}, {7, 8}, {8, 8}, {9, 16}, {1023, 1024},
	}
	for _, tc := range cases {
		got := nextPow2(tc.in)
		if got != tc.want {
			t.Errorf("nextPow2(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
