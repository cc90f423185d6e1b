package queue

import (
	"errors"
	"testing"
	"time"
)

func TestFIFOProducerFirst(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		if err := q.Put(i); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}

	for i := 0; i < 5; i++ {
		v, ok := q.Get()
		if !ok || v != i {
			t.Fatalf("Get() = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
}

func TestFIFOConsumerFirst(t *testing.T) {
	q := New[string]()

	// Consumers arrive before any producer.
	first := q.Async()
	second := q.Async()

	q.Put("a")
	q.Put("b")

	if v, ok := first.Await(); !ok || v != "a" {
		t.Errorf("first waiter got (%q, %v), want (a, true)", v, ok)
	}
	if v, ok := second.Await(); !ok || v != "b" {
		t.Errorf("second waiter got (%q, %v), want (b, true)", v, ok)
	}
}

func TestInterleavedOrdering(t *testing.T) {
	q := New[int]()

	q.Put(1)
	p1 := q.Async() // pairs with 1 immediately
	p2 := q.Async() // waits
	q.Put(2)
	q.Put(3)

	if v, _ := p1.Await(); v != 1 {
		t.Errorf("p1 = %d, want 1", v)
	}
	if v, _ := p2.Await(); v != 2 {
		t.Errorf("p2 = %d, want 2", v)
	}
	if v, ok := q.Get(); !ok || v != 3 {
		t.Errorf("Get() = (%d, %v), want (3, true)", v, ok)
	}
}

func TestShutdownResolvesWaiters(t *testing.T) {
	q := New[int]()

	p1 := q.Async()
	p2 := q.Async()
	q.Shutdown()

	if _, ok := p1.Await(); ok {
		t.Error("waiter resolved with a value after shutdown of empty queue")
	}
	if _, ok := p2.Await(); ok {
		t.Error("second waiter resolved with a value")
	}
}

func TestShutdownPairsBufferedItems(t *testing.T) {
	q := New[int]()
	q.Put(10)
	q.Put(20)
	q.Shutdown()

	// Buffered items drain in order, then end-of-stream.
	if v, ok := q.Get(); !ok || v != 10 {
		t.Errorf("Get() = (%d, %v), want (10, true)", v, ok)
	}
	if v, ok := q.Get(); !ok || v != 20 {
		t.Errorf("Get() = (%d, %v), want (20, true)", v, ok)
	}
	if _, ok := q.Get(); ok {
		t.Error("drained queue still yields values")
	}
	// And never blocks afterwards.
	if _, ok := q.Get(); ok {
		t.Error("end-of-stream is not sticky")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	q := New[int]()
	q.Put(1)
	q.Shutdown()
	q.Shutdown()

	if v, ok := q.Get(); !ok || v != 1 {
		t.Errorf("Get() = (%d, %v), want (1, true)", v, ok)
	}
	if _, ok := q.Get(); ok {
		t.Error("expected end-of-stream")
	}
}

func TestPutAfterShutdown(t *testing.T) {
	q := New[int]()
	q.Shutdown()

	if err := q.Put(1); !errors.Is(err, ErrShutdown) {
		t.Errorf("Put after shutdown = %v, want ErrShutdown", err)
	}
	if _, ok := q.Get(); ok {
		t.Error("rejected item was delivered")
	}
}

func TestGetBlocksUntilPut(t *testing.T) {
	q := New[string]()

	got := make(chan string, 1)
	go func() {
		v, _ := q.Get()
		got <- v
	}()

	select {
	case v := <-got:
		t.Fatalf("Get returned %q before any Put", v)
	case <-time.After(20 * time.Millisecond):
	}

	q.Put("late")
	select {
	case v := <-got:
		if v != "late" {
			t.Errorf("Get() = %q, want late", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Get never returned after Put")
	}
}

func TestBufferWaiterExclusion(t *testing.T) {
	q := New[int]()

	// A put followed by an async leaves both empty.
	q.Put(1)
	p := q.Async()
	if q.Len() != 0 {
		t.Errorf("Len() = %d after pairing, want 0", q.Len())
	}
	if v, ok := p.Value(); !ok || v != 1 {
		t.Errorf("promise = (%d, %v), want (1, true)", v, ok)
	}
}
