package ring

import (
	"testing"

	"github.com/coreplay/playerctl/event"
)

func TestNewPanicsOnNonPositiveCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("New(0) did not panic")
		}
	}()
	New(0)
}

func TestWriteReadFIFOOrder(t *testing.T) {
	r := New(4)
	for i := 0; i < 3; i++ {
		if !r.Write(event.Event{Kind: event.EventKind(i)}) {
			t.Fatalf("Write(%d) = false, want true", i)
		}
	}
	if got := r.Buffered(); got != 3 {
		t.Fatalf("Buffered() = %d, want 3", got)
	}
	if got := r.Available(); got != 1 {
		t.Fatalf("Available() = %d, want 1", got)
	}
	for i := 0; i < 3; i++ {
		e, ok := r.Read()
		if !ok {
			t.Fatalf("Read() at i=%d: ok = false", i)
		}
		if e.Kind != event.EventKind(i) {
			t.Errorf("Read() at i=%d: Kind = %v, want %v", i, e.Kind, event.EventKind(i))
		}
	}
	if _, ok := r.Read(); ok {
		t.Fatal("Read() on empty ring: ok = true, want false")
	}
}

func TestWriteFailsWhenFull(t *testing.T) {
	r := New(2)
	if !r.Write(event.Event{}) || !r.Write(event.Event{}) {
		t.Fatal("expected first two writes to succeed")
	}
	if r.Write(event.Event{}) {
		t.Fatal("Write() on full ring = true, want false")
	}
	if r.Buffered() != 2 {
		t.Fatalf("Buffered() = %d, want 2 (failed write must not partially apply)", r.Buffered())
	}
}

func TestWrapAround(t *testing.T) {
	r := New(2)
	r.Write(event.Event{Kind: event.EventOk})
	r.Read()
	r.Write(event.Event{Kind: event.EventError})
	r.Write(event.Event{Kind: event.EventTick})
	e, _ := r.Read()
	if e.Kind != event.EventError {
		t.Fatalf("Read() after wraparound = %v, want EventError", e.Kind)
	}
	e, _ = r.Read()
	if e.Kind != event.EventTick {
		t.Fatalf("second Read() after wraparound = %v, want EventTick", e.Kind)
	}
}

func TestDrainEmptiesInOrder(t *testing.T) {
	r := New(3)
	r.Write(event.Event{Kind: event.EventOk})
	r.Write(event.Event{Kind: event.EventError})
	got := r.Drain()
	if len(got) != 2 {
		t.Fatalf("Drain() len = %d, want 2", len(got))
	}
	if got[0].Kind != event.EventOk || got[1].Kind != event.EventError {
		t.Fatalf("Drain() order = %v, want [Ok Error]", got)
	}
	if r.Buffered() != 0 {
		t.Fatalf("Buffered() after Drain() = %d, want 0", r.Buffered())
	}
}
