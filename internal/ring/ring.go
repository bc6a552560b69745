// Package ring implements the bounded, single-producer/single-consumer
// event queue each handle owns. Capacity is fixed at construction;
// writes and reads never block and never partially succeed.
package ring

import "github.com/coreplay/playerctl/event"

// Ring is a fixed-capacity FIFO of event.Event values. It is not safe
// for concurrent use by itself — callers serialize access with their
// own lock (the owning handle's lock): the single-producer/
// single-consumer discipline is enforced by locking, not lock-free
// semantics.
type Ring struct {
	buf   []event.Event
	head  int // index of the oldest buffered record
	count int // number of buffered records
}

// New returns a Ring with room for capacity records. Panics if capacity
// is not positive — a zero-capacity ring can never deliver a reserved
// reply, which would violate the reservation guarantee entirely.
func New(capacity int) *Ring {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Ring{buf: make([]event.Event, capacity)}
}

// Capacity returns the fixed number of records the ring can hold.
func (r *Ring) Capacity() int { return len(r.buf) }

// Buffered returns the number of records currently queued.
func (r *Ring) Buffered() int { return r.count }

// Available returns the number of additional records that could be
// written right now.
func (r *Ring) Available() int { return len(r.buf) - r.count }

// Write appends e to the ring. Returns false without modifying the ring
// if it is already full.
func (r *Ring) Write(e event.Event) bool {
	if r.count == len(r.buf) {
		return false
	}
	idx := (r.head + r.count) % len(r.buf)
	r.buf[idx] = e
	r.count++
	return true
}

// Read removes and returns the oldest record. The second return value
// is false if the ring was empty, in which case the first return value
// is the zero Event.
func (r *Ring) Read() (event.Event, bool) {
	if r.count == 0 {
		return event.Event{}, false
	}
	e := r.buf[r.head]
	r.buf[r.head] = event.Event{} // drop references so payloads can be GC'd
	r.head = (r.head + 1) % len(r.buf)
	r.count--
	return e, true
}

// Drain removes and returns every currently buffered record, in FIFO
// order, leaving the ring empty. Used by Handle destruction to free any
// payloads still queued on handle destruction.
func (r *Ring) Drain() []event.Event {
	out := make([]event.Event, 0, r.count)
	for {
		e, ok := r.Read()
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out
}
