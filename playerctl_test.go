package playerctl

import (
	"testing"
	"time"
)

func TestCreateInitializeCommandShutdown(t *testing.T) {
	h, err := Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if code := h.SetOptionString("idle", "yes"); code != Success {
		t.Fatalf("SetOptionString: %v", code)
	}
	if code := h.Initialize(); code != Success {
		t.Fatalf("Initialize: %v", code)
	}
	if code := h.CommandString("loadfile test.mkv"); code != Success {
		t.Fatalf("CommandString: %v", code)
	}
	if code := h.CommandString("quit"); code != Success {
		t.Fatalf("CommandString(quit): %v", code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		e := h.WaitEvent(100 * time.Millisecond)
		if e.Kind == EventShutdown {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("WaitEvent never returned EventShutdown")
		}
	}
}

func TestSecondHandleCollisionNaming(t *testing.T) {
	h1, err := Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	h2, err := CreateClient(h1, "main")
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if h1.Name() != "main" || h2.Name() != "main2" {
		t.Fatalf("names = %q, %q, want main, main2", h1.Name(), h2.Name())
	}
}

func TestAsyncReplyMatchesReplyID(t *testing.T) {
	h, _ := Create()
	h.Initialize()
	if e := h.WaitEvent(0); e.Kind != EventIdle {
		t.Fatalf("first event after Initialize = %v, want EventIdle", e.Kind)
	}

	id, code := h.CommandAsync([]string{"seek", "10"})
	if code != Success {
		t.Fatalf("CommandAsync: %v", code)
	}
	e := h.WaitEvent(time.Second)
	if e.Kind != EventOk {
		t.Fatalf("Kind = %v, want EventOk", e.Kind)
	}
	if e.InReplyTo != id {
		t.Fatalf("InReplyTo = %v, want %v", e.InReplyTo, id)
	}
}

func TestReservationDisciplineAt1000(t *testing.T) {
	// Suspend the engine first so every CommandAsync call only reserves
	// a reply slot without the dispatch bridge racing ahead to drain
	// reservations back into buffered events; that keeps
	// buffered+reserved deterministic for this capacity test. The
	// EventIdle that Initialize broadcasts stays buffered and holds one
	// of the 1000 slots, so 999 reservations fit.
	h, err := Create() // default EventRingCapacity is 1000
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	h.Initialize()
	h.Suspend()

	var lastGood ReplyID
	for i := 0; i < 999; i++ {
		id, code := h.CommandAsync([]string{"seek", "1"})
		if code != Success {
			t.Fatalf("CommandAsync #%d: %v", i, code)
		}
		lastGood = id
	}
	if lastGood != 999 {
		t.Fatalf("lastGood = %v, want 999", lastGood)
	}
	if _, code := h.CommandAsync([]string{"seek", "1"}); code != ErrEventBufferFull {
		t.Fatalf("1000th CommandAsync = %v, want ErrEventBufferFull", code)
	}

	h.Resume()

	drained := 0
	for {
		e := h.WaitEvent(time.Second)
		if e.Kind == EventNone {
			break
		}
		drained++
	}
	// 999 replies plus the buffered EventIdle.
	if drained != 1000 {
		t.Fatalf("drained = %d, want 1000", drained)
	}

	if _, code := h.CommandAsync([]string{"seek", "1"}); code != Success {
		t.Fatalf("CommandAsync after drain: %v", code)
	}
}

func TestMaskFilterAndInvalidKind(t *testing.T) {
	h, _ := Create()

	if code := h.RequestEvent(EventTick, false); code != Success {
		t.Fatalf("RequestEvent off: %v", code)
	}
	if code := h.RequestEvent(EventTick, true); code != Success {
		t.Fatalf("RequestEvent on: %v", code)
	}
	if code := h.RequestEvent(EventKind(9999), true); code != ErrInvalidParameter {
		t.Fatalf("RequestEvent(9999) = %v, want ErrInvalidParameter", code)
	}
}

func TestPropertyRoundtripAndNotFound(t *testing.T) {
	h, _ := Create()
	h.Initialize()
	if e := h.WaitEvent(0); e.Kind != EventIdle {
		t.Fatalf("first event after Initialize = %v, want EventIdle", e.Kind)
	}

	if code := h.SetPropertyString("volume", "50"); code != Success {
		t.Fatalf("SetPropertyString: %v", code)
	}
	v, code := h.GetPropertyString("volume")
	if code != Success {
		t.Fatalf("GetPropertyString: %v", code)
	}
	if v != "50" {
		t.Fatalf("volume = %q, want %q", v, "50")
	}

	id, code := h.GetPropertyAsync("nonexistent", FormatString)
	if code != Success {
		t.Fatalf("GetPropertyAsync: %v", code)
	}
	e := h.WaitEvent(time.Second)
	if e.Kind != EventError || e.Error != ErrNotFound || e.InReplyTo != id {
		t.Fatalf("event = %+v, want Error/ErrNotFound for id %v", e, id)
	}
}

func TestErrorStringAndEventName(t *testing.T) {
	if ErrorString(ErrNotFound) == "" {
		t.Fatal("ErrorString(ErrNotFound) is empty")
	}
	if EventName(EventShutdown) != "shutdown" {
		t.Fatalf("EventName(EventShutdown) = %q, want shutdown", EventName(EventShutdown))
	}
}
