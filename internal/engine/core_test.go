package engine

import (
	"testing"
	"time"

	"github.com/coreplay/playerctl/event"
	"github.com/coreplay/playerctl/internal/config"
)

func newTestCore() *Core {
	return New(nil, config.Default())
}

func TestSetOptionBeforeInitialize(t *testing.T) {
	c := newTestCore()
	if code := c.SetOption("idle", "yes"); code != event.Success {
		t.Fatalf("SetOption: %v", code)
	}
	if c.Initialized() {
		t.Fatal("Initialized() = true before Initialize")
	}
}

func TestInitializeAppliesOptionsAsProperties(t *testing.T) {
	c := newTestCore()
	c.SetOption("volume", "42")
	if code := c.Initialize(); code != event.Success {
		t.Fatalf("Initialize: %v", code)
	}
	defer c.Shutdown()

	v, code := c.GetProperty("volume", event.FormatString)
	if code != event.Success {
		t.Fatalf("GetProperty: %v", code)
	}
	if v != "42" {
		t.Fatalf("volume = %q, want %q", v, "42")
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	c := newTestCore()
	if code := c.Initialize(); code != event.Success {
		t.Fatalf("first Initialize: %v", code)
	}
	defer c.Shutdown()
	if code := c.Initialize(); code != event.Success {
		t.Fatalf("second Initialize: %v", code)
	}
}

func TestSetGetUnknownPropertyIsNotFound(t *testing.T) {
	c := newTestCore()
	if code := c.SetProperty("nonexistent", "x"); code != event.ErrNotFound {
		t.Fatalf("SetProperty(nonexistent) = %v, want ErrNotFound", code)
	}
	if _, code := c.GetProperty("nonexistent", event.FormatString); code != event.ErrNotFound {
		t.Fatalf("GetProperty(nonexistent) = %v, want ErrNotFound", code)
	}
}

func TestGetPropertyOSDStringIsHumanReadable(t *testing.T) {
	c := newTestCore()
	v, code := c.GetProperty("pause", event.FormatOsdString)
	if code != event.Success {
		t.Fatalf("GetProperty: %v", code)
	}
	if v != "pause: no" {
		t.Fatalf("osd value = %q, want %q", v, "pause: no")
	}
}

func TestParseCommandRejectsEmpty(t *testing.T) {
	c := newTestCore()
	if _, code := c.ParseCommand(nil); code != event.ErrInvalidParameter {
		t.Fatalf("ParseCommand(nil) = %v, want ErrInvalidParameter", code)
	}
	if _, code := c.ParseCommandString("   "); code != event.ErrInvalidParameter {
		t.Fatalf("ParseCommandString(blank) = %v, want ErrInvalidParameter", code)
	}
}

func TestRunCommandQuitShutsDownEngine(t *testing.T) {
	c := newTestCore()
	c.Initialize()

	h, code := c.Registry().Add("main")
	if code != event.Success {
		t.Fatalf("Add: %v", code)
	}

	cmd, code := c.ParseCommandString("quit")
	if code != event.Success {
		t.Fatalf("ParseCommandString: %v", code)
	}
	if code := c.RunCommand(cmd); code != event.Success {
		t.Fatalf("RunCommand: %v", code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if e := h.WaitEvent(0); e.Kind == event.EventShutdown {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("never observed EventShutdown after quit")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLogSubscriptionRoundTrip(t *testing.T) {
	c := newTestCore()
	sub, code := c.NewLogSubscription("info", 10)
	if code != event.Success {
		t.Fatalf("NewLogSubscription: %v", code)
	}
	c.Logs().Publish("core", "info", "hello")
	_, level, text, ok := sub.Poll()
	if !ok || level != "info" || text != "hello" {
		t.Fatalf("Poll = (%q,%q,%v), want (info, hello, true)", level, text, ok)
	}
}
