// Package playerctl is the public surface of an embeddable media
// player's client-facing control plane: N host goroutines drive one
// shared playback core through private Handles, issuing commands,
// reading and writing properties, and consuming an ordered event
// stream. See internal/client, internal/dispatch, and internal/engine
// for the concurrency core this package exposes.
package playerctl

import (
	"log/slog"

	"github.com/coreplay/playerctl/event"
	"github.com/coreplay/playerctl/internal/client"
	"github.com/coreplay/playerctl/internal/config"
	"github.com/coreplay/playerctl/internal/engine"
)

// Re-exported vocabulary. These are type aliases, not new types, so a
// caller that imports only this package and one that reaches into
// event directly (e.g. a bridge package) interoperate without
// conversions.
type (
	EventKind = event.EventKind
	ErrorCode = event.ErrorCode
	Format    = event.Format
	ReplyID   = event.ReplyID
	Event     = event.Event

	PropertyPayload            = event.PropertyPayload
	LogMessagePayload          = event.LogMessagePayload
	ScriptInputDispatchPayload = event.ScriptInputDispatchPayload
)

// Event kinds.
const (
	EventNone                = event.EventNone
	EventOk                  = event.EventOk
	EventError               = event.EventError
	EventShutdown            = event.EventShutdown
	EventLogMessage          = event.EventLogMessage
	EventTick                = event.EventTick
	EventProperty            = event.EventProperty
	EventStartFile           = event.EventStartFile
	EventEndFile             = event.EventEndFile
	EventPlaybackStart       = event.EventPlaybackStart
	EventTracksChanged       = event.EventTracksChanged
	EventTrackSwitched       = event.EventTrackSwitched
	EventIdle                = event.EventIdle
	EventPause               = event.EventPause
	EventUnpause             = event.EventUnpause
	EventScriptInputDispatch = event.EventScriptInputDispatch
)

// Error codes.
const (
	Success                = event.Success
	ErrEventBufferFull     = event.ErrEventBufferFull
	ErrInvalidParameter    = event.ErrInvalidParameter
	ErrNoMem               = event.ErrNoMem
	ErrNotFound            = event.ErrNotFound
	ErrProperty            = event.ErrProperty
	ErrPropertyUnavailable = event.ErrPropertyUnavailable
	ErrUninitialized       = event.ErrUninitialized
)

// Format codes.
const (
	FormatNone      = event.FormatNone
	FormatString    = event.FormatString
	FormatOsdString = event.FormatOsdString
)

// clientAPIVersion packs a semantic-change low word and a surface-
// change high word into one monotonic value: the low 16 bits change on
// semantic-only changes, the high 16 bits on surface changes.
const clientAPIVersion = uint32(1)<<16 | 0

// ClientAPIVersion returns the packed client API version.
func ClientAPIVersion() uint32 { return clientAPIVersion }

// ErrorString returns a human-readable description of code.
func ErrorString(code ErrorCode) string { return event.ErrorString(code) }

// EventName returns the stable lowercase name of kind, or "" if
// unrecognized.
func EventName(kind EventKind) string { return event.EventName(kind) }

// Free is a deliberate no-op, kept for API symmetry with the
// request/reply surface below. Values returned by this package
// (property strings, Event payloads) are ordinary garbage-collected
// memory, so callers needn't do anything — but code written against a
// manual-ownership mental model still has somewhere to call "free".
func Free(_ any) {}

// Handle is a single host's private connection to the shared playback
// core: the Go analogue of mpv_handle. Its request-side operations
// (SetProperty, Command, WaitEvent, ...) are promoted from
// internal/client.Handle; Handle adds the whole-engine lifecycle
// operations (Initialize, Destroy) that the original exposes through
// the same handle value.
type Handle struct {
	*client.Handle
	core *engine.Core
}

// Create creates the shared playback core if this is the first call,
// registers a handle named "main", and applies the engine defaults
// (idle on, terminal off, osc off).
func Create() (*Handle, error) {
	return CreateWithDefaults(config.Default())
}

// CreateWithDefaults is Create with caller-supplied engine defaults
// (ring/log-buffer capacity, initial options) instead of config.Default().
func CreateWithDefaults(defaults config.EngineDefaults) (*Handle, error) {
	core := engine.New(slog.Default(), defaults)
	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	core.SetOption("idle", yesNo(defaults.Idle))
	core.SetOption("terminal", yesNo(defaults.Terminal))
	core.SetOption("osc", yesNo(defaults.OSC))
	for name, value := range defaults.Options {
		core.SetOption(name, value)
	}

	ch, code := core.Registry().Add("main")
	if code != event.Success {
		return nil, code
	}
	return &Handle{Handle: ch, core: core}, nil
}

// CreateClient registers a new handle sharing parent's playback core,
// analogous to mpv_create_client. base is the suggested name; a
// collision appends a numeric suffix.
func CreateClient(parent *Handle, base string) (*Handle, error) {
	ch, code := parent.core.Registry().Add(base)
	if code != event.Success {
		return nil, code
	}
	return &Handle{Handle: ch, core: parent.core}, nil
}

// Initialize starts the playback thread shared by every handle on
// this engine. Idempotent: a second call on any handle succeeds
// without restarting anything.
func (h *Handle) Initialize() ErrorCode { return h.core.Initialize() }

// Destroy removes h from the registry. If h was the last live handle,
// the shared playback core is torn down too.
func (h *Handle) Destroy() {
	h.Handle.Destroy()
	if h.core.Registry().Count() == 0 {
		h.core.Shutdown()
	}
}

// PropertyNames returns every property name the engine currently
// recognizes, for introspection (not part of the original surface,
// added for the demo CLI/dashboard).
func (h *Handle) PropertyNames() []string { return h.core.PropertyNames() }

// Registry exposes the shared handle registry so transport adapters
// (internal/bridge/ws, internal/bridge/mqtt) can register their own
// handles against the same engine this Handle belongs to, without
// reaching into the unexported engine.Core field directly.
func (h *Handle) Registry() *client.Registry { return h.core.Registry() }
