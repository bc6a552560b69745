// Package client implements the per-host Handle and the cross-handle
// Registry: the "Handle" and "Client Registry" components of the
// concurrency core.
package client

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coreplay/playerctl/event"
	"github.com/coreplay/playerctl/internal/config"
	"github.com/coreplay/playerctl/internal/ring"
)

// Dispatcher is the narrow view of the Dispatch Bridge a Handle needs:
// run work on the playback thread, optionally fire-and-forget, and
// cooperative suspend/resume. internal/dispatch.Bridge implements this
// structurally; Handle never imports internal/dispatch directly, which
// keeps the dependency direction client -> (nothing) and lets
// internal/engine wire the two together.
type Dispatcher interface {
	Run(fn func())
	EnqueueAutofree(fn func())
	Suspend()
	Resume()
}

// Command is an opaque parsed command, produced by Engine.ParseCommand(
// String) and consumed by Engine.RunCommand. Its shape is entirely owned
// by the engine/command-parser collaborator.
type Command any

// LogSubscription is a bounded, pollable feed of log-buffer entries, as
// vended by Engine.NewLogSubscription. internal/logfeed.Subscription
// implements this.
type LogSubscription interface {
	// Poll returns the next buffered entry without blocking, or
	// ok == false if none is queued.
	Poll() (prefix, level, text string, ok bool)
	// Close tears down the subscription, releasing its buffer.
	Close()
}

// Engine is the back-reference every Handle and the Registry hold to
// the playback core. It is defined here (the consumer) rather than in
// internal/engine, so internal/client never needs to import
// internal/engine — internal/engine imports internal/client instead,
// and its *Core satisfies this interface structurally.
type Engine interface {
	// Initialized reports whether the playback thread has started.
	Initialized() bool
	// Dispatch returns the bridge used for synchronous and async work.
	Dispatch() Dispatcher
	// SetOption applies a pre-initialize option; format is always
	// string at this layer (callers have already rejected other
	// formats). Returns a translated, already-mapped ErrorCode.
	SetOption(name, data string) event.ErrorCode
	// SetProperty writes a property synchronously from the calling
	// goroutine (callers are responsible for invoking this only from
	// within a Dispatcher.Run closure, i.e. on the playback thread).
	SetProperty(name, data string) event.ErrorCode
	// GetProperty reads a property synchronously (same run_locked
	// constraint as SetProperty). format selects String or OsdString
	// rendering.
	GetProperty(name string, format event.Format) (string, event.ErrorCode)
	// ParseCommand validates an argv-style command without running it.
	ParseCommand(argv []string) (Command, event.ErrorCode)
	// ParseCommandString validates a single-line command string.
	ParseCommandString(line string) (Command, event.ErrorCode)
	// RunCommand executes a previously parsed command (on the playback
	// thread, inside a Dispatcher.Run/EnqueueAutofree closure).
	RunCommand(cmd Command) event.ErrorCode
	// NewLogSubscription allocates a bounded log feed at the given
	// minimum severity. capacity bounds how many entries may be queued;
	// once full, newly published entries are dropped.
	NewLogSubscription(minLevel string, capacity int) (LogSubscription, event.ErrorCode)
}

// maxTrackedEventKind bounds RequestEvent's validation; kinds above
// this value are rejected as unknown, matching mpv_event_name
// returning NULL for them.
const maxTrackedEventKind = event.EventScriptInputDispatch

// unmaskable is the set of event kinds a host may never disable —
// some kinds cannot be disabled by request_event (mpv enforces this
// for MPV_EVENT_SHUTDOWN).
var unmaskable = map[event.EventKind]bool{
	event.EventShutdown: true,
}

// defaultEventMask is every tracked event kind except Tick, matching
// client.c's `((uint64_t)-1) & ~(1ULL << MPV_EVENT_TICK)`.
func defaultEventMask() uint64 {
	mask := uint64(0)
	for k := event.EventKind(0); k <= maxTrackedEventKind; k++ {
		mask |= 1 << uint(k)
	}
	mask &^= 1 << uint(event.EventTick)
	return mask
}

// Handle is a single host's private control-plane connection — the Go
// analogue of mpv_handle. Fields above the mutex are immutable after
// construction; fields below it are guarded by mu.
type Handle struct {
	name     string
	log      *slog.Logger
	engine   Engine
	registry *Registry

	// curEvent is not safe for concurrent use: only the single goroutine
	// calling WaitEvent on this handle may touch it, matching client.c's
	// comment that mpv_event_data* is "not thread-safe".
	curEvent event.Event

	mu   sync.Mutex
	cond *sync.Cond

	allocReplyID   uint64
	eventMask      uint64
	reservedEvents uint32
	maxEvents      int
	queuedWakeup   bool
	shutdown       bool
	chokeWarning   bool
	destroyed      bool

	wakeupCB func()

	ring     *ring.Ring
	messages LogSubscription
	msgLevel string
}

// newHandle constructs a handle with capacity ring slots. Called only by
// Registry.Add, under the registry lock, matching mp_new_client.
func newHandle(name string, eng Engine, reg *Registry, log *slog.Logger, capacity int) *Handle {
	h := &Handle{
		name:      name,
		log:       log,
		engine:    eng,
		registry:  reg,
		eventMask: defaultEventMask(),
		maxEvents: capacity,
		ring:      ring.New(capacity),
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Name returns the handle's unique, registry-assigned name.
func (h *Handle) Name() string { return h.name }

// SetWakeupCallback atomically replaces the foreign-thread notifier.
func (h *Handle) SetWakeupCallback(cb func()) {
	h.mu.Lock()
	h.wakeupCB = cb
	h.mu.Unlock()
}

// wakeupLocked signals the condition variable and fires the wakeup
// callback. Caller must hold h.mu.
func (h *Handle) wakeupLocked() {
	h.cond.Signal()
	if h.wakeupCB != nil {
		h.wakeupCB()
	}
}

// Wakeup sets the wakeup sentinel and notifies any blocked WaitEvent
// call, causing it to return a zero (EventNone) event immediately.
func (h *Handle) Wakeup() {
	h.mu.Lock()
	h.queuedWakeup = true
	h.wakeupLocked()
	h.mu.Unlock()
}

// Suspend delegates to the engine's dispatch bridge. Recursive:
// matching suspends must be balanced by the same number of Resume
// calls. Synchronous requests (Command, SetProperty, GetProperty, ...)
// remain usable between Suspend and Resume — the dispatch bridge runs
// them directly instead of deadlocking on the parked worker goroutine.
func (h *Handle) Suspend() { h.engine.Dispatch().Suspend() }

// Resume delegates to the engine's dispatch bridge.
func (h *Handle) Resume() { h.engine.Dispatch().Resume() }

// SetOption forwards to the option store before Initialize, or aliases
// to SetProperty after. Only FormatString is accepted.
func (h *Handle) SetOption(name string, format event.Format, data string) event.ErrorCode {
	if h.engine.Initialized() {
		return h.SetProperty(name, format, data)
	}
	if format != event.FormatString {
		return event.ErrInvalidParameter
	}
	return h.engine.SetOption(name, data)
}

// SetOptionString is SetOption with FormatString.
func (h *Handle) SetOptionString(name, data string) event.ErrorCode {
	return h.SetOption(name, event.FormatString, data)
}

// Command parses and runs a command synchronously on the playback
// thread via run_locked. Returns ErrUninitialized if the engine hasn't
// started, or ErrInvalidParameter if parsing fails — a parse failure
// never reaches the playback thread.
func (h *Handle) Command(argv []string) event.ErrorCode {
	return h.runClientCommand(func() (Command, event.ErrorCode) {
		return h.engine.ParseCommand(argv)
	})
}

// CommandString is Command for a single command line, which the
// engine's parser splits into arguments.
func (h *Handle) CommandString(line string) event.ErrorCode {
	return h.runClientCommand(func() (Command, event.ErrorCode) {
		return h.engine.ParseCommandString(line)
	})
}

func (h *Handle) runClientCommand(parse func() (Command, event.ErrorCode)) event.ErrorCode {
	if !h.engine.Initialized() {
		return event.ErrUninitialized
	}
	cmd, code := parse()
	if code != event.Success {
		return code
	}
	var status event.ErrorCode
	h.runLocked(func() {
		status = h.engine.RunCommand(cmd)
	})
	return status
}

// CommandAsync reserves a reply and enqueues command execution on the
// playback thread. On success the returned ReplyID later matches
// exactly one EventOk/EventError on this handle's ring.
func (h *Handle) CommandAsync(argv []string) (event.ReplyID, event.ErrorCode) {
	if !h.engine.Initialized() {
		return 0, event.ErrUninitialized
	}
	cmd, code := h.engine.ParseCommand(argv)
	if code != event.Success {
		return 0, code
	}
	return h.runAsync(func(id event.ReplyID) {
		status := h.engine.RunCommand(cmd)
		h.replyStatus(id, status)
	})
}

// SetProperty writes name synchronously via run_locked. Only
// FormatString is defined for writes.
func (h *Handle) SetProperty(name string, format event.Format, data string) event.ErrorCode {
	if !h.engine.Initialized() {
		return event.ErrUninitialized
	}
	if format != event.FormatString {
		return event.ErrInvalidParameter
	}
	var status event.ErrorCode
	h.runLocked(func() {
		status = h.engine.SetProperty(name, data)
	})
	return status
}

// SetPropertyString is SetProperty with FormatString.
func (h *Handle) SetPropertyString(name, data string) event.ErrorCode {
	return h.SetProperty(name, event.FormatString, data)
}

// SetPropertyAsync is the reply-driven form of SetProperty.
func (h *Handle) SetPropertyAsync(name string, format event.Format, data string) (event.ReplyID, event.ErrorCode) {
	if !h.engine.Initialized() {
		return 0, event.ErrUninitialized
	}
	if format != event.FormatString {
		return 0, event.ErrInvalidParameter
	}
	return h.runAsync(func(id event.ReplyID) {
		status := h.engine.SetProperty(name, data)
		h.replyStatus(id, status)
	})
}

// GetProperty reads name synchronously via run_locked. format selects
// FormatString or FormatOsdString rendering.
func (h *Handle) GetProperty(name string, format event.Format) (string, event.ErrorCode) {
	if !h.engine.Initialized() {
		return "", event.ErrUninitialized
	}
	var (
		value  string
		status event.ErrorCode
	)
	h.runLocked(func() {
		value, status = h.engine.GetProperty(name, format)
	})
	return value, status
}

// GetPropertyString is GetProperty with FormatString.
func (h *Handle) GetPropertyString(name string) (string, event.ErrorCode) {
	return h.GetProperty(name, event.FormatString)
}

// GetPropertyOSDString is GetProperty with FormatOsdString.
func (h *Handle) GetPropertyOSDString(name string) (string, event.ErrorCode) {
	return h.GetProperty(name, event.FormatOsdString)
}

// GetPropertyAsync is the reply-driven form of GetProperty. On success
// it later delivers an EventProperty carrying the name/format/value, or
// an EventError carrying the translated code.
func (h *Handle) GetPropertyAsync(name string, format event.Format) (event.ReplyID, event.ErrorCode) {
	if !h.engine.Initialized() {
		return 0, event.ErrUninitialized
	}
	return h.runAsync(func(id event.ReplyID) {
		value, status := h.engine.GetProperty(name, format)
		if status != event.Success {
			h.sendErrorReply(id, status)
			return
		}
		h.sendReply(id, event.Event{
			Kind: event.EventProperty,
			Property: &event.PropertyPayload{
				Name:   name,
				Format: format,
				Data:   value,
			},
		})
	})
}

// RequestEvent toggles delivery of a single event kind in the mask.
// Rejects unknown kinds or non-boolean intent. Kinds marked unmaskable
// (currently only EventShutdown) silently ignore clear requests.
func (h *Handle) RequestEvent(kind event.EventKind, enable bool) event.ErrorCode {
	if kind < 0 || kind > maxTrackedEventKind {
		return event.ErrInvalidParameter
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	bit := uint64(1) << uint(kind)
	if enable {
		h.eventMask |= bit
	} else if !unmaskable[kind] {
		h.eventMask &^= bit
	}
	return event.Success
}

// RequestLogMessages subscribes (or, for "no", unsubscribes) to log
// messages at minLevel. minLevel must be "no" or a name from
// config.LogLevels.
func (h *Handle) RequestLogMessages(minLevel string) event.ErrorCode {
	if minLevel != "no" && levelIndexFunc(minLevel) < 0 {
		return event.ErrInvalidParameter
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.messages != nil {
		h.messages.Close()
		h.messages = nil
	}
	h.msgLevel = ""

	if minLevel == "no" {
		return event.Success
	}

	sub, code := h.engine.NewLogSubscription(minLevel, h.maxEvents)
	if code != event.Success {
		return code
	}
	h.messages = sub
	h.msgLevel = minLevel
	return event.Success
}

// levelIndexFunc validates a RequestLogMessages level name against the
// shared level vocabulary (internal/config has no dependency on this
// package, so importing it directly is cycle-free).
var levelIndexFunc = config.LevelIndex

// WaitEvent implements the §4.6 wait loop: drain the ring, then
// shutdown, then one log message, then the wakeup sentinel, then block
// until timeout. A non-positive timeout polls once without sleeping.
// Never returns nil; a timeout or wakeup sentinel yields an EventNone
// event.
func (h *Handle) WaitEvent(timeout time.Duration) *event.Event {
	var deadline time.Time
	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.curEvent = event.Event{}

	for {
		if e, ok := h.ring.Read(); ok {
			h.curEvent = e
			break
		}
		if h.shutdown {
			h.curEvent = event.Event{Kind: event.EventShutdown}
			break
		}
		if h.messages != nil {
			if prefix, level, text, ok := h.messages.Poll(); ok {
				h.curEvent = event.Event{
					Kind: event.EventLogMessage,
					LogMessage: &event.LogMessagePayload{
						Prefix: prefix,
						Level:  level,
						Text:   text,
					},
				}
				break
			}
		}
		if h.queuedWakeup {
			break
		}
		if !hasDeadline {
			break
		}
		if !h.condWaitUntil(deadline) {
			// Deadline passed without a signal: give up with EventNone
			// rather than looping, which would spin re-evaluating
			// conditions that can no longer change.
			break
		}
	}

	h.queuedWakeup = false
	result := h.curEvent
	return &result
}

// condWaitUntil blocks on h.cond until signaled or deadline, returning
// true if woken by a signal (so the loop should re-evaluate
// conditions) and false once the deadline has passed. Caller must hold
// h.mu; cond.Wait releases it while blocked and reacquires it before
// returning.
func (h *Handle) condWaitUntil(deadline time.Time) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false
	}

	timedOut := false
	timer := time.AfterFunc(remaining, func() {
		h.mu.Lock()
		timedOut = true
		h.cond.Broadcast()
		h.mu.Unlock()
	})
	defer timer.Stop()

	h.cond.Wait()
	return !timedOut
}

// Destroy removes the handle from its registry, drains and frees any
// queued events, and tears down its log subscription. It does not
// notify the engine or the playback thread. After Destroy returns, no
// other method may be called on h.
func (h *Handle) Destroy() {
	h.registry.remove(h)

	h.mu.Lock()
	h.ring.Drain()
	if h.messages != nil {
		h.messages.Close()
		h.messages = nil
	}
	h.destroyed = true
	h.mu.Unlock()
}

// reserveReply guarantees a ring slot will be free when the
// corresponding reply is eventually produced. The check counts both
// already-buffered events and outstanding reservations against
// capacity, so a reservation can never be handed out that sendReply
// could fail to honor later.
func (h *Handle) reserveReply() (event.ReplyID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ring.Buffered()+int(h.reservedEvents) >= h.maxEvents {
		return 0, false
	}
	h.reservedEvents++
	h.allocReplyID++
	return event.ReplyID(h.allocReplyID), true
}

// sendEvent delivers an unsolicited event, subject to the mask and to
// non-reserved ring capacity. Returns false only if the event was
// choked for lack of capacity; a masked-out event is not delivered but
// still returns true, since it is not an error.
func (h *Handle) sendEvent(e event.Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sendEventLocked(e)
}

func (h *Handle) sendEventLocked(e event.Event) bool {
	if h.eventMask&(uint64(1)<<uint(e.Kind)) == 0 {
		return true // masked out: not delivered, not an error
	}
	if h.ring.Available() > int(h.reservedEvents) {
		if !h.ring.Write(e) {
			panic("client: ring.Write failed despite available capacity")
		}
		h.wakeupLocked()
		return true
	}
	if !h.chokeWarning {
		h.log.Warn("too many events queued", "handle", h.name)
		h.chokeWarning = true
	}
	return false
}

// sendReply writes a reply for a previously reserved ID, releasing the
// reservation. The slot is guaranteed by reserveReply, so the write
// cannot fail.
func (h *Handle) sendReply(id event.ReplyID, e event.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reservedEvents == 0 {
		panic("client: sendReply with no outstanding reservation")
	}
	h.reservedEvents--
	e.InReplyTo = id
	if !h.ring.Write(e) {
		panic("client: ring.Write failed for a reserved reply")
	}
	h.wakeupLocked()
}

func (h *Handle) sendErrorReply(id event.ReplyID, code event.ErrorCode) {
	h.sendReply(id, event.Event{Kind: event.EventError, Error: code})
}

// replyStatus sends EventOk for success or a translated EventError,
// matching mp_client_status_reply.
func (h *Handle) replyStatus(id event.ReplyID, status event.ErrorCode) {
	if status != event.Success {
		h.sendErrorReply(id, status)
		return
	}
	h.sendReply(id, event.Event{Kind: event.EventOk})
}

// runLocked runs fn synchronously on the playback thread and blocks
// until it returns.
func (h *Handle) runLocked(fn func()) { h.engine.Dispatch().Run(fn) }

// runAsync reserves a reply slot then enqueues fn to run on the
// playback thread; fn receives the reserved ReplyID so it can send its
// own reply via replyStatus/sendReply/sendErrorReply.
func (h *Handle) runAsync(fn func(id event.ReplyID)) (event.ReplyID, event.ErrorCode) {
	id, ok := h.reserveReply()
	if !ok {
		return 0, event.ErrEventBufferFull
	}
	h.engine.Dispatch().EnqueueAutofree(func() { fn(id) })
	return id, event.Success
}

// signalShutdown marks the handle as shut down and wakes any blocked
// WaitEvent call. Called by the registry's broadcast path when the
// engine announces shutdown.
func (h *Handle) signalShutdown() {
	h.mu.Lock()
	h.shutdown = true
	h.wakeupLocked()
	h.mu.Unlock()
}

// String implements fmt.Stringer for log/debug convenience.
func (h *Handle) String() string { return fmt.Sprintf("client(%s)", h.name) }
