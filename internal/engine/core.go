// Package engine provides the stub playback core: the concrete
// backing for internal/client.Engine that the rest of the core control
// plane dispatches work onto. The real playback engine, command
// parser, and property/option databases all live outside this
// package's scope; Core is a deliberately small, in-memory stand-in for
// them so run_locked and the reply paths have something real to
// exercise end to end. The worker goroutine standing in for "the
// playback thread" follows a plain Start/Stop lifecycle with
// mutex-guarded state, the same shape used throughout the rest of this
// module's single-goroutine components.
package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/coreplay/playerctl/event"
	"github.com/coreplay/playerctl/internal/client"
	"github.com/coreplay/playerctl/internal/config"
	"github.com/coreplay/playerctl/internal/dispatch"
	"github.com/coreplay/playerctl/internal/logfeed"
	"github.com/coreplay/playerctl/internal/reply"
)

// defaultProperties seeds the stub property store with the names a
// typical host expects to read immediately after Initialize.
func defaultProperties() map[string]string {
	return map[string]string{
		"pause":       "no",
		"mute":        "no",
		"volume":      "100",
		"speed":       "1.0",
		"time-pos":    "0",
		"duration":    "0",
		"path":        "",
		"filename":    "",
		"media-title": "",
		"idle-active": "yes",
		"core-idle":   "yes",
	}
}

// Core is the process-wide playback object every handle shares a
// reference to: global engine state, shared by all live handles and
// the playback thread, torn down by the last releaser. It satisfies
// internal/client.Engine.
type Core struct {
	log      *slog.Logger
	dispatch *dispatch.Bridge
	logs     *logfeed.Broker
	registry *client.Registry
	defaults config.EngineDefaults

	mu          sync.Mutex
	initialized bool
	options     map[string]string
	properties  map[string]string
}

// New constructs a Core and its Registry. The registry is not
// populated with any handles; callers register the well-known "main"
// handle (and any others) via Registry().Add.
func New(log *slog.Logger, defaults config.EngineDefaults) *Core {
	if log == nil {
		log = slog.Default()
	}
	c := &Core{
		log:        log,
		dispatch:   dispatch.New(log.With("component", "dispatch")),
		logs:       logfeed.NewBroker(log.With("component", "logfeed")),
		defaults:   defaults,
		options:    make(map[string]string),
		properties: defaultProperties(),
	}
	c.registry = client.NewRegistry(c, log.With("component", "client"), defaults.EventRingCapacity)
	return c
}

// Registry returns the engine-wide handle registry.
func (c *Core) Registry() *client.Registry { return c.registry }

// Logs returns the log-message broker, so the host process can feed it
// real log lines (e.g. by wrapping an slog.Handler).
func (c *Core) Logs() *logfeed.Broker { return c.logs }

// Initialized reports whether Initialize has completed.
func (c *Core) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Dispatch returns the dispatch bridge, satisfying client.Engine.
func (c *Core) Dispatch() client.Dispatcher { return c.dispatch }

// Initialize starts the playback-thread-equivalent goroutine and
// applies every pre-initialize option as an initial property value.
// Calling Initialize a second time is a no-op success, matching
// mpv_initialize's idempotent-fail-quietly behavior at this layer.
func (c *Core) Initialize() event.ErrorCode {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return event.Success
	}
	for name, value := range c.options {
		c.properties[name] = value
	}
	c.initialized = true
	c.mu.Unlock()

	c.dispatch.Start()
	c.registry.Broadcast(event.Event{Kind: event.EventIdle})
	return event.Success
}

// Shutdown broadcasts Shutdown to every live handle and stops the
// dispatch bridge. Called once, typically after the last handle has
// been destroyed — the engine is torn down once the last handle
// exits.
func (c *Core) Shutdown() {
	c.registry.Shutdown()
	c.dispatch.Stop()
}

// SetOption applies a pre-initialize option. Empty names are rejected;
// anything else is accepted into the option store verbatim (the real
// option database's validation is out of scope here).
func (c *Core) SetOption(name, data string) event.ErrorCode {
	if name == "" {
		return reply.TranslateOptionError(reply.OptionInvalid)
	}
	c.mu.Lock()
	c.options[name] = data
	c.mu.Unlock()
	return event.Success
}

// SetProperty writes name if it is a recognized property, matching the
// property layer's Unknown->NotFound translation.
func (c *Core) SetProperty(name, data string) event.ErrorCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, known := c.properties[name]; !known {
		return reply.TranslatePropertyError(reply.PropertyUnknown)
	}
	c.properties[name] = data
	return event.Success
}

// GetProperty reads name. format only affects the OSD rendering; the
// stub store has no distinct display form, so OsdString returns the
// same value as String with a label prefix for readability.
func (c *Core) GetProperty(name string, format event.Format) (string, event.ErrorCode) {
	c.mu.Lock()
	value, known := c.properties[name]
	c.mu.Unlock()
	if !known {
		return "", reply.TranslatePropertyError(reply.PropertyUnknown)
	}
	if format == event.FormatOsdString {
		return fmt.Sprintf("%s: %s", name, value), event.Success
	}
	return value, event.Success
}

// PropertyNames returns every known property name, sorted, for
// diagnostics (e.g. the demo dashboard's /status page).
func (c *Core) PropertyNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.properties))
	for n := range c.properties {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewLogSubscription allocates a bounded subscription from the broker.
func (c *Core) NewLogSubscription(minLevel string, capacity int) (client.LogSubscription, event.ErrorCode) {
	sub, ok := c.logs.Subscribe(minLevel, capacity)
	if !ok {
		return nil, event.ErrInvalidParameter
	}
	return sub, event.Success
}

// stubCommand is the command vocabulary this stand-in command parser
// recognizes. A real playback engine's parser would replace this
// entirely.
type stubCommand struct {
	argv []string
}

// ParseCommand validates argv without running it. Only non-empty argv
// with a non-empty verb is accepted; this is intentionally permissive
// since real command syntax is an external collaborator.
func (c *Core) ParseCommand(argv []string) (client.Command, event.ErrorCode) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, event.ErrInvalidParameter
	}
	return stubCommand{argv: argv}, event.Success
}

// ParseCommandString tokenizes line on whitespace and delegates to
// ParseCommand.
func (c *Core) ParseCommandString(line string) (client.Command, event.ErrorCode) {
	fields := strings.Fields(line)
	return c.ParseCommand(fields)
}

// RunCommand executes cmd on the playback thread. "quit" tears the
// engine down asynchronously (mirroring the real player's shutdown
// command); everything else is logged and acknowledged.
func (c *Core) RunCommand(cmd client.Command) event.ErrorCode {
	sc, ok := cmd.(stubCommand)
	if !ok {
		return event.ErrInvalidParameter
	}
	c.log.Debug("running command", "argv", sc.argv)
	switch sc.argv[0] {
	case "quit", "quit-watch-later":
		go c.Shutdown()
	case "stop":
		c.mu.Lock()
		c.properties["idle-active"] = "yes"
		c.mu.Unlock()
		c.registry.Broadcast(event.Event{Kind: event.EventEndFile})
	}
	return event.Success
}
