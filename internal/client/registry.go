package client

import (
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/coreplay/playerctl/event"
)

// Registry is the engine-wide table of live handles — the Go analogue
// of mp_client_api. It owns unique-name allocation and multi-handle
// broadcast/send. Registry.mu is the single documented lock order
// point: Broadcast/Send hold it while acquiring each handle's own lock,
// so no handle method may ever try to acquire the registry lock while
// already holding its own (that would invert the order and deadlock).
type Registry struct {
	mu     sync.Mutex
	byName map[string]*Handle
	order  []*Handle

	engine   Engine
	log      *slog.Logger
	capacity int
}

// NewRegistry constructs an empty registry bound to eng. capacity sets
// the event-ring size handed to every handle it creates.
func NewRegistry(eng Engine, log *slog.Logger, capacity int) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		byName:   make(map[string]*Handle),
		engine:   eng,
		log:      log,
		capacity: capacity,
	}
}

// Add creates and registers a new handle. base is the caller-suggested
// name ("" picks an anonymous "playerctl" base); if base (or its first
// try) is already taken, Add appends numeric suffixes 2..999 before
// giving up with ErrNoMem, matching mp_new_client's collision handling.
func (r *Registry) Add(base string) (*Handle, event.ErrorCode) {
	if base == "" {
		base = "playerctl"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.uniqueNameLocked(base)
	if !ok {
		return nil, event.ErrNoMem
	}

	h := newHandle(name, r.engine, r, r.log.With("client", name), r.capacity)
	r.byName[name] = h
	r.order = append(r.order, h)
	return h, event.Success
}

func (r *Registry) uniqueNameLocked(base string) (string, bool) {
	if _, taken := r.byName[base]; !taken {
		return base, true
	}
	for n := 2; n < 1000; n++ {
		candidate := base + strconv.Itoa(n)
		if _, taken := r.byName[candidate]; !taken {
			return candidate, true
		}
	}
	return "", false
}

// remove unregisters h. Called by Handle.Destroy; not exported since
// destruction is always driven through the handle itself.
func (r *Registry) remove(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byName, h.name)
	for i, o := range r.order {
		if o == h {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Find looks up a handle by its registry-assigned name.
func (r *Registry) Find(name string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byName[name]
	return h, ok
}

// Names returns every currently registered handle name, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.order))
	for _, h := range r.order {
		names = append(names, h.name)
	}
	sort.Strings(names)
	return names
}

// Broadcast delivers e to every registered handle, subject to each
// handle's own event mask and choke state. Used by the engine for
// unsolicited events (property-change notifications, tick, idle, ...).
func (r *Registry) Broadcast(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.order {
		h.sendEvent(e)
	}
}

// Send delivers e to exactly the named handle. Returns ErrNotFound if
// no handle by that name is registered.
func (r *Registry) Send(name string, e event.Event) event.ErrorCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byName[name]
	if !ok {
		return event.ErrNotFound
	}
	if !h.sendEvent(e) {
		return event.ErrEventBufferFull
	}
	return event.Success
}

// Shutdown marks every registered handle as shut down and wakes any
// goroutine blocked in WaitEvent. Called once by the engine as it
// begins tearing down.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	handles := append([]*Handle(nil), r.order...)
	r.mu.Unlock()

	for _, h := range handles {
		h.signalShutdown()
	}
}

// Count returns the number of currently registered handles.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}
