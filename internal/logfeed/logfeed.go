// Package logfeed implements the bounded, per-handle log-message
// subscription surfaced through Handle.RequestLogMessages, grounded on
// client.c's mp_msg_log_buffer_new/mp_msg_log_buffer_read. The
// subscribe/unsubscribe/bounded-queue shape is adapted from the
// teacher's internal/mqtt publisher/subscriber pattern (structured
// logging, rate-limited drop-and-warn on overflow) down to a single
// consumer rather than a topic fan-out.
package logfeed

import (
	"log/slog"
	"sync"

	"github.com/coreplay/playerctl/internal/config"
)

// Entry is one drained log line.
type Entry struct {
	Prefix string
	Level  string
	Text   string
}

// Broker is the engine-wide log message source. Every Subscription
// receives every Entry published at or above (i.e. no more verbose
// than) its requested level.
type Broker struct {
	log *slog.Logger

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewBroker constructs an empty broker.
func NewBroker(log *slog.Logger) *Broker {
	if log == nil {
		log = slog.Default()
	}
	return &Broker{log: log, subs: make(map[*Subscription]struct{})}
}

// Publish fans entry out to every subscription whose requested level
// is at least as verbose as level. Never blocks: a subscription whose
// buffer is full drops the new entry and counts it as dropped, rather
// than backing up the publisher (matching the "never block the
// playback thread" constraint that governs the rest of the core).
func (b *Broker) Publish(prefix, level, text string) {
	levelIdx := config.LevelIndex(level)

	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		if levelIdx > s.minIndex {
			continue // more verbose than the subscriber asked for
		}
		s.offer(Entry{Prefix: prefix, Level: level, Text: text})
	}
}

// Subscribe allocates a bounded subscription at minLevel (a name from
// config.LogLevels), with room for capacity queued entries before the
// oldest-dropping-newest policy kicks in.
func (b *Broker) Subscribe(minLevel string, capacity int) (*Subscription, bool) {
	idx := config.LevelIndex(minLevel)
	if idx < 0 {
		return nil, false
	}
	if capacity <= 0 {
		capacity = 1
	}
	s := &Subscription{
		broker:   b,
		minLevel: minLevel,
		minIndex: idx,
		capacity: capacity,
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s, true
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Count returns the number of live subscriptions, for diagnostics.
func (b *Broker) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Subscription is a single host's bounded log feed. It satisfies
// internal/client.LogSubscription.
type Subscription struct {
	broker   *Broker
	minLevel string
	minIndex int

	mu       sync.Mutex
	capacity int
	buf      []Entry
	dropped  int
	closed   bool
}

func (s *Subscription) offer(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if len(s.buf) >= s.capacity {
		s.dropped++
		if s.dropped == 1 {
			s.broker.log.Warn("log subscription queue full, dropping messages",
				"min_level", s.minLevel, "capacity", s.capacity)
		}
		return
	}
	s.buf = append(s.buf, e)
}

// Poll returns the oldest queued entry without blocking, or
// ok == false if nothing is queued.
func (s *Subscription) Poll() (prefix, level, text string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		return "", "", "", false
	}
	e := s.buf[0]
	s.buf = s.buf[1:]
	return e.Prefix, e.Level, e.Text, true
}

// Close unsubscribes from the broker. Further Poll calls return
// ok == false. Close is idempotent.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.buf = nil
	s.mu.Unlock()
	s.broker.remove(s)
}

// Dropped reports the cumulative number of entries dropped for
// overflow since the subscription was created.
func (s *Subscription) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
