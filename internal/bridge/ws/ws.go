// Package ws is the remote-host bridge: it lets an out-of-process
// caller drive the playback core over a WebSocket connection the same
// way an in-process goroutine would through a *client.Handle. Each
// connection gets its own ordinary registry handle, so every
// reservation/mask/wakeup invariant the core enforces for in-process
// hosts applies to bridged hosts unchanged — this package only
// transcodes JSON frames to Handle calls and Handle events to JSON
// frames over gorilla/websocket, run from the server side instead of
// the client side.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/coreplay/playerctl/event"
	"github.com/coreplay/playerctl/internal/client"
)

// inbound is a single request frame decoded from a connected host.
// Exactly the fields relevant to Op are populated; the rest are zero.
type inbound struct {
	ReqID    string   `json:"req_id,omitempty"`
	Op       string   `json:"op"`
	Argv     []string `json:"argv,omitempty"`
	Line     string   `json:"line,omitempty"`
	Name     string   `json:"name,omitempty"`
	Value    string   `json:"value,omitempty"`
	Format   string   `json:"format,omitempty"`
	Kind     int      `json:"kind,omitempty"`
	Enable   bool     `json:"enable,omitempty"`
	MinLevel string   `json:"min_level,omitempty"`
}

// outbound is a single event frame, or an immediate synchronous ack,
// pushed out to a connected host. ConnID lets a host (or a process
// multiplexing several bridge connections, e.g. a log aggregator)
// correlate frames back to the WebSocket connection that produced
// them without depending on transport-level connection identity.
type outbound struct {
	ConnID    string           `json:"conn_id"`
	ReqID     string           `json:"req_id,omitempty"`
	Kind      string           `json:"kind"`
	Error     int              `json:"error,omitempty"`
	InReplyTo uint64           `json:"in_reply_to,omitempty"`
	Property  *wirePropertyVal `json:"property,omitempty"`
	LogPrefix string           `json:"log_prefix,omitempty"`
	LogLevel  string           `json:"log_level,omitempty"`
	LogText   string           `json:"log_text,omitempty"`
}

type wirePropertyVal struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

func formatOf(s string) event.Format {
	if s == "osd" {
		return event.FormatOsdString
	}
	return event.FormatString
}

// Server accepts WebSocket connections and bridges each one to a fresh
// registry handle. It does not itself know about playback semantics —
// it only forwards Handle/Registry calls, exactly as a script-host
// binding would.
type Server struct {
	addr     string
	registry *client.Registry
	log      *slog.Logger

	upgrader websocket.Upgrader
	http     *http.Server
}

// NewServer builds a bridge server listening on addr (host:port),
// registering one handle per connection against registry.
func NewServer(addr string, registry *client.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		addr:     addr,
		registry: registry,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Any origin is accepted. The server does no authentication
			// of its own: it does not check internal/bridge/pairing tokens.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start serves upgrade requests at "/" until ctx is cancelled or
// Shutdown is called. Blocks like http.Server.ListenAndServe.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)

	s.http = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}
	s.log.Info("ws bridge listening", "addr", s.addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops accepting new connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	connID := uuid.NewString()
	s.log.Info("ws connection opened", "conn_id", connID, "remote", r.RemoteAddr)
	newConnection(connID, conn, s.registry, s.log).run()
}

// connection owns one WebSocket socket and the Handle it drives.
type connection struct {
	id       string
	conn     *websocket.Conn
	handle   *client.Handle
	log      *slog.Logger
	outgoing chan outbound
	done     chan struct{}
}

func newConnection(id string, conn *websocket.Conn, registry *client.Registry, log *slog.Logger) *connection {
	h, code := registry.Add("ws-" + id[:8])
	c := &connection{
		id:       id,
		conn:     conn,
		log:      log.With("conn_id", id),
		outgoing: make(chan outbound, 64),
		done:     make(chan struct{}),
	}
	if code != event.Success {
		c.log.Error("failed to register bridge handle", "error", event.ErrorString(code))
		conn.Close()
		return c
	}
	c.handle = h
	return c
}

func (c *connection) run() {
	if c.handle == nil {
		return
	}
	c.handle.SetWakeupCallback(func() {
		select {
		case c.outgoing <- outbound{}:
		default:
		}
	})

	go c.writeLoop()
	c.readLoop()

	close(c.done)
	c.handle.Destroy()
	c.conn.Close()
	c.log.Info("ws connection closed")
}

// readLoop decodes inbound frames and dispatches them onto the Handle.
// It returns once the socket errors or closes.
func (c *connection) readLoop() {
	for {
		var req inbound
		if err := c.conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("ws read error", "error", err)
			}
			return
		}
		c.dispatch(req)
	}
}

// writeLoop pumps WaitEvent results out as JSON frames, woken either by
// the wakeup callback or by its own periodic poll so a burst of
// dropped wakeup signals (the channel is bounded) never strands a
// buffered event until the next one happens to arrive.
func (c *connection) writeLoop() {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-c.outgoing:
		case <-ticker.C:
		}
		for {
			e := c.handle.WaitEvent(0)
			if e.Kind == event.EventNone {
				break
			}
			c.send(frameFor(c.id, "", e))
			if e.Kind == event.EventShutdown {
				return
			}
		}
	}
}

func (c *connection) send(f outbound) {
	if err := c.conn.WriteJSON(f); err != nil {
		c.log.Debug("ws write error", "error", err)
	}
}

func frameFor(connID, reqID string, e *event.Event) outbound {
	f := outbound{
		ConnID:    connID,
		ReqID:     reqID,
		Kind:      event.EventName(e.Kind),
		Error:     int(e.Error),
		InReplyTo: uint64(e.InReplyTo),
	}
	switch {
	case e.Property != nil:
		f.Property = &wirePropertyVal{Name: e.Property.Name, Data: e.Property.Data}
	case e.LogMessage != nil:
		f.LogPrefix = e.LogMessage.Prefix
		f.LogLevel = e.LogMessage.Level
		f.LogText = e.LogMessage.Text
	}
	return f
}

// dispatch runs one decoded request against c.handle, replying either
// immediately (synchronous ops) or by letting the async reply surface
// through the ordinary WaitEvent stream the write loop drains.
func (c *connection) dispatch(req inbound) {
	switch req.Op {
	case "command_async":
		_, code := c.handle.CommandAsync(req.Argv)
		c.ackIfError(req.ReqID, code)
	case "command":
		code := c.handle.Command(req.Argv)
		c.ack(req.ReqID, code)
	case "command_string":
		code := c.handle.CommandString(req.Line)
		c.ack(req.ReqID, code)
	case "set_property_async":
		_, code := c.handle.SetPropertyAsync(req.Name, formatOf(req.Format), req.Value)
		c.ackIfError(req.ReqID, code)
	case "set_property":
		code := c.handle.SetPropertyString(req.Name, req.Value)
		c.ack(req.ReqID, code)
	case "get_property_async":
		_, code := c.handle.GetPropertyAsync(req.Name, formatOf(req.Format))
		c.ackIfError(req.ReqID, code)
	case "request_event":
		code := c.handle.RequestEvent(event.EventKind(req.Kind), req.Enable)
		c.ack(req.ReqID, code)
	case "request_log_messages":
		code := c.handle.RequestLogMessages(req.MinLevel)
		c.ack(req.ReqID, code)
	default:
		c.send(outbound{ConnID: c.id, ReqID: req.ReqID, Kind: "error", Error: int(event.ErrInvalidParameter)})
	}
}

// ack replies to a synchronous op unconditionally.
func (c *connection) ack(reqID string, code event.ErrorCode) {
	kind := "ok"
	if code != event.Success {
		kind = "error"
	}
	c.send(outbound{ConnID: c.id, ReqID: reqID, Kind: kind, Error: int(code)})
}

// ackIfError replies immediately only when the async call itself
// failed to enqueue (e.g. ErrEventBufferFull); a successful enqueue's
// real reply arrives later via WaitEvent like any other host.
func (c *connection) ackIfError(reqID string, code event.ErrorCode) {
	if code != event.Success {
		c.send(outbound{ConnID: c.id, ReqID: reqID, Kind: "error", Error: int(code)})
	}
}
