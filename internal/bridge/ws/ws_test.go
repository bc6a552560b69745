package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coreplay/playerctl/event"
	"github.com/coreplay/playerctl/internal/client"
	"github.com/coreplay/playerctl/internal/config"
	"github.com/coreplay/playerctl/internal/engine"
)

func newTestServer(t *testing.T) (*httptest.Server, *client.Registry) {
	t.Helper()
	core := engine.New(nil, config.Default())
	core.Initialize()
	t.Cleanup(core.Shutdown)

	s := NewServer("", core.Registry(), nil)
	ts := httptest.NewServer(http.HandlerFunc(s.handleUpgrade))
	t.Cleanup(ts.Close)
	return ts, core.Registry()
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestConnectionRegistersHandle(t *testing.T) {
	ts, registry := newTestServer(t)
	_ = dial(t, ts)

	deadline := time.Now().Add(time.Second)
	for registry.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("bridge connection never registered a handle")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSetAndGetPropertyRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dial(t, ts)

	if err := conn.WriteJSON(inbound{ReqID: "1", Op: "set_property", Name: "volume", Value: "33"}); err != nil {
		t.Fatalf("write set_property: %v", err)
	}
	var ack outbound
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if ack.Kind != "ok" {
		t.Fatalf("ack = %+v, want kind ok", ack)
	}

	if err := conn.WriteJSON(inbound{ReqID: "2", Op: "get_property_async", Name: "volume"}); err != nil {
		t.Fatalf("write get_property_async: %v", err)
	}
	var frame outbound
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read property event: %v", err)
	}
	if frame.Kind != "property" || frame.Property == nil || frame.Property.Data != "33" {
		t.Fatalf("frame = %+v, want property volume=33", frame)
	}
}

func TestUnknownOpReturnsInvalidParameter(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dial(t, ts)

	if err := conn.WriteJSON(inbound{ReqID: "x", Op: "nonsense"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var frame outbound
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Kind != "error" || event.ErrorCode(frame.Error) != event.ErrInvalidParameter {
		t.Fatalf("frame = %+v, want ErrInvalidParameter", frame)
	}
}
