// Package mqtt republishes playback events to an MQTT broker for home
// automation consumption — the read-only counterpart to
// internal/bridge/ws's read/write remote bridge. It registers as an
// ordinary handle, so from the core's point of view it is just another
// host; the only thing specific to this package is what it does with
// the events it receives. Connection management uses
// autopaho.ConnectionManager with a will message for availability and
// retained publishes on every (re-)connect.
package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/coreplay/playerctl/event"
	"github.com/coreplay/playerctl/internal/client"
)

// exportedKinds are the event kinds a home-automation consumer cares
// about: transport/availability-relevant transitions, not every tick
// or log line.
var exportedKinds = []event.EventKind{
	event.EventPlaybackStart,
	event.EventIdle,
	event.EventPause,
	event.EventUnpause,
	event.EventEndFile,
	event.EventTracksChanged,
}

// unexportedKinds are the remaining broadcastable kinds a fresh
// handle's default mask would otherwise admit; masked off so the
// exporter only ever republishes exportedKinds, matching its doc
// comment. Reply-only kinds (Ok, Error, Property, LogMessage) and the
// unmaskable Shutdown sentinel don't need listing here: the exporter
// never issues requests that would produce the first three, and
// Shutdown simply can't be disabled.
var unexportedKinds = []event.EventKind{
	event.EventStartFile,
	event.EventTrackSwitched,
	event.EventScriptInputDispatch,
}

// Config configures the broker connection and topic namespace.
type Config struct {
	// Broker is a URL like "mqtt://host:1883" or "mqtts://host:8883".
	Broker     string
	Username   string
	Password   string
	InstanceID string
}

// Exporter holds a handle open on the registry and republishes the
// events it receives as retained MQTT messages under
// "playerctl/<instance>/event/<kind>".
type Exporter struct {
	cfg      Config
	registry *client.Registry
	log      *slog.Logger

	handle *client.Handle
	cm     *autopaho.ConnectionManager
}

// New constructs an Exporter. Call Start to register a handle and
// connect; it does not connect eagerly.
func New(cfg Config, registry *client.Registry, log *slog.Logger) *Exporter {
	if log == nil {
		log = slog.Default()
	}
	return &Exporter{cfg: cfg, registry: registry, log: log}
}

func (e *Exporter) baseTopic() string {
	return "playerctl/" + e.cfg.InstanceID
}

func (e *Exporter) availabilityTopic() string {
	return e.baseTopic() + "/availability"
}

func (e *Exporter) eventTopic(kind event.EventKind) string {
	return e.baseTopic() + "/event/" + event.EventName(kind)
}

// Start registers the "mqtt-export" handle, subscribes it to
// exportedKinds, connects to the broker, and pumps events until ctx is
// cancelled or the handle is shut down. Blocks like
// autopaho-backed Start methods elsewhere in the stack.
func (e *Exporter) Start(ctx context.Context) error {
	h, code := e.registry.Add("mqtt-export")
	if code != event.Success {
		return fmt.Errorf("register mqtt-export handle: %s", event.ErrorString(code))
	}
	e.handle = h
	defer h.Destroy()

	for _, k := range exportedKinds {
		h.RequestEvent(k, true)
	}
	for _, k := range unexportedKinds {
		h.RequestEvent(k, false)
	}

	brokerURL, err := url.Parse(e.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	availTopic := e.availabilityTopic()
	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: e.cfg.Username,
		ConnectPassword: []byte(e.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			e.log.Info("mqtt exporter connected", "broker", e.cfg.Broker)
			pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := cm.Publish(pubCtx, &paho.Publish{
				Topic: availTopic, Payload: []byte("online"), QoS: 1, Retain: true,
			}); err != nil {
				e.log.Warn("mqtt exporter availability publish failed", "error", err)
			}
		},
		OnConnectError: func(err error) {
			e.log.Warn("mqtt exporter connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "playerctl-export-" + e.cfg.InstanceID,
		},
	}
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	e.cm = cm

	connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		e.log.Warn("mqtt exporter initial connection timed out, will retry in background", "error", err)
	}

	e.pump(ctx)
	return nil
}

// pump drains h.WaitEvent and republishes every recognized event kind
// until ctx is cancelled or the handle observes shutdown.
func (e *Exporter) pump(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		ev := e.handle.WaitEvent(200 * time.Millisecond)
		switch ev.Kind {
		case event.EventNone:
			continue
		case event.EventShutdown:
			return
		}

		if e.cm == nil {
			continue
		}
		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := e.cm.Publish(pubCtx, &paho.Publish{
			Topic:   e.eventTopic(ev.Kind),
			Payload: []byte(event.EventName(ev.Kind)),
			QoS:     0,
			Retain:  true,
		})
		cancel()
		if err != nil {
			e.log.Debug("mqtt exporter publish failed", "kind", event.EventName(ev.Kind), "error", err)
		}
	}
}

// Stop publishes an "offline" availability message and disconnects.
// The handle is destroyed by Start's own defer once pump returns.
func (e *Exporter) Stop(ctx context.Context) error {
	if e.cm == nil {
		return nil
	}
	if _, err := e.cm.Publish(ctx, &paho.Publish{
		Topic: e.availabilityTopic(), Payload: []byte("offline"), QoS: 1, Retain: true,
	}); err != nil {
		e.log.Warn("mqtt exporter availability publish failed", "error", err)
	}
	return e.cm.Disconnect(ctx)
}
