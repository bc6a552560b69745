package mqtt

import (
	"testing"

	"github.com/coreplay/playerctl/event"
)

func TestTopicPaths(t *testing.T) {
	e := New(Config{Broker: "mqtt://localhost:1883", InstanceID: "inst-1"}, nil, nil)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"baseTopic", e.baseTopic(), "playerctl/inst-1"},
		{"availabilityTopic", e.availabilityTopic(), "playerctl/inst-1/availability"},
		{"eventTopic idle", e.eventTopic(event.EventIdle), "playerctl/inst-1/event/idle"},
		{"eventTopic pause", e.eventTopic(event.EventPause), "playerctl/inst-1/event/pause"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestExportedKindsCoverage(t *testing.T) {
	want := map[event.EventKind]bool{
		event.EventPlaybackStart: true,
		event.EventIdle:          true,
		event.EventPause:         true,
		event.EventUnpause:       true,
		event.EventEndFile:       true,
		event.EventTracksChanged: true,
	}
	if len(exportedKinds) != len(want) {
		t.Fatalf("exportedKinds has %d entries, want %d", len(exportedKinds), len(want))
	}
	for _, k := range exportedKinds {
		if !want[k] {
			t.Errorf("unexpected exported kind %v", event.EventName(k))
		}
		delete(want, k)
	}
	if len(want) != 0 {
		t.Errorf("missing exported kinds: %v", want)
	}
}
