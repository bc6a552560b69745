package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/coreplay/playerctl"
	"github.com/coreplay/playerctl/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunPairWritesQRFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	runPair(discardLogger(), "ws://localhost:8765/")

	if _, err := os.Stat(filepath.Join(dir, "playerctl-pairing.png")); err != nil {
		t.Fatalf("expected pairing PNG to be written: %v", err)
	}
}

func TestDashboardHelpRenders(t *testing.T) {
	h, err := playerctl.CreateWithDefaults(config.Default())
	if err != nil {
		t.Fatalf("CreateWithDefaults: %v", err)
	}
	h.Initialize()
	t.Cleanup(h.Destroy)

	d := newDashboardServer(":0", h, discardLogger())
	if d.helpHTML == "" || d.helpHTML == "<p>help unavailable</p>" {
		t.Fatalf("help markdown did not render: %q", d.helpHTML)
	}
}
