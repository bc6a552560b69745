package main

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/coreplay/playerctl"
)

//go:embed help.md
var helpMarkdown []byte

// dashboardServer is a tiny status page: a static help document
// rendered once at startup, plus a live view of the engine's
// properties. It has no bearing on the core's concurrency invariants.
type dashboardServer struct {
	addr string
	h    *playerctl.Handle
	log  *slog.Logger

	helpHTML string
	http     *http.Server
}

func newDashboardServer(addr string, h *playerctl.Handle, log *slog.Logger) *dashboardServer {
	var buf bytes.Buffer
	helpHTML := "<p>help unavailable</p>"
	if err := goldmark.Convert(helpMarkdown, &buf); err == nil {
		helpHTML = buf.String()
	} else {
		log.Warn("render help markdown", "error", err)
	}
	return &dashboardServer{addr: addr, h: h, log: log, helpHTML: helpHTML}
}

func (d *dashboardServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", d.handleHelp)
	mux.HandleFunc("/status", d.handleStatus)

	d.http = &http.Server{Addr: d.addr, Handler: mux}
	d.log.Info("dashboard listening", "addr", d.addr)
	err := d.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (d *dashboardServer) Shutdown(ctx context.Context) error {
	if d.http == nil {
		return nil
	}
	return d.http.Shutdown(ctx)
}

func (d *dashboardServer) handleHelp(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>playerctl-demo</title></head><body>%s</body></html>", d.helpHTML)
}

func (d *dashboardServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, name := range d.h.PropertyNames() {
		value, code := d.h.GetPropertyString(name)
		if code != playerctl.Success {
			fmt.Fprintf(w, "%s: <%s>\n", name, playerctl.ErrorString(code))
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", name, value)
	}
}
