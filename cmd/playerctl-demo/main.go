// Command playerctl-demo is a runnable host for the embeddable player
// control core: it starts the shared engine, opens the WebSocket
// remote-host bridge, and optionally exports playback events to MQTT
// and serves a tiny operator dashboard. Flag parsing, subcommands, and
// a runServe that wires components together are kept separate, with
// runServe waiting on an interrupt signal to shut everything down
// cleanly.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreplay/playerctl"
	bridgemqtt "github.com/coreplay/playerctl/internal/bridge/mqtt"
	"github.com/coreplay/playerctl/internal/bridge/pairing"
	bridgews "github.com/coreplay/playerctl/internal/bridge/ws"
	"github.com/coreplay/playerctl/internal/config"
)

const version = "dev"

func main() {
	listen := flag.String("listen", ":8765", "ws bridge listen address")
	mqttBroker := flag.String("mqtt-broker", "", "MQTT broker URL for event export (empty disables)")
	dashboard := flag.String("dashboard", "", "operator dashboard listen address (empty disables)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "serve":
			runServe(logger, *listen, *mqttBroker, *dashboard)
		case "pair":
			bridgeURL := *listen
			if flag.NArg() > 1 {
				bridgeURL = flag.Arg(1)
			}
			runPair(logger, bridgeURL)
		case "version":
			fmt.Println("playerctl-demo " + version)
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
			os.Exit(1)
		}
		return
	}

	fmt.Println("playerctl-demo - reference host for the player control core")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve    Start the engine, ws bridge, and optional dashboard/mqtt export")
	fmt.Println("  pair     Issue a one-time pairing QR code for the ws bridge")
	fmt.Println("  version  Show version")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

// runServe starts the shared playback core, registers the "main"
// handle, and runs the ws bridge (plus optional mqtt exporter and
// dashboard) until an interrupt signal arrives.
func runServe(logger *slog.Logger, listen, mqttBroker, dashboardAddr string) {
	h, err := playerctl.CreateWithDefaults(config.Default())
	if err != nil {
		logger.Error("create engine", "error", err)
		os.Exit(1)
	}
	if code := h.Initialize(); code != playerctl.Success {
		logger.Error("initialize engine", "error", playerctl.ErrorString(code))
		os.Exit(1)
	}
	logger.Info("engine initialized", "handle", h.Name())

	registry := h.Registry()

	wsServer := bridgews.NewServer(listen, registry, logger.With("component", "ws"))
	go func() {
		if err := wsServer.Start(context.Background()); err != nil {
			logger.Error("ws bridge failed", "error", err)
		}
	}()

	var exporter *bridgemqtt.Exporter
	if mqttBroker != "" {
		exporter = bridgemqtt.New(bridgemqtt.Config{
			Broker:     mqttBroker,
			InstanceID: h.Name(),
		}, registry, logger.With("component", "mqtt"))
		exportCtx, cancelExport := context.WithCancel(context.Background())
		defer cancelExport()
		go func() {
			if err := exporter.Start(exportCtx); err != nil {
				logger.Error("mqtt exporter failed", "error", err)
			}
		}()
	}

	var dash *dashboardServer
	if dashboardAddr != "" {
		dash = newDashboardServer(dashboardAddr, h, logger.With("component", "dashboard"))
		go func() {
			if err := dash.Start(); err != nil {
				logger.Error("dashboard failed", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ws bridge shutdown", "error", err)
	}
	if exporter != nil {
		if err := exporter.Stop(shutdownCtx); err != nil {
			logger.Warn("mqtt exporter shutdown", "error", err)
		}
	}
	if dash != nil {
		if err := dash.Shutdown(shutdownCtx); err != nil {
			logger.Warn("dashboard shutdown", "error", err)
		}
	}
	h.Destroy()
	logger.Info("playerctl-demo stopped")
}

// runPair issues a single pairing token/QR for bridgeURL and prints
// the redeemable values plus a PNG path to stdout.
func runPair(logger *slog.Logger, bridgeURL string) {
	store := pairing.NewStore(logger, pairing.DefaultTTL)
	issued, err := store.IssueToken(bridgeURL)
	if err != nil {
		logger.Error("issue pairing token", "error", err)
		os.Exit(1)
	}

	pngPath := "playerctl-pairing.png"
	if err := os.WriteFile(pngPath, issued.PNG, 0o644); err != nil {
		logger.Error("write pairing QR", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Pairing id:     %s\n", issued.ID)
	fmt.Printf("Pairing secret: %s\n", issued.Secret)
	fmt.Printf("QR code saved:  %s\n", pngPath)
	fmt.Printf("Expires in:     %s\n", pairing.DefaultTTL)
}
