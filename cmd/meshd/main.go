// Command meshd is the demo host binary: it wires a concrete Transport to
// a core.Engine, loads boot configuration with cobra/viper, and prints
// every Store transition to stdout. It plays the role of the external
// "permission dialog + renderer" collaborator spec.md keeps out of the
// core, without reaching into any browser/DOM-specific territory.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/windowmesh/mesh/pkg/mesh/core"
	"github.com/windowmesh/mesh/pkg/mesh/layout"
	"github.com/windowmesh/mesh/pkg/mesh/transport"
	"github.com/windowmesh/mesh/pkg/mesh/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "meshd",
		Short: "windowmesh demo host: runs one peer in a session",
	}
	root.AddCommand(newRunCmd(), newHubCmd())
	return root
}

func newRunCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run one peer, joining a session by its layout descriptor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPeer(v)
		},
	}

	flags := cmd.Flags()
	flags.String("transport", "local", "transport: local|relt|ws")
	flags.String("ws-dial", "ws://127.0.0.1:9271/", "hub address to dial, for --transport=ws")
	flags.String("session-seed", "", "layout descriptor string whose hash selects the session channel")
	flags.String("window-id", "", "this peer's id; generated if empty")
	flags.Float64("x", 0, "window rect x")
	flags.Float64("y", 0, "window rect y")
	flags.Float64("w", 800, "window rect width")
	flags.Float64("h", 600, "window rect height")
	flags.String("static-layout", "", "vfl1.<...> descriptor pinning a static layout")
	flags.String("screen-id", "", "boot override: force this screen id")
	flags.String("screen-position", "", "boot override: pos1.<...>, bare JSON, or 'x,y'")

	_ = v.BindPFlags(flags)
	v.SetEnvPrefix("MESHD")
	v.AutomaticEnv()
	return cmd
}

func newHubCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "hub",
		Short: "run the local websocket broadcast relay peers dial into",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHub(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "listen", "127.0.0.1:9271", "address to listen on")
	return cmd
}

func runHub(addr string) error {
	log := loggerFor("hub")
	hub, bound, err := transport.NewWSHub(addr, log)
	if err != nil {
		return fmt.Errorf("starting hub: %w", err)
	}
	log.Infof("hub listening on %s", bound)
	waitForSignal()
	return hub.Close()
}

func runPeer(v *viper.Viper) error {
	windowID := v.GetString("window-id")
	log := loggerFor(windowID)

	rect := types.Rect{X: v.GetFloat64("x"), Y: v.GetFloat64("y"), W: v.GetFloat64("w"), H: v.GetFloat64("h")}
	sessionSeed := v.GetString("session-seed")

	var staticLayout *types.Layout
	if s := v.GetString("static-layout"); s != "" {
		l, err := layout.Decode(s)
		if err != nil {
			return fmt.Errorf("decoding --static-layout: %w", err)
		}
		staticLayout = &l
	}

	channel := layout.SessionID(sessionSeed)
	bus, err := buildTransport(v, channel, log)
	if err != nil {
		return err
	}

	opts := []core.Option{
		core.WithTransport(bus),
		core.WithLogger(log),
		core.WithMetrics(prometheus.DefaultRegisterer),
	}
	if screenID := v.GetString("screen-id"); screenID != "" {
		var pos *types.Point
		if raw := v.GetString("screen-position"); raw != "" {
			if p, ok := layout.DecodeScreenPosition(raw); ok {
				pos = &p
			}
		}
		opts = append(opts, core.WithBootOverrides(screenID, pos))
	}

	engine, err := core.New(windowID, rect, staticLayout, sessionSeed, opts...)
	if err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}

	engine.Store().Subscribe(func(s types.EngineState) {
		printable := map[string]interface{}{
			"windowId":       s.WindowID,
			"isLeader":       s.IsLeader,
			"leaderId":       s.LeaderID,
			"peers":          len(s.Peers),
			"assignedScreen": s.AssignedScreenID,
			"viewportOffset": s.ViewportOffset,
		}
		line, _ := json.Marshal(printable)
		fmt.Println(string(line))
	})

	log.Infof("joined session channel %s", channel)
	waitForSignal()
	engine.Dispose()
	return nil
}

func buildTransport(v *viper.Viper, channel string, log types.Logger) (transport.Transport, error) {
	switch v.GetString("transport") {
	case "local":
		return transport.NewLocalBus(channel), nil
	case "relt":
		return transport.NewReltBus(v.GetString("window-id"), channel, log)
	case "ws":
		return transport.NewWSBus(v.GetString("ws-dial"), log)
	default:
		return nil, fmt.Errorf("unknown --transport %q", v.GetString("transport"))
	}
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
