// Streetlight node
// Edge device actuating a relay under AUTO/MANUAL_ON/MANUAL_OFF
// arbitration (the mode/schedule engine and control handler in
// internal/nodefsm). Firmware is simulated as
// a host process: the relay, radio, and RTC are swappable collaborators
// so the same binary runs on bench hardware or in a fake-radio loopback.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/streetlight/gwnode/internal/appconfig"
	"github.com/streetlight/gwnode/internal/clock"
	"github.com/streetlight/gwnode/internal/nodefsm"
	"github.com/streetlight/gwnode/internal/protocol"
	"github.com/streetlight/gwnode/internal/radio"
	"github.com/streetlight/gwnode/internal/store"
)

// tickInterval is the node's cooperative main-loop period.
const tickInterval = 250 * time.Millisecond

var (
	configFile string
	fakeRadio  bool

	rootCmd = &cobra.Command{
		Use:   "node",
		Short: "Streetlight node",
		Long:  "Edge device actuating a relay under AUTO/MANUAL_ON/MANUAL_OFF arbitration.",
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the node service",
		RunE:  runNode,
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Clear persisted node state (bench testing)",
		RunE:  resetNode,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("streetlight node v0.1.0")
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/streetlight/node.yaml", "Configuration file path")
	runCmd.Flags().BoolVar(&fakeRadio, "fake-radio", false, "use an in-memory loopback radio instead of SPI hardware (bench mode)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// relayStub stands in for the GPIO-driven relay output until wired to
// real hardware; it logs every commanded transition so bench runs are
// observable.
type relayStub struct {
	log   hclog.Logger
	state bool
}

func (r *relayStub) Set(on bool) error {
	if on != r.state {
		r.log.Info("relay transition", "on", on)
	}
	r.state = on
	return nil
}

func openNodeStore(cfg *appconfig.Config) (*store.NodeStore, error) {
	return store.OpenNodeStore(cfg.StorePath("/var/lib/streetlight/node.db"))
}

func resetNode(cmd *cobra.Command, args []string) error {
	cfg, err := appconfig.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	s, err := openNodeStore(cfg)
	if err != nil {
		return fmt.Errorf("opening node store: %w", err)
	}
	if err := s.Save(&store.NodeConfig{ControlMode: store.ModeAuto}); err != nil {
		return fmt.Errorf("resetting node state: %w", err)
	}
	fmt.Println("node state reset to unconfigured AUTO")
	return nil
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg, err := appconfig.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateNode(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := hclog.New(&hclog.LoggerOptions{Name: "node", Level: hclog.LevelFromString(cfg.LogLevel())})

	if !fakeRadio {
		log.Warn("real SPI/GPIO radio hardware not wired to this build, forcing fake radio; pass --fake-radio to silence this warning")
	}
	var tx radio.Transceiver = radio.NewFake(make(chan []byte, 8), make(chan []byte, 8))
	serializer := radio.NewSerializer(tx, log.Named("radio"))

	nodeStore, err := openNodeStore(cfg)
	if err != nil {
		return fmt.Errorf("opening node store: %w", err)
	}

	relay := &relayStub{log: log.Named("relay")}
	engine, err := nodefsm.New(cfg.Device.ID, clock.SystemRTC{}, relay, nodeStore, serializer, log.Named("fsm"))
	if err != nil {
		return fmt.Errorf("constructing node engine: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("node starting", "deviceId", cfg.Device.ID)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case now := <-ticker.C:
			pollAndTick(now, engine, serializer, log)
		}
	}
}

func pollAndTick(now time.Time, engine *nodefsm.Engine, serializer *radio.Serializer, log hclog.Logger) {
	for {
		data, ok, err := serializer.Poll()
		if err != nil {
			log.Error("radio poll failed", "error", err)
			break
		}
		if !ok {
			break
		}
		pkt, err := protocol.Decode(data)
		if err != nil {
			log.Debug("dropping malformed frame", "error", err)
			continue
		}
		if err := engine.HandlePacket(pkt, 0, 0); err != nil {
			log.Debug("inbound packet not applied", "error", err)
		}
	}
	engine.Tick(now)
}
