// Streetlight gateway
// Bridges a LoRa node fleet to MQTT/GPRS: hosts the command queue, the ACK
// event ring and the bootstrap/config router.
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

	"github.com/streetlight/gwnode/internal/ackring"
	"github.com/streetlight/gwnode/internal/appconfig"
	"github.com/streetlight/gwnode/internal/bootstrap"
	"github.com/streetlight/gwnode/internal/gprs"
	"github.com/streetlight/gwnode/internal/gwqueue"
	"github.com/streetlight/gwnode/internal/mqttlink"
	"github.com/streetlight/gwnode/internal/noderegistry"
	"github.com/streetlight/gwnode/internal/protocol"
	"github.com/streetlight/gwnode/internal/radio"
	"github.com/streetlight/gwnode/internal/store"
)

// tickInterval is the gateway's cooperative main-loop period: fast
// enough that the 800ms ACK_TIMEOUT (§4.E) is honored with margin.
const tickInterval = 100 * time.Millisecond

var (
	configFile string
	fakeRadio  bool

	rootCmd = &cobra.Command{
		Use:   "gateway",
		Short: "Streetlight LoRa gateway",
		Long:  "Bridges a fleet of streetlight nodes between LoRa and MQTT/GPRS.",
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the gateway service",
		RunE:  runGateway,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("streetlight gateway v0.1.0")
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/streetlight/gateway.yaml", "Configuration file path")
	runCmd.Flags().BoolVar(&fakeRadio, "fake-radio", false, "use an in-memory loopback radio instead of SPI hardware (bench mode)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// noopModem is the bench-mode GPRS collaborator when the gateway talks
// to the broker over a plain network interface instead of a modem.
type noopModem struct{}

func (noopModem) Connect(ctx context.Context) error { return nil }
func (noopModem) Restart() error                    { return nil }

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := appconfig.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateGateway(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := hclog.New(&hclog.LoggerOptions{Name: "gateway", Level: hclog.LevelFromString(cfg.LogLevel())})

	if !fakeRadio {
		log.Warn("real SPI/GPIO radio hardware not wired to this build, forcing fake radio; pass --fake-radio to silence this warning")
	}
	txFake := radio.NewFake(make(chan []byte, 8), make(chan []byte, 8))
	var tx radio.Transceiver = txFake
	serializer := radio.NewSerializer(tx, log.Named("radio"))

	gwStore := store.NewGatewayStore(cfg.StorePath("/var/lib/streetlight/gateway.json"))
	auditPath := cfg.StorePath("/var/lib/streetlight/gateway.json") + ".audit.db"
	audit, err := store.OpenAuditLog(auditPath)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer audit.Close()

	ring := ackring.New(log.Named("ackring"))
	queue := gwqueue.New(serializer, ring, log.Named("queue"))

	mqttCfg := mqttlink.Config{Broker: cfg.MQTT.Broker, Port: cfg.MQTT.Port, ClientID: cfg.MQTT.ClientID}
	if mqttCfg.Port == 0 {
		mqttCfg.Port = 1883
	}
	client := mqttlink.New(mqttCfg, cfg.Device.ID, log.Named("mqtt"))

	router, err := bootstrap.New(cfg.Device.ID, gwStore, audit, client, noRadioReinit{}, serializer, queue, log.Named("bootstrap"))
	if err != nil {
		return fmt.Errorf("constructing bootstrap router: %w", err)
	}
	client.SetRouter(router)

	if err := client.Connect(); err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	defer client.Disconnect()

	modemMgr := gprs.New(noopModem{}, log.Named("gprs"))
	if cfg.GPRS.APN != "" {
		log.Info("gprs apn configured", "apn", cfg.GPRS.APN)
	}

	registry := noderegistry.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info("gateway starting", "deviceId", cfg.Device.ID)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case sig := <-sigChan:
			log.Info("received signal, shutting down", "signal", sig)
			return nil
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			tick(now, router, queue, ring, client, serializer, modemMgr, registry, log)
		}
	}
}

// noRadioReinit satisfies bootstrap.RadioReinit for the fake-radio bench
// build, where there is no PHY to reprogram.
type noRadioReinit struct{}

func (noRadioReinit) Reconfigure(cfg radio.Config) error { return nil }

// tick runs one cooperative iteration: drain inbound radio frames,
// advance the command queue retry state machine, and publish any
// terminal ACK outcomes. Mirrors §4's single-threaded loop() shape,
// adapted for the goroutine-driven MQTT callback (internal/radio's
// Serializer documents why TrySend is mutex-guarded instead).
func tick(now time.Time, router *bootstrap.Router, queue *gwqueue.Queue, ring *ackring.Ring, client *mqttlink.Client, serializer *radio.Serializer, modemMgr *gprs.Manager, registry *noderegistry.Registry, log hclog.Logger) {
	for {
		data, ok, err := serializer.Poll()
		if err != nil {
			log.Error("radio poll failed", "error", err)
			break
		}
		if !ok {
			break
		}
		handleInboundFrame(now, data, router, queue, client, registry, log)
	}

	queue.Tick(now)

	if router.Phase() == bootstrap.Provisioned {
		for _, ev := range ring.Drain() {
			if err := client.PublishNodeControlAck(router.GatewayId(), ev.NodeId, ev); err != nil {
				log.Error("publishing node_control_ack failed", "error", err)
			}
		}
	}

	modemMgr.Tick(now)
	if modemMgr.RestartRequested() {
		log.Error("gprs cumulative failure window exceeded, exiting for supervisor restart")
		os.Exit(1)
	}
}

func handleInboundFrame(now time.Time, data []byte, router *bootstrap.Router, queue *gwqueue.Queue, client *mqttlink.Client, registry *noderegistry.Registry, log hclog.Logger) {
	pkt, err := protocol.Decode(data)
	if err != nil {
		log.Debug("dropping malformed frame", "error", err)
		return
	}

	gatewayId := router.GatewayId()
	switch p := pkt.(type) {
	case *protocol.AckPkt:
		queue.OnAck(p)
	case *protocol.RegisterPkt:
		registry.Observe(p.NodeId, now, 0, 0)
		if router.Phase() != bootstrap.Provisioned {
			return
		}
		if err := client.PublishNodeRegister(gatewayId, p.NodeId, 0, 0); err != nil {
			log.Error("publishing node_register failed", "error", err)
		}
	case *protocol.StatusPkt:
		registry.Observe(p.NodeId, now, p.RSSI, p.SNR)
		if router.Phase() != bootstrap.Provisioned {
			return
		}
		if err := client.PublishNodeStatus(gatewayId, p.NodeId, p.LightState, p.Fault, p.Hour, p.Minute, p.RSSI, p.SNR); err != nil {
			log.Error("publishing node_status failed", "error", err)
		}
	default:
		log.Debug("inbound frame type not handled by gateway", "type", pkt.Type())
	}
}
