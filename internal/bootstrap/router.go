package bootstrap

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/streetlight/gwnode/internal/ctlerr"
	"github.com/streetlight/gwnode/internal/gwqueue"
	"github.com/streetlight/gwnode/internal/protocol"
	"github.com/streetlight/gwnode/internal/radio"
	"github.com/streetlight/gwnode/internal/store"
)

// Phase is the gateway's provisioning lifecycle position (§4.G).
type Phase int

const (
	Unprovisioned Phase = iota
	Provisioned
)

// Transport is the MQTT-facing side of the router: subscriptions and
// publishes the router needs to drive bootstrap and status reporting.
// internal/mqttlink.Client implements this; the router never imports
// mqttlink, avoiding a dependency cycle.
type Transport interface {
	SubscribeDeviceScoped(deviceId string) error
	SubscribeGatewayScoped(gatewayId string) error
	PublishDeviceRegister(msg DeviceRegister) error
	PublishStatus(status GatewayStatus) error
}

// RadioReinit is the subset of internal/radio.Hardware the router needs
// to apply a new PHY config on provisioning.
type RadioReinit interface {
	Reconfigure(cfg radio.Config) error
}

// CommandQueue is the subset of internal/gwqueue.Queue the router needs
// to forward MANUAL node_control requests.
type CommandQueue interface {
	Enqueue(req gwqueue.Request) error
}

// Sender is the subset of internal/radio.Serializer the router needs to
// forward a ConfigPkt to a node (§4.G phase 2, sent once, no retry loop
// per §9's open question).
type Sender interface {
	TrySend(data []byte) (bool, error)
}

// Router implements §4.G's two-phase state machine.
type Router struct {
	log       hclog.Logger
	deviceId  string
	transport Transport
	radioInit RadioReinit
	sender    Sender
	queue     CommandQueue
	gwStore   *store.GatewayStore
	audit     *store.AuditLog

	phase  Phase
	config *store.GatewayConfig
}

// New constructs a Router for a gateway identified by its immutable
// DeviceId, loading any previously persisted config to decide the
// starting phase. audit may be nil, in which case applied configs are
// not recorded to the provisioning history (bench/test builds).
func New(deviceId string, gwStore *store.GatewayStore, audit *store.AuditLog, transport Transport, radioInit RadioReinit, sender Sender, queue CommandQueue, log hclog.Logger) (*Router, error) {
	r := &Router{
		log: log, deviceId: deviceId, transport: transport,
		radioInit: radioInit, sender: sender, queue: queue, gwStore: gwStore, audit: audit,
	}

	cfg, err := gwStore.Load()
	if err != nil {
		r.phase = Unprovisioned
		return r, nil
	}
	r.config = cfg
	r.phase = Provisioned
	return r, nil
}

// Phase reports the router's current lifecycle position.
func (r *Router) Phase() Phase {
	return r.phase
}

// GatewayId returns the assigned GatewayId, or "" while unprovisioned.
func (r *Router) GatewayId() string {
	if r.config == nil {
		return ""
	}
	return r.config.GatewayId
}

// CurrentConfig returns the gateway's currently applied configuration, or
// nil while Unprovisioned. Used to answer a config/get request (§6.2).
func (r *Router) CurrentConfig() *store.GatewayConfig {
	return r.config
}

// Start subscribes the topics appropriate to the current phase and, if
// unprovisioned, publishes device_register. internal/mqttlink calls it
// each time the MQTT connection is established. Once Provisioned, the
// router never returns to Unprovisioned.
func (r *Router) Start() error {
	switch r.phase {
	case Unprovisioned:
		if err := r.transport.SubscribeDeviceScoped(r.deviceId); err != nil {
			return fmt.Errorf("subscribing device-scoped topics: %w", err)
		}
		return r.transport.PublishDeviceRegister(DeviceRegister{
			Type: "device_register", DeviceId: r.deviceId, FirmwareVersion: firmwareVersion,
		})
	case Provisioned:
		if err := r.transport.SubscribeGatewayScoped(r.config.GatewayId); err != nil {
			return fmt.Errorf("subscribing gateway-scoped topics: %w", err)
		}
		return r.transport.PublishStatus(StatusOnline)
	}
	return nil
}

const firmwareVersion = 1

// validateDeviceConfig aggregates every structural problem with msg into
// a single multierror, matching the other_examples pack's pattern of
// collecting validation failures rather than failing on the first one.
func validateDeviceConfig(msg *DeviceConfig) error {
	var result *multierror.Error
	if msg.GatewayId == "" {
		result = multierror.Append(result, fmt.Errorf("gatewayId must be non-empty"))
	}
	if len(msg.Nodes) > 50 {
		result = multierror.Append(result, fmt.Errorf("nodes length %d exceeds 50", len(msg.Nodes)))
	}
	if msg.MQTT != nil && msg.MQTT.Port <= 0 {
		result = multierror.Append(result, fmt.Errorf("mqtt.port must be positive"))
	}
	if result.ErrorOrNil() != nil {
		return fmt.Errorf("%w: %v", ctlerr.ErrConfigRejected, result)
	}
	return nil
}

// HandleDeviceConfig applies a device_config envelope (§4.G phase 1).
// A ConfigRejected error leaves the phase and the persisted config
// unchanged. A rejection does not republish device_register; that
// happens only when Start next runs, on the next MQTT connect.
func (r *Router) HandleDeviceConfig(msg *DeviceConfig) error {
	if err := validateDeviceConfig(msg); err != nil {
		r.log.Warn("device_config rejected", "error", err)
		return err
	}

	next := &store.GatewayConfig{
		GatewayId:     msg.GatewayId,
		APN:           msg.APN,
		ConfigVersion: msg.ConfigVersion,
	}
	if msg.LoRa != nil {
		next.LoRa = store.LoRaParams{
			Frequency: msg.LoRa.Frequency, SpreadFactor: msg.LoRa.SpreadingFactor,
			Bandwidth: msg.LoRa.Bandwidth, CodingRate: msg.LoRa.CodingRate,
		}
	}
	if msg.MQTT != nil {
		next.MQTT = store.MQTTParams{Broker: msg.MQTT.Broker, Port: msg.MQTT.Port}
	}
	for _, n := range msg.Nodes {
		next.Nodes = append(next.Nodes, store.NodeInfo{NodeId: n.NodeId, Config: n.Config, ConfigVersion: n.ConfigVersion})
	}

	applied, wrote, err := r.gwStore.ApplyIfNewer(next)
	if err != nil {
		r.log.Error("saving device_config failed, previous config remains in force", "error", err)
		return err
	}
	r.config = applied
	if !wrote {
		r.log.Debug("device_config no-op, configVersion not newer", "configVersion", msg.ConfigVersion)
		return nil
	}

	if r.audit != nil {
		if err := r.audit.RecordApplied(applied.GatewayId, applied.ConfigVersion, time.Now().Unix()); err != nil {
			r.log.Error("recording config apply to audit log failed", "error", err)
		}
	}

	if msg.LoRa != nil && r.radioInit != nil {
		if err := r.radioInit.Reconfigure(radio.Config{
			Frequency: applied.LoRa.Frequency, SpreadingFactor: applied.LoRa.SpreadFactor,
			Bandwidth: applied.LoRa.Bandwidth, CodingRate: applied.LoRa.CodingRate, CRCEnabled: true,
		}); err != nil {
			r.log.Error("reinitializing radio with new parameters failed", "error", err)
		}
	}

	r.phase = Provisioned
	if err := r.transport.SubscribeGatewayScoped(applied.GatewayId); err != nil {
		return fmt.Errorf("subscribing gateway-scoped topics: %w", err)
	}
	return r.transport.PublishStatus(StatusOnline)
}

// HandleNodeConfig forwards a node_config envelope as a single ConfigPkt
// transmission (§4.G phase 2; no retry loop, per §9's open question).
func (r *Router) HandleNodeConfig(msg *NodeConfigMsg) error {
	if r.phase != Provisioned {
		return fmt.Errorf("node_config received while unprovisioned")
	}

	pkt := &protocol.ConfigPkt{
		NodeId: msg.NodeId, GatewayId: msg.GatewayId,
		OnHour: msg.Schedule.OnHour, OnMin: msg.Schedule.OnMin,
		OffHour: msg.Schedule.OffHour, OffMin: msg.Schedule.OffMin,
		CfgVer: msg.ConfigVersion,
		RegIntervalMs: msg.Intervals.Register, StatusIntervalMs: msg.Intervals.Status,
	}
	ok, err := r.sender.TrySend(pkt.Encode())
	if err != nil {
		return fmt.Errorf("transmitting node_config as ConfigPkt: %w", err)
	}
	if !ok {
		r.log.Debug("radio busy, node_config forwarding dropped this attempt", "nodeId", msg.NodeId)
	}

	info := store.NodeInfo{NodeId: msg.NodeId, Config: msg.Schedule, ConfigVersion: msg.ConfigVersion}
	if r.config != nil {
		if err := r.gwStore.UpsertNode(r.config, info); err != nil {
			r.log.Error("recording node config in gateway store failed", "error", err)
		}
	}
	return nil
}

// HandleNodeControl enqueues a MANUAL node_control request into the
// command queue (§4.G phase 2). AUTO-mode requests and non-MANUAL modes
// are not forwarded over the radio (§9's open question; current source
// silently drops, preserved here).
func (r *Router) HandleNodeControl(msg *NodeControlMsg) error {
	if r.phase != Provisioned {
		return fmt.Errorf("node_control received while unprovisioned")
	}
	if msg.Mode != ControlModeManual {
		r.log.Debug("non-MANUAL node_control not forwarded", "nodeId", msg.NodeId, "mode", msg.Mode)
		return nil
	}
	return r.queue.Enqueue(gwqueue.Request{
		CmdId: msg.CmdId, NodeId: msg.NodeId, GatewayId: msg.GatewayId, Action: gwqueue.Action(msg.Action),
	})
}
