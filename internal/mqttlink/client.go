package mqttlink

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/streetlight/gwnode/internal/ackring"
	"github.com/streetlight/gwnode/internal/bootstrap"
	"github.com/streetlight/gwnode/internal/store"
)

// Config holds the broker connection parameters. cmd/gateway fills it
// from the operational YAML config; the MQTTParams persisted from a
// device_config are not applied to it.
type Config struct {
	Broker   string
	Port     int
	ClientID string
}

// Client wraps a paho MQTT connection, implementing bootstrap.Transport
// and routing inbound envelopes to a bootstrap.Router.
type Client struct {
	cfg      Config
	deviceId string
	log      hclog.Logger

	cli    mqtt.Client
	router *bootstrap.Router
}

// New constructs a disconnected Client. Call SetRouter before Connect so
// the on-connect subscription handler has somewhere to forward envelopes.
func New(cfg Config, deviceId string, log hclog.Logger) *Client {
	return &Client{cfg: cfg, deviceId: deviceId, log: log}
}

// SetRouter wires the bootstrap router this client forwards decoded
// envelopes to. Must be called before Connect.
func (c *Client) SetRouter(r *bootstrap.Router) {
	c.router = r
}

// Connect dials the broker, arming the LWT on the device-scoped status
// path (the gateway-scoped one isn't known until provisioned) with
// retained payload "OFFLINE" (§6.2), and subscribes the phase-
// appropriate topics once the connection is established.
func (c *Client) Connect() error {
	broker := fmt.Sprintf("tcp://%s:%d", c.cfg.Broker, c.cfg.Port)
	opts := mqtt.NewClientOptions().AddBroker(broker)
	if c.cfg.ClientID != "" {
		opts.SetClientID(c.cfg.ClientID)
	}
	opts.SetWill(bootstrapStatusTopic(c.deviceId), "OFFLINE", QoS, true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(30 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.log.Info("mqtt connected")
		if c.router != nil {
			if err := c.router.Start(); err != nil {
				c.log.Error("router start after connect failed", "error", err)
			}
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.log.Warn("mqtt connection lost", "error", err)
	})

	c.cli = mqtt.NewClient(opts)
	token := c.cli.Connect()
	token.Wait()
	return token.Error()
}

// Disconnect closes the connection, publishing nothing further (the
// broker applies the LWT).
func (c *Client) Disconnect() {
	c.cli.Disconnect(250)
}

func (c *Client) publishJSON(topic string, v interface{}, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling envelope for %s: %w", topic, err)
	}
	token := c.cli.Publish(topic, QoS, retained, payload)
	token.Wait()
	return token.Error()
}

// --- bootstrap.Transport ---

func (c *Client) SubscribeDeviceScoped(deviceId string) error {
	return c.subscribeJSON(deviceConfigSetTopic(deviceId), func(payload []byte) {
		var msg bootstrap.DeviceConfig
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.log.Warn("malformed device_config payload", "error", err)
			return
		}
		if c.router != nil {
			if err := c.router.HandleDeviceConfig(&msg); err != nil {
				c.log.Warn("device_config rejected", "error", err)
			}
		}
	})
}

func (c *Client) SubscribeGatewayScoped(gatewayId string) error {
	if err := c.subscribeJSON(gatewayConfigSetTopic(gatewayId), func(payload []byte) {
		var msg bootstrap.DeviceConfig
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.log.Warn("malformed device_config payload on gateway-scoped topic", "error", err)
			return
		}
		if c.router != nil {
			if err := c.router.HandleDeviceConfig(&msg); err != nil {
				c.log.Warn("device_config rejected", "error", err)
			}
		}
	}); err != nil {
		return err
	}

	if err := c.subscribeJSON(gatewayConfigGetTopic(gatewayId), func(payload []byte) {
		c.handleConfigGet(gatewayId)
	}); err != nil {
		return err
	}

	if err := c.subscribeJSON(nodeConfigSetWildcard(gatewayId), func(payload []byte) {
		var msg bootstrap.NodeConfigMsg
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.log.Warn("malformed node_config payload", "error", err)
			return
		}
		if c.router != nil {
			if err := c.router.HandleNodeConfig(&msg); err != nil {
				c.log.Warn("node_config handling failed", "error", err)
			}
		}
	}); err != nil {
		return err
	}

	return c.subscribeJSON(nodeControlWildcard(gatewayId), func(payload []byte) {
		var msg bootstrap.NodeControlMsg
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.log.Warn("malformed node_control payload", "error", err)
			return
		}
		if c.router != nil {
			if err := c.router.HandleNodeControl(&msg); err != nil {
				c.log.Warn("node_control handling failed", "error", err)
			}
		}
	})
}

func (c *Client) subscribeJSON(topic string, handle func(payload []byte)) error {
	token := c.cli.Subscribe(topic, QoS, func(_ mqtt.Client, m mqtt.Message) {
		// Runs inside paho's own read loop, concurrently with the main
		// loop (§9's "reentrant MQTT callback"); handle must stay
		// non-blocking and defer all radio I/O to the next tick.
		handle(m.Payload())
	})
	token.Wait()
	return token.Error()
}

func (c *Client) PublishDeviceRegister(msg bootstrap.DeviceRegister) error {
	return c.publishJSON(deviceRegisterTopic(c.deviceId), msg, false)
}

func (c *Client) PublishStatus(status bootstrap.GatewayStatus) error {
	// PublishStatus is only meaningful once a GatewayId exists; the
	// router only calls it after provisioning.
	return c.publishJSON(c.statusTopic(), status, true)
}

// handleConfigGet answers a config/get request (§6.2) by republishing the
// currently applied config, retained, onto config/set so both the
// requesting backend and this gateway's own config/set subscription see
// the current state (the latter is a harmless idempotent re-apply, since
// ApplyIfNewer no-ops on an unchanged ConfigVersion).
func (c *Client) handleConfigGet(gatewayId string) {
	if c.router == nil {
		return
	}
	cfg := c.router.CurrentConfig()
	if cfg == nil {
		return
	}
	if err := c.publishGatewayConfig(gatewayId, cfg); err != nil {
		c.log.Error("publishing config/get response failed", "error", err)
	}
}

func (c *Client) publishGatewayConfig(gatewayId string, cfg *store.GatewayConfig) error {
	nodes := make([]map[string]interface{}, 0, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		nodes = append(nodes, map[string]interface{}{
			"nodeId": n.NodeId, "config": n.Config, "configVersion": n.ConfigVersion,
		})
	}
	return c.publishJSON(gatewayConfigSetTopic(gatewayId), map[string]interface{}{
		"type": "device_config", "gatewayId": cfg.GatewayId,
		"lora": map[string]interface{}{
			"frequency": cfg.LoRa.Frequency, "spreadingFactor": cfg.LoRa.SpreadFactor,
			"bandwidth": cfg.LoRa.Bandwidth, "codingRate": cfg.LoRa.CodingRate,
		},
		"apn":           cfg.APN,
		"mqtt":          map[string]interface{}{"broker": cfg.MQTT.Broker, "port": cfg.MQTT.Port},
		"configVersion": cfg.ConfigVersion, "nodes": nodes,
	}, true)
}

func (c *Client) statusTopic() string {
	if c.router != nil {
		if gw := c.router.GatewayId(); gw != "" {
			return gatewayStatusTopic(gw)
		}
	}
	return bootstrapStatusTopic(c.deviceId)
}

// --- node-originated envelope publishing (§6.3 emitted envelopes) ---

// PublishNodeRegister forwards a node's Register frame as a
// node_register envelope.
func (c *Client) PublishNodeRegister(gatewayId, nodeId string, rssi, snr int32) error {
	return c.publishJSON(nodeRegisterTopic(gatewayId, nodeId), map[string]interface{}{
		"type": "node_register", "deviceId": c.deviceId, "gatewayId": gatewayId,
		"nodeId": nodeId, "rssi": rssi, "snr": snr, "timestamp": time.Now().Unix(),
	}, false)
}

// PublishNodeStatus forwards a node's Status frame as a node_status envelope.
func (c *Client) PublishNodeStatus(gatewayId, nodeId string, lightOn, fault bool, hour, minute uint8, rssi, snr int32) error {
	state := "OFF"
	if lightOn {
		state = "ON"
	}
	return c.publishJSON(nodeStatusTopic(gatewayId, nodeId), map[string]interface{}{
		"type": "node_status", "deviceId": c.deviceId, "gatewayId": gatewayId, "nodeId": nodeId,
		"state": state, "fault": fault, "time": fmt.Sprintf("%d:%02d", hour, minute),
		"rssi": rssi, "snr": snr,
	}, false)
}

// PublishNodeControlAck publishes one ackring.Event as a
// node_control_ack envelope, tagged with a fresh random correlationId
// field (the id is carried in the envelope only, not logged).
func (c *Client) PublishNodeControlAck(gatewayId, nodeId string, ev ackring.Event) error {
	return c.publishJSON(nodeControlAckTopic(gatewayId, nodeId), map[string]interface{}{
		"type": "node_control_ack", "gatewayId": gatewayId, "deviceId": c.deviceId, "nodeId": nodeId,
		"cmdId": ev.CmdId, "success": ev.Success, "ts": time.Now().Unix(), "correlationId": uuid.NewString(),
	}, false)
}
