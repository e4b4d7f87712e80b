// Package bootstrap implements the gateway's two-phase provisioning
// state machine and config/control router (§4.G): Unprovisioned until a
// device_config envelope assigns a GatewayId, then Provisioned and
// routing node_config/node_control envelopes to the radio and command
// queue.
package bootstrap

import "github.com/streetlight/gwnode/internal/store"

// DeviceRegister is the device_register envelope this gateway publishes
// while unprovisioned (§6.3).
type DeviceRegister struct {
	Type            string `json:"type"`
	DeviceId        string `json:"deviceId"`
	FirmwareVersion int    `json:"firmwareVersion"`
}

// DeviceConfig is the device_config envelope the backend publishes to
// provision this gateway (§6.3).
type DeviceConfig struct {
	GatewayId     string           `json:"gatewayId"`
	LoRa          *LoRaParams      `json:"lora,omitempty"`
	APN           string           `json:"apn,omitempty"`
	MQTT          *MQTTParams      `json:"mqtt,omitempty"`
	ConfigVersion uint8            `json:"configVersion"`
	Nodes         []NodeConfigSpec `json:"nodes,omitempty"`
}

// LoRaParams mirrors store.LoRaParams on the wire (§6.3).
type LoRaParams struct {
	Frequency       uint32 `json:"frequency"`
	SpreadingFactor uint8  `json:"spreadingFactor"`
	Bandwidth       uint32 `json:"bandwidth"`
	CodingRate      uint8  `json:"codingRate"`
}

// MQTTParams mirrors store.MQTTParams on the wire (§6.3).
type MQTTParams struct {
	Broker string `json:"broker"`
	Port   int    `json:"port"`
}

// NodeConfigSpec is one entry of device_config's nodes[] array (§6.3).
type NodeConfigSpec struct {
	NodeId        string          `json:"nodeId"`
	Config        store.Schedule  `json:"config"`
	ConfigVersion uint8           `json:"configVersion"`
}

// NodeConfigMsg is the node_config envelope (§6.3), forwarded to a node
// as a ConfigPkt once provisioned.
type NodeConfigMsg struct {
	Type          string         `json:"type"`
	NodeId        string         `json:"nodeId"`
	GatewayId     string         `json:"gatewayId"`
	Schedule      store.Schedule `json:"schedule"`
	ConfigVersion uint8          `json:"configVersion"`
	Intervals     Intervals      `json:"intervals"`
}

// Intervals carries the node_config envelope's register/status cadence.
type Intervals struct {
	Register uint32 `json:"register"`
	Status   uint32 `json:"status"`
}

// ControlAction is the node_control envelope's requested action (§6.3).
type ControlAction string

const (
	ControlActionOn   ControlAction = "ON"
	ControlActionOff  ControlAction = "OFF"
	ControlActionAuto ControlAction = "AUTO"
)

// ControlModeWire is the node_control envelope's mode field (§6.3).
type ControlModeWire string

const (
	ControlModeManual ControlModeWire = "MANUAL"
	ControlModeAuto   ControlModeWire = "AUTO"
)

// NodeControlMsg is the node_control envelope (§6.3), enqueued into the
// command queue when Mode is MANUAL.
type NodeControlMsg struct {
	Type      string          `json:"type"`
	NodeId    string          `json:"nodeId"`
	GatewayId string          `json:"gatewayId"`
	Action    ControlAction   `json:"action"`
	Mode      ControlModeWire `json:"mode"`
	CmdId     uint16          `json:"cmdId"`
}

// GatewayStatus is one of the retained values published on the gateway's
// status topic (§7's user-visible behavior).
type GatewayStatus string

const (
	StatusOnline        GatewayStatus = "ONLINE"
	StatusOffline        GatewayStatus = "OFFLINE"
	StatusRebooting      GatewayStatus = "REBOOTING"
	StatusConfigReset    GatewayStatus = "CONFIG_RESET"
	StatusRadioRebooted  GatewayStatus = "RADIO_REBOOTED"
)
