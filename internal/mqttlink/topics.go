// Package mqttlink wraps eclipse/paho.mqtt.golang as the gateway's MQTT
// transport (§6.2 topic surface, §6.3 JSON envelopes). It implements
// bootstrap.Transport and decodes inbound envelopes into bootstrap.Router
// calls; the gateway's own register/status/ack emissions are published
// from here too.
package mqttlink

import "fmt"

// QoS is fixed at 0 for the entire topic surface (§6.2).
const QoS = byte(0)

func gatewayStatusTopic(gatewayId string) string  { return fmt.Sprintf("iot/gateway/%s/status", gatewayId) }
func gatewayConfigSetTopic(gatewayId string) string { return fmt.Sprintf("iot/gateway/%s/config/set", gatewayId) }
func gatewayConfigGetTopic(gatewayId string) string { return fmt.Sprintf("iot/gateway/%s/config/get", gatewayId) }
func nodeAssignTopic(gatewayId string) string       { return fmt.Sprintf("iot/gateway/%s/node/assign", gatewayId) }
func nodeConfigSetWildcard(gatewayId string) string { return fmt.Sprintf("iot/gateway/%s/node/+/config/set", gatewayId) }
func nodeControlWildcard(gatewayId string) string   { return fmt.Sprintf("iot/gateway/%s/node/+/control", gatewayId) }
func nodeRegisterTopic(gatewayId, nodeId string) string {
	return fmt.Sprintf("iot/gateway/%s/node/%s/register", gatewayId, nodeId)
}
func nodeStatusTopic(gatewayId, nodeId string) string {
	return fmt.Sprintf("iot/gateway/%s/node/%s/status", gatewayId, nodeId)
}
func nodeControlAckTopic(gatewayId, nodeId string) string {
	return fmt.Sprintf("iot/gateway/%s/node/%s/control/ack", gatewayId, nodeId)
}

func deviceRegisterTopic(deviceId string) string  { return fmt.Sprintf("iot/gateway/%s/register", deviceId) }
func deviceConfigSetTopic(deviceId string) string { return fmt.Sprintf("iot/gateway/%s/config/set", deviceId) }

// bootstrapStatusTopic is the LWT target while unprovisioned, since
// §6.2's status topic is gateway-scoped and no GatewayId exists yet.
func bootstrapStatusTopic(deviceId string) string { return fmt.Sprintf("iot/gateway/%s/status", deviceId) }

// globalRegisterTopic is subscribed by the backend, not the gateway;
// listed for §6.2 completeness and used by tests asserting topic shape.
const globalRegisterTopic = "iot/gateway/register"
