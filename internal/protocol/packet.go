// Package protocol implements the AgSys streetlight LoRa wire protocol: a
// fixed set of packed binary frames exchanged between the gateway and its
// nodes over a half-duplex radio. The codec is the only place byte-level
// packing happens; every other package exchanges decoded Go structs.
//
// All multi-byte integers are little-endian. Every frame begins with a
// single pktType byte. String fields (NodeId, GatewayId) are fixed
// 24-byte, zero-terminated, truncated to 23 bytes plus the terminator.
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/streetlight/gwnode/internal/ctlerr"
)

// PktType identifies the wire frame variant.
type PktType uint8

const (
	PktBeacon     PktType = 0x01
	PktRegister   PktType = 0x02
	PktAssign     PktType = 0x03
	PktConfig     PktType = 0x04
	PktStatus     PktType = 0x05
	PktAck        PktType = 0x06
	PktControl    PktType = 0x07
	PktLoRaConfig PktType = 0x08
)

func (t PktType) String() string {
	switch t {
	case PktBeacon:
		return "Beacon"
	case PktRegister:
		return "Register"
	case PktAssign:
		return "Assign"
	case PktConfig:
		return "Config"
	case PktStatus:
		return "Status"
	case PktAck:
		return "Ack"
	case PktControl:
		return "Control"
	case PktLoRaConfig:
		return "LoRaConfig"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", uint8(t))
	}
}

// stringFieldSize is the fixed width of NodeId/GatewayId wire fields.
const stringFieldSize = 24

// Declared frame sizes, including the leading pktType byte. Decode rejects
// any frame whose length does not exactly match its variant's size.
const (
	sizeBeacon     = 1 + 4
	sizeRegister   = 1 + stringFieldSize + 1 + 4
	sizeAssign     = 1 + stringFieldSize
	sizeConfig     = 1 + stringFieldSize + stringFieldSize + 1 + 1 + 1 + 1 + 1 + 4 + 4
	sizeStatus     = 1 + stringFieldSize + stringFieldSize + 1 + 1 + 1 + 1 + 4 + 4
	sizeAck        = 1 + 2 + stringFieldSize
	sizeControl    = 1 + 2 + stringFieldSize + 1
	sizeLoRaConfig = 1 + 4 + 1 + 4 + 1
)

// Packet is implemented by every wire frame payload.
type Packet interface {
	Type() PktType
	Encode() []byte
}

// putString copies s into a fixed 24-byte field, truncated to 23 bytes
// and zero-terminated.
func putString(buf []byte, s string) {
	if len(s) > stringFieldSize-1 {
		s = s[:stringFieldSize-1]
	}
	copy(buf, s)
	for i := len(s); i < stringFieldSize; i++ {
		buf[i] = 0
	}
}

// getString reads a zero-terminated string out of a fixed 24-byte field.
func getString(buf []byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

func putBool(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func getBool(b byte) bool {
	return b != 0
}

// BeaconPkt (0x01, GW->broadcast): periodic gateway-alive beacon.
type BeaconPkt struct {
	UptimeS uint32
}

func (p *BeaconPkt) Type() PktType { return PktBeacon }

func (p *BeaconPkt) Encode() []byte {
	buf := make([]byte, sizeBeacon)
	buf[0] = byte(PktBeacon)
	binary.LittleEndian.PutUint32(buf[1:5], p.UptimeS)
	return buf
}

func decodeBeacon(body []byte) *BeaconPkt {
	return &BeaconPkt{UptimeS: binary.LittleEndian.Uint32(body[0:4])}
}

// RegisterPkt (0x02, Node->GW): node registration/keepalive.
type RegisterPkt struct {
	NodeId     string
	FwVersion  uint8
	UptimeS    uint32
}

func (p *RegisterPkt) Type() PktType { return PktRegister }

func (p *RegisterPkt) Encode() []byte {
	buf := make([]byte, sizeRegister)
	buf[0] = byte(PktRegister)
	putString(buf[1:1+stringFieldSize], p.NodeId)
	off := 1 + stringFieldSize
	buf[off] = p.FwVersion
	binary.LittleEndian.PutUint32(buf[off+1:off+5], p.UptimeS)
	return buf
}

func decodeRegister(body []byte) *RegisterPkt {
	nodeId := getString(body[0:stringFieldSize])
	off := stringFieldSize
	return &RegisterPkt{
		NodeId:    nodeId,
		FwVersion: body[off],
		UptimeS:   binary.LittleEndian.Uint32(body[off+1 : off+5]),
	}
}

// AssignPkt (0x03, GW->Node): reserved; see §9 open question. Decoded and
// encoded for wire completeness but carries no handler in this version.
type AssignPkt struct {
	NodeId string
}

func (p *AssignPkt) Type() PktType { return PktAssign }

func (p *AssignPkt) Encode() []byte {
	buf := make([]byte, sizeAssign)
	buf[0] = byte(PktAssign)
	putString(buf[1:1+stringFieldSize], p.NodeId)
	return buf
}

func decodeAssign(body []byte) *AssignPkt {
	return &AssignPkt{NodeId: getString(body[0:stringFieldSize])}
}

// ConfigPkt (0x04, GW->Node): schedule + interval configuration.
type ConfigPkt struct {
	NodeId           string
	GatewayId        string
	OnHour           uint8
	OnMin            uint8
	OffHour          uint8
	OffMin           uint8
	CfgVer           uint8
	RegIntervalMs    uint32
	StatusIntervalMs uint32
}

func (p *ConfigPkt) Type() PktType { return PktConfig }

func (p *ConfigPkt) Encode() []byte {
	buf := make([]byte, sizeConfig)
	buf[0] = byte(PktConfig)
	off := 1
	putString(buf[off:off+stringFieldSize], p.NodeId)
	off += stringFieldSize
	putString(buf[off:off+stringFieldSize], p.GatewayId)
	off += stringFieldSize
	buf[off] = p.OnHour
	buf[off+1] = p.OnMin
	buf[off+2] = p.OffHour
	buf[off+3] = p.OffMin
	buf[off+4] = p.CfgVer
	off += 5
	binary.LittleEndian.PutUint32(buf[off:off+4], p.RegIntervalMs)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], p.StatusIntervalMs)
	return buf
}

func decodeConfig(body []byte) *ConfigPkt {
	off := 0
	nodeId := getString(body[off : off+stringFieldSize])
	off += stringFieldSize
	gatewayId := getString(body[off : off+stringFieldSize])
	off += stringFieldSize
	p := &ConfigPkt{
		NodeId:    nodeId,
		GatewayId: gatewayId,
		OnHour:    body[off],
		OnMin:     body[off+1],
		OffHour:   body[off+2],
		OffMin:    body[off+3],
		CfgVer:    body[off+4],
	}
	off += 5
	p.RegIntervalMs = binary.LittleEndian.Uint32(body[off : off+4])
	off += 4
	p.StatusIntervalMs = binary.LittleEndian.Uint32(body[off : off+4])
	return p
}

// StatusPkt (0x05, Node->GW): the "PolePacket" — periodic node status.
type StatusPkt struct {
	NodeId     string
	GatewayId  string
	LightState bool
	Fault      bool
	Hour       uint8
	Minute     uint8
	RSSI       int32
	SNR        int32
}

func (p *StatusPkt) Type() PktType { return PktStatus }

func (p *StatusPkt) Encode() []byte {
	buf := make([]byte, sizeStatus)
	buf[0] = byte(PktStatus)
	off := 1
	putString(buf[off:off+stringFieldSize], p.NodeId)
	off += stringFieldSize
	putString(buf[off:off+stringFieldSize], p.GatewayId)
	off += stringFieldSize
	buf[off] = putBool(p.LightState)
	buf[off+1] = putBool(p.Fault)
	buf[off+2] = p.Hour
	buf[off+3] = p.Minute
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(p.RSSI))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(p.SNR))
	return buf
}

func decodeStatus(body []byte) *StatusPkt {
	off := 0
	nodeId := getString(body[off : off+stringFieldSize])
	off += stringFieldSize
	gatewayId := getString(body[off : off+stringFieldSize])
	off += stringFieldSize
	p := &StatusPkt{
		NodeId:     nodeId,
		GatewayId:  gatewayId,
		LightState: getBool(body[off]),
		Fault:      getBool(body[off+1]),
		Hour:       body[off+2],
		Minute:     body[off+3],
	}
	off += 4
	p.RSSI = int32(binary.LittleEndian.Uint32(body[off : off+4]))
	off += 4
	p.SNR = int32(binary.LittleEndian.Uint32(body[off : off+4]))
	return p
}

// AckPkt (0x06, Node->GW): acknowledges a Config or Control command.
type AckPkt struct {
	CmdId  uint16
	NodeId string
}

func (p *AckPkt) Type() PktType { return PktAck }

func (p *AckPkt) Encode() []byte {
	buf := make([]byte, sizeAck)
	buf[0] = byte(PktAck)
	binary.LittleEndian.PutUint16(buf[1:3], p.CmdId)
	putString(buf[3:3+stringFieldSize], p.NodeId)
	return buf
}

func decodeAck(body []byte) *AckPkt {
	cmdId := binary.LittleEndian.Uint16(body[0:2])
	nodeId := getString(body[2 : 2+stringFieldSize])
	return &AckPkt{CmdId: cmdId, NodeId: nodeId}
}

// ControlPkt (0x07, GW->Node): immediate manual on/off command.
type ControlPkt struct {
	CmdId   uint16
	NodeId  string
	LightOn bool
}

func (p *ControlPkt) Type() PktType { return PktControl }

func (p *ControlPkt) Encode() []byte {
	buf := make([]byte, sizeControl)
	buf[0] = byte(PktControl)
	binary.LittleEndian.PutUint16(buf[1:3], p.CmdId)
	putString(buf[3:3+stringFieldSize], p.NodeId)
	buf[3+stringFieldSize] = putBool(p.LightOn)
	return buf
}

func decodeControl(body []byte) *ControlPkt {
	cmdId := binary.LittleEndian.Uint16(body[0:2])
	nodeId := getString(body[2 : 2+stringFieldSize])
	lightOn := getBool(body[2+stringFieldSize])
	return &ControlPkt{CmdId: cmdId, NodeId: nodeId, LightOn: lightOn}
}

// LoRaConfigPkt (0x08, GW->Node, reserved): radio parameter push. Not
// driven by any component in this protocol version; retained on the
// wire per §9's open question, encode/decode only.
type LoRaConfigPkt struct {
	Freq uint32
	SF   uint8
	BW   uint32
	CR   uint8
}

func (p *LoRaConfigPkt) Type() PktType { return PktLoRaConfig }

func (p *LoRaConfigPkt) Encode() []byte {
	buf := make([]byte, sizeLoRaConfig)
	buf[0] = byte(PktLoRaConfig)
	binary.LittleEndian.PutUint32(buf[1:5], p.Freq)
	buf[5] = p.SF
	binary.LittleEndian.PutUint32(buf[6:10], p.BW)
	buf[10] = p.CR
	return buf
}

func decodeLoRaConfig(body []byte) *LoRaConfigPkt {
	return &LoRaConfigPkt{
		Freq: binary.LittleEndian.Uint32(body[0:4]),
		SF:   body[4],
		BW:   binary.LittleEndian.Uint32(body[5:9]),
		CR:   body[9],
	}
}

// declaredSize returns the exact frame length (including pktType) for a
// known variant, or 0 if unknown.
func declaredSize(t PktType) int {
	switch t {
	case PktBeacon:
		return sizeBeacon
	case PktRegister:
		return sizeRegister
	case PktAssign:
		return sizeAssign
	case PktConfig:
		return sizeConfig
	case PktStatus:
		return sizeStatus
	case PktAck:
		return sizeAck
	case PktControl:
		return sizeControl
	case PktLoRaConfig:
		return sizeLoRaConfig
	default:
		return 0
	}
}

// Decode validates that data names a known variant and that len(data)
// exactly equals that variant's declared size, then parses the body. Any
// mismatch returns ctlerr.ErrBadFrame and the caller must drain/discard
// the radio buffer; no partial state is retained.
func Decode(data []byte) (Packet, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty frame", ctlerr.ErrBadFrame)
	}
	t := PktType(data[0])
	want := declaredSize(t)
	if want == 0 {
		return nil, fmt.Errorf("%w: unknown pktType 0x%02X", ctlerr.ErrBadFrame, data[0])
	}
	if len(data) != want {
		return nil, fmt.Errorf("%w: %s expects %d bytes, got %d", ctlerr.ErrBadFrame, t, want, len(data))
	}

	body := data[1:]
	switch t {
	case PktBeacon:
		return decodeBeacon(body), nil
	case PktRegister:
		return decodeRegister(body), nil
	case PktAssign:
		return decodeAssign(body), nil
	case PktConfig:
		return decodeConfig(body), nil
	case PktStatus:
		return decodeStatus(body), nil
	case PktAck:
		return decodeAck(body), nil
	case PktControl:
		return decodeControl(body), nil
	case PktLoRaConfig:
		return decodeLoRaConfig(body), nil
	default:
		return nil, fmt.Errorf("%w: unknown pktType 0x%02X", ctlerr.ErrBadFrame, data[0])
	}
}

// Encode is a convenience wrapper equivalent to calling Packet.Encode.
func Encode(p Packet) []byte {
	return p.Encode()
}
