package nodefsm

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/streetlight/gwnode/internal/clock"
	"github.com/streetlight/gwnode/internal/ctlerr"
	"github.com/streetlight/gwnode/internal/protocol"
	"github.com/streetlight/gwnode/internal/radio"
	"github.com/streetlight/gwnode/internal/store"
)

// Relay drives the single physical output the node actuates.
type Relay interface {
	Set(on bool) error
}

// Engine owns the node's in-memory mirror of store.NodeConfig and the
// collaborators needed to arbitrate mode/schedule (§4.C) and handle
// inbound control traffic (§4.D). It is driven entirely by Tick and
// HandlePacket, called from the node's cooperative main loop; there is
// no internal goroutine.
type Engine struct {
	log   hclog.Logger
	self  string
	rtc   clock.RTC
	relay Relay
	store *store.NodeStore
	tx    *radio.Serializer

	cfg store.NodeConfig

	lastRSSI, lastSNR int32
	lastRegisterSent  time.Time
	lastStatusSent    time.Time
}

// New loads persisted state (or starts unconfigured) and restores the
// relay to the persisted lightState before any schedule tick runs, per
// §4.C's "no visible blink on boot" requirement.
func New(self string, rtc clock.RTC, relay Relay, s *store.NodeStore, tx *radio.Serializer, log hclog.Logger) (*Engine, error) {
	e := &Engine{log: log, self: self, rtc: rtc, relay: relay, store: s, tx: tx}

	cfg, err := s.Load()
	if err != nil {
		if errors.Is(err, ctlerr.ErrNotFound) {
			e.cfg = store.NodeConfig{ControlMode: store.ModeAuto}
			return e, nil
		}
		return nil, err
	}
	e.cfg = *cfg

	if err := e.relay.Set(e.cfg.LightState); err != nil {
		return nil, fmt.Errorf("restoring relay state on boot: %w", err)
	}
	return e, nil
}

// Config returns a copy of the engine's current config, for tests and
// status reporting.
func (e *Engine) Config() store.NodeConfig {
	return e.cfg
}

// Tick evaluates the mode/schedule arbitration once (§4.C rules 1-3) and
// handles periodic Register/Status emission (§4.D). If the RTC read
// fails, the engine keeps the last committed relay state and performs no
// write this tick, but periodic emissions are unaffected since they key
// off wall-clock intervals tracked independently.
func (e *Engine) Tick(now time.Time) {
	tod, err := e.rtc.Now()
	if err != nil {
		e.log.Warn("rtc read failed, holding last committed state", "error", err)
	} else {
		e.arbitrate(tod)
	}
	e.emitPeriodic(now)
}

// arbitrate applies the §4.C rules and commits on transition only.
func (e *Engine) arbitrate(tod clock.TimeOfDay) {
	var desired bool
	switch e.cfg.ControlMode {
	case store.ModeManualOn:
		desired = true
	case store.ModeManualOff:
		desired = false
	default: // AUTO
		desired = scheduleShouldBeOn(e.cfg.Schedule, tod.MinutesOfDay())
	}

	if desired == e.cfg.LightState {
		return
	}
	e.commit(desired)
}

// commit writes the relay and persists lightState. Called only on an
// arbitration transition or an inbound control command, never
// speculatively.
func (e *Engine) commit(lightOn bool) error {
	if err := e.relay.Set(lightOn); err != nil {
		return fmt.Errorf("driving relay: %w", err)
	}
	e.cfg.LightState = lightOn
	if err := e.store.Save(&e.cfg); err != nil {
		e.log.Error("persisting committed light state failed", "error", err)
		return err
	}
	return nil
}

// HandlePacket dispatches an inbound decoded frame. A frame not
// addressed to self is dropped and ctlerr.ErrAddressMismatch is
// returned for the caller to log (§7: local, no state change, operation
// continues); packet types this engine doesn't act on are ignored.
func (e *Engine) HandlePacket(pkt protocol.Packet, rssi, snr int32) error {
	e.lastRSSI, e.lastSNR = rssi, snr

	switch p := pkt.(type) {
	case *protocol.ConfigPkt:
		return e.handleConfig(p)
	case *protocol.ControlPkt:
		return e.handleControl(p)
	}
	return nil
}

// handleConfig applies a Config packet addressed to self: updates
// schedule/intervals, records the assigning gatewayId, forces AUTO mode,
// and acks with the applied cfgVer.
func (e *Engine) handleConfig(p *protocol.ConfigPkt) error {
	if p.NodeId != e.self {
		return ctlerr.ErrAddressMismatch
	}

	e.cfg.Schedule = store.Schedule{OnHour: p.OnHour, OnMin: p.OnMin, OffHour: p.OffHour, OffMin: p.OffMin}
	e.cfg.RegisterInterval = p.RegIntervalMs
	e.cfg.StatusInterval = p.StatusIntervalMs
	e.cfg.GatewayId = p.GatewayId
	e.cfg.Configured = true
	e.cfg.ControlMode = store.ModeAuto

	// AUTO's lightState is whatever the new schedule says right now, so
	// a stale manual-mode light doesn't linger after reconfiguration.
	if tod, err := e.rtc.Now(); err == nil {
		e.cfg.LightState = scheduleShouldBeOn(e.cfg.Schedule, tod.MinutesOfDay())
		if err := e.relay.Set(e.cfg.LightState); err != nil {
			e.log.Error("driving relay after config apply failed", "error", err)
		}
	}

	if err := e.store.Save(&e.cfg); err != nil {
		e.log.Error("persisting config apply failed", "error", err)
		return err
	}

	ack := &protocol.AckPkt{CmdId: uint16(p.CfgVer), NodeId: e.self}
	e.send(ack)
	return nil
}

// handleControl applies a manual override and acks immediately, echoing
// the inbound cmdId. Manual mode outlasts reboot; only a subsequent
// ConfigPkt restores AUTO.
func (e *Engine) handleControl(p *protocol.ControlPkt) error {
	if p.NodeId != e.self {
		return ctlerr.ErrAddressMismatch
	}

	if p.LightOn {
		e.cfg.ControlMode = store.ModeManualOn
	} else {
		e.cfg.ControlMode = store.ModeManualOff
	}
	if err := e.commit(p.LightOn); err != nil {
		return err
	}

	ack := &protocol.AckPkt{CmdId: p.CmdId, NodeId: e.self}
	e.send(ack)
	return nil
}

// emitPeriodic sends Register while unconfigured and Status once
// configured, each on its own interval, via the single-flight serializer.
func (e *Engine) emitPeriodic(now time.Time) {
	if !e.cfg.Configured {
		interval := time.Duration(defaultRegisterIntervalMs) * time.Millisecond
		if e.lastRegisterSent.IsZero() || now.Sub(e.lastRegisterSent) >= interval {
			e.send(&protocol.RegisterPkt{NodeId: e.self, FwVersion: firmwareVersion, UptimeS: uint32(now.Unix())})
			e.lastRegisterSent = now
		}
		return
	}

	interval := time.Duration(e.cfg.StatusInterval) * time.Millisecond
	if interval <= 0 {
		return
	}
	if e.lastStatusSent.IsZero() || now.Sub(e.lastStatusSent) >= interval {
		tod, err := e.rtc.Now()
		status := &protocol.StatusPkt{
			NodeId:     e.self,
			GatewayId:  e.cfg.GatewayId,
			LightState: e.cfg.LightState,
			Fault:      err != nil,
			Hour:       tod.Hour,
			Minute:     tod.Minute,
			RSSI:       e.lastRSSI,
			SNR:        e.lastSNR,
		}
		e.send(status)
		e.lastStatusSent = now
	}
}

func (e *Engine) send(pkt protocol.Packet) {
	ok, err := e.tx.TrySend(pkt.Encode())
	if err != nil {
		e.log.Error("transmit failed", "type", pkt.Type(), "error", err)
		return
	}
	if !ok {
		e.log.Debug("radio busy, dropping outbound frame this tick", "type", pkt.Type())
	}
}

// defaultRegisterIntervalMs is used before any Config has been received,
// since registerIntervalMs itself only arrives inside a Config packet.
const defaultRegisterIntervalMs = 5000

// firmwareVersion is reported in Register packets.
const firmwareVersion = 1
