// Package gprs implements the gateway's modem lifecycle state machine,
// supplementing spec.md's external-collaborator treatment of GPRS with
// the reconnect cadence and escalation behavior described in
// original_source/gprs.cpp: a 5-second retry cadence, escalation to a
// modem restart after 10 consecutive failures, and a request for a full
// process restart after a 5-minute cumulative failure window.
package gprs

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Modem is the hardware collaborator this package drives. Connect is
// expected to honor ctx's deadline (§5: bounded by an explicit
// 30-second deadline during reconnect).
type Modem interface {
	Connect(ctx context.Context) error
	Restart() error
}

const (
	retryInterval       = 5 * time.Second
	connectTimeout      = 30 * time.Second
	restartThreshold    = 10
	processRestartAfter = 5 * time.Minute
)

// Manager drives Modem through connect/retry/escalate, called once per
// main-loop tick like every other core component.
type Manager struct {
	modem Modem
	log   hclog.Logger

	connected         bool
	lastAttempt       time.Time
	consecutiveFails  int
	firstFailureAt    time.Time
	restartRequested  bool
}

func New(modem Modem, log hclog.Logger) *Manager {
	return &Manager{modem: modem, log: log}
}

// Connected reports whether the modem currently has network attach.
func (m *Manager) Connected() bool {
	return m.connected
}

// RestartRequested reports whether the cumulative failure window was
// exceeded and the caller (cmd/gateway) should exit for a supervisor to
// restart the process. Sticky until the next successful connect.
func (m *Manager) RestartRequested() bool {
	return m.restartRequested
}

// Tick advances the reconnect state machine. No-op while already connected.
func (m *Manager) Tick(now time.Time) {
	if m.connected {
		return
	}
	if !m.lastAttempt.IsZero() && now.Sub(m.lastAttempt) < retryInterval {
		return
	}
	m.lastAttempt = now

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	err := m.modem.Connect(ctx)
	cancel()

	if err == nil {
		m.connected = true
		m.consecutiveFails = 0
		m.firstFailureAt = time.Time{}
		m.restartRequested = false
		m.log.Info("gprs connected")
		return
	}

	m.onFailure(now, err)
}

func (m *Manager) onFailure(now time.Time, err error) {
	if m.firstFailureAt.IsZero() {
		m.firstFailureAt = now
	}
	m.consecutiveFails++
	m.log.Warn("gprs connect failed", "attempt", m.consecutiveFails, "error", err)

	if m.consecutiveFails >= restartThreshold {
		m.log.Warn("gprs consecutive failure threshold reached, restarting modem")
		if rerr := m.modem.Restart(); rerr != nil {
			m.log.Error("modem restart failed", "error", rerr)
		}
		m.consecutiveFails = 0
	}

	if now.Sub(m.firstFailureAt) >= processRestartAfter {
		m.log.Error("gprs cumulative failure window exceeded, requesting process restart")
		m.restartRequested = true
	}
}

// OnDisconnect is called by the caller when an established connection
// drops, re-arming the reconnect loop.
func (m *Manager) OnDisconnect() {
	if m.connected {
		m.log.Warn("gprs disconnected, reconnecting")
	}
	m.connected = false
}
