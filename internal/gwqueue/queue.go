// Package gwqueue implements the gateway's command queue (§4.E): a
// fixed-capacity set of pending commands with a single in-flight slot,
// ACK-timeout retries, and ACK correlation feeding the ACK event ring.
package gwqueue

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/streetlight/gwnode/internal/ackring"
	"github.com/streetlight/gwnode/internal/ctlerr"
	"github.com/streetlight/gwnode/internal/protocol"
	"github.com/streetlight/gwnode/internal/radio"
)

const (
	// Capacity is the fixed number of pending-command slots (§4.E).
	Capacity = 10
	// AckTimeout is how long the queue waits for an ACK before retrying.
	AckTimeout = 800 * time.Millisecond
	// MaxAttempts bounds how many times a single command is transmitted.
	MaxAttempts = 3
)

// Action is a backend-requested control action.
type Action string

const (
	ActionOn   Action = "ON"
	ActionOff  Action = "OFF"
	ActionAuto Action = "AUTO"
)

// Request is what enqueue accepts, mirroring a node_control envelope.
type Request struct {
	CmdId     uint16
	NodeId    string
	GatewayId string
	Action    Action
}

// slot is a pending command (§3's volatile PendingCommand).
type slot struct {
	cmdId    uint16
	nodeId   string
	lightOn  bool
	lastSend time.Time
	attempts int
	active   bool
	done     bool
}

// Queue is the §4.E state machine. It is driven by Tick, called once per
// main-loop iteration; Enqueue and OnAck are safe to call from the
// synchronous MQTT callback context per §9 ("reentrant MQTT callback").
type Queue struct {
	log hclog.Logger
	tx  *radio.Serializer

	slots     [Capacity]slot
	used      int
	inFlight  int // index into slots, or -1
	ring      *ackring.Ring
}

func New(tx *radio.Serializer, ring *ackring.Ring, log hclog.Logger) *Queue {
	return &Queue{log: log, tx: tx, ring: ring, inFlight: -1}
}

// Enqueue accepts a backend control request. AUTO requests are
// recognized per §9's open question (current source drops them
// silently with a log, no backend ACK) and never allocate a slot. ON/OFF
// requests allocate a free slot or fail with ErrQueueFull.
//
// Enqueue performs no radio I/O: transmission happens in the subsequent
// Tick, preserving the non-blocking, side-effect-free contract the MQTT
// callback depends on (§9).
func (q *Queue) Enqueue(req Request) error {
	if req.Action == ActionAuto {
		q.log.Info("AUTO control request dropped, not forwarded over radio", "nodeId", req.NodeId, "cmdId", req.CmdId)
		return nil
	}

	idx := q.freeSlot()
	if idx < 0 {
		return fmt.Errorf("%w: nodeId=%s cmdId=%d", ctlerr.ErrQueueFull, req.NodeId, req.CmdId)
	}

	q.slots[idx] = slot{
		cmdId:   req.CmdId,
		nodeId:  req.NodeId,
		lightOn: req.Action == ActionOn,
		active:  true,
		done:    false,
	}
	q.used++
	return nil
}

func (q *Queue) freeSlot() int {
	for i := range q.slots {
		if !q.slots[i].active && !q.slots[i].done {
			return i
		}
	}
	return -1
}

// Tick advances the state machine (§4.E transitions 1-3).
func (q *Queue) Tick(now time.Time) {
	if q.inFlight >= 0 {
		s := &q.slots[q.inFlight]
		if s.done {
			q.clearSlot(q.inFlight)
			q.inFlight = -1
		} else if now.Sub(s.lastSend) >= AckTimeout {
			if s.attempts < MaxAttempts {
				q.transmit(s)
				s.lastSend = now
				s.attempts++
			} else {
				s.done = true
				s.active = false
				q.ring.Push(ackring.Event{CmdId: s.cmdId, NodeId: s.nodeId, Success: false})
				q.clearSlot(q.inFlight)
				q.inFlight = -1
			}
		}
		return
	}

	// Idle: scan in index order for the first active, not-done slot.
	for i := range q.slots {
		if q.slots[i].active && !q.slots[i].done {
			q.inFlight = i
			s := &q.slots[i]
			q.transmit(s)
			s.lastSend = now
			s.attempts = 1
			return
		}
	}
}

func (q *Queue) transmit(s *slot) {
	pkt := &protocol.ControlPkt{CmdId: s.cmdId, NodeId: s.nodeId, LightOn: s.lightOn}
	ok, err := q.tx.TrySend(pkt.Encode())
	if err != nil {
		q.log.Error("control transmit failed", "nodeId", s.nodeId, "cmdId", s.cmdId, "error", err)
		return
	}
	if !ok {
		q.log.Debug("radio busy, control transmit dropped; counted as an attempt and resent after ack timeout", "nodeId", s.nodeId, "cmdId", s.cmdId)
	}
}

// OnAck matches an inbound AckPkt against outstanding commands (§4.E
// onAck matching order: in-flight slot first, then any active slot, else
// stale/duplicate).
func (q *Queue) OnAck(ack *protocol.AckPkt) {
	if q.inFlight >= 0 {
		s := &q.slots[q.inFlight]
		if s.cmdId == ack.CmdId && s.nodeId == ack.NodeId {
			s.done = true
			s.active = false
			q.ring.Push(ackring.Event{CmdId: ack.CmdId, NodeId: ack.NodeId, Success: true})
			q.clearSlot(q.inFlight)
			q.inFlight = -1
			return
		}
	}

	for i := range q.slots {
		s := &q.slots[i]
		if s.active && !s.done && s.cmdId == ack.CmdId && s.nodeId == ack.NodeId {
			s.done = true
			s.active = false
			if q.inFlight == i {
				q.inFlight = -1
			}
			q.ring.Push(ackring.Event{CmdId: ack.CmdId, NodeId: ack.NodeId, Success: true})
			q.clearSlot(i)
			return
		}
	}

	q.log.Debug("ack unmatched, stale or duplicate", "nodeId", ack.NodeId, "cmdId", ack.CmdId)
	q.ring.Push(ackring.Event{CmdId: ack.CmdId, NodeId: ack.NodeId, Success: false})
}

// clearSlot frees a terminal slot so Enqueue can reuse it.
func (q *Queue) clearSlot(i int) {
	q.slots[i] = slot{}
	q.used--
}

// Pending returns the number of slots currently occupied (active or
// awaiting reuse), for diagnostics.
func (q *Queue) Pending() int {
	return q.used
}
