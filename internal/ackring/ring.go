// Package ackring implements the gateway's bounded ACK event ring (§4.F):
// a fixed-capacity single-producer single-consumer queue surfacing
// terminal command outcomes to the MQTT publisher loop.
package ackring

import "github.com/hashicorp/go-hclog"

// Capacity is the fixed ring size (§4.E constants, §4.F).
const Capacity = 8

// Event records the outcome of one previously-enqueued command (§3).
type Event struct {
	CmdId   uint16
	NodeId  string
	Success bool
}

// Ring is a single-producer (gwqueue), single-consumer (MQTT publisher)
// bounded queue. Both ends run on the same cooperative loop, so no
// locking is required (§5's shared-resource policy); Push and Drain must
// not be called concurrently from separate goroutines.
type Ring struct {
	log    hclog.Logger
	buf    [Capacity]Event
	head   int // next read
	length int
}

func New(log hclog.Logger) *Ring {
	return &Ring{log: log}
}

// Push enqueues an event. On overflow the newest event is dropped (not
// the oldest): under-reporting a fresh outcome is preferred over
// disturbing the FIFO order of outcomes already waiting to be published.
func (r *Ring) Push(e Event) {
	if r.length == Capacity {
		r.log.Warn("ack ring full, dropping newest event", "cmdId", e.CmdId, "nodeId", e.NodeId)
		return
	}
	idx := (r.head + r.length) % Capacity
	r.buf[idx] = e
	r.length++
}

// Drain removes and returns all currently queued events, in FIFO order,
// for the MQTT publisher to turn into node_control_ack envelopes.
func (r *Ring) Drain() []Event {
	if r.length == 0 {
		return nil
	}
	out := make([]Event, r.length)
	for i := 0; i < r.length; i++ {
		out[i] = r.buf[(r.head+i)%Capacity]
	}
	r.head = 0
	r.length = 0
	return out
}

// Len reports the number of events currently queued.
func (r *Ring) Len() int {
	return r.length
}
