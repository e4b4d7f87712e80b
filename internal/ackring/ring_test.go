package ackring

import (
	"testing"

	"github.com/hashicorp/go-hclog"
)

func TestPushDrainFIFO(t *testing.T) {
	r := New(hclog.NewNullLogger())
	for i := uint16(0); i < 5; i++ {
		r.Push(Event{CmdId: i, NodeId: "n", Success: true})
	}
	got := r.Drain()
	if len(got) != 5 {
		t.Fatalf("expected 5 events, got %d", len(got))
	}
	for i, e := range got {
		if e.CmdId != uint16(i) {
			t.Fatalf("FIFO order violated at %d: got cmdId %d", i, e.CmdId)
		}
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty ring after drain")
	}
}

func TestOverflowDropsNewest(t *testing.T) {
	r := New(hclog.NewNullLogger())
	for i := uint16(0); i < Capacity; i++ {
		r.Push(Event{CmdId: i, NodeId: "n"})
	}
	r.Push(Event{CmdId: 999, NodeId: "overflow"})

	got := r.Drain()
	if len(got) != Capacity {
		t.Fatalf("expected ring to stay at capacity %d, got %d", Capacity, len(got))
	}
	for _, e := range got {
		if e.CmdId == 999 {
			t.Fatalf("overflow event should have been dropped, not the oldest")
		}
	}
	if got[0].CmdId != 0 {
		t.Fatalf("expected oldest event (cmdId 0) preserved, got %d", got[0].CmdId)
	}
}

func TestDrainEmptyReturnsNil(t *testing.T) {
	r := New(hclog.NewNullLogger())
	if got := r.Drain(); got != nil {
		t.Fatalf("expected nil from draining an empty ring, got %v", got)
	}
}

func TestPushAfterDrainReusesSpace(t *testing.T) {
	r := New(hclog.NewNullLogger())
	for i := uint16(0); i < Capacity; i++ {
		r.Push(Event{CmdId: i})
	}
	r.Drain()
	for i := uint16(100); i < 103; i++ {
		r.Push(Event{CmdId: i})
	}
	got := r.Drain()
	if len(got) != 3 {
		t.Fatalf("expected 3 events after reuse, got %d", len(got))
	}
	if got[0].CmdId != 100 {
		t.Fatalf("expected FIFO order preserved after reuse, got %+v", got)
	}
}
