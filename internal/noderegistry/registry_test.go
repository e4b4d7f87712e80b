package noderegistry

import (
	"testing"
	"time"
)

func TestObserveAndGet(t *testing.T) {
	r := New()
	now := time.Unix(1000, 0)
	r.Observe("nodeA1", now, -80, 9)

	e, ok := r.Get("nodeA1")
	if !ok {
		t.Fatalf("expected entry to exist")
	}
	if e.RSSI != -80 || e.SNR != 9 || !e.LastSeen.Equal(now) {
		t.Errorf("unexpected entry: %+v", e)
	}
}

func TestObserveOverwritesPriorEntry(t *testing.T) {
	r := New()
	r.Observe("nodeA1", time.Unix(1000, 0), -80, 9)
	r.Observe("nodeA1", time.Unix(2000, 0), -60, 12)

	e, _ := r.Get("nodeA1")
	if e.RSSI != -60 || e.SNR != 12 {
		t.Errorf("expected latest observation to win, got %+v", e)
	}
}

func TestGetUnknownNode(t *testing.T) {
	r := New()
	_, ok := r.Get("nodeZZ")
	if ok {
		t.Fatalf("expected no entry for unknown node")
	}
}

func TestSnapshotSortedByNodeId(t *testing.T) {
	r := New()
	r.Observe("nodeC", time.Unix(0, 0), 0, 0)
	r.Observe("nodeA", time.Unix(0, 0), 0, 0)
	r.Observe("nodeB", time.Unix(0, 0), 0, 0)

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("got %d entries, want 3", len(snap))
	}
	want := []string{"nodeA", "nodeB", "nodeC"}
	for i, e := range snap {
		if e.NodeId != want[i] {
			t.Errorf("index %d: got %s, want %s", i, e.NodeId, want[i])
		}
	}
}

func TestStaleReportsNodesPastMaxAge(t *testing.T) {
	r := New()
	now := time.Unix(10000, 0)
	r.Observe("nodeFresh", now.Add(-1*time.Minute), 0, 0)
	r.Observe("nodeStale", now.Add(-1*time.Hour), 0, 0)

	stale := r.Stale(now, 10*time.Minute)
	if len(stale) != 1 || stale[0] != "nodeStale" {
		t.Fatalf("expected only nodeStale to be reported, got %v", stale)
	}
}
