// Package noderegistry tracks the gateway's view of nodes it has heard
// from over the radio link: last-seen time and last RSSI/SNR reading,
// fed by inbound Register/Status frames. This is operator-visibility
// instrumentation, not part of the wire protocol or persisted state.
package noderegistry

import (
	"sort"
	"sync"
	"time"
)

// Entry is one node's last-known radio contact.
type Entry struct {
	NodeId   string
	LastSeen time.Time
	RSSI     int32
	SNR      int32
}

// Registry is safe for concurrent use: Observe is called from the
// gateway's main loop, but a future status-reporting surface (HTTP,
// CLI) may read it from another goroutine.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Observe records contact with nodeId at now with the given RSSI/SNR,
// overwriting any prior entry.
func (r *Registry) Observe(nodeId string, now time.Time, rssi, snr int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[nodeId] = Entry{NodeId: nodeId, LastSeen: now, RSSI: rssi, SNR: snr}
}

// Get returns the entry for nodeId, if any.
func (r *Registry) Get(nodeId string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[nodeId]
	return e, ok
}

// Snapshot returns all known entries sorted by NodeId, for diagnostics.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeId < out[j].NodeId })
	return out
}

// Stale returns the NodeIds not observed within maxAge of now, sorted.
func (r *Registry) Stale(now time.Time, maxAge time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id, e := range r.entries {
		if now.Sub(e.LastSeen) > maxAge {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
