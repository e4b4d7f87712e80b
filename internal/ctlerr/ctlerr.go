// Package ctlerr defines the sentinel error kinds surfaced by the
// gateway-node control plane, shared across packages so callers can use
// errors.Is regardless of which layer produced the failure.
package ctlerr

import "errors"

var (
	// ErrBadFrame means a wire frame's length or pktType did not match
	// any known variant. The frame is dropped; no state changes.
	ErrBadFrame = errors.New("badframe: malformed wire frame")

	// ErrAddressMismatch means a structurally valid frame was not
	// addressed to this device and was silently ignored.
	ErrAddressMismatch = errors.New("address mismatch: frame not for this device")

	// ErrQueueFull means the gateway command queue had no free slot.
	ErrQueueFull = errors.New("queue full: command queue at capacity")

	// ErrAckUnmatched means an ACK arrived with no corresponding
	// outstanding command (stale or duplicate).
	ErrAckUnmatched = errors.New("ack unmatched: no outstanding command")

	// ErrExhausted means a command timed out after MAX_ATTEMPTS transmissions.
	ErrExhausted = errors.New("exhausted: command retries exhausted")

	// ErrConfigRejected means a bootstrap config payload was missing
	// required fields (non-empty gatewayId).
	ErrConfigRejected = errors.New("config rejected: missing required field")

	// ErrStoreIO means a persistent store load/save failed at the
	// filesystem or database layer.
	ErrStoreIO = errors.New("store io error")

	// ErrNotFound means the persistent store has no saved state yet
	// (first boot, or a crash during a prior save).
	ErrNotFound = errors.New("store: not found")
)
