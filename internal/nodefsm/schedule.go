// Package nodefsm implements the node's mode/schedule engine (§4.C) and
// control handler (§4.D): arbitrating AUTO vs manual override, driving
// the relay, and applying inbound Config/Control packets.
package nodefsm

import "github.com/streetlight/gwnode/internal/store"

// ShouldBeOn computes the AUTO-mode schedule decision (invariant 3).
// on/off are expressed in minutes-of-day. The interval is treated as
// cyclic: [on, off) when on < off, otherwise [on, 24:00) ∪ [00:00, off)
// for an overnight schedule. on == off means "never on" (empty interval),
// matching the half-open convention rather than "always on".
func ShouldBeOn(onMinutes, offMinutes, nowMinutes int) bool {
	if onMinutes == offMinutes {
		return false
	}
	if onMinutes < offMinutes {
		return nowMinutes >= onMinutes && nowMinutes < offMinutes
	}
	return nowMinutes >= onMinutes || nowMinutes < offMinutes
}

func scheduleShouldBeOn(s store.Schedule, nowMinutes int) bool {
	on := int(s.OnHour)*60 + int(s.OnMin)
	off := int(s.OffHour)*60 + int(s.OffMin)
	return ShouldBeOn(on, off, nowMinutes)
}
