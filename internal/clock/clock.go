// Package clock abstracts the node's real-time clock so the schedule
// engine in internal/nodefsm never calls time.Now directly, matching §1's
// requirement that the RTC driver is an external collaborator behind an
// interface.
package clock

import "time"

// TimeOfDay is a wall-clock reading truncated to hour/minute.
type TimeOfDay struct {
	Hour   uint8
	Minute uint8
}

// MinutesOfDay returns t expressed as minutes since local midnight,
// used by the schedule arbitration in §4.C/invariant 3.
func (t TimeOfDay) MinutesOfDay() int {
	return int(t.Hour)*60 + int(t.Minute)
}

// RTC reads the current wall-clock time. Now can fail (battery-backed
// RTC chips report a bad read on brownout); the schedule engine's
// failure semantics (§4.C) depend on this returning an error rather than
// a zero value on failure.
type RTC interface {
	Now() (TimeOfDay, error)
}

// SystemRTC implements RTC on top of the host's time.Now, used by the
// node binary when no hardware RTC is wired (bench/simulated mode).
type SystemRTC struct{}

func (SystemRTC) Now() (TimeOfDay, error) {
	now := time.Now()
	return TimeOfDay{Hour: uint8(now.Hour()), Minute: uint8(now.Minute())}, nil
}

// FailingRTC always returns Err, used to exercise the "keep last
// committed state" failure path in tests.
type FailingRTC struct {
	Err error
}

func (f FailingRTC) Now() (TimeOfDay, error) {
	return TimeOfDay{}, f.Err
}
