package nodefsm

import "testing"

func TestShouldBeOnDaySchedule(t *testing.T) {
	on, off := 8*60, 18*60 // 08:00-18:00
	cases := []struct {
		now  int
		want bool
	}{
		{7*60 + 59, false},
		{8 * 60, true},
		{12 * 60, true},
		{17*60 + 59, true},
		{18 * 60, false},
		{23 * 60, false},
	}
	for _, c := range cases {
		if got := ShouldBeOn(on, off, c.now); got != c.want {
			t.Errorf("ShouldBeOn(%d,%d,%d) = %v, want %v", on, off, c.now, got, c.want)
		}
	}
}

// TestShouldBeOnOvernightSchedule covers invariant 3 and scenario S5:
// on=18:00 off=06:00, wrapping past midnight.
func TestShouldBeOnOvernightSchedule(t *testing.T) {
	on, off := 18*60, 6*60
	cases := []struct {
		now  int
		want bool
	}{
		{17*60 + 59, false},
		{18 * 60, true},
		{23*60 + 30, true}, // S5: 23:30 -> ON
		{0, true},
		{5*60 + 59, true},
		{6 * 60, false}, // S5: 06:00 -> OFF
		{12 * 60, false},
	}
	for _, c := range cases {
		if got := ShouldBeOn(on, off, c.now); got != c.want {
			t.Errorf("ShouldBeOn(%d,%d,%d) = %v, want %v", on, off, c.now, got, c.want)
		}
	}
}

func TestShouldBeOnEqualOnOffNeverOn(t *testing.T) {
	for _, now := range []int{0, 1, 719, 720, 1439} {
		if ShouldBeOn(720, 720, now) {
			t.Errorf("ShouldBeOn(720,720,%d) = true, want false for empty interval", now)
		}
	}
}
