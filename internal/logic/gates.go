package logic

import "time"

const (
	// BlinkOnDuration is how long the idle LED stays lit each even second.
	BlinkOnDuration = 150 * time.Millisecond
)

// IdleLED reports whether the idle LED should be lit at now.
// The LED is on for the first BlinkOnDuration of every even Unix second.
func IdleLED(now time.Time) bool {
	return now.Unix()%2 == 0 && time.Duration(now.Nanosecond()) < BlinkOnDuration
}

// DailyGate fires once per day after a local time-of-day threshold.
type DailyGate struct {
	Threshold TimeOfDay
	Triggered bool
}

// Check returns true when the daily tasks should run at now.
// The threshold is compared against now in its own location, so callers pass
// local time. Starting the process after the threshold fires on the first check.
//
// The flag is cleared on any check at or before the threshold. A backwards clock
// step across the threshold therefore allows a second fire on the same day.
func (g *DailyGate) Check(now time.Time) bool {
	minutes := 60*now.Hour() + now.Minute()
	if minutes <= g.Threshold.Minutes() {
		g.Triggered = false
		return false
	}
	if g.Triggered {
		return false
	}
	g.Triggered = true
	return true
}

// IntervalGate fires at most once per Interval.
type IntervalGate struct {
	Interval time.Duration
	// Next is the zero time until the first fire, so the first check fires.
	Next time.Time
}

// Check returns true when the interval tasks should run at now.
// Missed intervals are not caught up: one fire per check, then Next = now + Interval.
func (g *IntervalGate) Check(now time.Time) bool {
	if !now.After(g.Next) {
		return false
	}
	g.Next = now.Add(g.Interval)
	return true
}
