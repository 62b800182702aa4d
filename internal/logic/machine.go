package logic

import "time"

// Config holds the timing thresholds for a Machine.
type Config struct {
	TapTime   time.Duration
	HoldTime  time.Duration
	DailyAt   TimeOfDay
	Interval  time.Duration
	Heartbeat time.Duration
}

// Counts tracks how often each trigger has fired since startup.
type Counts struct {
	Daily    int
	Hold     int
	Interval int
	Tap      int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}

// Machine owns all loop state: the debounce window and both time gates.
// It is created once when the loop starts and is not safe for concurrent use.
type Machine struct {
	cfg           Config
	debounce      *Debouncer
	daily         DailyGate
	interval      IntervalGate
	counts        Counts
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewMachine seeds a Machine from the initial button reading and clock.
func NewMachine(cfg Config, initial ButtonState, now time.Time) *Machine {
	return &Machine{
		cfg:           cfg,
		debounce:      NewDebouncer(cfg.TapTime, cfg.HoldTime, initial, now),
		daily:         DailyGate{Threshold: cfg.DailyAt},
		interval:      IntervalGate{Interval: cfg.Interval},
		startTime:     now,
		lastHeartbeat: now,
	}
}

// Button feeds one poll through the debouncer.
func (m *Machine) Button(in Input) Action {
	a := m.debounce.Process(in.Button, in.Time)
	switch a {
	case ActionTap:
		m.counts.Tap++
	case ActionHold:
		m.counts.Hold++
	}
	return a
}

// LED returns the idle blink level at now.
func (m *Machine) LED(now time.Time) bool {
	return IdleLED(now)
}

// Daily reports whether the daily tasks are due.
func (m *Machine) Daily(now time.Time) bool {
	if !m.daily.Check(now) {
		return false
	}
	m.counts.Daily++
	return true
}

// Interval reports whether the interval tasks are due.
func (m *Machine) Interval(now time.Time) bool {
	if !m.interval.Check(now) {
		return false
	}
	m.counts.Interval++
	return true
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet due or if the configured
// heartbeat is <= 0 (disabled).
func (m *Machine) CheckHeartbeat(now time.Time) *HeartbeatData {
	if m.cfg.Heartbeat <= 0 {
		return nil
	}
	if now.Sub(m.lastHeartbeat) < m.cfg.Heartbeat {
		return nil
	}
	m.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime),
		Counts:    m.counts,
	}
}

// Phase returns the debounce phase.
func (m *Machine) Phase() Phase {
	return m.debounce.Phase()
}

// Window returns a copy of the debounce bookkeeping.
func (m *Machine) Window() DebounceWindow {
	return m.debounce.Window()
}

// DailyTriggered reports whether the daily gate has fired for the current day.
func (m *Machine) DailyTriggered() bool {
	return m.daily.Triggered
}

// NextInterval returns when the interval gate fires next.
func (m *Machine) NextInterval() time.Time {
	return m.interval.Next
}

// CountsSnapshot returns a copy of the trigger counts.
func (m *Machine) CountsSnapshot() Counts {
	return m.counts
}
