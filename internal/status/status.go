// Package status provides a thread-safe status tracker for the printer daemon.
// The control loop writes it; HTTP handlers and MQTT system events read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/iot-printer/internal/logic"
)

// NetworkInfo contains the result of the start-up network check.
type NetworkInfo struct {
	IP     string
	Status string // "up" or "unreachable"
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs        int64
	TapMs         int64
	HoldMs        int64
	IntervalMs    int64
	HeartbeatMs   int64
	DailyAt       string
	FailurePolicy string
	Printer       string
	Broker        string
	HTTPAddr      string
}

// Loop is the per-tick view of the control loop.
type Loop struct {
	Button         logic.ButtonState
	Phase          logic.Phase
	LED            bool
	DailyTriggered bool
	NextInterval   time.Time
	Counts         logic.Counts
}

// RunInfo describes the most recent task-class run.
type RunInfo struct {
	Class    string
	Started  time.Time
	Duration time.Duration
	Ran      int
	Failed   int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Loop
	Ready         bool
	LastRun       *RunInfo
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Loop:      Loop{Button: logic.Released, Phase: logic.PhaseIdle},
		},
		now: time.Now,
	}
}

// Update stores the loop view and marks the loop as running.
// Called from the scheduler on every tick.
func (t *Tracker) Update(l Loop) {
	t.mu.Lock()
	t.snap.Loop = l
	t.snap.Ready = true
	t.mu.Unlock()
}

// RecordRun stores the most recent task-class run.
func (t *Tracker) RecordRun(r RunInfo) {
	t.mu.Lock()
	t.snap.LastRun = &r
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastRun != nil {
		r := *s.LastRun
		s.LastRun = &r
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}

// ConfigFromDurations builds a display Config from timing values.
func ConfigFromDurations(poll, tap, hold, interval, heartbeat time.Duration) Config {
	return Config{
		PollMs:      poll.Milliseconds(),
		TapMs:       tap.Milliseconds(),
		HoldMs:      hold.Milliseconds(),
		IntervalMs:  interval.Milliseconds(),
		HeartbeatMs: heartbeat.Milliseconds(),
	}
}
