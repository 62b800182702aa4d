package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sweeney/iot-printer/internal/logic"
)

// Timing is the parsed form of TimingConfig.
type Timing struct {
	Poll      time.Duration
	Tap       time.Duration
	Hold      time.Duration
	DailyAt   logic.TimeOfDay
	Interval  time.Duration
	Heartbeat time.Duration
}

// MachineConfig returns the state machine settings.
func (t Timing) MachineConfig() logic.Config {
	return logic.Config{
		TapTime:   t.Tap,
		HoldTime:  t.Hold,
		DailyAt:   t.DailyAt,
		Interval:  t.Interval,
		Heartbeat: t.Heartbeat,
	}
}

// Timings parses and cross-checks the timing section.
func (c Config) Timings() (Timing, error) {
	var t Timing
	var errs []error
	var err error

	if t.Poll, err = ParseDurationField("timing.poll", c.Timing.Poll); err != nil {
		errs = append(errs, err)
	}
	if t.Tap, err = ParseDurationField("timing.tap", c.Timing.Tap); err != nil {
		errs = append(errs, err)
	}
	if t.Hold, err = ParseDurationField("timing.hold", c.Timing.Hold); err != nil {
		errs = append(errs, err)
	}
	if t.Heartbeat, err = ParseDurationField("timing.heartbeat", c.Timing.Heartbeat); err != nil {
		errs = append(errs, err)
	}
	if t.Interval, err = ParseInterval(c.Timing.Interval); err != nil {
		errs = append(errs, fmt.Errorf("timing.interval: %w", err))
	}
	if t.DailyAt, err = logic.ParseTimeOfDay(c.Timing.DailyAt); err != nil {
		errs = append(errs, fmt.Errorf("timing.daily_at: %w", err))
	}
	if len(errs) > 0 {
		return t, errors.Join(errs...)
	}

	if t.Poll <= 0 {
		errs = append(errs, errors.New("timing.poll: must be > 0"))
	}
	if t.Tap <= 0 {
		errs = append(errs, errors.New("timing.tap: must be > 0"))
	}
	if t.Hold <= t.Tap {
		errs = append(errs, fmt.Errorf("timing.hold: must be longer than tap (%s)", t.Tap))
	}
	if t.Interval <= 0 {
		errs = append(errs, errors.New("timing.interval: must be > 0"))
	}
	return t, errors.Join(errs...)
}

// ParseDurationField parses a non-negative duration. Empty means zero.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseInterval accepts a Go duration ("30s") or a cron "@every" descriptor
// ("@every 30s"). Calendar schedules are rejected: the interval gate only
// supports a fixed period.
func ParseInterval(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "@") {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid interval %q: %w", raw, err)
		}
		return d, nil
	}

	// cron rounds @every up to whole seconds, which would turn 500ms or 0s into 1s
	if rest, ok := strings.CutPrefix(s, "@every "); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(rest)); err == nil && d < time.Second {
			return 0, fmt.Errorf("interval %q: @every needs at least 1s", raw)
		}
	}

	sched, err := cron.ParseStandard(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", raw, err)
	}
	every, ok := sched.(cron.ConstantDelaySchedule)
	if !ok {
		return 0, fmt.Errorf("interval %q: only @every descriptors are supported", raw)
	}
	return every.Delay, nil
}
