// Package logic contains the pure button and schedule state machine.
// This package has NO external dependencies (no GPIO, printer, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// ButtonState is the logical state of the push button.
// The hardware reports true for a released (un-pressed) button.
type ButtonState bool

const (
	Released ButtonState = true
	Pressed  ButtonState = false
)

func (s ButtonState) String() string {
	if s == Released {
		return "RELEASED"
	}
	return "PRESSED"
}

// Action is what a debounced button tick asks the loop to do.
type Action int

const (
	ActionNone Action = iota
	ActionTap
	ActionHold
)

func (a Action) String() string {
	switch a {
	case ActionTap:
		return "TAP"
	case ActionHold:
		return "HOLD"
	default:
		return "NONE"
	}
}

// Phase describes where the debounce state machine currently is.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseDebouncing Phase = "DEBOUNCING"
	PhasePressed    Phase = "PRESSED"
	PhaseHoldFired  Phase = "HOLD_FIRED"
)

// DebounceWindow is the raw debounce bookkeeping for the button.
type DebounceWindow struct {
	// Last raw reading that differed from its predecessor
	PreviousState ButtonState
	// Time PreviousState was first observed
	PreviousTransition time.Time
	// Armed once a press has been confirmed
	TapEnabled  bool
	HoldEnabled bool
}

// TimeOfDay is a local wall-clock time with minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return 60*t.Hour + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

// Input represents a single poll of the hardware.
type Input struct {
	Button ButtonState
	Time   time.Time
}
