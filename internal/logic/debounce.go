package logic

import "time"

// Debouncer turns raw button readings into at most one Tap or Hold per press.
type Debouncer struct {
	tapTime  time.Duration
	holdTime time.Duration
	window   DebounceWindow

	// settled is set once the current raw state has been stable for tapTime.
	settled bool
	// holdFired stays set from a Hold until the release is debounced.
	holdFired bool
}

// NewDebouncer creates a Debouncer seeded with the initial button reading.
func NewDebouncer(tapTime, holdTime time.Duration, initial ButtonState, now time.Time) *Debouncer {
	return &Debouncer{
		tapTime:  tapTime,
		holdTime: holdTime,
		window: DebounceWindow{
			PreviousState:      initial,
			PreviousTransition: now,
		},
		settled: true,
	}
}

// Process takes one poll and returns the action to perform, if any.
//
// Hold is only evaluated while the button is confirmed pressed. If polling
// stalls past the hold threshold right after a release, that release reports
// Tap, where a hold check on every settled state would report Hold.
func (d *Debouncer) Process(state ButtonState, now time.Time) Action {
	w := &d.window

	// Any raw transition restarts the clock, including a flicker mid-hold.
	if state != w.PreviousState {
		w.PreviousState = state
		w.PreviousTransition = now
		d.settled = false
		return ActionNone
	}

	elapsed := now.Sub(w.PreviousTransition)
	if elapsed < d.tapTime {
		return ActionNone
	}
	d.settled = true

	if state == Released {
		d.holdFired = false
		if w.TapEnabled {
			w.TapEnabled = false
			w.HoldEnabled = false
			return ActionTap
		}
		return ActionNone
	}

	// Hold is checked before arming so a long press never degrades into a tap,
	// and a disarmed hold is not re-armed while the button stays down.
	if elapsed >= d.holdTime {
		if w.HoldEnabled {
			w.HoldEnabled = false
			w.TapEnabled = false
			d.holdFired = true
			return ActionHold
		}
		return ActionNone
	}

	w.TapEnabled = true
	w.HoldEnabled = true
	return ActionNone
}

// Window returns a copy of the debounce bookkeeping.
func (d *Debouncer) Window() DebounceWindow {
	return d.window
}

// Phase reports the current state machine phase.
func (d *Debouncer) Phase() Phase {
	switch {
	case d.holdFired:
		return PhaseHoldFired
	case !d.settled:
		return PhaseDebouncing
	case d.window.TapEnabled:
		return PhasePressed
	default:
		return PhaseIdle
	}
}
