// Package scheduler runs the control loop: it polls the button, drives the
// status LED and dispatches task classes when the button or a time gate fires.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sweeney/iot-printer/internal/gpio"
	"github.com/sweeney/iot-printer/internal/logic"
	"github.com/sweeney/iot-printer/internal/mqtt"
	"github.com/sweeney/iot-printer/internal/status"
	"github.com/sweeney/iot-printer/internal/systemd"
	"github.com/sweeney/iot-printer/internal/tasks"
)

// Journal records finished task-class runs.
type Journal interface {
	Record(res tasks.Result, runErr error) (int64, error)
}

// Options wires the loop's collaborators. Only Config is required; nil
// collaborators are skipped.
type Options struct {
	Config logic.Config
	Now    func() time.Time
	Log    zerolog.Logger

	Publisher  mqtt.Publisher
	MQTTStatus mqtt.ConnectionStatus
	Tracker    *status.Tracker
	Journal    Journal

	Notifier         systemd.Notifier
	WatchdogInterval time.Duration
}

// Scheduler owns the hardware port and the loop state for one run.
type Scheduler struct {
	hw     gpio.Hardware
	runner tasks.Runner
	opts   Options
	log    zerolog.Logger

	machine  *logic.Machine
	button   logic.ButtonState
	ledOn    bool
	ledKnown bool
	watchdog *rate.Sometimes
}

// New creates a Scheduler. It does not touch the hardware until Run.
func New(hw gpio.Hardware, runner tasks.Runner, opts Options) *Scheduler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Notifier == nil {
		opts.Notifier = systemd.NopNotifier{}
	}
	s := &Scheduler{
		hw:     hw,
		runner: runner,
		opts:   opts,
		log:    opts.Log.With().Str("component", "scheduler").Logger(),
	}
	if opts.WatchdogInterval > 0 {
		s.watchdog = &rate.Sometimes{Interval: opts.WatchdogInterval}
	}
	return s
}

// Run polls on every tick until a signal arrives, ctx is cancelled or a fatal
// error occurs. A signal is a clean stop and returns nil.
func (s *Scheduler) Run(ctx context.Context, tick <-chan time.Time, sig <-chan os.Signal) error {
	initial, err := s.readButton()
	if err != nil {
		return err
	}
	s.button = initial
	s.machine = logic.NewMachine(s.opts.Config, initial, s.opts.Now())
	s.log.Info().Stringer("button", initial).Msg("loop started")

	for {
		select {
		case <-ctx.Done():
			s.ledOffQuietly()
			return ctx.Err()

		case sg := <-sig:
			s.shutdown(sg)
			return nil

		case <-tick:
			if err := s.step(ctx); err != nil {
				s.ledOffQuietly()
				return err
			}
		}
	}
}

// step is one loop iteration.
func (s *Scheduler) step(ctx context.Context) error {
	t := s.opts.Now()

	state, err := s.readButton()
	if err != nil {
		return err
	}
	s.button = state

	switch s.machine.Button(logic.Input{Button: state, Time: t}) {
	case logic.ActionTap:
		if err := s.runClass(ctx, tasks.ClassTap); err != nil {
			return err
		}
	case logic.ActionHold:
		if err := s.runClass(ctx, tasks.ClassHold); err != nil {
			return err
		}
	}

	if err := s.setLED(s.machine.LED(t)); err != nil {
		return err
	}

	// tasks may have run for a while, so the daily gate sees a fresh clock
	if s.machine.Daily(s.opts.Now()) {
		if err := s.runClass(ctx, tasks.ClassDaily); err != nil {
			return err
		}
	}

	if s.machine.Interval(t) {
		if err := s.runClass(ctx, tasks.ClassInterval); err != nil {
			return err
		}
	}

	if hb := s.machine.CheckHeartbeat(t); hb != nil {
		s.heartbeat(hb)
	}

	s.updateTracker()

	if s.watchdog != nil {
		s.watchdog.Do(func() {
			if err := s.opts.Notifier.Watchdog(); err != nil {
				s.log.Warn().Err(err).Msg("watchdog ping failed")
			}
		})
	}
	return nil
}

// runClass runs one task class with the LED held on. Empty classes are not
// reported. Publish and journal failures are logged; a runner error is returned.
func (s *Scheduler) runClass(ctx context.Context, class tasks.Class) error {
	if err := s.setLED(true); err != nil {
		return err
	}
	res, runErr := s.runner.Run(ctx, class)
	if err := s.setLED(false); err != nil {
		return err
	}

	if res.Ran() == 0 && runErr == nil {
		s.log.Debug().Str("class", string(class)).Msg("no tasks registered")
		return nil
	}

	ev := s.log.Info()
	if res.Failed() > 0 || runErr != nil {
		ev = s.log.Warn()
	}
	ev.Str("class", string(class)).
		Int("ran", res.Ran()).
		Int("failed", res.Failed()).
		Dur("duration", res.Duration).
		Msg("task class finished")

	if s.opts.Publisher != nil {
		if err := s.opts.Publisher.Publish(mqtt.EventFromResult(res)); err != nil {
			s.log.Error().Err(err).Str("class", string(class)).Msg("publish task event failed")
		}
	}
	if s.opts.Journal != nil {
		if _, err := s.opts.Journal.Record(res, runErr); err != nil {
			s.log.Error().Err(err).Str("class", string(class)).Msg("journal task run failed")
		}
	}
	if s.opts.Tracker != nil {
		s.opts.Tracker.RecordRun(status.RunInfo{
			Class:    string(class),
			Started:  res.Started,
			Duration: res.Duration,
			Ran:      res.Ran(),
			Failed:   res.Failed(),
		})
	}

	if runErr != nil {
		return fmt.Errorf("run %s tasks: %w", class, runErr)
	}
	return nil
}

// setLED commands the LED only when the level changes.
func (s *Scheduler) setLED(on bool) error {
	if s.ledKnown && s.ledOn == on {
		return nil
	}
	var err error
	if on {
		err = s.hw.LEDOn()
	} else {
		err = s.hw.LEDOff()
	}
	if err != nil {
		return fmt.Errorf("set led: %w", err)
	}
	s.ledOn = on
	s.ledKnown = true
	return nil
}

func (s *Scheduler) ledOffQuietly() {
	if err := s.setLED(false); err != nil {
		s.log.Warn().Err(err).Msg("turn led off")
	}
}

func (s *Scheduler) readButton() (logic.ButtonState, error) {
	raw, err := s.hw.ButtonState()
	if err != nil {
		return logic.Released, fmt.Errorf("read button: %w", err)
	}
	return logic.ButtonState(raw), nil
}

func (s *Scheduler) heartbeat(hb *logic.HeartbeatData) {
	s.log.Info().
		Dur("uptime", hb.Uptime).
		Int("daily", hb.Counts.Daily).
		Int("hold", hb.Counts.Hold).
		Int("interval", hb.Counts.Interval).
		Int("tap", hb.Counts.Tap).
		Msg("heartbeat")

	if s.opts.Publisher == nil {
		return
	}
	event := mqtt.SystemEvent{
		Timestamp: hb.Timestamp,
		Event:     mqtt.EventHeartbeat,
	}
	if s.opts.Tracker != nil {
		s.updateTracker()
		event.RawPayload = status.FormatStatusEvent(s.opts.Tracker.Snapshot(), mqtt.EventHeartbeat, "")
	}
	if err := s.opts.Publisher.PublishSystem(event); err != nil {
		s.log.Error().Err(err).Msg("heartbeat publish failed")
	}
}

func (s *Scheduler) updateTracker() {
	if s.opts.Tracker == nil {
		return
	}
	s.opts.Tracker.Update(status.Loop{
		Button:         s.button,
		Phase:          s.machine.Phase(),
		LED:            s.ledOn,
		DailyTriggered: s.machine.DailyTriggered(),
		NextInterval:   s.machine.NextInterval(),
		Counts:         s.machine.CountsSnapshot(),
	})
	if s.opts.MQTTStatus != nil {
		s.opts.Tracker.SetMQTTConnected(s.opts.MQTTStatus.IsConnected())
	}
}

func (s *Scheduler) shutdown(sg os.Signal) {
	name := SignalName(sg)
	s.log.Info().Str("signal", name).Msg("shutting down")

	if err := s.opts.Notifier.Stopping(); err != nil {
		s.log.Warn().Err(err).Msg("notify stopping")
	}

	if s.opts.Publisher != nil {
		event := mqtt.SystemEvent{
			Timestamp: s.opts.Now(),
			Event:     mqtt.EventShutdown,
			Reason:    name,
			Retained:  true,
		}
		if s.opts.Tracker != nil {
			s.updateTracker()
			event.RawPayload = status.FormatStatusEvent(s.opts.Tracker.Snapshot(), mqtt.EventShutdown, name)
		}
		if err := s.opts.Publisher.PublishSystem(event); err != nil {
			s.log.Error().Err(err).Msg("publish shutdown event failed")
		} else {
			s.log.Info().Msg("published shutdown event")
		}
	}

	s.ledOffQuietly()
}

// SignalName maps the stop signals to the names used in SHUTDOWN events.
func SignalName(sg os.Signal) string {
	switch sg {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// IsTaskFailure reports whether err came from a task under the stop policy.
func IsTaskFailure(err error) bool {
	return errors.Is(err, tasks.ErrTaskFailed)
}
