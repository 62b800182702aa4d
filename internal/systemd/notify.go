// Package systemd integrates with the service manager: readiness and watchdog
// notifications, and powering the machine off.
package systemd

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
)

// Notifier sends service state notifications.
type Notifier interface {
	Ready() error
	Stopping() error
	Watchdog() error
}

// Notify sends sd_notify messages. Outside systemd every call is a no-op.
type Notify struct {
	log zerolog.Logger
}

// NewNotify creates a Notify.
func NewNotify(log zerolog.Logger) *Notify {
	return &Notify{log: log.With().Str("component", "systemd").Logger()}
}

func (n *Notify) Ready() error    { return n.send(daemon.SdNotifyReady) }
func (n *Notify) Stopping() error { return n.send(daemon.SdNotifyStopping) }
func (n *Notify) Watchdog() error { return n.send(daemon.SdNotifyWatchdog) }

func (n *Notify) send(state string) error {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		return err
	}
	if sent {
		n.log.Debug().Str("state", state).Msg("notified systemd")
	}
	return nil
}

// WatchdogInterval returns how often the watchdog should be pinged: half the
// configured timeout. It returns 0 when the watchdog is not enabled.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0
	}
	return d / 2
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Ready() error    { return nil }
func (NopNotifier) Stopping() error { return nil }
func (NopNotifier) Watchdog() error { return nil }
