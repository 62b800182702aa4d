//go:build linux

package systemd

import (
	"context"
	"fmt"
	"syscall"

	"github.com/coreos/go-systemd/v22/dbus"
)

// unitStarter is the part of the systemd D-Bus connection PowerOff needs.
type unitStarter interface {
	StartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	Close()
}

// Power shuts the machine down through the systemd manager.
type Power struct {
	// connect replaces the system bus connection in tests.
	connect func(context.Context) (unitStarter, error)
}

func systemBus(ctx context.Context) (unitStarter, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// PowerOff flushes filesystem buffers and queues poweroff.target, the same
// job "systemctl poweroff" queues. It returns once the job is accepted; the
// job itself stops this service, so waiting for it would never end.
func (p Power) PowerOff(ctx context.Context) error {
	syscall.Sync()

	connect := p.connect
	if connect == nil {
		connect = systemBus
	}
	conn, err := connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	if _, err := conn.StartUnitContext(ctx, "poweroff.target", "replace-irreversibly", nil); err != nil {
		return fmt.Errorf("start poweroff.target: %w", err)
	}
	return nil
}
