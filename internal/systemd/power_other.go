//go:build !linux

package systemd

import (
	"context"
	"errors"
)

// ErrUnsupported is returned on platforms without systemd.
var ErrUnsupported = errors.New("systemd: unsupported OS (linux only)")

// Power is unavailable off Linux.
type Power struct{}

func (Power) PowerOff(context.Context) error { return ErrUnsupported }
