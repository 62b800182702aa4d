//go:build !linux

package gpio

import "errors"

// RealHardware is not available on non-Linux platforms.
type RealHardware struct{}

// NewRealHardware returns an error on non-Linux platforms.
func NewRealHardware(chipName string, pinButton, pinLED int) (*RealHardware, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// LEDOn is not implemented on non-Linux platforms.
func (h *RealHardware) LEDOn() error {
	return errors.New("gpio: not supported")
}

// LEDOff is not implemented on non-Linux platforms.
func (h *RealHardware) LEDOff() error {
	return errors.New("gpio: not supported")
}

// ButtonState is not implemented on non-Linux platforms.
func (h *RealHardware) ButtonState() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (h *RealHardware) Close() error {
	return nil
}
