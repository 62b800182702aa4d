//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealHardware drives the button and LED using Linux GPIO character device.
type RealHardware struct {
	chip   *gpiocdev.Chip
	button *gpiocdev.Line
	led    *gpiocdev.Line
}

// NewRealHardware requests the button and LED lines on the given chip.
func NewRealHardware(chipName string, pinButton, pinLED int) (*RealHardware, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	// The button shorts to ground when pressed.
	button, err := chip.RequestLine(pinButton, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pinButton, err)
	}

	led, err := chip.RequestLine(pinLED, gpiocdev.AsOutput(0))
	if err != nil {
		button.Close()
		chip.Close()
		return nil, fmt.Errorf("request LED pin %d: %w", pinLED, err)
	}

	return &RealHardware{
		chip:   chip,
		button: button,
		led:    led,
	}, nil
}

// LEDOn drives the LED line high.
func (h *RealHardware) LEDOn() error {
	if err := h.led.SetValue(1); err != nil {
		return fmt.Errorf("set LED pin: %w", err)
	}
	return nil
}

// LEDOff drives the LED line low.
func (h *RealHardware) LEDOff() error {
	if err := h.led.SetValue(0); err != nil {
		return fmt.Errorf("clear LED pin: %w", err)
	}
	return nil
}

// ButtonState returns true when the button is released.
func (h *RealHardware) ButtonState() (bool, error) {
	v, err := h.button.Value()
	if err != nil {
		return false, fmt.Errorf("read button pin: %w", err)
	}
	return v == 1, nil
}

// Close releases GPIO resources.
// The LED line is turned off and returned to an input with pull-down (matching
// Pi boot defaults) before closing to ensure clean state for shutdown/reboot.
func (h *RealHardware) Close() error {
	var errs []error

	if h.led != nil {
		if err := h.led.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear LED pin: %w", err))
		}
		if err := h.led.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure LED pin: %w", err))
		}
		if err := h.led.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close LED pin: %w", err))
		}
	}
	if h.button != nil {
		if err := h.button.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", err))
		}
	}
	if h.chip != nil {
		if err := h.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
