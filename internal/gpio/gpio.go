// Package gpio provides the button and LED hardware port.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Hardware drives the appliance's status LED and reads its push button.
type Hardware interface {
	// LEDOn lights the status LED.
	LEDOn() error

	// LEDOff turns the status LED off.
	LEDOff() error

	// ButtonState returns true when the button is released (un-pressed).
	// The button is wired active-low with a pull-up, so a released button reads high.
	ButtonState() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultChip      = "gpiochip0"
	DefaultPinButton = 23
	DefaultPinLED    = 18
)
