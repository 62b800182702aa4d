package gpio

import "errors"

// FakeHardware is a test double that returns scripted button readings and
// records LED commands.
type FakeHardware struct {
	// Samples contains scripted button readings (true = released).
	// Each call to ButtonState() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// LED is the last commanded LED level.
	LED bool

	// LEDLog records every LED command in order (true = on).
	LEDLog []bool

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by ButtonState()
	ReadError error

	// LEDError, if set, will be returned by LEDOn() and LEDOff()
	LEDError error

	// Reads counts ButtonState calls.
	Reads int
}

// NewFakeHardware creates a FakeHardware with the given button samples.
func NewFakeHardware(samples []bool) *FakeHardware {
	return &FakeHardware{Samples: samples}
}

// ButtonState returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeHardware) ButtonState() (bool, error) {
	f.Reads++
	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample, nil
}

// LEDOn records an on command.
func (f *FakeHardware) LEDOn() error {
	return f.setLED(true)
}

// LEDOff records an off command.
func (f *FakeHardware) LEDOff() error {
	return f.setLED(false)
}

func (f *FakeHardware) setLED(on bool) error {
	if f.LEDError != nil {
		return f.LEDError
	}
	f.LED = on
	f.LEDLog = append(f.LEDLog, on)
	return nil
}

// Close marks the hardware as closed.
func (f *FakeHardware) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the samples and clears recorded LED commands.
func (f *FakeHardware) Reset() {
	f.index = 0
	f.Reads = 0
	f.LED = false
	f.LEDLog = nil
	f.Closed = false
}

// IdleHardware is a Hardware with a permanently released button and no LED.
// It backs --fake runs on machines without GPIO.
type IdleHardware struct{}

func (IdleHardware) LEDOn() error               { return nil }
func (IdleHardware) LEDOff() error              { return nil }
func (IdleHardware) ButtonState() (bool, error) { return true, nil }
func (IdleHardware) Close() error               { return nil }
