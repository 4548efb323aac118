// Package board defines the pin capabilities a motor driver is built from: digital outputs for
// direction and standby lines, and duty-cycle outputs for speed.
package board

import "context"

// A DigitalOutput is a pin that can be driven to a high or low logic level.
type DigitalOutput interface {
	// SetHigh drives the pin high.
	SetHigh(ctx context.Context) error

	// SetLow drives the pin low.
	SetLow(ctx context.Context) error
}

// A StatefulDigitalOutput is a DigitalOutput that can report the level it was last set to. This
// does not read the electrical state of the pin.
type StatefulDigitalOutput interface {
	DigitalOutput

	// IsSetHigh reports whether the pin is currently set high.
	IsSetHigh(ctx context.Context) (bool, error)
}

// A DutyCycleOutput is a PWM channel whose duty cycle is set as an integer percentage.
//
// Implementations convert a percentage to their native resolution as
// `native = maxNative * pct / 100` using integer arithmetic, i.e. truncating toward zero.
// 0 is always fully off and 100 is always fully on.
type DutyCycleOutput interface {
	// SetDutyCyclePercent sets the duty cycle to pct percent of the maximum. pct must be in
	// [0, 100].
	SetDutyCyclePercent(ctx context.Context, pct uint8) error
}

// An Enabler is an output that must be enabled before it produces a signal.
type Enabler interface {
	Enable(ctx context.Context) error
}

// A PinProvider hands out capabilities by pin name.
type PinProvider interface {
	// DigitalOutputByName returns the digital output for the given pin.
	DigitalOutputByName(name string) (DigitalOutput, error)

	// DutyCycleOutputByName returns a duty-cycle output running at freqHz on the given pin.
	DutyCycleOutputByName(name string, freqHz uint) (DutyCycleOutput, error)
}

// A PinReleaser is a PinProvider that tracks which pins are handed out and can take one back, so
// that it may be handed out again.
type PinReleaser interface {
	ReleasePin(name string) error
}
