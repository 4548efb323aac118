package tb6612

import "fmt"

// Pin names one of the three outputs a Motor writes.
type Pin int

// Motor outputs, in the order Drive writes them.
const (
	PinIN1 Pin = iota
	PinIN2
	PinPWM
)

func (p Pin) String() string {
	switch p {
	case PinIN1:
		return "in1"
	case PinIN2:
		return "in2"
	case PinPWM:
		return "pwm"
	}
	return fmt.Sprintf("Pin(%d)", int(p))
}

// A PinError is returned when writing one of a motor's outputs fails. Outputs after Pin in the
// IN1, IN2, PWM order were not written.
type PinError struct {
	Pin Pin
	Err error
}

func (e *PinError) Error() string {
	return fmt.Sprintf("setting %s: %v", e.Pin, e.Err)
}

// Unwrap returns the error from the underlying output.
func (e *PinError) Unwrap() error {
	return e.Err
}

// A StandbyError is returned when writing the standby pin fails.
type StandbyError struct {
	Err error
}

func (e *StandbyError) Error() string {
	return fmt.Sprintf("setting standby: %v", e.Err)
}

// Unwrap returns the error from the standby output.
func (e *StandbyError) Unwrap() error {
	return e.Err
}
