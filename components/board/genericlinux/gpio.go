package genericlinux

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"go.viam.com/tb6612/components/board"
)

var (
	_ = board.StatefulDigitalOutput(&DigitalOutput{})
	_ = board.DutyCycleOutput(&DutyCycleOutput{})
)

// A DigitalOutput drives a periph.io pin high or low.
type DigitalOutput struct {
	name string
	pin  gpio.PinOut

	mu   sync.Mutex
	high bool
}

// NewDigitalOutput wraps pin as a digital output.
func NewDigitalOutput(name string, pin gpio.PinOut) *DigitalOutput {
	return &DigitalOutput{name: name, pin: pin}
}

// SetHigh drives the pin high.
func (do *DigitalOutput) SetHigh(ctx context.Context) error {
	return do.set(true)
}

// SetLow drives the pin low.
func (do *DigitalOutput) SetLow(ctx context.Context) error {
	return do.set(false)
}

func (do *DigitalOutput) set(high bool) error {
	do.mu.Lock()
	defer do.mu.Unlock()
	l := gpio.Low
	if high {
		l = gpio.High
	}
	if err := do.pin.Out(l); err != nil {
		return errors.Wrapf(err, "setting pin %q %s", do.name, l)
	}
	do.high = high
	return nil
}

// IsSetHigh reports the level last successfully written.
func (do *DigitalOutput) IsSetHigh(ctx context.Context) (bool, error) {
	do.mu.Lock()
	defer do.mu.Unlock()
	return do.high, nil
}

// A DutyCycleOutput drives a periph.io pin with hardware PWM, or with a software PWM loop when
// its board allows it and the pin has no hardware support.
type DutyCycleOutput struct {
	b         *Board
	name      string
	pin       gpio.PinOut
	frequency physic.Frequency

	mu       sync.Mutex
	duty     gpio.Duty
	software bool
	released bool
}

func newDutyCycleOutput(b *Board, name string, pin gpio.PinOut, freqHz uint) *DutyCycleOutput {
	return &DutyCycleOutput{
		b:         b,
		name:      name,
		pin:       pin,
		frequency: physic.Hertz * physic.Frequency(freqHz),
	}
}

// DutyFromPercent converts pct to a periph.io duty, truncating toward zero.
func DutyFromPercent(pct uint8) (gpio.Duty, error) {
	duty, err := board.ScaleDutyCycle(uint32(gpio.DutyMax), pct)
	if err != nil {
		return 0, err
	}
	return gpio.Duty(duty), nil
}

// SetDutyCyclePercent sets the duty cycle.
func (dco *DutyCycleOutput) SetDutyCyclePercent(ctx context.Context, pct uint8) error {
	duty, err := DutyFromPercent(pct)
	if err != nil {
		return err
	}

	dco.mu.Lock()
	defer dco.mu.Unlock()
	if dco.released {
		return errors.Errorf("pin %q was released", dco.name)
	}
	if dco.software {
		dco.duty = duty
		return nil
	}

	if err := dco.pin.PWM(duty, dco.frequency); err != nil {
		if !dco.b.softwarePWM {
			return errors.Wrapf(err, "setting pwm on pin %q", dco.name)
		}
		dco.b.logger.Debugw("no hardware pwm; starting software pwm loop", "pin", dco.name, "error", err)
		dco.software = true
		dco.duty = duty
		dco.b.workers.Add(dco.softwarePWMLoop)
		return nil
	}
	dco.duty = duty
	return nil
}

// Duty returns the duty last set.
func (dco *DutyCycleOutput) Duty() gpio.Duty {
	dco.mu.Lock()
	defer dco.mu.Unlock()
	return dco.duty
}

// release ends the software PWM loop, if any. Without a loop the pin is left as it is.
func (dco *DutyCycleOutput) release() error {
	dco.mu.Lock()
	defer dco.mu.Unlock()
	dco.released = true
	return nil
}

func (dco *DutyCycleOutput) softwarePWMLoop(ctx context.Context) {
	defer func() {
		if err := dco.pin.Out(gpio.Low); err != nil {
			dco.b.logger.Errorw("error setting pin low", "pin", dco.name, "error", err)
		}
	}()
	period := dco.frequency.Period()
	for {
		dco.mu.Lock()
		duty, released := dco.duty, dco.released
		dco.mu.Unlock()
		if released {
			return
		}

		onPeriod := time.Duration(int64(duty) * int64(period) / int64(gpio.DutyMax))
		if onPeriod > 0 {
			if err := dco.pin.Out(gpio.High); err != nil {
				dco.b.logger.Errorw("error setting pin", "pin", dco.name, "error", err)
			}
			if !goutils.SelectContextOrWait(ctx, onPeriod) {
				return
			}
		}
		if offPeriod := period - onPeriod; offPeriod > 0 {
			if err := dco.pin.Out(gpio.Low); err != nil {
				dco.b.logger.Errorw("error setting pin", "pin", dco.name, "error", err)
			}
			if !goutils.SelectContextOrWait(ctx, offPeriod) {
				return
			}
		}
	}
}
