package board

import (
	"context"

	"github.com/pkg/errors"
)

// ErrDutyCycleOutOfRange is returned when a duty cycle percentage above 100 is requested.
var ErrDutyCycleOutOfRange = errors.New("duty cycle percentage must be between 0 and 100")

// A RawDutyCycle is a PWM channel addressed in its native duty resolution, e.g. a timer compare
// register.
type RawDutyCycle interface {
	// MaxDutyCycle returns the native value corresponding to 100%.
	MaxDutyCycle() uint32

	// SetDutyCycle sets the native duty value, between 0 and MaxDutyCycle.
	SetDutyCycle(ctx context.Context, duty uint32) error
}

// PercentDutyCycle adapts a RawDutyCycle to a DutyCycleOutput. Enable is forwarded when the raw
// channel is an Enabler.
func PercentDutyCycle(raw RawDutyCycle) DutyCycleOutput {
	if enabler, ok := raw.(Enabler); ok {
		return &enablingPercentDuty{percentDuty{raw}, enabler}
	}
	return &percentDuty{raw}
}

type percentDuty struct {
	raw RawDutyCycle
}

func (pd *percentDuty) SetDutyCyclePercent(ctx context.Context, pct uint8) error {
	duty, err := ScaleDutyCycle(pd.raw.MaxDutyCycle(), pct)
	if err != nil {
		return err
	}
	return pd.raw.SetDutyCycle(ctx, duty)
}

type enablingPercentDuty struct {
	percentDuty
	enabler Enabler
}

func (epd *enablingPercentDuty) Enable(ctx context.Context) error {
	return epd.enabler.Enable(ctx)
}

// ScaleDutyCycle converts pct into a native duty value for a channel whose full scale is maxDuty,
// truncating toward zero.
func ScaleDutyCycle(maxDuty uint32, pct uint8) (uint32, error) {
	if pct > 100 {
		return 0, errors.Wrapf(ErrDutyCycleOutOfRange, "got %d", pct)
	}
	return uint32(uint64(maxDuty) * uint64(pct) / 100), nil
}
