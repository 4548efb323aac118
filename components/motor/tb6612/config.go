package tb6612

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/tb6612/components/board"
	"go.viam.com/tb6612/logging"
)

// DefaultPWMFreqHz is the PWM frequency used when none is configured.
const DefaultPWMFreqHz = 10000

// MotorConfig names the pins one motor is wired to.
type MotorConfig struct {
	In1 string `json:"in1"`
	In2 string `json:"in2"`
	PWM string `json:"pwm"`
}

// Validate ensures all parts of the config are valid.
func (conf *MotorConfig) Validate(path string) error {
	if conf.In1 == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "in1")
	}
	if conf.In2 == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "in2")
	}
	if conf.PWM == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "pwm")
	}
	return nil
}

// A Config describes how a TB6612FNG is wired. MotorB and Standby may be left out when only
// motor A is used.
type Config struct {
	MotorA    *MotorConfig `json:"motor_a"`
	MotorB    *MotorConfig `json:"motor_b,omitempty"`
	Standby   string       `json:"standby,omitempty"`
	PWMFreqHz uint         `json:"pwm_freq_hz,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.MotorA == nil {
		return goutils.NewConfigValidationFieldRequiredError(path, "motor_a")
	}
	if err := conf.MotorA.Validate(fmt.Sprintf("%s.%s", path, "motor_a")); err != nil {
		return err
	}
	if conf.MotorB != nil {
		if err := conf.MotorB.Validate(fmt.Sprintf("%s.%s", path, "motor_b")); err != nil {
			return err
		}
	}

	seen := map[string]string{}
	for _, fp := range conf.pinsByField() {
		if other, ok := seen[fp.pin]; ok {
			return goutils.NewConfigValidationError(path,
				errors.Errorf("pin %q is used by both %s and %s", fp.pin, other, fp.field))
		}
		seen[fp.pin] = fp.field
	}
	return nil
}

// ValidateController additionally requires everything a Controller needs.
func (conf *Config) ValidateController(path string) error {
	if err := conf.Validate(path); err != nil {
		return err
	}
	if conf.MotorB == nil {
		return goutils.NewConfigValidationFieldRequiredError(path, "motor_b")
	}
	if conf.Standby == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "standby")
	}
	return nil
}

// FreqHz returns the configured PWM frequency or DefaultPWMFreqHz.
func (conf *Config) FreqHz() uint {
	if conf.PWMFreqHz == 0 {
		return DefaultPWMFreqHz
	}
	return conf.PWMFreqHz
}

type fieldPin struct {
	field, pin string
}

// pinsByField lists every configured pin in a fixed order so validation errors are stable.
func (conf *Config) pinsByField() []fieldPin {
	var pins []fieldPin
	for _, m := range []struct {
		name string
		conf *MotorConfig
	}{{"motor_a", conf.MotorA}, {"motor_b", conf.MotorB}} {
		if m.conf == nil {
			continue
		}
		pins = append(pins,
			fieldPin{m.name + ".in1", m.conf.In1},
			fieldPin{m.name + ".in2", m.conf.In2},
			fieldPin{m.name + ".pwm", m.conf.PWM},
		)
	}
	if conf.Standby != "" {
		pins = append(pins, fieldPin{"standby", conf.Standby})
	}
	return pins
}

// ConfigFromAttributes converts a generic attribute map, e.g. decoded json, into a Config.
func ConfigFromAttributes(attributes map[string]interface{}) (*Config, error) {
	var conf Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &conf,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrap(err, "decoding tb6612 attributes")
	}
	return &conf, nil
}

// A pinResolver looks pins up and remembers them, so that everything it resolved can be handed
// back when construction fails.
type pinResolver struct {
	pins    board.PinProvider
	claimed []string
}

func (r *pinResolver) digitalOutput(name string) (board.DigitalOutput, error) {
	out, err := r.pins.DigitalOutputByName(name)
	if err != nil {
		return nil, err
	}
	r.claimed = append(r.claimed, name)
	return out, nil
}

func (r *pinResolver) dutyCycleOutput(name string, freqHz uint) (board.DutyCycleOutput, error) {
	out, err := r.pins.DutyCycleOutputByName(name, freqHz)
	if err != nil {
		return nil, err
	}
	r.claimed = append(r.claimed, name)
	return out, nil
}

type motorPins struct {
	in1, in2 board.DigitalOutput
	pwm      board.DutyCycleOutput
}

func (r *pinResolver) motorPins(conf *MotorConfig, freqHz uint) (motorPins, error) {
	var mp motorPins
	var err error
	if mp.in1, err = r.digitalOutput(conf.In1); err != nil {
		return mp, err
	}
	if mp.in2, err = r.digitalOutput(conf.In2); err != nil {
		return mp, err
	}
	if mp.pwm, err = r.dutyCycleOutput(conf.PWM, freqHz); err != nil {
		return mp, err
	}
	return mp, nil
}

// release hands back every resolved pin when the provider supports it. err is returned combined
// with any release failure.
func (r *pinResolver) release(err error) error {
	releaser, ok := r.pins.(board.PinReleaser)
	if !ok {
		return err
	}
	for _, name := range r.claimed {
		err = multierr.Combine(err, releaser.ReleasePin(name))
	}
	r.claimed = nil
	return err
}

// NewMotorFromConfig resolves the pins of conf through pins and constructs a Motor. On failure,
// pins already resolved are released if pins is a board.PinReleaser.
func NewMotorFromConfig(
	ctx context.Context,
	pins board.PinProvider,
	conf *MotorConfig,
	freqHz uint,
	logger logging.Logger,
) (*Motor, error) {
	r := &pinResolver{pins: pins}
	mp, err := r.motorPins(conf, freqHz)
	if err != nil {
		return nil, r.release(err)
	}
	m, err := NewMotor(ctx, mp.in1, mp.in2, mp.pwm, logger)
	if err != nil {
		return nil, r.release(err)
	}
	return m, nil
}

// NewControllerFromConfig validates conf, resolves every pin through pins and constructs a
// Controller. No pin is written until all of them are resolved. On failure, pins already resolved
// are released if pins is a board.PinReleaser.
func NewControllerFromConfig(
	ctx context.Context,
	pins board.PinProvider,
	conf *Config,
	logger logging.Logger,
) (*Controller, error) {
	if err := conf.ValidateController(""); err != nil {
		return nil, err
	}

	r := &pinResolver{pins: pins}
	pinsA, err := r.motorPins(conf.MotorA, conf.FreqHz())
	if err != nil {
		return nil, r.release(errors.Wrap(err, "motor_a"))
	}
	pinsB, err := r.motorPins(conf.MotorB, conf.FreqHz())
	if err != nil {
		return nil, r.release(errors.Wrap(err, "motor_b"))
	}
	standby, err := r.digitalOutput(conf.Standby)
	if err != nil {
		return nil, r.release(errors.Wrap(err, "standby"))
	}

	motorA, err := NewMotor(ctx, pinsA.in1, pinsA.in2, pinsA.pwm, logger.Sublogger("motor_a"))
	if err != nil {
		return nil, r.release(errors.Wrap(err, "motor_a"))
	}
	motorB, err := NewMotor(ctx, pinsB.in1, pinsB.in2, pinsB.pwm, logger.Sublogger("motor_b"))
	if err != nil {
		return nil, r.release(errors.Wrap(err, "motor_b"))
	}
	c, err := NewController(ctx, motorA, motorB, standby, logger)
	if err != nil {
		return nil, r.release(err)
	}
	return c, nil
}
