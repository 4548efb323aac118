package tb6612

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"go.viam.com/tb6612/components/board/fake"
	"go.viam.com/tb6612/components/board/genericlinux"
	"go.viam.com/tb6612/components/motor"
	"go.viam.com/tb6612/logging"
)

func validConfig() *Config {
	return &Config{
		MotorA:  &MotorConfig{In1: "5", In2: "6", PWM: "12"},
		MotorB:  &MotorConfig{In1: "20", In2: "21", PWM: "13"},
		Standby: "16",
	}
}

func TestConfigValidate(t *testing.T) {
	conf := &Config{}
	err := conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "motor_a")

	conf.MotorA = &MotorConfig{}
	err = conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "path.motor_a")
	test.That(t, err.Error(), test.ShouldContainSubstring, "in1")

	conf.MotorA.In1 = "5"
	err = conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "in2")

	conf.MotorA.In2 = "6"
	err = conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "pwm")

	conf.MotorA.PWM = "12"
	test.That(t, conf.Validate("path"), test.ShouldBeNil)

	conf.MotorB = &MotorConfig{In1: "20", In2: "21"}
	err = conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "path.motor_b")

	conf.MotorB.PWM = "5"
	err = conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `pin "5" is used by both motor_a.in1 and motor_b.pwm`)
	for i := 0; i < 20; i++ {
		test.That(t, conf.Validate("path").Error(), test.ShouldEqual, err.Error())
	}

	conf.MotorB.PWM = "13"
	conf.Standby = "21"
	err = conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `pin "21" is used by both motor_b.in2 and standby`)

	test.That(t, validConfig().Validate("path"), test.ShouldBeNil)
}

func TestConfigValidateController(t *testing.T) {
	conf := validConfig()
	test.That(t, conf.ValidateController("path"), test.ShouldBeNil)

	conf.Standby = ""
	err := conf.ValidateController("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "standby")

	conf = validConfig()
	conf.MotorB = nil
	test.That(t, conf.Validate("path"), test.ShouldBeNil)
	err = conf.ValidateController("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "motor_b")
}

func TestConfigFreqHz(t *testing.T) {
	conf := validConfig()
	test.That(t, conf.FreqHz(), test.ShouldEqual, uint(DefaultPWMFreqHz))
	conf.PWMFreqHz = 20000
	test.That(t, conf.FreqHz(), test.ShouldEqual, uint(20000))
}

func TestConfigFromAttributes(t *testing.T) {
	conf, err := ConfigFromAttributes(map[string]interface{}{
		"motor_a":     map[string]interface{}{"in1": "5", "in2": "6", "pwm": "12"},
		"motor_b":     map[string]interface{}{"in1": "20", "in2": "21", "pwm": "13"},
		"standby":     "16",
		"pwm_freq_hz": 20000.0,
	})
	test.That(t, err, test.ShouldBeNil)
	expected := validConfig()
	expected.PWMFreqHz = 20000
	test.That(t, conf, test.ShouldResemble, expected)

	conf, err = ConfigFromAttributes(map[string]interface{}{
		"motor_a": map[string]interface{}{"in1": "5", "in2": "6", "pwm": "12"},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.MotorB, test.ShouldBeNil)
	test.That(t, conf.Validate(""), test.ShouldBeNil)

	_, err = ConfigFromAttributes(map[string]interface{}{"motor_c": "nope"})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewControllerFromConfig(t *testing.T) {
	ctx := context.Background()
	b := fake.NewBoard()
	conf := validConfig()
	conf.PWMFreqHz = 2000

	c, err := NewControllerFromConfig(ctx, b, conf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.DutyCycleOutputs["12"].FreqHz(), test.ShouldEqual, uint(2000))
	test.That(t, b.DutyCycleOutputs["13"].FreqHz(), test.ShouldEqual, uint(2000))
	test.That(t, b.DigitalOutputs["16"].High(), test.ShouldBeTrue)

	test.That(t, c.MotorB.Drive(ctx, motor.Backward(44)), test.ShouldBeNil)
	test.That(t, b.DigitalOutputs["20"].High(), test.ShouldBeFalse)
	test.That(t, b.DigitalOutputs["21"].High(), test.ShouldBeTrue)
	test.That(t, b.DutyCycleOutputs["13"].Percent(), test.ShouldEqual, uint8(44))
	test.That(t, b.DutyCycleOutputs["12"].Percent(), test.ShouldEqual, uint8(0))
}

func TestNewControllerFromConfigErrors(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	conf := validConfig()
	conf.Standby = ""
	_, err := NewControllerFromConfig(ctx, fake.NewBoard(), conf, logger)
	test.That(t, err, test.ShouldNotBeNil)

	b := fake.NewBoard()
	_, err = b.DutyCycleOutputByName("16", 100)
	test.That(t, err, test.ShouldBeNil)
	b.Recorder.Reset()
	_, err = NewControllerFromConfig(ctx, b, validConfig(), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "standby")
	test.That(t, err.Error(), test.ShouldContainSubstring, "16")
	// Every pin is resolved before any is written.
	test.That(t, b.Recorder.Writes(), test.ShouldBeEmpty)

	b = fake.NewBoard()
	pwm, err := b.DutyCycleOutput("13", DefaultPWMFreqHz)
	test.That(t, err, test.ShouldBeNil)
	pwm.SetError(errors.New("timer fault"))
	_, err = NewControllerFromConfig(ctx, b, validConfig(), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "motor_b")
	var pinErr *PinError
	test.That(t, errors.As(err, &pinErr), test.ShouldBeTrue)
	test.That(t, pinErr.Pin, test.ShouldEqual, PinPWM)
}

func TestNewMotorFromConfig(t *testing.T) {
	b := fake.NewBoard()
	m, err := NewMotorFromConfig(context.Background(), b, &MotorConfig{In1: "a", In2: "b", PWM: "c"},
		500, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.CurrentDriveCommand(), test.ShouldResemble, motor.Stop())
	test.That(t, b.Recorder.Writes(), test.ShouldResemble, []fake.Write{
		fake.Enable("c"), fake.Low("a"), fake.Low("b"), fake.Duty("c", 0),
	})
}

func TestNewControllerFromConfigReleasesPins(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	pins := map[string]gpio.PinIO{}
	for _, name := range []string{"A1", "A2", "PWMA", "B1", "B2", "PWMB", "STBY"} {
		pins[name] = &gpiotest.Pin{N: name}
	}
	b := genericlinux.NewBoard(logger, genericlinux.WithPinLookup(func(name string) gpio.PinIO {
		pin, ok := pins[name]
		if !ok {
			return nil
		}
		return pin
	}))
	defer func() {
		test.That(t, b.Close(ctx), test.ShouldBeNil)
	}()

	conf := &Config{
		MotorA:  &MotorConfig{In1: "A1", In2: "A2", PWM: "PWMA"},
		MotorB:  &MotorConfig{In1: "B1", In2: "B2", PWM: "PWMB"},
		Standby: "MISSING",
	}
	_, err := NewControllerFromConfig(ctx, b, conf, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `no global pin found for "MISSING"`)

	conf.Standby = "STBY"
	c, err := NewControllerFromConfig(ctx, b, conf, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.MotorA.Drive(ctx, motor.Forward(50)), test.ShouldBeNil)

	stby := pins["STBY"].(*gpiotest.Pin)
	stby.Lock()
	test.That(t, stby.L, test.ShouldEqual, gpio.High)
	stby.Unlock()
}

func TestNewMotorFromConfigReleasesPins(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	pins := map[string]gpio.PinIO{"A1": &gpiotest.Pin{N: "A1"}, "A2": &gpiotest.Pin{N: "A2"}}
	b := genericlinux.NewBoard(logger, genericlinux.WithPinLookup(func(name string) gpio.PinIO {
		pin, ok := pins[name]
		if !ok {
			return nil
		}
		return pin
	}))
	defer func() {
		test.That(t, b.Close(ctx), test.ShouldBeNil)
	}()

	conf := &MotorConfig{In1: "A1", In2: "A2", PWM: "PWMA"}
	_, err := NewMotorFromConfig(ctx, b, conf, DefaultPWMFreqHz, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `no global pin found for "PWMA"`)

	pins["PWMA"] = &gpiotest.Pin{N: "PWMA"}
	m, err := NewMotorFromConfig(ctx, b, conf, DefaultPWMFreqHz, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.CurrentDriveCommand(), test.ShouldResemble, motor.Stop())
}
