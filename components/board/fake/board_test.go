package fake

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/tb6612/components/board"
)

func TestFakeBoard(t *testing.T) {
	ctx := context.Background()
	b := NewBoard()

	in1, err := b.DigitalOutputByName("in1")
	test.That(t, err, test.ShouldBeNil)
	again, err := b.DigitalOutputByName("in1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again, test.ShouldEqual, in1)

	pwm, err := b.DutyCycleOutputByName("pwm", 1000)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.DutyCycleOutputs["pwm"].FreqHz(), test.ShouldEqual, uint(1000))

	_, err = b.DutyCycleOutputByName("in1", 1000)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "digital output")
	_, err = b.DigitalOutputByName("pwm")
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, in1.SetHigh(ctx), test.ShouldBeNil)
	test.That(t, pwm.(board.Enabler).Enable(ctx), test.ShouldBeNil)
	test.That(t, pwm.SetDutyCyclePercent(ctx, 42), test.ShouldBeNil)
	test.That(t, in1.SetLow(ctx), test.ShouldBeNil)

	test.That(t, b.Recorder.Writes(), test.ShouldResemble, []Write{
		High("in1"), Enable("pwm"), Duty("pwm", 42), Low("in1"),
	})
	test.That(t, b.DigitalOutputs["in1"].Writes(), test.ShouldResemble, []Write{High("in1"), Low("in1")})

	b.Recorder.Reset()
	test.That(t, b.Recorder.Writes(), test.ShouldBeEmpty)
}

func TestDigitalOutput(t *testing.T) {
	ctx := context.Background()
	do := NewDigitalOutput("stby", nil)

	high, err := do.IsSetHigh(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, high, test.ShouldBeFalse)

	test.That(t, do.SetHigh(ctx), test.ShouldBeNil)
	test.That(t, do.High(), test.ShouldBeTrue)

	injected := errors.New("bus fault")
	do.SetError(injected)
	test.That(t, do.SetLow(ctx), test.ShouldEqual, injected)
	test.That(t, do.High(), test.ShouldBeTrue)
	_, err = do.IsSetHigh(ctx)
	test.That(t, err, test.ShouldEqual, injected)
	test.That(t, do.Writes(), test.ShouldResemble, []Write{High("stby")})

	do.SetError(nil)
	test.That(t, do.SetLow(ctx), test.ShouldBeNil)
	test.That(t, do.High(), test.ShouldBeFalse)
}

func TestDutyCycleOutput(t *testing.T) {
	ctx := context.Background()
	dco := NewDutyCycleOutput("pwm", nil)

	err := dco.SetDutyCyclePercent(ctx, 101)
	test.That(t, errors.Is(err, board.ErrDutyCycleOutOfRange), test.ShouldBeTrue)
	test.That(t, dco.Writes(), test.ShouldBeEmpty)

	test.That(t, dco.SetDutyCyclePercent(ctx, 100), test.ShouldBeNil)
	test.That(t, dco.Percent(), test.ShouldEqual, uint8(100))

	dco.SetError(errors.New("timer fault"))
	test.That(t, dco.Enable(ctx), test.ShouldNotBeNil)
	test.That(t, dco.Enabled(), test.ShouldBeFalse)
	test.That(t, dco.SetDutyCyclePercent(ctx, 5), test.ShouldNotBeNil)
	test.That(t, dco.Percent(), test.ShouldEqual, uint8(100))
}

func TestWriteString(t *testing.T) {
	test.That(t, High("in1").String(), test.ShouldEqual, "in1=high")
	test.That(t, Low("in2").String(), test.ShouldEqual, "in2=low")
	test.That(t, Duty("pwm", 30).String(), test.ShouldEqual, "pwm=30%")
	test.That(t, Enable("pwm").String(), test.ShouldEqual, "pwm enabled")
}
