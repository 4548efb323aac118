// Package tb6612 drives motors through a TB6612FNG dual H-bridge.
//
// Each motor is wired to two direction inputs, IN1 and IN2, and one PWM input setting its speed.
// A Motor maps drive commands onto those three outputs:
//
//	command   IN1   IN2   PWM
//	forward   high  low   speed
//	backward  low   high  speed
//	brake     high  high  0
//	stop      low   low   0
//
// A Controller adds the standby pin shared by both motors of the chip. Use a Motor on its own
// when only one motor is wired, or when standby is hardwired or handled elsewhere.
//
// Neither type is safe for concurrent use; callers that drive a motor from several goroutines
// must serialize those calls.
package tb6612

import (
	"context"

	"go.viam.com/tb6612/components/board"
	"go.viam.com/tb6612/components/motor"
	"go.viam.com/tb6612/logging"
)

var _ = motor.Driver(&Motor{})

// directionLevels is the IN1/IN2 level pattern (high is true) for each direction.
var directionLevels = map[motor.Direction][2]bool{
	motor.DirectionForward:  {true, false},
	motor.DirectionBackward: {false, true},
	motor.DirectionBrake:    {true, true},
	motor.DirectionStop:     {false, false},
}

// A Motor is a single motor on a TB6612FNG, labelled A or B on the chip.
type Motor struct {
	in1, in2 board.DigitalOutput
	pwm      board.DutyCycleOutput
	logger   logging.Logger

	current motor.DriveCommand
}

// NewMotor takes ownership of the given outputs and brings the motor to a stop. If pwm is a
// board.Enabler it is enabled first. Any failed write is returned and the motor is discarded.
func NewMotor(
	ctx context.Context,
	in1, in2 board.DigitalOutput,
	pwm board.DutyCycleOutput,
	logger logging.Logger,
) (*Motor, error) {
	m := &Motor{
		in1:     in1,
		in2:     in2,
		pwm:     pwm,
		logger:  logger,
		current: motor.Stop(),
	}

	if enabler, ok := pwm.(board.Enabler); ok {
		if err := enabler.Enable(ctx); err != nil {
			return nil, &PinError{Pin: PinPWM, Err: err}
		}
	}
	if err := m.Drive(ctx, m.current); err != nil {
		return nil, err
	}
	return m, nil
}

// Drive applies cmd. Commands are validated before any output is touched; a rejected command
// returns motor.ErrInvalidSpeed or motor.ErrInvalidDirection and changes nothing.
//
// Outputs are written in the order IN1, IN2, PWM and the first failure is returned as a
// *PinError without attempting the rest. The current command is only updated once all three
// writes succeeded.
func (m *Motor) Drive(ctx context.Context, cmd motor.DriveCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	levels := directionLevels[cmd.Direction]

	if err := setLevel(ctx, m.in1, levels[0]); err != nil {
		return &PinError{Pin: PinIN1, Err: err}
	}
	if err := setLevel(ctx, m.in2, levels[1]); err != nil {
		return &PinError{Pin: PinIN2, Err: err}
	}
	speed := cmd.DutyCycle()
	if err := m.pwm.SetDutyCyclePercent(ctx, speed); err != nil {
		return &PinError{Pin: PinPWM, Err: err}
	}

	m.logger.CDebugw(ctx, "driving", "command", cmd.String(), "speed", speed)
	m.current = cmd
	return nil
}

func setLevel(ctx context.Context, out board.DigitalOutput, high bool) error {
	if high {
		return out.SetHigh(ctx)
	}
	return out.SetLow(ctx)
}

// CurrentDriveCommand returns the last command every output accepted.
func (m *Motor) CurrentDriveCommand() motor.DriveCommand {
	return m.current
}

// CurrentSpeed returns the speed of the current command: positive forward, negative backward
// and 0 when braking or stopped.
func (m *Motor) CurrentSpeed() int8 {
	return m.current.SignedSpeed()
}
