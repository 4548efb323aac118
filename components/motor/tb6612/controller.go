package tb6612

import (
	"context"

	"go.uber.org/multierr"

	"go.viam.com/tb6612/components/board"
	"go.viam.com/tb6612/components/motor"
	"go.viam.com/tb6612/logging"
)

// A Controller is a whole TB6612FNG: two motors and the standby pin they share.
//
// Standby overrides both motors without touching them: their PWM signals keep running and once
// standby is disabled each motor resumes its current command.
type Controller struct {
	// MotorA is the motor labelled A on the chip.
	MotorA *Motor
	// MotorB is the motor labelled B on the chip.
	MotorB *Motor

	standby        board.DigitalOutput
	standbyEngaged bool
	logger         logging.Logger
}

// NewController takes ownership of both motors and the standby output, and disables standby.
func NewController(
	ctx context.Context,
	motorA, motorB *Motor,
	standby board.DigitalOutput,
	logger logging.Logger,
) (*Controller, error) {
	c := &Controller{
		MotorA:  motorA,
		MotorB:  motorB,
		standby: standby,
		logger:  logger,
	}
	if err := c.DisableStandby(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// EnableStandby puts both motors into standby by driving the standby pin low.
func (c *Controller) EnableStandby(ctx context.Context) error {
	if err := c.standby.SetLow(ctx); err != nil {
		return &StandbyError{Err: err}
	}
	c.standbyEngaged = true
	c.logger.CDebugw(ctx, "standby enabled")
	return nil
}

// DisableStandby takes both motors out of standby by driving the standby pin high. Each motor
// resumes its current command.
func (c *Controller) DisableStandby(ctx context.Context) error {
	if err := c.standby.SetHigh(ctx); err != nil {
		return &StandbyError{Err: err}
	}
	c.standbyEngaged = false
	c.logger.CDebugw(ctx, "standby disabled")
	return nil
}

// CurrentStandby reports whether standby is engaged. When the standby output is a
// board.StatefulDigitalOutput it is asked for its level, otherwise the last successful write is
// reported.
func (c *Controller) CurrentStandby(ctx context.Context) (bool, error) {
	stateful, ok := c.standby.(board.StatefulDigitalOutput)
	if !ok {
		return c.standbyEngaged, nil
	}
	high, err := stateful.IsSetHigh(ctx)
	if err != nil {
		return false, &StandbyError{Err: err}
	}
	return !high, nil
}

// Stop coasts both motors. Motor B is stopped even if stopping motor A fails.
func (c *Controller) Stop(ctx context.Context) error {
	return multierr.Combine(
		c.MotorA.Drive(ctx, motor.Stop()),
		c.MotorB.Drive(ctx, motor.Stop()),
	)
}
