// Package ramp is a sample application for a single motor. A periodic task sweeps the speed one
// percent per tick from full forward to full backward and back, and a button cycles the motor
// through stop, brake and ramping again.
//
// The button and the ramp task run on different goroutines, so every access to the motor goes
// through the Ramper's mutex.
package ramp

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	goutils "go.viam.com/utils"

	"go.viam.com/tb6612/components/motor"
	"go.viam.com/tb6612/logging"
)

// DefaultInterval is the time between two ramp steps.
const DefaultInterval = 100 * time.Millisecond

// NextRampCommand returns the command following cmd in the sweep, and the step direction to use
// after it. Speeds bounce off 100 and pass through 0 into the other direction. Braking or stopped
// motors are not ramped and ok is false.
func NextRampCommand(cmd motor.DriveCommand, step int8) (next motor.DriveCommand, nextStep int8, ok bool) {
	switch cmd.Direction {
	case motor.DirectionForward, motor.DirectionBackward:
	default:
		return cmd, step, false
	}

	switch cmd.Speed {
	case motor.MaxSpeed:
		return motor.DriveCommand{Direction: cmd.Direction, Speed: motor.MaxSpeed - 1}, -1, true
	case 0:
		opposite := motor.Backward(1)
		if cmd.Direction == motor.DirectionBackward {
			opposite = motor.Forward(1)
		}
		return opposite, 1, true
	default:
		return motor.DriveCommand{Direction: cmd.Direction, Speed: uint8(int8(cmd.Speed) + step)}, step, true
	}
}

// NextButtonCommand returns the command a button press switches cmd to: a stopped motor brakes, a
// braking motor starts ramping again from standstill and a moving motor stops.
func NextButtonCommand(cmd motor.DriveCommand) (next motor.DriveCommand, startRamp bool) {
	switch cmd.Direction {
	case motor.DirectionStop:
		return motor.Brake(), false
	case motor.DirectionBrake:
		return motor.Backward(0), true
	default:
		return motor.Stop(), false
	}
}

// A Ramper owns a motor on behalf of the ramp task and the button.
type Ramper struct {
	clk      clock.Clock
	interval time.Duration
	logger   logging.Logger
	workers  *goutils.StoppableWorkers

	mu      sync.Mutex
	m       motor.Driver
	step    int8
	ramping bool
}

// New returns a Ramper for m. Nothing is driven until Start.
func New(m motor.Driver, clk clock.Clock, interval time.Duration, logger logging.Logger) *Ramper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Ramper{
		clk:      clk,
		interval: interval,
		logger:   logger,
		workers:  goutils.NewBackgroundStoppableWorkers(),
		m:        m,
		step:     1,
	}
}

// Start sets the motor to backward at 0% and starts ramping.
func (r *Ramper) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.m.Drive(ctx, motor.Backward(0)); err != nil {
		return err
	}
	r.step = 1
	r.startRampLocked()
	return nil
}

// Press handles one button press.
func (r *Ramper) Press(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.m.CurrentDriveCommand()
	next, startRamp := NextButtonCommand(current)
	switch next.Direction {
	case motor.DirectionBrake:
		r.logger.Infow("motor stopped; applying brake")
	case motor.DirectionStop:
		r.logger.Infow("motor was driving; stopping", "command", current.String())
	default:
		r.logger.Infow("brake was on; starting the motor again")
	}
	if err := r.m.Drive(ctx, next); err != nil {
		return err
	}
	if startRamp {
		r.step = 1
		r.startRampLocked()
	}
	return nil
}

// Ramping reports whether the ramp task is running.
func (r *Ramper) Ramping() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ramping
}

// Close stops the ramp task. The motor keeps its current command.
func (r *Ramper) Close() {
	r.workers.Stop()
}

// startRampLocked expects r.mu to be held. The ticker is created here rather than in the worker
// so that the first tick is measured from this call.
func (r *Ramper) startRampLocked() {
	if r.ramping {
		return
	}
	r.ramping = true
	ticker := r.clk.Ticker(r.interval)
	r.workers.Add(func(ctx context.Context) {
		defer ticker.Stop()
		for {
			if !goutils.SelectContextOrWaitChan(ctx, ticker.C) {
				r.mu.Lock()
				r.ramping = false
				r.mu.Unlock()
				return
			}
			if !r.rampOnce(ctx) {
				return
			}
		}
	})
}

// rampOnce advances the ramp by one step and reports whether the task should keep running.
func (r *Ramper) rampOnce(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, step, ok := NextRampCommand(r.m.CurrentDriveCommand(), r.step)
	if !ok {
		r.ramping = false
		return false
	}
	if err := r.m.Drive(ctx, next); err != nil {
		r.logger.Errorw("could not set drive speed; stopping ramp", "command", next.String(), "error", err)
		r.ramping = false
		return false
	}
	r.step = step
	return true
}
