// Package motor defines the drive commands understood by H-bridge motor drivers and the
// interface those drivers implement.
package motor

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// MaxSpeed is the highest speed, in percent of full duty cycle, a DriveCommand may carry.
const MaxSpeed = 100

// Direction is what an H-bridge does with its two outputs.
type Direction int

// The zero Direction is DirectionStop, so the zero DriveCommand coasts.
const (
	DirectionStop Direction = iota
	DirectionForward
	DirectionBackward
	DirectionBrake
)

func (d Direction) String() string {
	switch d {
	case DirectionStop:
		return "stop"
	case DirectionForward:
		return "forward"
	case DirectionBackward:
		return "backward"
	case DirectionBrake:
		return "brake"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection parses the String form of a Direction.
func ParseDirection(s string) (Direction, error) {
	for _, d := range []Direction{DirectionStop, DirectionForward, DirectionBackward, DirectionBrake} {
		if d.String() == s {
			return d, nil
		}
	}
	return DirectionStop, errors.Wrapf(ErrInvalidDirection, "got %q", s)
}

// A DriveCommand tells a motor which way to turn and how fast. Speed is a percentage of the
// maximum duty cycle and is only meaningful for forward and backward; the type itself does not
// bound it, drivers reject anything above MaxSpeed.
type DriveCommand struct {
	Direction Direction
	Speed     uint8
}

// Forward drives forward at speed percent.
func Forward(speed uint8) DriveCommand {
	return DriveCommand{Direction: DirectionForward, Speed: speed}
}

// Backward drives backward at speed percent.
func Backward(speed uint8) DriveCommand {
	return DriveCommand{Direction: DirectionBackward, Speed: speed}
}

// Brake actively brakes by shorting the motor windings.
func Brake() DriveCommand {
	return DriveCommand{Direction: DirectionBrake}
}

// Stop coasts: drive current is removed and the motor spins down freely.
func Stop() DriveCommand {
	return DriveCommand{Direction: DirectionStop}
}

// DutyCycle returns the duty cycle percentage the command needs: its speed when driving, 0 when
// braking or stopped.
func (dc DriveCommand) DutyCycle() uint8 {
	switch dc.Direction {
	case DirectionForward, DirectionBackward:
		return dc.Speed
	default:
		return 0
	}
}

// Validate checks the command can be applied to a motor.
func (dc DriveCommand) Validate() error {
	switch dc.Direction {
	case DirectionStop, DirectionForward, DirectionBackward, DirectionBrake:
	default:
		return NewInvalidDirectionError(dc.Direction)
	}
	if dc.DutyCycle() > MaxSpeed {
		return NewInvalidSpeedError(dc.Speed)
	}
	return nil
}

// SignedSpeed is positive when driving forward, negative when driving backward and 0 otherwise.
func (dc DriveCommand) SignedSpeed() int8 {
	switch dc.Direction {
	case DirectionForward:
		return int8(dc.Speed)
	case DirectionBackward:
		return -int8(dc.Speed)
	default:
		return 0
	}
}

func (dc DriveCommand) String() string {
	switch dc.Direction {
	case DirectionForward, DirectionBackward:
		return fmt.Sprintf("%s(%d)", dc.Direction, dc.Speed)
	default:
		return dc.Direction.String()
	}
}

// A Driver applies drive commands to a single motor and remembers the last one applied.
type Driver interface {
	// Drive applies cmd. On error the current command is left unchanged.
	Drive(ctx context.Context, cmd DriveCommand) error

	// CurrentDriveCommand returns the last successfully applied command.
	CurrentDriveCommand() DriveCommand

	// CurrentSpeed returns the signed speed of the current command.
	CurrentSpeed() int8
}
