package motor

import "github.com/pkg/errors"

var (
	// ErrInvalidSpeed is returned for a forward or backward command faster than MaxSpeed.
	ErrInvalidSpeed = errors.New("speed must be a percentage between 0 and 100")

	// ErrInvalidDirection is returned for a command whose Direction is not one of the known values.
	ErrInvalidDirection = errors.New("unknown drive direction")
)

// NewInvalidSpeedError returns ErrInvalidSpeed annotated with the rejected speed.
func NewInvalidSpeedError(speed uint8) error {
	return errors.Wrapf(ErrInvalidSpeed, "got %d", speed)
}

// NewInvalidDirectionError returns ErrInvalidDirection annotated with the rejected direction.
func NewInvalidDirectionError(d Direction) error {
	return errors.Wrapf(ErrInvalidDirection, "got %d", int(d))
}
