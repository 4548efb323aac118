// Package fake implements a fake motor driver.
package fake

import (
	"context"
	"sync"

	"go.viam.com/tb6612/components/motor"
	"go.viam.com/tb6612/logging"
)

var _ = motor.Driver(&Motor{})

// A Motor validates and records drive commands without touching any pins.
type Motor struct {
	Name   string
	Logger logging.Logger

	mu       sync.Mutex
	current  motor.DriveCommand
	commands []motor.DriveCommand
	err      error
}

// NewMotor returns a stopped fake motor.
func NewMotor(name string, logger logging.Logger) *Motor {
	return &Motor{Name: name, Logger: logger}
}

// Drive validates and records cmd unless a failure is injected.
func (m *Motor) Drive(ctx context.Context, cmd motor.DriveCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.current = cmd
	m.commands = append(m.commands, cmd)
	m.Logger.CDebugw(ctx, "driving", "motor", m.Name, "command", cmd.String())
	return nil
}

// CurrentDriveCommand returns the last command applied.
func (m *Motor) CurrentDriveCommand() motor.DriveCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CurrentSpeed returns the signed speed of the last command applied.
func (m *Motor) CurrentSpeed() int8 {
	return m.CurrentDriveCommand().SignedSpeed()
}

// Commands returns every command applied, in order.
func (m *Motor) Commands() []motor.DriveCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]motor.DriveCommand{}, m.commands...)
}

// SetError makes every following Drive fail with err. A nil err clears the failure.
func (m *Motor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
