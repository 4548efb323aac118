// Package genericlinux implements board capabilities on Linux GPIO lines through periph.io.
package genericlinux

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"go.viam.com/tb6612/components/board"
	"go.viam.com/tb6612/logging"
)

var (
	_ = board.PinProvider(&Board{})
	_ = board.PinReleaser(&Board{})
)

// Init loads the periph.io host drivers. It must be called once before pins are looked up by
// name.
func Init() error {
	_, err := host.Init()
	return errors.Wrap(err, "initializing periph host drivers")
}

// An Option configures a Board.
type Option func(b *Board)

// WithSoftwarePWM makes duty cycle outputs fall back to a software PWM loop when the pin has no
// hardware PWM support.
func WithSoftwarePWM() Option {
	return func(b *Board) {
		b.softwarePWM = true
	}
}

// WithPinLookup replaces gpioreg.ByName as the way pins are resolved by name.
func WithPinLookup(lookup func(name string) gpio.PinIO) Option {
	return func(b *Board) {
		b.lookup = lookup
	}
}

// WithSysfsPWMRoot replaces DefaultSysfsPWMRoot as the directory holding PWM chips.
func WithSysfsPWMRoot(root string) Option {
	return func(b *Board) {
		b.sysfsPWMRoot = root
	}
}

// A Board hands out pins by name. GPIO lines are resolved through periph.io; names of the form
// "pwmchip0/1" are sysfs PWM channels.
type Board struct {
	mu           sync.Mutex
	logger       logging.Logger
	lookup       func(name string) gpio.PinIO
	softwarePWM  bool
	sysfsPWMRoot string
	inUse        map[string]func() error // release hooks, nil when there is nothing to undo
	sysfsPWMs    []*SysfsDutyCycleOutput

	workers *goutils.StoppableWorkers
}

// NewBoard returns a board resolving pins through gpioreg unless configured otherwise.
func NewBoard(logger logging.Logger, opts ...Option) *Board {
	b := &Board{
		logger:       logger,
		lookup:       gpioreg.ByName,
		sysfsPWMRoot: DefaultSysfsPWMRoot,
		inUse:        map[string]func() error{},
		workers:      goutils.NewBackgroundStoppableWorkers(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// claimLocked expects b.mu to be held.
func (b *Board) claimLocked(name string) error {
	if _, ok := b.inUse[name]; ok {
		return errors.Errorf("pin %q is already in use", name)
	}
	b.inUse[name] = nil
	return nil
}

// ReleasePin makes name available again. A software PWM loop on the pin is stopped, leaving the
// pin low, and a sysfs PWM channel is disabled. Releasing a pin that is not in use is a no-op.
func (b *Board) ReleasePin(name string) error {
	b.mu.Lock()
	release, ok := b.inUse[name]
	delete(b.inUse, name)
	b.mu.Unlock()
	if !ok || release == nil {
		return nil
	}
	return release()
}

func (b *Board) setReleaseHook(name string, release func() error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.inUse[name]; ok {
		b.inUse[name] = release
	}
}

func (b *Board) claim(name string) (gpio.PinIO, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, _, ok := parseSysfsPWMName(name); ok {
		return nil, errors.Errorf("pin %q is a pwm channel and cannot be used as a gpio", name)
	}
	pin := b.lookup(name)
	if pin == nil {
		return nil, errors.Errorf("no global pin found for %q", name)
	}
	if err := b.claimLocked(name); err != nil {
		return nil, err
	}
	return pin, nil
}

// DigitalOutputByName returns a digital output for the named GPIO line.
func (b *Board) DigitalOutputByName(name string) (board.DigitalOutput, error) {
	pin, err := b.claim(name)
	if err != nil {
		return nil, err
	}
	return NewDigitalOutput(name, pin), nil
}

// DutyCycleOutputByName returns a duty cycle output running at freqHz, either the named sysfs
// PWM channel or the named GPIO line.
func (b *Board) DutyCycleOutputByName(name string, freqHz uint) (board.DutyCycleOutput, error) {
	if freqHz == 0 {
		return nil, errors.Errorf("pwm frequency for pin %q must be greater than 0", name)
	}
	if chip, line, ok := parseSysfsPWMName(name); ok {
		pwm, err := b.sysfsDutyCycleOutput(name, chip, line, freqHz)
		if err != nil {
			return nil, err
		}
		return pwm, nil
	}
	pin, err := b.claim(name)
	if err != nil {
		return nil, err
	}
	dco := newDutyCycleOutput(b, name, pin, freqHz)
	b.setReleaseHook(name, dco.release)
	return dco, nil
}

func (b *Board) sysfsDutyCycleOutput(name, chip string, line int, freqHz uint) (*SysfsDutyCycleOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pwm, err := newSysfsDutyCycleOutput(b.sysfsPWMRoot, name, chip, line, freqHz)
	if err != nil {
		return nil, err
	}
	if err := b.claimLocked(name); err != nil {
		return nil, err
	}
	b.inUse[name] = pwm.Close
	b.sysfsPWMs = append(b.sysfsPWMs, pwm)
	return pwm, nil
}

// Close stops any software PWM loops, driving their pins low, releases sysfs PWM channels and
// frees every pin name.
func (b *Board) Close(ctx context.Context) error {
	b.workers.Stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	for _, pwm := range b.sysfsPWMs {
		err = multierr.Combine(err, pwm.Close())
	}
	b.sysfsPWMs = nil
	b.inUse = map[string]func() error{}
	return err
}
