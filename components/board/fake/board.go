// Package fake implements fake pin capabilities that record every write, for tests and dry runs.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/tb6612/components/board"
)

var (
	_ = board.PinProvider(&Board{})
	_ = board.StatefulDigitalOutput(&DigitalOutput{})
	_ = board.DutyCycleOutput(&DutyCycleOutput{})
	_ = board.Enabler(&DutyCycleOutput{})
)

// Op is the kind of a recorded write.
type Op int

// Recorded write kinds.
const (
	OpLow Op = iota
	OpHigh
	OpDutyCycle
	OpEnable
)

// A Write is a single successful write to a fake pin.
type Write struct {
	Pin     string
	Op      Op
	Percent uint8
}

func (w Write) String() string {
	switch w.Op {
	case OpLow:
		return fmt.Sprintf("%s=low", w.Pin)
	case OpHigh:
		return fmt.Sprintf("%s=high", w.Pin)
	case OpDutyCycle:
		return fmt.Sprintf("%s=%d%%", w.Pin, w.Percent)
	case OpEnable:
		return fmt.Sprintf("%s enabled", w.Pin)
	}
	return fmt.Sprintf("%s unknown op %d", w.Pin, w.Op)
}

// Low is the expected write of a pin set low.
func Low(pin string) Write {
	return Write{Pin: pin, Op: OpLow}
}

// High is the expected write of a pin set high.
func High(pin string) Write {
	return Write{Pin: pin, Op: OpHigh}
}

// Duty is the expected write of a duty cycle.
func Duty(pin string, pct uint8) Write {
	return Write{Pin: pin, Op: OpDutyCycle, Percent: pct}
}

// Enable is the expected write of enabling an output.
func Enable(pin string) Write {
	return Write{Pin: pin, Op: OpEnable}
}

// A Recorder collects writes across pins in the order they happened.
type Recorder struct {
	mu     sync.Mutex
	writes []Write
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(w Write) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, w)
}

// Writes returns a copy of every write recorded so far.
func (r *Recorder) Writes() []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Write{}, r.writes...)
}

// Reset forgets all recorded writes.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = nil
}

// A Board hands out fake pins by name. All of its pins share one Recorder.
type Board struct {
	mu               sync.Mutex
	DigitalOutputs   map[string]*DigitalOutput
	DutyCycleOutputs map[string]*DutyCycleOutput
	Recorder         *Recorder
}

// NewBoard returns a new fake board.
func NewBoard() *Board {
	return &Board{
		DigitalOutputs:   map[string]*DigitalOutput{},
		DutyCycleOutputs: map[string]*DutyCycleOutput{},
		Recorder:         NewRecorder(),
	}
}

// DigitalOutputByName returns the digital output by the given name, creating it if needed.
func (b *Board) DigitalOutputByName(name string) (board.DigitalOutput, error) {
	return b.DigitalOutput(name)
}

// DigitalOutput is DigitalOutputByName returning the concrete fake.
func (b *Board) DigitalOutput(name string) (*DigitalOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.DutyCycleOutputs[name]; ok {
		return nil, errors.Errorf("pin (%s) is already in use as a duty cycle output", name)
	}
	p, ok := b.DigitalOutputs[name]
	if !ok {
		p = NewDigitalOutput(name, b.Recorder)
		b.DigitalOutputs[name] = p
	}
	return p, nil
}

// DutyCycleOutputByName returns the duty cycle output by the given name, creating it if needed.
func (b *Board) DutyCycleOutputByName(name string, freqHz uint) (board.DutyCycleOutput, error) {
	return b.DutyCycleOutput(name, freqHz)
}

// DutyCycleOutput is DutyCycleOutputByName returning the concrete fake.
func (b *Board) DutyCycleOutput(name string, freqHz uint) (*DutyCycleOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.DigitalOutputs[name]; ok {
		return nil, errors.Errorf("pin (%s) is already in use as a digital output", name)
	}
	p, ok := b.DutyCycleOutputs[name]
	if !ok {
		p = NewDutyCycleOutput(name, b.Recorder)
		b.DutyCycleOutputs[name] = p
	}
	p.mu.Lock()
	p.freqHz = freqHz
	p.mu.Unlock()
	return p, nil
}

// A DigitalOutput remembers the level it was set to.
type DigitalOutput struct {
	name     string
	recorder *Recorder

	mu     sync.Mutex
	high   bool
	err    error
	writes []Write
}

// NewDigitalOutput returns a fake digital output. recorder may be nil.
func NewDigitalOutput(name string, recorder *Recorder) *DigitalOutput {
	return &DigitalOutput{name: name, recorder: recorder}
}

// SetHigh sets the pin high unless a failure is injected.
func (do *DigitalOutput) SetHigh(ctx context.Context) error {
	return do.set(true)
}

// SetLow sets the pin low unless a failure is injected.
func (do *DigitalOutput) SetLow(ctx context.Context) error {
	return do.set(false)
}

func (do *DigitalOutput) set(high bool) error {
	do.mu.Lock()
	defer do.mu.Unlock()
	if do.err != nil {
		return do.err
	}
	do.high = high
	w := Low(do.name)
	if high {
		w = High(do.name)
	}
	do.writes = append(do.writes, w)
	do.recorder.record(w)
	return nil
}

// IsSetHigh returns whether the pin is set high.
func (do *DigitalOutput) IsSetHigh(ctx context.Context) (bool, error) {
	do.mu.Lock()
	defer do.mu.Unlock()
	if do.err != nil {
		return false, do.err
	}
	return do.high, nil
}

// High returns the current level.
func (do *DigitalOutput) High() bool {
	do.mu.Lock()
	defer do.mu.Unlock()
	return do.high
}

// Writes returns the writes made to this pin.
func (do *DigitalOutput) Writes() []Write {
	do.mu.Lock()
	defer do.mu.Unlock()
	return append([]Write{}, do.writes...)
}

// SetError makes every following call fail with err. A nil err clears the failure.
func (do *DigitalOutput) SetError(err error) {
	do.mu.Lock()
	defer do.mu.Unlock()
	do.err = err
}

// A DutyCycleOutput remembers the duty cycle it was set to.
type DutyCycleOutput struct {
	name     string
	recorder *Recorder

	mu      sync.Mutex
	pct     uint8
	freqHz  uint
	enabled bool
	err     error
	writes  []Write
}

// NewDutyCycleOutput returns a fake duty cycle output. recorder may be nil.
func NewDutyCycleOutput(name string, recorder *Recorder) *DutyCycleOutput {
	return &DutyCycleOutput{name: name, recorder: recorder}
}

// SetDutyCyclePercent sets the duty cycle unless a failure is injected or pct is above 100.
func (dco *DutyCycleOutput) SetDutyCyclePercent(ctx context.Context, pct uint8) error {
	if pct > 100 {
		return errors.Wrapf(board.ErrDutyCycleOutOfRange, "got %d", pct)
	}
	dco.mu.Lock()
	defer dco.mu.Unlock()
	if dco.err != nil {
		return dco.err
	}
	dco.pct = pct
	w := Duty(dco.name, pct)
	dco.writes = append(dco.writes, w)
	dco.recorder.record(w)
	return nil
}

// Enable enables the output unless a failure is injected.
func (dco *DutyCycleOutput) Enable(ctx context.Context) error {
	dco.mu.Lock()
	defer dco.mu.Unlock()
	if dco.err != nil {
		return dco.err
	}
	dco.enabled = true
	w := Enable(dco.name)
	dco.writes = append(dco.writes, w)
	dco.recorder.record(w)
	return nil
}

// Percent returns the current duty cycle.
func (dco *DutyCycleOutput) Percent() uint8 {
	dco.mu.Lock()
	defer dco.mu.Unlock()
	return dco.pct
}

// Enabled returns whether Enable was called.
func (dco *DutyCycleOutput) Enabled() bool {
	dco.mu.Lock()
	defer dco.mu.Unlock()
	return dco.enabled
}

// FreqHz returns the frequency the output was requested at.
func (dco *DutyCycleOutput) FreqHz() uint {
	dco.mu.Lock()
	defer dco.mu.Unlock()
	return dco.freqHz
}

// Writes returns the writes made to this output.
func (dco *DutyCycleOutput) Writes() []Write {
	dco.mu.Lock()
	defer dco.mu.Unlock()
	return append([]Write{}, dco.writes...)
}

// SetError makes every following call fail with err. A nil err clears the failure.
func (dco *DutyCycleOutput) SetError(err error) {
	dco.mu.Lock()
	defer dco.mu.Unlock()
	dco.err = err
}
