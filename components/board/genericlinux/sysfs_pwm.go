package genericlinux

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/tb6612/components/board"
)

var (
	_ = board.DutyCycleOutput(&SysfsDutyCycleOutput{})
	_ = board.Enabler(&SysfsDutyCycleOutput{})
)

// DefaultSysfsPWMRoot is where the kernel exposes PWM chips.
const DefaultSysfsPWMRoot = "/sys/class/pwm"

// Sysfs PWM channels are named "<chip>/<line>", e.g. "pwmchip0/1".
var sysfsPWMName = regexp.MustCompile(`^(pwmchip\d+)/(\d+)$`)

func parseSysfsPWMName(name string) (chip string, line int, ok bool) {
	m := sysfsPWMName.FindStringSubmatch(name)
	if m == nil {
		return "", 0, false
	}
	line, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], line, true
}

// A SysfsDutyCycleOutput is a hardware PWM channel driven through /sys/class/pwm.
type SysfsDutyCycleOutput struct {
	// These values are immutable.
	name     string
	chipPath string
	line     int
	linePath string
	periodNs uint32

	mu sync.Mutex

	activeDurationNs uint32
	isExported       bool
	exportedByUs     bool
	isEnabled        bool
}

func newSysfsDutyCycleOutput(root, name, chip string, line int, freqHz uint) (*SysfsDutyCycleOutput, error) {
	periodNs := uint64(1e9) / uint64(freqHz)
	if periodNs == 0 {
		return nil, errors.Errorf("pwm frequency %dHz for %q is above 1GHz", freqHz, name)
	}
	chipPath := filepath.Join(root, chip)
	return &SysfsDutyCycleOutput{
		name:     name,
		chipPath: chipPath,
		line:     line,
		linePath: filepath.Join(chipPath, fmt.Sprintf("pwm%d", line)),
		periodNs: uint32(periodNs),
	}, nil
}

func writeValue(path string, value uint64) error {
	// The file mode only matters if the file is missing, which sysfs never allows.
	return os.WriteFile(path, []byte(strconv.FormatUint(value, 10)), 0o660)
}

// exportLocked expects the mutex to be held.
func (pwm *SysfsDutyCycleOutput) exportLocked() error {
	if pwm.isExported {
		return nil
	}
	if _, err := os.Stat(pwm.linePath); err != nil {
		if err := writeValue(filepath.Join(pwm.chipPath, "export"), uint64(pwm.line)); err != nil {
			return errors.Wrapf(err, "exporting %q", pwm.name)
		}
		pwm.exportedByUs = true
	}
	pwm.isExported = true
	return nil
}

// Enable exports the channel, sets its period with a zero duty cycle and turns it on.
func (pwm *SysfsDutyCycleOutput) Enable(ctx context.Context) error {
	pwm.mu.Lock()
	defer pwm.mu.Unlock()

	if pwm.isEnabled {
		return nil
	}
	if err := pwm.exportLocked(); err != nil {
		return err
	}
	// The kernel rejects an active duration longer than the period, so zero it first.
	if err := writeValue(filepath.Join(pwm.linePath, "duty_cycle"), 0); err != nil {
		return errors.Wrapf(err, "clearing duty cycle of %q", pwm.name)
	}
	pwm.activeDurationNs = 0
	if err := writeValue(filepath.Join(pwm.linePath, "period"), uint64(pwm.periodNs)); err != nil {
		return errors.Wrapf(err, "setting period of %q", pwm.name)
	}
	if err := writeValue(filepath.Join(pwm.linePath, "enable"), 1); err != nil {
		return errors.Wrapf(err, "enabling %q", pwm.name)
	}
	pwm.isEnabled = true
	return nil
}

// SetDutyCyclePercent sets how many nanoseconds of each period the channel is high. The channel
// must be enabled first.
func (pwm *SysfsDutyCycleOutput) SetDutyCyclePercent(ctx context.Context, pct uint8) error {
	activeDurationNs, err := board.ScaleDutyCycle(pwm.periodNs, pct)
	if err != nil {
		return err
	}

	pwm.mu.Lock()
	defer pwm.mu.Unlock()
	if !pwm.isEnabled {
		return errors.Errorf("pwm %q is not enabled", pwm.name)
	}
	if err := writeValue(filepath.Join(pwm.linePath, "duty_cycle"), uint64(activeDurationNs)); err != nil {
		return errors.Wrapf(err, "setting duty cycle of %q", pwm.name)
	}
	pwm.activeDurationNs = activeDurationNs
	return nil
}

// ActiveDurationNs returns the active duration last written.
func (pwm *SysfsDutyCycleOutput) ActiveDurationNs() uint32 {
	pwm.mu.Lock()
	defer pwm.mu.Unlock()
	return pwm.activeDurationNs
}

// Close turns the channel off. It is unexported only if Enable exported it.
func (pwm *SysfsDutyCycleOutput) Close() error {
	pwm.mu.Lock()
	defer pwm.mu.Unlock()

	var err error
	if pwm.isEnabled {
		err = multierr.Combine(err, writeValue(filepath.Join(pwm.linePath, "enable"), 0))
		pwm.isEnabled = false
	}
	if pwm.exportedByUs {
		err = multierr.Combine(err, writeValue(filepath.Join(pwm.chipPath, "unexport"), uint64(pwm.line)))
		pwm.exportedByUs = false
	}
	pwm.isExported = false
	return errors.Wrapf(err, "closing %q", pwm.name)
}
