package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/tb6612/components/board"
	"go.viam.com/tb6612/components/board/fake"
	"go.viam.com/tb6612/components/board/genericlinux"
	"go.viam.com/tb6612/components/motor"
	"go.viam.com/tb6612/components/motor/tb6612"
	"go.viam.com/tb6612/logging"
	"go.viam.com/tb6612/samples/ramp"
)

const (
	// Flags.
	flagConfig    = "config"
	flagFake      = "fake"
	flagDebug     = "debug"
	flagMotor     = "motor"
	flagDirection = "direction"
	flagSpeed     = "speed"
	flagInterval  = "interval"
)

// openLinuxBoard opens the periph.io backed board used without --fake.
var openLinuxBoard = func(logger logging.Logger) (*genericlinux.Board, error) {
	if err := genericlinux.Init(); err != nil {
		return nil, err
	}
	return genericlinux.NewBoard(logger, genericlinux.WithSoftwarePWM()), nil
}

// fakeConfig is used with --fake when no config file is given.
var fakeConfig = tb6612.Config{
	MotorA:  &tb6612.MotorConfig{In1: "AIN1", In2: "AIN2", PWM: "PWMA"},
	MotorB:  &tb6612.MotorConfig{In1: "BIN1", In2: "BIN2", PWM: "PWMB"},
	Standby: "STBY",
}

// A session is an opened controller and the board behind it.
type session struct {
	controller *tb6612.Controller
	fakeBoard  *fake.Board
	close      func(ctx context.Context) error
}

// newApp returns the CLI with Writer set to out and ErrWriter set to errOut. The ramp command
// reads button presses from stdin.
func newApp(stdin io.Reader, out, errOut io.Writer) *cli.App {
	var logger logging.Logger

	return &cli.App{
		Name:      "tb6612",
		Usage:     "drive the two motors of a TB6612FNG",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load the pin configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagFake,
				Usage: "use in-memory pins and print every pin write",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("tb6612")
			} else {
				logger = logging.NewLogger("tb6612")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "drive",
				Usage: "apply one drive command to a motor and hold it until Ctrl-C",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagMotor,
						Usage: "motor to drive: a or b",
						Value: "a",
					},
					&cli.StringFlag{
						Name:     flagDirection,
						Usage:    "forward, backward, brake or stop",
						Required: true,
					},
					&cli.UintFlag{
						Name:  flagSpeed,
						Usage: "speed in percent of full speed",
					},
				},
				Action: func(c *cli.Context) error {
					return withSession(c, logger, func(s *session) error {
						return driveAction(c, s, logger)
					})
				},
			},
			{
				Name:      "standby",
				Usage:     "engage or release standby",
				ArgsUsage: "on|off",
				Action: func(c *cli.Context) error {
					return withSession(c, logger, func(s *session) error {
						return standbyAction(c, s)
					})
				},
			},
			{
				Name:  "ramp",
				Usage: "sweep a motor between full forward and full backward; press Enter to stop, brake or restart it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagMotor,
						Usage: "motor to ramp: a or b",
						Value: "a",
					},
					&cli.DurationFlag{
						Name:  flagInterval,
						Usage: "time between two speed steps",
						Value: ramp.DefaultInterval,
					},
				},
				Action: func(c *cli.Context) error {
					return withSession(c, logger, func(s *session) error {
						return rampAction(c, s, stdin, logger)
					})
				},
			},
		},
	}
}

func loadConfig(c *cli.Context) (*tb6612.Config, error) {
	path := c.String(flagConfig)
	if path == "" {
		if !c.Bool(flagFake) {
			return nil, errors.Errorf("--%s is required unless --%s is set", flagConfig, flagFake)
		}
		conf := fakeConfig
		return &conf, nil
	}
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	var attributes map[string]interface{}
	if err := json.Unmarshal(data, &attributes); err != nil {
		return nil, errors.Wrapf(err, "parsing config %q", path)
	}
	return tb6612.ConfigFromAttributes(attributes)
}

func openSession(c *cli.Context, logger logging.Logger) (*session, error) {
	conf, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	var pins board.PinProvider
	s := &session{close: func(context.Context) error { return nil }}
	if c.Bool(flagFake) {
		s.fakeBoard = fake.NewBoard()
		pins = s.fakeBoard
	} else {
		b, err := openLinuxBoard(logger.Sublogger("board"))
		if err != nil {
			return nil, err
		}
		pins = b
		s.close = b.Close
	}

	s.controller, err = tb6612.NewControllerFromConfig(c.Context, pins, conf, logger)
	if err != nil {
		return nil, multierr.Combine(err, s.close(c.Context))
	}
	return s, nil
}

func withSession(c *cli.Context, logger logging.Logger, f func(s *session) error) (err error) {
	s, err := openSession(c, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, s.close(context.Background()))
		if s.fakeBoard != nil {
			for _, w := range s.fakeBoard.Recorder.Writes() {
				fmt.Fprintln(c.App.Writer, w.String())
			}
		}
	}()
	return f(s)
}

func selectMotor(s *session, name string) (*tb6612.Motor, error) {
	switch strings.ToLower(name) {
	case "a":
		return s.controller.MotorA, nil
	case "b":
		return s.controller.MotorB, nil
	default:
		return nil, errors.Errorf("unknown motor %q, expected a or b", name)
	}
}

func driveAction(c *cli.Context, s *session, logger logging.Logger) error {
	m, err := selectMotor(s, c.String(flagMotor))
	if err != nil {
		return err
	}
	dir, err := motor.ParseDirection(c.String(flagDirection))
	if err != nil {
		return err
	}
	speed := c.Uint(flagSpeed)
	if speed > uint(motor.MaxSpeed) {
		return errors.Wrapf(motor.ErrInvalidSpeed, "got %d", speed)
	}
	cmd := motor.DriveCommand{Direction: dir, Speed: uint8(speed)}
	switch dir {
	case motor.DirectionBrake:
		cmd = motor.Brake()
	case motor.DirectionStop:
		cmd = motor.Stop()
	default:
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
	defer cancel()
	if err := m.Drive(ctx, cmd); err != nil {
		return err
	}
	if s.fakeBoard != nil {
		return nil
	}
	return holdDrive(ctx, s.controller, logger)
}

// holdDrive keeps the board open until ctx is done, since closing it ends software and sysfs
// PWM. Both motors are then stopped and standby engaged.
func holdDrive(ctx context.Context, controller *tb6612.Controller, logger logging.Logger) error {
	logger.Infow("holding drive command; press Ctrl-C to stop")
	<-ctx.Done()
	shutdownCtx := context.Background()
	return multierr.Combine(controller.Stop(shutdownCtx), controller.EnableStandby(shutdownCtx))
}

func standbyAction(c *cli.Context, s *session) error {
	switch c.Args().First() {
	case "on":
		return s.controller.EnableStandby(c.Context)
	case "off":
		return s.controller.DisableStandby(c.Context)
	default:
		return errors.Errorf("expected on or off, got %q", c.Args().First())
	}
}

func rampAction(c *cli.Context, s *session, stdin io.Reader, logger logging.Logger) error {
	m, err := selectMotor(s, c.String(flagMotor))
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
	defer cancel()

	presses := make(chan struct{})
	// The reader may stay blocked in Scan after ramp returns; the process exits right after.
	go func() {
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			select {
			case presses <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return runRamp(ctx, s.controller, m, clock.New(), c.Duration(flagInterval), presses, logger)
}

// runRamp ramps m until ctx is done, treating every value on presses as a button press. Both
// motors are stopped and standby engaged on the way out.
func runRamp(
	ctx context.Context,
	controller *tb6612.Controller,
	m motor.Driver,
	clk clock.Clock,
	interval time.Duration,
	presses <-chan struct{},
	logger logging.Logger,
) (err error) {
	r := ramp.New(m, clk, interval, logger.Sublogger("ramp"))
	defer func() {
		r.Close()
		shutdownCtx := context.Background()
		err = multierr.Combine(err, controller.Stop(shutdownCtx), controller.EnableStandby(shutdownCtx))
	}()

	if err := r.Start(ctx); err != nil {
		return err
	}
	logger.Infow("ramping; press Enter to stop, brake or restart the motor", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-presses:
			if err := r.Press(ctx); err != nil {
				return err
			}
		}
	}
}
