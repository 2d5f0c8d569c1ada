// Package motor drives a brushed DC motor through an h-bridge with two PWM
// input pins and an enable line.
package motor

import (
	"context"
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/hotspot-robotics/turret/board"
)

// Config describes the h-bridge wiring for one motor.
type Config struct {
	// In1Pin and In2Pin are the bridge input pins; the sign of the duty
	// command selects which one carries the PWM.
	In1Pin string
	In2Pin string
	// EnablePin gates the bridge output stage.
	EnablePin string
	// PWMFreq is the carrier frequency in Hz.
	PWMFreq uint
	// MaxDuty caps the commanded duty magnitude in percent, at most 100.
	MaxDuty float64
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate() error {
	if c.In1Pin == "" || c.In2Pin == "" {
		return errors.New("expected nonempty in1 and in2 pins")
	}
	if c.EnablePin == "" {
		return errors.New("expected nonempty enable pin")
	}
	if c.MaxDuty <= 0 || c.MaxDuty > 100 {
		return errors.New("max_duty must be in (0, 100]")
	}
	if c.PWMFreq == 0 {
		return errors.New("pwm_freq must be positive")
	}
	return nil
}

// A Motor translates signed duty commands into pin writes. Positive duty
// drives IN1, negative drives IN2, and the idle pin is held at zero.
type Motor struct {
	board  board.Board
	cfg    Config
	logger golog.Logger

	lastDuty float64
}

// New configures the bridge pins and returns a stopped motor.
func New(ctx context.Context, b board.Board, cfg Config, logger golog.Logger) (*Motor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid motor config")
	}
	m := &Motor{board: b, cfg: cfg, logger: logger}
	err := multierr.Combine(
		b.PWMSetFreq(ctx, cfg.In1Pin, cfg.PWMFreq),
		b.PWMSetFreq(ctx, cfg.In2Pin, cfg.PWMFreq),
		m.Stop(ctx),
	)
	if err != nil {
		return nil, errors.Wrap(err, "motor pin setup failed")
	}
	return m, nil
}

// SetDuty commands a signed duty cycle in percent. Values outside
// [-MaxDuty, MaxDuty] are clamped, not rejected.
func (m *Motor) SetDuty(ctx context.Context, dutyPct float64) error {
	dutyPct = math.Max(math.Min(dutyPct, m.cfg.MaxDuty), -m.cfg.MaxDuty)

	var err error
	if dutyPct >= 0 {
		err = multierr.Combine(
			m.board.PWMSet(ctx, m.cfg.In2Pin, 0),
			m.board.PWMSet(ctx, m.cfg.In1Pin, dutyPct),
		)
	} else {
		err = multierr.Combine(
			m.board.PWMSet(ctx, m.cfg.In1Pin, 0),
			m.board.PWMSet(ctx, m.cfg.In2Pin, -dutyPct),
		)
	}
	if err != nil {
		return errors.Wrap(err, "motor duty write failed")
	}
	m.lastDuty = dutyPct
	return nil
}

// Duty returns the last commanded duty after clamping.
func (m *Motor) Duty() float64 {
	return m.lastDuty
}

// Stop forces both bridge inputs to zero.
func (m *Motor) Stop(ctx context.Context) error {
	m.lastDuty = 0
	return multierr.Combine(
		m.board.PWMSet(ctx, m.cfg.In1Pin, 0),
		m.board.PWMSet(ctx, m.cfg.In2Pin, 0),
	)
}

// Enable raises the bridge enable line.
func (m *Motor) Enable(ctx context.Context) error {
	return m.board.GPIOSet(ctx, m.cfg.EnablePin, true)
}

// Disable drops the bridge enable line, leaving the motor free to coast.
func (m *Motor) Disable(ctx context.Context) error {
	return m.board.GPIOSet(ctx, m.cfg.EnablePin, false)
}
