// Package servo implements an open-loop hobby servo on a PWM pin, with
// calibrated fire and rest endpoints for the trigger linkage.
package servo

import (
	"context"
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/hotspot-robotics/turret/board"
)

const (
	// travelDeg is the full mechanical travel the pulse range maps onto.
	travelDeg  = 270.0
	minWidthUs = 500.0
	maxWidthUs = 2500.0
)

// Config describes one servo and its calibrated endpoints.
type Config struct {
	Pin string
	// MinDeg and MaxDeg are the calibrated endpoint limits; move commands
	// are clamped into this range.
	MinDeg float64
	MaxDeg float64
	// FireDeg and RestDeg are the trigger-pulled and trigger-released
	// positions.
	FireDeg float64
	RestDeg float64
	// PWMFreq is the refresh frequency in Hz, typically 50.
	PWMFreq uint
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate() error {
	if c.Pin == "" {
		return errors.New("expected nonempty pin")
	}
	if c.MinDeg < 0 {
		return errors.New("min_deg cannot be lower than 0")
	}
	if c.MaxDeg > travelDeg {
		return errors.Errorf("max_deg cannot be higher than %.0f", travelDeg)
	}
	if c.MinDeg >= c.MaxDeg {
		return errors.New("min_deg must be below max_deg")
	}
	for _, d := range []float64{c.FireDeg, c.RestDeg} {
		if d < c.MinDeg || d > c.MaxDeg {
			return errors.Errorf("endpoint %.1f outside [%.1f, %.1f]", d, c.MinDeg, c.MaxDeg)
		}
	}
	if c.PWMFreq == 0 {
		return errors.New("pwm_freq must be positive")
	}
	return nil
}

// A Servo writes position commands only; the physical servo closes its own
// loop.
type Servo struct {
	board  board.Board
	cfg    Config
	logger golog.Logger

	current float64
}

// New configures the pin and moves the servo to its rest endpoint.
func New(ctx context.Context, b board.Board, cfg Config, logger golog.Logger) (*Servo, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid servo config")
	}
	s := &Servo{board: b, cfg: cfg, logger: logger}
	if err := b.PWMSetFreq(ctx, cfg.Pin, cfg.PWMFreq); err != nil {
		return nil, errors.Wrap(err, "servo pin setup failed")
	}
	if err := s.Rest(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Move commands the given angle in degrees, clamped to the calibrated
// endpoint limits.
func (s *Servo) Move(ctx context.Context, angleDeg float64) error {
	angleDeg = math.Max(math.Min(angleDeg, s.cfg.MaxDeg), s.cfg.MinDeg)

	widthUs := minWidthUs + angleDeg*(maxWidthUs-minWidthUs)/travelDeg
	periodUs := 1e6 / float64(s.cfg.PWMFreq)
	if err := s.board.PWMSet(ctx, s.cfg.Pin, widthUs/periodUs*100); err != nil {
		return errors.Wrap(err, "servo pulse write failed")
	}
	s.current = angleDeg
	return nil
}

// Fire moves to the trigger-pulled endpoint.
func (s *Servo) Fire(ctx context.Context) error {
	return s.Move(ctx, s.cfg.FireDeg)
}

// Rest moves to the trigger-released endpoint.
func (s *Servo) Rest(ctx context.Context) error {
	return s.Move(ctx, s.cfg.RestDeg)
}

// Current returns the last commanded angle.
func (s *Servo) Current() float64 {
	return s.current
}
