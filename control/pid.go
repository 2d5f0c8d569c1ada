// Package control implements the discrete position controller closing the
// loop between a target encoder position and the motor duty command.
package control

import (
	"time"

	"github.com/pkg/errors"
)

// PIDConfig holds gains and saturation bounds for one controller.
type PIDConfig struct {
	Kp float64
	Ki float64
	Kd float64
	// IntegralLimit clamps the integral accumulator (in error·seconds).
	IntegralLimit float64
	// OutputLimit clamps the returned command magnitude; it must match the
	// actuator's accepted range.
	OutputLimit float64
}

// Validate ensures all parts of the config are valid.
func (c *PIDConfig) Validate() error {
	if c.Kp == 0 && c.Ki == 0 && c.Kd == 0 {
		return errors.New("pid config should have at least one of Kp, Ki, Kd")
	}
	if c.Kp < 0 || c.Ki < 0 || c.Kd < 0 {
		return errors.New("gains cannot be negative")
	}
	if c.OutputLimit <= 0 {
		return errors.New("output_limit must be positive")
	}
	if c.IntegralLimit < 0 {
		return errors.New("integral_limit cannot be negative")
	}
	return nil
}

// A PID is a standard discrete PID controller with two anti-windup measures:
// the integral accumulator is clamped to IntegralLimit, and accumulation is
// frozen while the raw output already saturates in the error's direction.
type PID struct {
	cfg PIDConfig

	integral float64
	prevErr  float64
	hasPrev  bool
	sat      int
}

// NewPID returns a controller in its reset state.
func NewPID(cfg PIDConfig) (*PID, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid pid config")
	}
	return &PID{cfg: cfg}, nil
}

// SetGains replaces the gains, e.g. when switching between travel and fine
// aiming. Saturation bounds are unchanged.
func (p *PID) SetGains(kp, ki, kd float64) {
	p.cfg.Kp, p.cfg.Ki, p.cfg.Kd = kp, ki, kd
}

// Update runs one controller step and returns the duty command, clamped to
// ±OutputLimit. dt is the tick period; callers pass the nominal period and
// fall back to measured elapsed time under jitter.
func (p *PID) Update(target, current float64, dt time.Duration) float64 {
	dtS := dt.Seconds()
	err := target - current

	// Saturation freeze: while the last raw output exceeded the actuator
	// range in the error's direction, integrating further only winds up.
	if dtS > 0 && !((p.sat > 0 && err > 0) || (p.sat < 0 && err < 0)) {
		p.integral += err * dtS
		if p.cfg.IntegralLimit > 0 {
			if p.integral > p.cfg.IntegralLimit {
				p.integral = p.cfg.IntegralLimit
			} else if p.integral < -p.cfg.IntegralLimit {
				p.integral = -p.cfg.IntegralLimit
			}
		}
	}

	var deriv float64
	if p.hasPrev && dtS > 0 {
		deriv = (err - p.prevErr) / dtS
	}
	p.prevErr = err
	p.hasPrev = true

	output := p.cfg.Kp*err + p.cfg.Ki*p.integral + p.cfg.Kd*deriv
	switch {
	case output > p.cfg.OutputLimit:
		p.sat = 1
		output = p.cfg.OutputLimit
	case output < -p.cfg.OutputLimit:
		p.sat = -1
		output = -p.cfg.OutputLimit
	default:
		p.sat = 0
	}
	return output
}

// Reset zeroes the integral accumulator and derivative history. It must be
// called on every transition into an active-control state so a prior
// engagement's windup never carries over.
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.hasPrev = false
	p.sat = 0
}

// Integral exposes the accumulator for inspection.
func (p *PID) Integral() float64 {
	return p.integral
}
