// Package turret is the concurrent control core of an autonomous
// heat-seeking turret: a timing task sequencing the match phases and a
// shooting task that aims a PID position loop at the thermal hotspot and
// fires, both run by a single-threaded cooperative scheduler.
package turret

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/hotspot-robotics/turret/board"
	"github.com/hotspot-robotics/turret/control"
	"github.com/hotspot-robotics/turret/encoder"
	"github.com/hotspot-robotics/turret/motor"
	"github.com/hotspot-robotics/turret/servo"
	"github.com/hotspot-robotics/turret/targeting"
	"github.com/hotspot-robotics/turret/thermal"
)

// A Turret owns both tasks and their scheduler. All mutable state is
// confined to the scheduler goroutine; the only value crossing the task
// boundary is the phase flag, written by the timing task and read by the
// shooting task strictly afterward within the same pass.
type Turret struct {
	cfg    Config
	clock  clock.Clock
	logger golog.Logger

	board    board.Board
	motor    *motor.Motor
	servo    *servo.Servo
	source   *thermal.Source
	timing   *timingTask
	shooting *shootingTask

	nextTiming   time.Time
	nextShooting time.Time
}

// New builds a turret from a board and a thermal capturer. Configuration
// faults are fatal here, before any task runs.
func New(ctx context.Context, b board.Board, capturer thermal.FrameCapturer, cfg Config, logger golog.Logger) (*Turret, error) {
	return newWithClock(ctx, b, capturer, cfg, clock.New(), logger)
}

func newWithClock(
	ctx context.Context,
	b board.Board,
	capturer thermal.FrameCapturer,
	cfg Config,
	c clock.Clock,
	logger golog.Logger,
) (*Turret, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid turret config")
	}

	m, err := motor.New(ctx, b, cfg.Motor, logger)
	if err != nil {
		return nil, err
	}
	s, err := servo.New(ctx, b, cfg.Servo, logger)
	if err != nil {
		return nil, err
	}
	e, err := encoder.New(b, cfg.Encoder, logger)
	if err != nil {
		return nil, err
	}
	src, err := thermal.NewSourceWithClock(capturer, cfg.Source, c, logger)
	if err != nil {
		return nil, err
	}
	x, err := targeting.NewExtractor(cfg.Targeting)
	if err != nil {
		return nil, err
	}
	pid, err := control.NewPID(cfg.TravelPID)
	if err != nil {
		return nil, err
	}

	t := &Turret{
		cfg:    cfg,
		clock:  c,
		logger: logger,
		board:  b,
		motor:  m,
		servo:  s,
		source: src,
	}
	t.timing, err = newTimingTask(b, &t.cfg, logger.Named("timing"))
	if err != nil {
		return nil, err
	}
	t.shooting = newShootingTask(b, m, s, e, src, x, pid, t.timing.Phase, &t.cfg, logger.Named("shooting"))
	return t, nil
}

// Phase returns the current match phase.
func (t *Turret) Phase() Phase {
	return t.timing.Phase()
}

// Step runs one scheduler pass: each task whose period has elapsed runs to
// completion, the timing task strictly before the shooting task so the phase
// flags a shooting tick reads are always current. It returns how long until
// the next task is due.
func (t *Turret) Step(ctx context.Context) time.Duration {
	now := t.clock.Now()
	if t.nextTiming.IsZero() {
		t.nextTiming = now
		t.nextShooting = now
	}
	if !now.Before(t.nextTiming) {
		t.timing.tick(ctx, now)
		t.nextTiming = now.Add(t.cfg.TimingPeriod)
	}
	if !now.Before(t.nextShooting) {
		t.shooting.tick(ctx, now)
		t.nextShooting = now.Add(t.cfg.ShootingPeriod)
	}
	next := t.nextTiming
	if t.nextShooting.Before(next) {
		next = t.nextShooting
	}
	return next.Sub(now)
}

// Run starts frame capture and loops the scheduler until the context is
// canceled.
func (t *Turret) Run(ctx context.Context) error {
	t.source.Start()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait := t.Step(ctx)
		if wait <= 0 {
			continue
		}
		timer := t.clock.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Close stops capture and leaves every actuator in its passive state.
func (t *Turret) Close(ctx context.Context) error {
	return multierr.Combine(
		t.source.Close(),
		t.motor.Stop(ctx),
		t.motor.Disable(ctx),
		t.board.GPIOSet(ctx, t.cfg.FlywheelPin, false),
	)
}
