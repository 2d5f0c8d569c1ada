// Package encoder accumulates a quadrature capture register into an
// unbounded signed position count.
package encoder

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/hotspot-robotics/turret/board"
)

// ErrImplausibleJump reports two consecutive raw reads further apart than the
// configured per-sample travel bound, after wrap correction. The accumulated
// position is held; the caller decides whether to freeze motor output.
var ErrImplausibleJump = errors.New("encoder: implausible position jump")

// Config describes an encoder attached to a board counter.
type Config struct {
	// CounterName is the board counter fed by the quadrature pair.
	CounterName string
	// CountsPerRev is the number of counts per output-shaft revolution.
	CountsPerRev int64
	// MaxDeltaPerSample bounds plausible travel between two reads. Zero
	// disables the check.
	MaxDeltaPerSample int64
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate() error {
	if c.CounterName == "" {
		return errors.New("expected nonempty counter name")
	}
	if c.CountsPerRev <= 0 {
		return errors.New("counts_per_rev must be positive")
	}
	if c.MaxDeltaPerSample < 0 {
		return errors.New("max_delta_per_sample cannot be negative")
	}
	return nil
}

// A Sample is one accumulated position reading.
type Sample struct {
	Position   int64
	CapturedAt time.Time
}

// An Encoder tracks total travel across counter wraps. It is owned by the
// shooting task and is not safe for concurrent use.
type Encoder struct {
	counter board.Counter
	cfg     Config
	clock   clock.Clock
	logger  golog.Logger

	prevRaw int64
	total   int64
}

// New returns an encoder reading the named counter on the given board.
func New(b board.Board, cfg Config, logger golog.Logger) (*Encoder, error) {
	return newWithClock(b, cfg, clock.New(), logger)
}

func newWithClock(b board.Board, cfg Config, c clock.Clock, logger golog.Logger) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid encoder config")
	}
	counter, ok := b.CounterByName(cfg.CounterName)
	if !ok {
		return nil, errors.Errorf("cannot find counter (%s) for encoder", cfg.CounterName)
	}
	return &Encoder{counter: counter, cfg: cfg, clock: c, logger: logger}, nil
}

// Position returns the latest accumulated position. It never blocks. A raw
// delta past half the counter range is folded by a full wrap; a folded delta
// past MaxDeltaPerSample returns the held position with ErrImplausibleJump.
func (e *Encoder) Position(ctx context.Context) (Sample, error) {
	raw, err := e.counter.Count(ctx)
	if err != nil {
		return Sample{Position: e.total, CapturedAt: e.clock.Now()}, errors.Wrap(err, "counter read failed")
	}
	period := e.counter.Period()

	delta := raw - e.prevRaw
	if delta <= -period/2 {
		delta += period
	} else if delta >= period/2 {
		delta -= period
	}

	if e.cfg.MaxDeltaPerSample > 0 && (delta > e.cfg.MaxDeltaPerSample || delta < -e.cfg.MaxDeltaPerSample) {
		e.logger.Warnw("implausible encoder jump", "raw", raw, "prev_raw", e.prevRaw, "delta", delta)
		return Sample{Position: e.total, CapturedAt: e.clock.Now()}, ErrImplausibleJump
	}

	e.prevRaw = raw
	e.total += delta
	return Sample{Position: e.total, CapturedAt: e.clock.Now()}, nil
}

// Zero resets the accumulated position to zero at the current shaft position.
func (e *Encoder) Zero(ctx context.Context) error {
	raw, err := e.counter.Count(ctx)
	if err != nil {
		return errors.Wrap(err, "counter read failed")
	}
	e.prevRaw = raw
	e.total = 0
	return nil
}

// Degrees converts a sample to output-shaft degrees.
func (e *Encoder) Degrees(s Sample) float64 {
	return float64(s.Position) * 360.0 / float64(e.cfg.CountsPerRev)
}
