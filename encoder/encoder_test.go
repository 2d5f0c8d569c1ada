package encoder

import (
	"context"
	"testing"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/hotspot-robotics/turret/board"
)

func newTestEncoder(t *testing.T, ctr *board.FakeCounter) *Encoder {
	t.Helper()
	b := board.NewFakeBoard()
	b.Counters["yaw"] = ctr
	e, err := New(b, Config{
		CounterName:       "yaw",
		CountsPerRev:      160000,
		MaxDeltaPerSample: 4000,
	}, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return e
}

func TestEncoderValidate(t *testing.T) {
	cfg := Config{CountsPerRev: 100}
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)
	cfg = Config{CounterName: "yaw"}
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)
	cfg = Config{CounterName: "yaw", CountsPerRev: 100, MaxDeltaPerSample: -1}
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)
	cfg = Config{CounterName: "yaw", CountsPerRev: 100}
	test.That(t, cfg.Validate(), test.ShouldBeNil)
}

func TestEncoderMissingCounter(t *testing.T) {
	b := board.NewFakeBoard()
	_, err := New(b, Config{CounterName: "nope", CountsPerRev: 100}, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "nope")
}

func TestEncoderAccumulates(t *testing.T) {
	ctx := context.Background()
	ctr := &board.FakeCounter{}
	e := newTestEncoder(t, ctr)

	s, err := e.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Position, test.ShouldEqual, 0)

	ctr.Set(100)
	s, err = e.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Position, test.ShouldEqual, 100)

	ctr.Advance(-250)
	s, err = e.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Position, test.ShouldEqual, -150)
}

func TestEncoderWraparound(t *testing.T) {
	ctx := context.Background()
	ctr := &board.FakeCounter{}
	e := newTestEncoder(t, ctr)

	// One reverse count from zero wraps the register to period-1; the
	// accumulated position must read -1, not +65535.
	ctr.Set(65535)
	s, err := e.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Position, test.ShouldEqual, -1)

	// And forward across the wrap boundary.
	ctr.Set(5)
	s, err = e.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Position, test.ShouldEqual, 5)
}

func TestEncoderImplausibleJump(t *testing.T) {
	ctx := context.Background()
	ctr := &board.FakeCounter{}
	e := newTestEncoder(t, ctr)

	ctr.Set(500)
	s, err := e.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Position, test.ShouldEqual, 500)

	// A jump past the per-sample bound holds the accumulated position.
	ctr.Set(30000)
	s, err = e.Position(ctx)
	test.That(t, errors.Is(err, ErrImplausibleJump), test.ShouldBeTrue)
	test.That(t, s.Position, test.ShouldEqual, 500)

	// The fault does not advance the reference, so the same raw value still
	// reads as a jump.
	s, err = e.Position(ctx)
	test.That(t, errors.Is(err, ErrImplausibleJump), test.ShouldBeTrue)
	test.That(t, s.Position, test.ShouldEqual, 500)

	// Once the register returns to plausible travel, reads recover.
	ctr.Set(1200)
	s, err = e.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Position, test.ShouldEqual, 1200)
}

func TestEncoderCounterError(t *testing.T) {
	ctx := context.Background()
	ctr := &board.FakeCounter{}
	e := newTestEncoder(t, ctr)

	ctr.Set(300)
	_, err := e.Position(ctx)
	test.That(t, err, test.ShouldBeNil)

	ctr.Err = errors.New("bus fault")
	s, err := e.Position(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, s.Position, test.ShouldEqual, 300)
}

func TestEncoderZeroAndDegrees(t *testing.T) {
	ctx := context.Background()
	ctr := &board.FakeCounter{}
	e := newTestEncoder(t, ctr)

	ctr.Set(2000)
	_, err := e.Position(ctx)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, e.Zero(ctx), test.ShouldBeNil)
	s, err := e.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Position, test.ShouldEqual, 0)

	ctr.Advance(40000)
	s, err = e.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e.Degrees(s), test.ShouldAlmostEqual, 90.0, 1e-9)
}
