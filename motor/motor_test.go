package motor

import (
	"context"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/hotspot-robotics/turret/board"
)

var testCfg = Config{
	In1Pin:    "in1",
	In2Pin:    "in2",
	EnablePin: "en",
	PWMFreq:   1000,
	MaxDuty:   100,
}

func TestMotorValidate(t *testing.T) {
	cfg := testCfg
	cfg.In1Pin = ""
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)

	cfg = testCfg
	cfg.EnablePin = ""
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)

	cfg = testCfg
	cfg.MaxDuty = 101
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)

	cfg = testCfg
	cfg.PWMFreq = 0
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)

	cfg = testCfg
	test.That(t, cfg.Validate(), test.ShouldBeNil)
}

func TestMotorSetup(t *testing.T) {
	ctx := context.Background()
	b := board.NewFakeBoard()
	_, err := New(ctx, b, testCfg, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, b.PWMFreq["in1"], test.ShouldEqual, 1000)
	test.That(t, b.PWMFreq["in2"], test.ShouldEqual, 1000)
	test.That(t, b.PWMGet("in1"), test.ShouldEqual, 0)
	test.That(t, b.PWMGet("in2"), test.ShouldEqual, 0)
}

func TestMotorDirection(t *testing.T) {
	ctx := context.Background()
	b := board.NewFakeBoard()
	m, err := New(ctx, b, testCfg, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, m.SetDuty(ctx, 42), test.ShouldBeNil)
	test.That(t, b.PWMGet("in1"), test.ShouldEqual, 42)
	test.That(t, b.PWMGet("in2"), test.ShouldEqual, 0)
	test.That(t, m.Duty(), test.ShouldEqual, 42)

	test.That(t, m.SetDuty(ctx, -17), test.ShouldBeNil)
	test.That(t, b.PWMGet("in1"), test.ShouldEqual, 0)
	test.That(t, b.PWMGet("in2"), test.ShouldEqual, 17)
	test.That(t, m.Duty(), test.ShouldEqual, -17)
}

func TestMotorClamp(t *testing.T) {
	ctx := context.Background()
	b := board.NewFakeBoard()
	cfg := testCfg
	cfg.MaxDuty = 60
	m, err := New(ctx, b, cfg, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, m.SetDuty(ctx, 250), test.ShouldBeNil)
	test.That(t, b.PWMGet("in1"), test.ShouldEqual, 60)
	test.That(t, m.Duty(), test.ShouldEqual, 60)

	test.That(t, m.SetDuty(ctx, -250), test.ShouldBeNil)
	test.That(t, b.PWMGet("in2"), test.ShouldEqual, 60)
	test.That(t, m.Duty(), test.ShouldEqual, -60)
}

func TestMotorStopAndEnable(t *testing.T) {
	ctx := context.Background()
	b := board.NewFakeBoard()
	m, err := New(ctx, b, testCfg, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, m.SetDuty(ctx, 80), test.ShouldBeNil)
	test.That(t, m.Stop(ctx), test.ShouldBeNil)
	test.That(t, b.PWMGet("in1"), test.ShouldEqual, 0)
	test.That(t, b.PWMGet("in2"), test.ShouldEqual, 0)
	test.That(t, m.Duty(), test.ShouldEqual, 0)

	test.That(t, m.Enable(ctx), test.ShouldBeNil)
	test.That(t, b.GPIOGet("en"), test.ShouldBeTrue)
	test.That(t, m.Disable(ctx), test.ShouldBeNil)
	test.That(t, b.GPIOGet("en"), test.ShouldBeFalse)
}
