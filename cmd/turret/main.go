// Command turret runs the turret control core, either against real hardware
// via periph.io or against a simulated plant for bench work.
package main

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/hotspot-robotics/turret/board"
	"github.com/hotspot-robotics/turret/board/periphboard"
	"github.com/hotspot-robotics/turret/thermal"
	"github.com/hotspot-robotics/turret/turret"
)

var logger = golog.NewDevelopmentLogger("turret")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Hardware bool   `flag:"hardware,usage=drive real gpio hardware instead of the simulated plant"`
	I2CBus   string `flag:"i2c-bus,usage=i2c bus of the thermal camera (hardware mode)"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg := turret.DefaultConfig()
	if argsParsed.Hardware {
		return runHardware(ctx, cfg, argsParsed.I2CBus, logger)
	}
	return runSimulated(ctx, cfg, logger)
}

func runHardware(ctx context.Context, cfg turret.Config, i2cBus string, logger golog.Logger) error {
	b, err := periphboard.New(periphboard.Config{
		Pins: map[string]string{
			cfg.Motor.In1Pin:    "GPIO17",
			cfg.Motor.In2Pin:    "GPIO27",
			cfg.Motor.EnablePin: "GPIO22",
			cfg.Servo.Pin:       "GPIO12",
			cfg.FlywheelPin:     "GPIO23",
		},
		Buttons: map[string]string{
			cfg.ButtonName: "GPIO24",
		},
		Encoders: map[string]periphboard.EncoderPins{
			cfg.Encoder.CounterName: {A: "GPIO5", B: "GPIO6"},
		},
		I2CBus: i2cBus,
	}, logger)
	if err != nil {
		return err
	}

	bus, ok := b.I2C()
	if !ok {
		return multierr.Combine(
			errors.New("thermal camera bus unavailable"),
			b.Close(),
		)
	}
	capturer := thermal.NewAMG88xx(bus)

	t, err := turret.New(ctx, b, capturer, cfg, logger)
	if err != nil {
		return multierr.Combine(err, b.Close())
	}
	defer func() {
		if err := multierr.Combine(t.Close(ctx), b.Close()); err != nil {
			logger.Errorw("shutdown errors", "error", err)
		}
	}()

	err = t.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runSimulated drives the control core against a fake board: a crude plant
// integrates the commanded motor duty into the yaw counter, a synthetic
// hotspot sits right of center, and the start button is pressed after a
// second.
func runSimulated(ctx context.Context, cfg turret.Config, logger golog.Logger) error {
	b := board.NewFakeBoard()
	button := &board.FakeAnalog{}
	counter := &board.FakeCounter{PeriodVal: 1 << 32}
	b.Analogs[cfg.ButtonName] = button
	b.Counters[cfg.Encoder.CounterName] = counter

	capturer := thermal.NewStaticCapturer(8, 8)
	capturer.Fill(21)
	capturer.SetCell(3, 5, 37)
	capturer.SetCell(4, 5, 38)

	t, err := turret.New(ctx, b, capturer, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := t.Close(ctx); err != nil {
			logger.Errorw("shutdown errors", "error", err)
		}
	}()

	simCtx, simCancel := context.WithCancel(ctx)
	defer simCancel()
	var workers sync.WaitGroup
	workers.Add(1)
	utils.ManagedGo(func() { simulatePlant(simCtx, b, button, counter, cfg) }, workers.Done)
	defer workers.Wait()

	err = t.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// simulatePlant integrates net motor duty into counter at a fixed rate and
// presses the start button once, a second in.
func simulatePlant(ctx context.Context, b *board.FakeBoard, button *board.FakeAnalog, counter *board.FakeCounter, cfg turret.Config) {
	const countsPerPctPerTick = 2.0
	start := time.Now()
	pressed := false
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !pressed && time.Since(start) > time.Second {
			button.Set(cfg.ButtonThreshold + 100)
			pressed = true
		}
		duty := b.PWMGet(cfg.Motor.In1Pin) - b.PWMGet(cfg.Motor.In2Pin)
		jitter := rand.Float64()*2 - 1
		counter.Advance(int64(duty*countsPerPctPerTick + jitter))
	}
}
