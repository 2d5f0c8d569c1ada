package turret

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/hotspot-robotics/turret/board"
)

type timingState int

const (
	timingInit timingState = iota
	timingWaitForInput
	timingWaitForStart
	timingWaitForStop
	timingStopped
	timingReturn
)

func (s timingState) String() string {
	switch s {
	case timingInit:
		return "init"
	case timingWaitForInput:
		return "wait_for_input"
	case timingWaitForStart:
		return "wait_for_start"
	case timingWaitForStop:
		return "wait_for_stop"
	case timingStopped:
		return "stopped"
	case timingReturn:
		return "return"
	default:
		return "unknown"
	}
}

// timingTask sequences the match phases. Every timed state exits when the
// time since entry reaches its configured duration; the only external input
// is the start button edge.
type timingTask struct {
	cfg    *Config
	button board.AnalogReader
	logger golog.Logger

	state       timingState
	enteredAt   time.Time
	phase       Phase
	prevPressed bool
}

func newTimingTask(b board.Board, cfg *Config, logger golog.Logger) (*timingTask, error) {
	button, ok := b.AnalogReaderByName(cfg.ButtonName)
	if !ok {
		return nil, errors.Errorf("cannot find analog reader (%s) for start button", cfg.ButtonName)
	}
	return &timingTask{cfg: cfg, button: button, logger: logger}, nil
}

// Phase returns the currently published match phase.
func (t *timingTask) Phase() Phase {
	return t.phase
}

func (t *timingTask) enter(s timingState, phase Phase, now time.Time) {
	t.state = s
	t.phase = phase
	t.enteredAt = now
	t.logger.Debugw("timing state change", "state", s.String(), "phase", phase.String())
}

// tick runs one pass of the timing state machine. It runs to completion and
// never blocks.
func (t *timingTask) tick(ctx context.Context, now time.Time) {
	switch t.state {
	case timingInit:
		t.prevPressed = false
		t.enter(timingWaitForInput, PhaseWaitForInput, now)
	case timingWaitForInput:
		pressed, err := t.pressed(ctx)
		if err != nil {
			// Transient read fault; stay put and try again next tick.
			t.logger.Debugw("start button read failed", "error", err)
			return
		}
		if pressed && !t.prevPressed {
			t.enter(timingWaitForStart, PhaseStarting, now)
		}
		t.prevPressed = pressed
	case timingWaitForStart:
		if now.Sub(t.enteredAt) >= t.cfg.StartDelay {
			t.enter(timingWaitForStop, PhaseShooting, now)
		}
	case timingWaitForStop:
		if now.Sub(t.enteredAt) >= t.cfg.ShootWindow {
			t.enter(timingStopped, PhaseStopped, now)
		}
	case timingStopped:
		if now.Sub(t.enteredAt) >= t.cfg.StopDelay {
			t.enter(timingReturn, PhaseReturning, now)
		}
	case timingReturn:
		if now.Sub(t.enteredAt) >= t.cfg.ReturnWindow {
			t.enter(timingWaitForInput, PhaseWaitForInput, now)
		}
	}
}

func (t *timingTask) pressed(ctx context.Context) (bool, error) {
	v, err := t.button.Read(ctx)
	if err != nil {
		return false, err
	}
	return v >= t.cfg.ButtonThreshold, nil
}
