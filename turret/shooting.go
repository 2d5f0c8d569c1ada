package turret

import (
	"context"
	"time"

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

type shootingState int

const (
	shootingInit shootingState = iota
	shootingWaitForStart
	shootingLocate
	shootingTarget
	shootingShoot
	shootingStop
	shootingReturn
)

func (s shootingState) String() string {
	switch s {
	case shootingInit:
		return "init"
	case shootingWaitForStart:
		return "wait_for_start"
	case shootingLocate:
		return "locate"
	case shootingTarget:
		return "target"
	case shootingShoot:
		return "shoot"
	case shootingStop:
		return "stop"
	case shootingReturn:
		return "return"
	default:
		return "unknown"
	}
}

// shootingTask owns the aim-fire-reset sequence. Locate and Target are
// effectively one fused aim step: Target re-runs the extraction every tick
// while driving the position loop, until the stay-within-range condition and
// the shoot phase line up.
type shootingTask struct {
	cfg       *Config
	board     board.Board
	motor     *motor.Motor
	servo     *servo.Servo
	encoder   *encoder.Encoder
	source    *thermal.Source
	extractor *targeting.Extractor
	pid       *control.PID
	phaseFn   func() Phase
	logger    golog.Logger

	state     shootingState
	enteredAt time.Time
	lastTick  time.Time
	hasLast   bool

	target       int64
	haveEstimate bool
	shotsLeft    int
	fired        bool
	firedAt      time.Time

	settling    bool
	settleStart time.Time
}

func newShootingTask(
	b board.Board,
	m *motor.Motor,
	s *servo.Servo,
	e *encoder.Encoder,
	src *thermal.Source,
	x *targeting.Extractor,
	pid *control.PID,
	phaseFn func() Phase,
	cfg *Config,
	logger golog.Logger,
) *shootingTask {
	return &shootingTask{
		cfg:       cfg,
		board:     b,
		motor:     m,
		servo:     s,
		encoder:   e,
		source:    src,
		extractor: x,
		pid:       pid,
		phaseFn:   phaseFn,
		logger:    logger,
	}
}

// tick runs one pass of the shooting state machine. Transitions happen only
// here, at tick boundaries; entry actions run exactly once per transition.
func (t *shootingTask) tick(ctx context.Context, now time.Time) {
	dt := t.cfg.ShootingPeriod
	if t.hasLast {
		// Fall back to measured elapsed time if the scheduler slipped.
		if measured := now.Sub(t.lastTick); measured > 2*t.cfg.ShootingPeriod {
			dt = measured
		}
	}
	t.lastTick = now
	t.hasLast = true

	phase := t.phaseFn()

	switch t.state {
	case shootingInit:
		if err := multierr.Combine(
			t.motor.Enable(ctx),
			t.setFlywheel(ctx, false),
			t.servo.Rest(ctx),
		); err != nil {
			t.fault(ctx, now, "actuator setup failed", err)
			return
		}
		t.enterChecked(ctx, shootingWaitForStart, now)

	case shootingWaitForStart:
		if phase == PhaseStarting || phase == PhaseShooting {
			t.enterChecked(ctx, shootingLocate, now)
		}

	case shootingLocate:
		if phase == PhaseStopped || phase == PhaseReturning {
			t.enterChecked(ctx, shootingStop, now)
			return
		}
		t.locate(now)
		t.enterChecked(ctx, shootingTarget, now)

	case shootingTarget:
		if phase == PhaseStopped || phase == PhaseReturning {
			t.enterChecked(ctx, shootingStop, now)
			return
		}
		t.locate(now)
		tol, settle := t.cfg.PreRotateTolerance, t.cfg.PreRotateSettle
		if t.haveEstimate {
			tol, settle = t.cfg.AimTolerance, t.cfg.AimSettle
		}
		arrived, err := t.aimStep(ctx, now, dt, tol, settle)
		if err != nil {
			t.fault(ctx, now, "aim actuation failed", err)
			return
		}
		if !arrived {
			return
		}
		if err := t.motor.SetDuty(ctx, 0); err != nil {
			t.fault(ctx, now, "motor stop failed", err)
			return
		}
		if phase == PhaseShooting {
			t.enterChecked(ctx, shootingShoot, now)
		}

	case shootingShoot:
		if phase == PhaseStopped || phase == PhaseReturning {
			t.enterChecked(ctx, shootingStop, now)
			return
		}
		if !t.fired {
			if t.shotsLeft > 0 && now.Sub(t.enteredAt) >= t.cfg.FlywheelSpinup {
				if err := t.servo.Fire(ctx); err != nil {
					t.fault(ctx, now, "trigger pull failed", err)
					return
				}
				t.fired = true
				t.firedAt = now
				t.shotsLeft--
				t.logger.Infow("fired", "shots_left", t.shotsLeft)
			}
			return
		}
		if now.Sub(t.firedAt) >= t.cfg.FirePulse {
			if err := t.servo.Rest(ctx); err != nil {
				t.fault(ctx, now, "trigger release failed", err)
				return
			}
			t.fired = false
			if t.shotsLeft > 0 && phase == PhaseShooting {
				t.enterChecked(ctx, shootingLocate, now)
				return
			}
			if err := t.setFlywheel(ctx, false); err != nil {
				t.fault(ctx, now, "flywheel disable failed", err)
			}
		}

	case shootingStop:
		if phase == PhaseReturning || now.Sub(t.enteredAt) >= t.cfg.StopDelay {
			t.enterChecked(ctx, shootingReturn, now)
		}

	case shootingReturn:
		arrived, err := t.aimStep(ctx, now, dt, t.cfg.ReturnTolerance, t.cfg.ReturnSettle)
		if err != nil {
			t.fault(ctx, now, "return actuation failed", err)
			return
		}
		if arrived || phase == PhaseWaitForInput {
			if err := t.motor.Stop(ctx); err != nil {
				t.logger.Warnw("motor stop failed", "error", err)
			}
			t.enterChecked(ctx, shootingWaitForStart, now)
		}
	}
}

// enter transitions to s and runs its entry action once.
func (t *shootingTask) enter(ctx context.Context, s shootingState, now time.Time) error {
	t.state = s
	t.enteredAt = now
	t.settling = false
	t.logger.Debugw("shooting state change", "state", s.String())

	switch s {
	case shootingWaitForStart:
		// Command the fixed pre-rotation; driving begins once the match
		// starts and the aim loop takes over.
		t.pid.Reset()
		t.pid.SetGains(t.cfg.TravelPID.Kp, t.cfg.TravelPID.Ki, t.cfg.TravelPID.Kd)
		t.target = t.cfg.PreRotateCounts
		t.haveEstimate = false
		t.extractor.Reset()
		t.shotsLeft = 1 + t.cfg.Refires
		t.fired = false
	case shootingLocate:
		return t.setFlywheel(ctx, true)
	case shootingShoot:
		t.fired = false
	case shootingStop:
		t.safeStop(ctx)
	case shootingReturn:
		t.pid.Reset()
		t.pid.SetGains(t.cfg.TravelPID.Kp, t.cfg.TravelPID.Ki, t.cfg.TravelPID.Kd)
		t.target = 0
	}
	return nil
}

func (t *shootingTask) enterChecked(ctx context.Context, s shootingState, now time.Time) {
	if err := t.enter(ctx, s, now); err != nil {
		t.fault(ctx, now, "state entry failed", err)
	}
}

// locate pulls the latest thermal frame and, if it yields a confident
// estimate, retargets the position loop. A missing, stale, or empty frame
// leaves the previous target in place.
func (t *shootingTask) locate(now time.Time) {
	frame, ok := t.source.LatestFrame()
	if !ok {
		return
	}
	if frame.AgeAt(now) > t.cfg.MaxFrameAge {
		return
	}
	est := t.extractor.Extract(frame)
	if !est.Confident {
		return
	}
	t.target = t.cfg.PreRotateCounts + t.countsForOffset(est.AngleOffset)
	if !t.haveEstimate {
		t.haveEstimate = true
		t.pid.SetGains(t.cfg.AimPID.Kp, t.cfg.AimPID.Ki, t.cfg.AimPID.Kd)
	}
}

// aimStep runs one position-loop iteration toward the current target and
// reports whether the position has held inside the tolerance band for the
// settle duration. Encoder faults freeze the motor output for the tick
// rather than acting on a corrupt reading.
func (t *shootingTask) aimStep(ctx context.Context, now time.Time, dt time.Duration, tol int64, settle time.Duration) (bool, error) {
	sample, err := t.encoder.Position(ctx)
	if err != nil {
		if errors.Is(err, encoder.ErrImplausibleJump) {
			t.logger.Warnw("encoder fault, holding last command", "error", err)
		} else {
			t.logger.Warnw("encoder read failed", "error", err)
		}
		return false, nil
	}

	duty := t.pid.Update(float64(t.target), float64(sample.Position), dt)
	if err := t.motor.SetDuty(ctx, duty); err != nil {
		return false, err
	}

	diff := sample.Position - t.target
	if diff < 0 {
		diff = -diff
	}
	if diff > tol {
		t.settling = false
		return false, nil
	}
	if !t.settling {
		t.settling = true
		t.settleStart = now
		return false, nil
	}
	if now.Sub(t.settleStart) >= settle {
		t.settling = false
		return true, nil
	}
	return false, nil
}

func (t *shootingTask) countsForOffset(deg float64) int64 {
	return int64(deg * float64(t.cfg.CountsPer180) / 180.0)
}

func (t *shootingTask) setFlywheel(ctx context.Context, on bool) error {
	return t.board.GPIOSet(ctx, t.cfg.FlywheelPin, on)
}

// fault is the actuator failure path: report, then force the safe stop
// state. Sensor failures never come here; they degrade in place.
func (t *shootingTask) fault(ctx context.Context, now time.Time, msg string, err error) {
	t.logger.Errorw(msg, "error", err, "state", t.state.String())
	t.state = shootingStop
	t.enteredAt = now
	t.settling = false
	t.safeStop(ctx)
}

// safeStop drives every actuator to its passive setting, best effort.
func (t *shootingTask) safeStop(ctx context.Context) {
	if err := multierr.Combine(
		t.motor.Stop(ctx),
		t.setFlywheel(ctx, false),
		t.servo.Rest(ctx),
	); err != nil {
		t.logger.Errorw("safe stop encountered errors", "error", err)
	}
}
