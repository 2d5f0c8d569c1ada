package turret

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hotspot-robotics/turret/control"
	"github.com/hotspot-robotics/turret/encoder"
	"github.com/hotspot-robotics/turret/motor"
	"github.com/hotspot-robotics/turret/servo"
	"github.com/hotspot-robotics/turret/targeting"
	"github.com/hotspot-robotics/turret/thermal"
)

// Config holds every calibration value for one turret. Nothing in the
// control core is hardcoded; matches of different lengths and different
// mechanical builds are configuration changes only.
type Config struct {
	// Task periods for the cooperative scheduler.
	TimingPeriod   time.Duration
	ShootingPeriod time.Duration

	// Match phase durations, in match order.
	StartDelay   time.Duration
	ShootWindow  time.Duration
	StopDelay    time.Duration
	ReturnWindow time.Duration

	// ButtonName is the analog reader wired to the start button;
	// ButtonThreshold is the raw reading treated as pressed.
	ButtonName      string
	ButtonThreshold int

	// FlywheelPin gates the launcher flywheel MOSFET. FlywheelSpinup is the
	// guard between entering the shoot state and pulling the trigger.
	FlywheelPin    string
	FlywheelSpinup time.Duration

	Motor     motor.Config
	Servo     servo.Config
	Encoder   encoder.Config
	Source    thermal.SourceConfig
	Targeting targeting.Config

	// TravelPID drives coarse moves (pre-rotation, return); AimPID takes
	// over once a target estimate is in hand.
	TravelPID control.PIDConfig
	AimPID    control.PIDConfig

	// CountsPer180 maps turret geometry to encoder counts.
	// PreRotateCounts is the fixed pre-rotation commanded at match start.
	CountsPer180    int64
	PreRotateCounts int64

	// Stay-within-range bands and how long the position must hold inside
	// them before the move is declared done.
	PreRotateTolerance int64
	PreRotateSettle    time.Duration
	AimTolerance       int64
	AimSettle          time.Duration
	ReturnTolerance    int64
	ReturnSettle       time.Duration

	// MaxFrameAge bounds how stale a thermal frame may be and still steer
	// the aim.
	MaxFrameAge time.Duration

	// FirePulse is how long the trigger is held. Refires is the number of
	// additional shots taken while the shoot window is still open.
	FirePulse time.Duration
	Refires   int
}

// DefaultConfig mirrors the reference build: 55° FOV camera, 80000 counts
// per 180° of yaw, 5/10/1/3 second match phases.
func DefaultConfig() Config {
	return Config{
		TimingPeriod:   20 * time.Millisecond,
		ShootingPeriod: 7 * time.Millisecond,

		StartDelay:   5 * time.Second,
		ShootWindow:  10 * time.Second,
		StopDelay:    time.Second,
		ReturnWindow: 3 * time.Second,

		ButtonName:      "start",
		ButtonThreshold: 2482, // ~2V on a 3.3V 12-bit ADC

		FlywheelPin:    "flywheel",
		FlywheelSpinup: 500 * time.Millisecond,

		Motor: motor.Config{
			In1Pin:    "motor_in1",
			In2Pin:    "motor_in2",
			EnablePin: "motor_en",
			PWMFreq:   1000,
			MaxDuty:   100,
		},
		Servo: servo.Config{
			Pin:     "trigger",
			MinDeg:  0,
			MaxDeg:  270,
			FireDeg: 45,
			RestDeg: 80,
			PWMFreq: 50,
		},
		Encoder: encoder.Config{
			CounterName:       "yaw",
			CountsPerRev:      160000,
			MaxDeltaPerSample: 4000,
		},
		Source:    thermal.SourceConfig{Interval: 100 * time.Millisecond},
		Targeting: targeting.Config{ThresholdCelsius: 30, FOVDegrees: 55, Window: 2},

		TravelPID: control.PIDConfig{Kp: 0.25, IntegralLimit: 400, OutputLimit: 100},
		AimPID:    control.PIDConfig{Kp: 0.2, IntegralLimit: 400, OutputLimit: 100},

		CountsPer180:    80000,
		PreRotateCounts: 80000,

		PreRotateTolerance: 1000,
		PreRotateSettle:    time.Second,
		AimTolerance:       2000,
		AimSettle:          100 * time.Millisecond,
		ReturnTolerance:    2500,
		ReturnSettle:       time.Second,

		MaxFrameAge: time.Second,

		FirePulse: 200 * time.Millisecond,
		Refires:   0,
	}
}

// Validate ensures all parts of the config are valid. A config fault here is
// fatal at initialization; the scheduler never starts on bad calibration.
func (c *Config) Validate() error {
	if c.TimingPeriod <= 0 || c.ShootingPeriod <= 0 {
		return errors.New("task periods must be positive")
	}
	for _, d := range []time.Duration{c.StartDelay, c.ShootWindow, c.StopDelay, c.ReturnWindow} {
		if d <= 0 {
			return errors.New("match phase durations must be positive")
		}
	}
	if c.ButtonName == "" {
		return errors.New("expected nonempty button name")
	}
	if c.ButtonThreshold <= 0 {
		return errors.New("button_threshold must be positive")
	}
	if c.FlywheelPin == "" {
		return errors.New("expected nonempty flywheel pin")
	}
	if c.FlywheelSpinup < 0 {
		return errors.New("flywheel_spinup cannot be negative")
	}
	if err := c.Motor.Validate(); err != nil {
		return errors.Wrap(err, "motor")
	}
	if err := c.Servo.Validate(); err != nil {
		return errors.Wrap(err, "servo")
	}
	if err := c.Encoder.Validate(); err != nil {
		return errors.Wrap(err, "encoder")
	}
	if err := c.Source.Validate(); err != nil {
		return errors.Wrap(err, "thermal source")
	}
	if err := c.Targeting.Validate(); err != nil {
		return errors.Wrap(err, "targeting")
	}
	if err := c.TravelPID.Validate(); err != nil {
		return errors.Wrap(err, "travel pid")
	}
	if err := c.AimPID.Validate(); err != nil {
		return errors.Wrap(err, "aim pid")
	}
	if c.CountsPer180 <= 0 {
		return errors.New("counts_per_180 must be positive")
	}
	if c.PreRotateTolerance <= 0 || c.AimTolerance <= 0 || c.ReturnTolerance <= 0 {
		return errors.New("position tolerances must be positive")
	}
	if c.PreRotateSettle < 0 || c.AimSettle < 0 || c.ReturnSettle < 0 {
		return errors.New("settle times cannot be negative")
	}
	if c.MaxFrameAge <= 0 {
		return errors.New("max_frame_age must be positive")
	}
	if c.FirePulse <= 0 {
		return errors.New("fire_pulse must be positive")
	}
	if c.Refires < 0 {
		return errors.New("refires cannot be negative")
	}
	return nil
}
