// Package targeting reduces a thermal frame to a single horizontal aiming
// command: the angular offset of the hottest region from the camera's
// optical axis.
package targeting

import (
	"math"

	"github.com/pkg/errors"

	"github.com/hotspot-robotics/turret/thermal"
)

// Config holds the calibration for hotspot extraction.
type Config struct {
	// ThresholdCelsius is the minimum peak temperature treated as a target.
	ThresholdCelsius float64
	// FOVDegrees is the camera's horizontal field of view.
	FOVDegrees float64
	// Window is how many columns either side of the peak contribute to the
	// centroid. Zero means the peak column alone.
	Window int
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate() error {
	if c.FOVDegrees <= 0 || c.FOVDegrees > 180 {
		return errors.New("fov_degrees must be in (0, 180]")
	}
	if c.Window < 0 {
		return errors.New("window cannot be negative")
	}
	return nil
}

// An Estimate is the reduction of one frame. AngleOffset is in degrees,
// positive toward higher column indices, zero on the optical axis. When no
// cell clears the threshold, Confident is false and AngleOffset is zero.
type Estimate struct {
	AngleOffset float64
	Column      float64
	Confident   bool
}

// An Extractor remembers the previous estimate's column so that ties between
// equal maxima resolve toward it, damping oscillation between frames. It is
// owned by the shooting task and not safe for concurrent use.
type Extractor struct {
	cfg     Config
	prevCol float64
	hasPrev bool
}

// NewExtractor returns an extractor with no previous-estimate memory.
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid targeting config")
	}
	return &Extractor{cfg: cfg}, nil
}

// Extract reduces one frame. The peak temperature cell is found first; if it
// is below the threshold the frame has no target. Otherwise the
// intensity-weighted horizontal centroid over the window around the peak
// column is mapped to an angle via FOV / pixel width.
func (x *Extractor) Extract(frame thermal.Frame) Estimate {
	peakTemp := math.Inf(-1)
	for _, v := range frame.Pixels {
		if v > peakTemp {
			peakTemp = v
		}
	}
	if peakTemp < x.cfg.ThresholdCelsius {
		return Estimate{}
	}

	peakCol := x.pickPeakColumn(frame, peakTemp)

	lo := peakCol - x.cfg.Window
	if lo < 0 {
		lo = 0
	}
	hi := peakCol + x.cfg.Window
	if hi > frame.Width-1 {
		hi = frame.Width - 1
	}

	// Weights are excess temperature over the threshold, floored at zero, so
	// a lone warm pixel next to a hot one barely moves the centroid.
	var weighted, total float64
	for col := lo; col <= hi; col++ {
		for row := 0; row < frame.Height; row++ {
			w := frame.At(row, col) - x.cfg.ThresholdCelsius
			if w <= 0 {
				continue
			}
			weighted += w * float64(col)
			total += w
		}
	}
	centroid := float64(peakCol)
	if total > 0 {
		centroid = weighted / total
	}

	center := float64(frame.Width-1) / 2
	angle := (centroid - center) * x.cfg.FOVDegrees / float64(frame.Width)

	x.prevCol = centroid
	x.hasPrev = true
	return Estimate{AngleOffset: angle, Column: centroid, Confident: true}
}

// pickPeakColumn resolves ties between equal-maximum cells: nearest to the
// previous estimate's column, or leftmost when there is none.
func (x *Extractor) pickPeakColumn(frame thermal.Frame, peakTemp float64) int {
	best := -1
	bestDist := math.Inf(1)
	for col := 0; col < frame.Width; col++ {
		hasPeak := false
		for row := 0; row < frame.Height; row++ {
			if frame.At(row, col) == peakTemp {
				hasPeak = true
				break
			}
		}
		if !hasPeak {
			continue
		}
		if !x.hasPrev {
			return col
		}
		if d := math.Abs(float64(col) - x.prevCol); d < bestDist {
			best = col
			bestDist = d
		}
	}
	return best
}

// Reset clears the previous-estimate memory, e.g. between engagements.
func (x *Extractor) Reset() {
	x.prevCol = 0
	x.hasPrev = false
}
