// Package thermal publishes complete temperature frames from a
// low-resolution infrared camera. Capture runs on its own cadence,
// independent of and slower than the control tick; consumers only ever see
// whole frames.
package thermal

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// A Frame is one complete temperature grid in °C, row-major. Frames are
// immutable once published; Pixels stays untouched through at least the next
// capture.
type Frame struct {
	Width      int
	Height     int
	Pixels     []float64
	CapturedAt time.Time
}

// At returns the temperature at the given cell.
func (f Frame) At(row, col int) float64 {
	return f.Pixels[row*f.Width+col]
}

// AgeAt returns how stale the frame is relative to now.
func (f Frame) AgeAt(now time.Time) time.Duration {
	return now.Sub(f.CapturedAt)
}

// A FrameCapturer fills a buffer with one complete frame. Implementations
// own the sensor transaction; a failed capture must leave dst unpublished.
type FrameCapturer interface {
	// Dimensions returns the sensor-native grid size.
	Dimensions() (width, height int)
	// CaptureFrame fills dst (width*height values, °C, row-major).
	CaptureFrame(ctx context.Context, dst []float64) error
}

// SourceConfig describes the capture cadence.
type SourceConfig struct {
	// Interval is the time between captures.
	Interval time.Duration
}

// Validate ensures all parts of the config are valid.
func (c *SourceConfig) Validate() error {
	if c.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	return nil
}

// A Source double-buffers captures and publishes the latest complete frame.
// Capture writes into the spare buffer and swaps under the lock, so a frame
// handed out is never torn by an incoming capture.
type Source struct {
	capturer FrameCapturer
	cfg      SourceConfig
	clock    clock.Clock
	logger   golog.Logger

	mu       sync.Mutex
	buffers  [2][]float64
	active   int
	latest   Frame
	hasFrame bool

	width  int
	height int

	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewSource returns a source for the given capturer. No frame is available
// until the first capture completes.
func NewSource(capturer FrameCapturer, cfg SourceConfig, logger golog.Logger) (*Source, error) {
	return NewSourceWithClock(capturer, cfg, clock.New(), logger)
}

// NewSourceWithClock is NewSource with an injected clock, for simulated-time
// callers.
func NewSourceWithClock(capturer FrameCapturer, cfg SourceConfig, c clock.Clock, logger golog.Logger) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid thermal source config")
	}
	w, h := capturer.Dimensions()
	if w <= 0 || h <= 0 {
		return nil, errors.Errorf("capturer reports invalid dimensions %dx%d", w, h)
	}
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	s := &Source{
		capturer:   capturer,
		cfg:        cfg,
		clock:      c,
		logger:     logger,
		width:      w,
		height:     h,
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}
	s.buffers[0] = make([]float64, w*h)
	s.buffers[1] = make([]float64, w*h)
	return s, nil
}

// LatestFrame returns the most recently completed frame, or false if no
// capture has completed yet. A stale frame is still returned; callers bound
// staleness with AgeAt.
func (s *Source) LatestFrame() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasFrame
}

// CaptureOnce performs a single capture and, on success, publishes it.
func (s *Source) CaptureOnce(ctx context.Context) error {
	s.mu.Lock()
	spare := s.buffers[1-s.active]
	s.mu.Unlock()

	if err := s.capturer.CaptureFrame(ctx, spare); err != nil {
		return errors.Wrap(err, "frame capture failed")
	}

	s.mu.Lock()
	s.active = 1 - s.active
	s.latest = Frame{
		Width:      s.width,
		Height:     s.height,
		Pixels:     s.buffers[s.active],
		CapturedAt: s.clock.Now(),
	}
	s.hasFrame = true
	s.mu.Unlock()
	return nil
}

// Start begins capturing at the configured cadence in the background. A
// failed capture is logged and the previous frame kept.
func (s *Source) Start() {
	s.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		ticker := s.clock.Ticker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.cancelCtx.Done():
				return
			case <-ticker.C:
			}
			if err := s.CaptureOnce(s.cancelCtx); err != nil && s.cancelCtx.Err() == nil {
				s.logger.Warnw("thermal capture failed", "error", err)
			}
		}
	}, s.activeBackgroundWorkers.Done)
}

// Close stops the capture worker.
func (s *Source) Close() error {
	s.cancelFunc()
	s.activeBackgroundWorkers.Wait()
	return nil
}
