package thermal

import (
	"context"
	"sync"
)

// A StaticCapturer serves a settable grid, for tests and bench rigs.
type StaticCapturer struct {
	mu     sync.Mutex
	width  int
	height int
	pixels []float64
	err    error
}

// NewStaticCapturer returns a capturer of the given size filled with zeros.
func NewStaticCapturer(width, height int) *StaticCapturer {
	return &StaticCapturer{
		width:  width,
		height: height,
		pixels: make([]float64, width*height),
	}
}

// Dimensions returns the grid size.
func (c *StaticCapturer) Dimensions() (int, int) {
	return c.width, c.height
}

// CaptureFrame copies the current grid into dst.
func (c *StaticCapturer) CaptureFrame(ctx context.Context, dst []float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	copy(dst, c.pixels)
	return nil
}

// Fill sets every cell to the given temperature.
func (c *StaticCapturer) Fill(tempC float64) {
	c.mu.Lock()
	for i := range c.pixels {
		c.pixels[i] = tempC
	}
	c.mu.Unlock()
}

// SetCell sets one cell.
func (c *StaticCapturer) SetCell(row, col int, tempC float64) {
	c.mu.Lock()
	c.pixels[row*c.width+col] = tempC
	c.mu.Unlock()
}

// SetErr makes subsequent captures fail with err; nil clears the fault.
func (c *StaticCapturer) SetErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}
