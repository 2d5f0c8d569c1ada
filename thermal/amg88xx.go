package thermal

import (
	"context"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/amg88xx"
)

// amg88xx pixels are 0.25°C per LSB.
const amgLSBCelsius = 0.25

// An AMG88xx captures frames from a Panasonic Grid-EYE 8x8 thermal array
// over I2C. Any bus with a Tx(addr, w, r) method works; periph.io's i2c.Bus
// satisfies the interface directly.
type AMG88xx struct {
	dev amg88xx.Device
	raw [64]int16
}

// NewAMG88xx configures the sensor on the given bus.
func NewAMG88xx(bus drivers.I2C) *AMG88xx {
	dev := amg88xx.New(bus)
	dev.Configure(amg88xx.Config{})
	return &AMG88xx{dev: dev}
}

// Dimensions returns the Grid-EYE's native 8x8 resolution.
func (a *AMG88xx) Dimensions() (int, int) {
	return 8, 8
}

// CaptureFrame reads the pixel registers and converts to °C.
func (a *AMG88xx) CaptureFrame(_ context.Context, dst []float64) error {
	a.dev.ReadPixels(&a.raw)
	for i, v := range a.raw {
		dst[i] = float64(v) * amgLSBCelsius
	}
	return nil
}
