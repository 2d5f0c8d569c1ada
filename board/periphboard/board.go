// Package periphboard implements the board capabilities on top of periph.io
// for Linux single-board hosts. Quadrature counting is done in software from
// GPIO edges since these hosts have no timer-capture peripheral; buttons are
// plain digital reads presented through the analog interface.
package periphboard

import (
	"context"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/hotspot-robotics/turret/board"
)

// EncoderPins names the two GPIO pins of one quadrature pair.
type EncoderPins struct {
	A string
	B string
}

// Config maps logical part names onto host pin names.
type Config struct {
	// Pins maps logical output pin names to host GPIO names.
	Pins map[string]string
	// Buttons maps analog reader names to host GPIO names; a high level
	// reads as fullScale, low as 0.
	Buttons map[string]string
	// Encoders maps counter names to quadrature pin pairs.
	Encoders map[string]EncoderPins
	// I2CBus selects the bus for the thermal sensor; empty means the host
	// default.
	I2CBus string
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate() error {
	for name, pins := range c.Encoders {
		if pins.A == "" || pins.B == "" {
			return errors.Errorf("encoder %s needs both a and b pins", name)
		}
	}
	return nil
}

// fullScale is what a pressed button reads, matching a 12-bit ADC.
const fullScale = 4095

// A Board is a periph.io-backed implementation of board.Board.
type Board struct {
	cfg    Config
	logger golog.Logger

	mu      sync.Mutex
	outs    map[string]gpio.PinIO
	freqs   map[string]physic.Frequency
	buttons map[string]*buttonReader
	ctrs    map[string]*softCounter
	i2cBus  i2c.BusCloser
}

// New initializes the periph host and claims every configured pin.
func New(cfg Config, logger golog.Logger) (*Board, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid periph board config")
	}
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init failed")
	}

	b := &Board{
		cfg:     cfg,
		logger:  logger,
		outs:    map[string]gpio.PinIO{},
		freqs:   map[string]physic.Frequency{},
		buttons: map[string]*buttonReader{},
		ctrs:    map[string]*softCounter{},
	}

	for name, hostPin := range cfg.Pins {
		p := gpioreg.ByName(hostPin)
		if p == nil {
			return nil, errors.Errorf("cannot find gpio pin (%s)", hostPin)
		}
		b.outs[name] = p
	}
	for name, hostPin := range cfg.Buttons {
		p := gpioreg.ByName(hostPin)
		if p == nil {
			return nil, errors.Errorf("cannot find button pin (%s)", hostPin)
		}
		if err := p.In(gpio.PullDown, gpio.NoEdge); err != nil {
			return nil, errors.Wrapf(err, "cannot configure button pin (%s)", hostPin)
		}
		b.buttons[name] = &buttonReader{pin: p}
	}
	for name, pins := range cfg.Encoders {
		ctr, err := newSoftCounter(pins, logger.Named("encoder-"+name))
		if err != nil {
			return nil, err
		}
		b.ctrs[name] = ctr
	}

	if bus, err := i2creg.Open(cfg.I2CBus); err != nil {
		logger.Warnw("i2c bus unavailable", "bus", cfg.I2CBus, "error", err)
	} else {
		b.i2cBus = bus
	}
	return b, nil
}

// I2C returns the opened I2C bus, if any. The bus satisfies the tinygo
// drivers.I2C interface directly.
func (b *Board) I2C() (i2c.Bus, bool) {
	if b.i2cBus == nil {
		return nil, false
	}
	return b.i2cBus, true
}

// GPIOSet sets the given pin high or low.
func (b *Board) GPIOSet(ctx context.Context, pin string, high bool) error {
	p, err := b.out(pin)
	if err != nil {
		return err
	}
	return p.Out(gpio.Level(high))
}

// PWMSet sets the duty cycle of the given pin in percent.
func (b *Board) PWMSet(ctx context.Context, pin string, dutyPct float64) error {
	p, err := b.out(pin)
	if err != nil {
		return err
	}
	if dutyPct < 0 {
		dutyPct = 0
	} else if dutyPct > 100 {
		dutyPct = 100
	}
	b.mu.Lock()
	freq := b.freqs[pin]
	b.mu.Unlock()
	if freq == 0 {
		freq = 1000 * physic.Hertz
	}
	return p.PWM(gpio.Duty(float64(gpio.DutyMax)*dutyPct/100), freq)
}

// PWMSetFreq sets the PWM carrier frequency of the given pin.
func (b *Board) PWMSetFreq(ctx context.Context, pin string, freqHz uint) error {
	if _, err := b.out(pin); err != nil {
		return err
	}
	b.mu.Lock()
	b.freqs[pin] = physic.Frequency(freqHz) * physic.Hertz
	b.mu.Unlock()
	return nil
}

// AnalogReaderByName returns the named button reader.
func (b *Board) AnalogReaderByName(name string) (board.AnalogReader, bool) {
	r, ok := b.buttons[name]
	return r, ok
}

// CounterByName returns the named software quadrature counter.
func (b *Board) CounterByName(name string) (board.Counter, bool) {
	c, ok := b.ctrs[name]
	return c, ok
}

// Close releases the counters and the I2C bus.
func (b *Board) Close() error {
	var err error
	for _, c := range b.ctrs {
		c.close()
	}
	if b.i2cBus != nil {
		err = b.i2cBus.Close()
	}
	return err
}

func (b *Board) out(pin string) (gpio.PinIO, error) {
	p, ok := b.outs[pin]
	if !ok {
		return nil, errors.Errorf("cannot find pin (%s)", pin)
	}
	return p, nil
}

// buttonReader reads a digital pin through the analog interface.
type buttonReader struct {
	pin gpio.PinIO
}

func (r *buttonReader) Read(ctx context.Context) (int, error) {
	if r.pin.Read() == gpio.High {
		return fullScale, nil
	}
	return 0, nil
}
