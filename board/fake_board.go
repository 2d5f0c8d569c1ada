package board

import (
	"context"
	"sync"
)

// A FakeAnalog reads back the same set value.
type FakeAnalog struct {
	mu    sync.Mutex
	Value int
	Err   error
}

// Read returns the configured value.
func (a *FakeAnalog) Read(context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return 0, a.Err
	}
	return a.Value, nil
}

// Set updates the value returned by Read.
func (a *FakeAnalog) Set(v int) {
	a.mu.Lock()
	a.Value = v
	a.mu.Unlock()
}

// A FakeCounter emulates a wrapping hardware capture register.
type FakeCounter struct {
	mu        sync.Mutex
	Value     int64
	PeriodVal int64
	Err       error
}

// Count returns the current register value.
func (c *FakeCounter) Count(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return 0, c.Err
	}
	return c.Value, nil
}

// Period returns the wrap modulus, defaulting to a 16-bit register.
func (c *FakeCounter) Period() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PeriodVal == 0 {
		return 1 << 16
	}
	return c.PeriodVal
}

// Set places a raw value on the register.
func (c *FakeCounter) Set(v int64) {
	c.mu.Lock()
	c.Value = v
	c.mu.Unlock()
}

// Advance moves the register by delta, wrapping like the hardware would.
func (c *FakeCounter) Advance(delta int64) {
	c.mu.Lock()
	period := c.PeriodVal
	if period == 0 {
		period = 1 << 16
	}
	c.Value = ((c.Value+delta)%period + period) % period
	c.mu.Unlock()
}

// A FakeBoard records every peripheral write so tests can assert on the
// commands the control core emitted.
type FakeBoard struct {
	mu       sync.Mutex
	GPIO     map[string]bool
	PWM      map[string]float64
	PWMFreq  map[string]uint
	Analogs  map[string]*FakeAnalog
	Counters map[string]*FakeCounter

	GPIOErr error
	PWMErr  error
}

// NewFakeBoard returns a fake board with no parts attached.
func NewFakeBoard() *FakeBoard {
	return &FakeBoard{
		GPIO:     map[string]bool{},
		PWM:      map[string]float64{},
		PWMFreq:  map[string]uint{},
		Analogs:  map[string]*FakeAnalog{},
		Counters: map[string]*FakeCounter{},
	}
}

// GPIOSet records the pin level.
func (b *FakeBoard) GPIOSet(ctx context.Context, pin string, high bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.GPIOErr != nil {
		return b.GPIOErr
	}
	b.GPIO[pin] = high
	return nil
}

// PWMSet records the pin duty cycle.
func (b *FakeBoard) PWMSet(ctx context.Context, pin string, dutyPct float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.PWMErr != nil {
		return b.PWMErr
	}
	b.PWM[pin] = dutyPct
	return nil
}

// PWMSetFreq records the pin carrier frequency.
func (b *FakeBoard) PWMSetFreq(ctx context.Context, pin string, freqHz uint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.PWMErr != nil {
		return b.PWMErr
	}
	b.PWMFreq[pin] = freqHz
	return nil
}

// AnalogReaderByName returns the analog reader with the given name.
func (b *FakeBoard) AnalogReaderByName(name string) (AnalogReader, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.Analogs[name]
	return a, ok
}

// CounterByName returns the counter with the given name.
func (b *FakeBoard) CounterByName(name string) (Counter, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.Counters[name]
	return c, ok
}

// GPIOGet reads back a recorded pin level.
func (b *FakeBoard) GPIOGet(pin string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.GPIO[pin]
}

// PWMGet reads back a recorded duty cycle.
func (b *FakeBoard) PWMGet(pin string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.PWM[pin]
}
