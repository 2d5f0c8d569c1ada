// Package board defines the peripheral capabilities the turret control core
// runs against. The core never touches registers directly; a Board
// implementation owns the wiring and exposes pins by name.
package board

import "context"

// A Board exposes GPIO, PWM, analog input, and hardware counter capabilities.
// All calls must be non-blocking polls or writes; the control tasks never
// wait on a peripheral.
type Board interface {
	// GPIOSet sets the given pin high or low.
	GPIOSet(ctx context.Context, pin string, high bool) error

	// PWMSet sets the duty cycle of the given pin in percent of full scale,
	// from 0 to 100.
	PWMSet(ctx context.Context, pin string, dutyPct float64) error

	// PWMSetFreq sets the PWM carrier frequency of the given pin in Hz.
	PWMSetFreq(ctx context.Context, pin string, freqHz uint) error

	// AnalogReaderByName returns the analog reader with the given name.
	AnalogReaderByName(name string) (AnalogReader, bool)

	// CounterByName returns the hardware counter with the given name.
	CounterByName(name string) (Counter, bool)
}

// An AnalogReader reads back a raw ADC value.
type AnalogReader interface {
	Read(ctx context.Context) (int, error)
}

// A Counter exposes a free-running hardware capture register, typically fed
// by a quadrature input pair. The register wraps modulo Period.
type Counter interface {
	// Count returns the current raw register value in [0, Period).
	Count(ctx context.Context) (int64, error)

	// Period returns the number of distinct counter values before wrap.
	Period() int64
}
