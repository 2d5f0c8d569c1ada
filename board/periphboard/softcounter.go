package periphboard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// counterPeriod is the wrap modulus of the software counter. It is far
// larger than any real travel so consumers see at most one fold per sample.
const counterPeriod = int64(1) << 32

// softCounter counts quadrature transitions from GPIO edge interrupts. Each
// channel gets its own edge-wait goroutine; both feed one atomic count.
//
// State transition table for a x4 decoder, indexed by (old A, old B, A, B):
//
//	00 -> 01 -> 11 -> 10 -> 00 is one direction, the reverse the other.
type softCounter struct {
	pinA gpio.PinIO
	pinB gpio.PinIO

	count int64 // atomic, wrapped into [0, counterPeriod)

	mu        sync.Mutex
	levelA    bool
	levelB    bool
	cancel    func()
	cancelCtx context.Context
	workers   sync.WaitGroup
	logger    golog.Logger
}

func newSoftCounter(pins EncoderPins, logger golog.Logger) (*softCounter, error) {
	pinA := gpioreg.ByName(pins.A)
	if pinA == nil {
		return nil, errors.Errorf("cannot find encoder pin (%s)", pins.A)
	}
	pinB := gpioreg.ByName(pins.B)
	if pinB == nil {
		return nil, errors.Errorf("cannot find encoder pin (%s)", pins.B)
	}
	if err := pinA.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
		return nil, errors.Wrapf(err, "cannot configure encoder pin (%s)", pins.A)
	}
	if err := pinB.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
		return nil, errors.Wrapf(err, "cannot configure encoder pin (%s)", pins.B)
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	c := &softCounter{
		pinA:      pinA,
		pinB:      pinB,
		levelA:    pinA.Read() == gpio.High,
		levelB:    pinB.Read() == gpio.High,
		cancel:    cancel,
		cancelCtx: cancelCtx,
		logger:    logger,
	}
	c.workers.Add(2)
	go c.watch(pinA, true)
	go c.watch(pinB, false)
	return c, nil
}

// Count returns the current wrapped count.
func (c *softCounter) Count(ctx context.Context) (int64, error) {
	return atomic.LoadInt64(&c.count), nil
}

// Period returns the wrap modulus.
func (c *softCounter) Period() int64 {
	return counterPeriod
}

func (c *softCounter) close() {
	c.cancel()
	// Halt blocks WaitForEdge so the watchers can observe cancellation.
	if err := c.pinA.Halt(); err != nil {
		c.logger.Debugw("encoder pin halt failed", "error", err)
	}
	if err := c.pinB.Halt(); err != nil {
		c.logger.Debugw("encoder pin halt failed", "error", err)
	}
	c.workers.Wait()
}

// watch loops on edge interrupts for one channel and applies each observed
// transition to the shared count.
func (c *softCounter) watch(pin gpio.PinIO, isA bool) {
	defer c.workers.Done()
	for {
		if c.cancelCtx.Err() != nil {
			return
		}
		if !pin.WaitForEdge(time.Second) {
			continue
		}
		level := pin.Read() == gpio.High
		c.apply(isA, level)
	}
}

// apply folds one channel transition into the count. Direction comes from
// the classic quadrature rule: on an A edge, A==B means reverse; on a B
// edge, A==B means forward.
func (c *softCounter) apply(isA, level bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var delta int64
	if isA {
		if level == c.levelA {
			return
		}
		c.levelA = level
		if c.levelA == c.levelB {
			delta = -1
		} else {
			delta = 1
		}
	} else {
		if level == c.levelB {
			return
		}
		c.levelB = level
		if c.levelA == c.levelB {
			delta = 1
		} else {
			delta = -1
		}
	}

	for {
		old := atomic.LoadInt64(&c.count)
		next := (old + delta) % counterPeriod
		if next < 0 {
			next += counterPeriod
		}
		if atomic.CompareAndSwapInt64(&c.count, old, next) {
			return
		}
	}
}
