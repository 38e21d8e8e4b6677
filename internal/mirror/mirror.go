// Package mirror implements the button-to-LED reflector: an unbounded polling
// loop that drives the LED with the complement of the active-low button.
package mirror

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/button-mirror/internal/gpio"
)

// Sample is the outcome of one iteration.
type Sample struct {
	Time    time.Time
	Level   bool // raw button level, true = high
	Pressed bool // button asserted (level low)
	LED     bool // level written to the LED
}

// LEDFor maps a raw button level to the LED level: the button is
// active-low and the LED active-high, so a low input lights the LED.
func LEDFor(level bool) bool {
	return !level
}

// Reflector couples one button to one LED. It keeps no state between
// iterations. Not safe for concurrent use.
type Reflector struct {
	pins gpio.Pins
	now  func() time.Time

	failing bool
}

// New returns a Reflector over pins, which must already be configured.
func New(pins gpio.Pins) *Reflector {
	return &Reflector{pins: pins, now: time.Now}
}

// SetClock replaces the time source used to stamp samples.
func (r *Reflector) SetClock(now func() time.Time) {
	r.now = now
}

// Step performs one iteration: read the button, then write the LED.
// If the read fails the LED is left untouched.
func (r *Reflector) Step() (Sample, error) {
	t := r.now()
	level, err := r.pins.ReadButton()
	if err != nil {
		return Sample{}, err
	}
	s := Sample{
		Time:    t,
		Level:   level,
		Pressed: !level,
		LED:     LEDFor(level),
	}
	if err := r.pins.SetLED(s.LED); err != nil {
		return Sample{}, err
	}
	return s, nil
}

// freeRunning is always ready to receive.
var freeRunning = func() <-chan time.Time {
	c := make(chan time.Time)
	close(c)
	return c
}()

// Run polls until ctx is cancelled. A nil tick runs iterations back to
// back; otherwise one iteration runs per tick. observe, if non-nil, is
// called with every successful sample on the calling goroutine.
// GPIO errors are logged and the loop continues.
func (r *Reflector) Run(ctx context.Context, tick <-chan time.Time, observe func(Sample)) error {
	if tick == nil {
		tick = freeRunning
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
		}

		s, err := r.Step()
		if err != nil {
			if !r.failing {
				log.WithError(err).Warn("gpio error, retrying")
				r.failing = true
			}
			continue
		}
		if r.failing {
			log.Info("gpio recovered")
			r.failing = false
		}
		if observe != nil {
			observe(s)
		}
	}
}
