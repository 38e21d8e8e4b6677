//go:build linux

package gpio

import (
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

// RPIOPins drives the lines by writing the BCM283x GPIO registers through
// a /dev/gpiomem mapping. go-rpio keeps the mapping in package state, so
// only one RPIOPins may be open at a time.
type RPIOPins struct {
	button rpio.Pin
	led    rpio.Pin
}

// NewRPIOPins maps the GPIO registers and sets the pin function select
// bits: button = input, LED = output.
func NewRPIOPins(buttonPin, ledPin int) (*RPIOPins, error) {
	if err := rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "map gpio registers")
	}

	r := &RPIOPins{
		button: rpio.Pin(buttonPin),
		led:    rpio.Pin(ledPin),
	}
	r.button.Input()
	r.led.Output()
	return r, nil
}

// ReadButton reads the button bit of the GPLEV register.
func (r *RPIOPins) ReadButton() (bool, error) {
	return r.button.Read() == rpio.High, nil
}

// SetLED writes the LED bit of GPSET or GPCLR.
func (r *RPIOPins) SetLED(on bool) error {
	if on {
		r.led.High()
	} else {
		r.led.Low()
	}
	return nil
}

// Close returns the LED pin to input and unmaps the registers.
func (r *RPIOPins) Close() error {
	r.led.Input()
	if err := rpio.Close(); err != nil {
		return errors.Wrap(err, "unmap gpio registers")
	}
	return nil
}
