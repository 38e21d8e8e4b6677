package gpio

import (
	"fmt"

	"github.com/pkg/errors"
	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphPins drives the lines through periph.io, addressing pins by their
// BCM "GPIOn" names.
type PeriphPins struct {
	button pgpio.PinIO
	led    pgpio.PinIO
}

// NewPeriphPins initialises the periph host drivers and configures the
// button as a floating input and the LED as an output driven low.
func NewPeriphPins(buttonPin, ledPin int) (*PeriphPins, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "init periph host")
	}

	button := gpioreg.ByName(fmt.Sprintf("GPIO%d", buttonPin))
	if button == nil {
		return nil, errors.Errorf("button pin GPIO%d not found", buttonPin)
	}
	led := gpioreg.ByName(fmt.Sprintf("GPIO%d", ledPin))
	if led == nil {
		return nil, errors.Errorf("led pin GPIO%d not found", ledPin)
	}

	if err := button.In(pgpio.Float, pgpio.NoEdge); err != nil {
		return nil, errors.Wrapf(err, "configure button pin %s", button)
	}
	if err := led.Out(pgpio.Low); err != nil {
		return nil, errors.Wrapf(err, "configure led pin %s", led)
	}

	return &PeriphPins{button: button, led: led}, nil
}

// ReadButton returns the raw level of the button pin.
func (p *PeriphPins) ReadButton() (bool, error) {
	return p.button.Read() == pgpio.High, nil
}

// SetLED drives the LED pin.
func (p *PeriphPins) SetLED(on bool) error {
	if err := p.led.Out(pgpio.Level(on)); err != nil {
		return errors.Wrap(err, "write led pin")
	}
	return nil
}

// Close returns the LED pin to a floating input.
func (p *PeriphPins) Close() error {
	if err := p.led.In(pgpio.Float, pgpio.NoEdge); err != nil {
		return errors.Wrap(err, "release led pin")
	}
	return nil
}
