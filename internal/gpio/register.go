package gpio

import (
	"github.com/pkg/errors"

	"github.com/sweeney/button-mirror/internal/port"
)

// RegisterPins drives the lines through a port register map using the
// strobe registers, so each operation is a single register access.
type RegisterPins struct {
	port   *port.Port
	button uint8
	led    uint8
}

// NewRegisterPins configures button as input (DIRCLR) and led as output
// (DIRSET) on p.
func NewRegisterPins(p *port.Port, button, led uint) (*RegisterPins, error) {
	if button > 7 || led > 7 {
		return nil, errors.Errorf("register pins: pin out of range (button=%d led=%d)", button, led)
	}
	if button == led {
		return nil, errors.Errorf("register pins: button and led share pin %d", button)
	}

	r := &RegisterPins{
		port:   p,
		button: port.Pin(button),
		led:    port.Pin(led),
	}
	p.Write(port.DIRCLR, r.button)
	p.Write(port.DIRSET, r.led)
	return r, nil
}

// Port returns the underlying register map.
func (r *RegisterPins) Port() *port.Port { return r.port }

// ReadButton samples the button bit of IN.
func (r *RegisterPins) ReadButton() (bool, error) {
	return r.port.Read(port.IN)&r.button != 0, nil
}

// SetLED strobes OUTSET or OUTCLR with the LED bit.
func (r *RegisterPins) SetLED(on bool) error {
	if on {
		r.port.Write(port.OUTSET, r.led)
	} else {
		r.port.Write(port.OUTCLR, r.led)
	}
	return nil
}

// Close turns the LED pin back into an input.
func (r *RegisterPins) Close() error {
	r.port.Write(port.DIRCLR, r.led)
	return nil
}
