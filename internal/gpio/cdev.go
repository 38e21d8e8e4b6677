//go:build linux

package gpio

import (

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

const consumer = "button-mirror"

// CdevPins drives the lines through the Linux GPIO character device.
type CdevPins struct {
	chip   *gpiocdev.Chip
	button *gpiocdev.Line
	led    *gpiocdev.Line
}

// NewCdevPins requests the button line as input and the LED line as output
// (initially low) on the named chip.
func NewCdevPins(chipName string, buttonPin, ledPin int) (*CdevPins, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, errors.Wrapf(err, "open gpio chip %s", chipName)
	}

	// No bias: the button wiring provides its own pull-up.
	button, err := chip.RequestLine(buttonPin, gpiocdev.AsInput)
	if err != nil {
		chip.Close()
		return nil, errors.Wrapf(err, "request button pin %d", buttonPin)
	}

	led, err := chip.RequestLine(ledPin, gpiocdev.AsOutput(0))
	if err != nil {
		button.Close()
		chip.Close()
		return nil, errors.Wrapf(err, "request led pin %d", ledPin)
	}

	return &CdevPins{
		chip:   chip,
		button: button,
		led:    led,
	}, nil
}

// ReadButton returns the raw level of the button line.
func (c *CdevPins) ReadButton() (bool, error) {
	v, err := c.button.Value()
	if err != nil {
		return false, errors.Wrap(err, "read button pin")
	}
	return v != 0, nil
}

// SetLED drives the LED line.
func (c *CdevPins) SetLED(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := c.led.SetValue(v); err != nil {
		return errors.Wrap(err, "write led pin")
	}
	return nil
}

// Close releases GPIO resources.
// The LED line is reconfigured as an input before release so it is not
// left driving the LED.
func (c *CdevPins) Close() error {
	var errs []error

	if c.led != nil {
		if err := c.led.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, errors.Wrap(err, "reconfigure led pin"))
		}
		if err := c.led.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close led pin"))
		}
	}
	if c.button != nil {
		if err := c.button.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close button pin"))
		}
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close chip"))
		}
	}

	if len(errs) > 0 {
		return errors.Errorf("close errors: %v", errs)
	}
	return nil
}
