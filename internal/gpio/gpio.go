// Package gpio provides the button input and LED output lines with hardware
// abstraction. Real backends use the Linux GPIO character device, BCM283x
// registers, or periph.io; the sim backend drives a port register model.
// The fake implementation allows testing without hardware.
package gpio

import (
	"github.com/pkg/errors"

	"github.com/sweeney/button-mirror/internal/port"
)

// Pins drives one button input and one LED output.
// Constructors configure the button line as an input and the LED line as an
// output and touch no other line.
type Pins interface {
	// ReadButton returns the raw electrical level of the button line.
	// The button is active-low: true (high) = released, false = pressed.
	ReadButton() (bool, error)

	// SetLED drives the LED line. true = high = lit.
	SetLED(on bool) error

	// Close releases GPIO resources, leaving the LED line undriven.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultButtonPin = 17
	DefaultLEDPin    = 27
	DefaultChip      = "gpiochip0"
)

// Pins on the simulated PORTB, matching the AVR curiosity board wiring.
const (
	SimButtonPin = 2 // SW0
	SimLEDPin    = 5 // LED0
)

// Backend names accepted by Open.
const (
	BackendCdev   = "cdev"
	BackendRPIO   = "rpio"
	BackendPeriph = "periph"
	BackendSim    = "sim"
)

// Backends lists every backend name Open understands.
var Backends = []string{BackendCdev, BackendRPIO, BackendPeriph, BackendSim}

// Config selects and parameterises a backend.
type Config struct {
	Backend   string
	Chip      string // cdev only
	ButtonPin int
	LEDPin    int
}

// Open configures the button and LED lines on the selected backend.
// The sim backend gets a fresh PORTB with the button released.
func Open(cfg Config) (Pins, error) {
	switch cfg.Backend {
	case BackendCdev, "":
		chip := cfg.Chip
		if chip == "" {
			chip = DefaultChip
		}
		c, err := NewCdevPins(chip, cfg.ButtonPin, cfg.LEDPin)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendRPIO:
		r, err := NewRPIOPins(cfg.ButtonPin, cfg.LEDPin)
		if err != nil {
			return nil, err
		}
		return r, nil
	case BackendPeriph:
		r, err := NewPeriphPins(cfg.ButtonPin, cfg.LEDPin)
		if err != nil {
			return nil, err
		}
		return r, nil
	case BackendSim:
		p := port.New("PORTB", port.BasePORTB)
		p.Drive(port.Pin(uint(cfg.ButtonPin)), true)
		r, err := NewRegisterPins(p, uint(cfg.ButtonPin), uint(cfg.LEDPin))
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, errors.Errorf("unknown gpio backend %q", cfg.Backend)
	}
}
