//go:build !linux

package gpio

import "github.com/pkg/errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// CdevPins is not available on non-Linux platforms.
type CdevPins struct{}

// NewCdevPins returns an error on non-Linux platforms.
func NewCdevPins(chipName string, buttonPin, ledPin int) (*CdevPins, error) {
	return nil, errUnsupported
}

// ReadButton is not implemented on non-Linux platforms.
func (c *CdevPins) ReadButton() (bool, error) { return false, errUnsupported }

// SetLED is not implemented on non-Linux platforms.
func (c *CdevPins) SetLED(on bool) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (c *CdevPins) Close() error { return nil }

// RPIOPins is not available on non-Linux platforms.
type RPIOPins struct{}

// NewRPIOPins returns an error on non-Linux platforms.
func NewRPIOPins(buttonPin, ledPin int) (*RPIOPins, error) {
	return nil, errUnsupported
}

// ReadButton is not implemented on non-Linux platforms.
func (r *RPIOPins) ReadButton() (bool, error) { return false, errUnsupported }

// SetLED is not implemented on non-Linux platforms.
func (r *RPIOPins) SetLED(on bool) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (r *RPIOPins) Close() error { return nil }
