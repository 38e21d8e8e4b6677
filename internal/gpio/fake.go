package gpio

import "github.com/pkg/errors"

// FakePins is a test double that returns scripted button levels and records
// LED writes.
type FakePins struct {
	// Levels contains scripted raw button levels (true = high = released).
	// Each call to ReadButton() consumes the next level.
	Levels []bool

	// index tracks current position in Levels
	index int

	// LED is the last level written by SetLED.
	LED bool

	// Writes records every SetLED call in order.
	Writes []bool

	// Reads counts ReadButton calls, including failed ones.
	Reads int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by ReadButton()
	ReadError error

	// WriteError, if set, will be returned by SetLED()
	WriteError error
}

// NewFakePins creates a FakePins with the given button levels.
func NewFakePins(levels ...bool) *FakePins {
	return &FakePins{Levels: levels}
}

// ReadButton returns the next scripted level.
// If levels are exhausted, returns the last level repeatedly.
func (f *FakePins) ReadButton() (bool, error) {
	f.Reads++
	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Levels) == 0 {
		return false, errors.New("no levels configured")
	}

	level := f.Levels[f.index]
	if f.index < len(f.Levels)-1 {
		f.index++
	}

	return level, nil
}

// SetLED records the write.
func (f *FakePins) SetLED(on bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.LED = on
	f.Writes = append(f.Writes, on)
	return nil
}

// Close marks the pins as closed.
func (f *FakePins) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the script and clears recorded writes.
func (f *FakePins) Reset() {
	f.index = 0
	f.Reads = 0
	f.LED = false
	f.Writes = nil
	f.Closed = false
}
