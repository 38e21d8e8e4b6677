// Package logic contains pure bookkeeping over the reflector's sample stream.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the logical state of the button or the LED.
type State string

const (
	StateOn       State = "ON"
	StateOff      State = "OFF"
	StatePressed  State = "PRESSED"
	StateReleased State = "RELEASED"
)

// EventType represents a state transition event.
type EventType string

const (
	EventLEDOn  EventType = "LED_ON"
	EventLEDOff EventType = "LED_OFF"
)

// Event represents a state transition to be published.
type Event struct {
	Timestamp   time.Time
	Type        EventType
	ButtonState State
	LEDState    State
}

// Input represents a single reflector iteration in logical form.
type Input struct {
	Pressed bool // button asserted (already inverted from the raw level)
	LED     bool // level driven onto the LED
	Time    time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	LEDOn  int
	LEDOff int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp  time.Time
	Uptime     time.Duration
	Counts     EventCounts
	Iterations uint64
}
