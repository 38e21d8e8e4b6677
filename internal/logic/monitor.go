package logic

import "time"

// Monitor watches reflector samples and reports LED transitions.
// It applies no debounce: every observed change is an event.
type Monitor struct {
	baselined     bool
	button        State
	led           State
	startTime     time.Time
	eventCounts   EventCounts
	iterations    uint64
	lastHeartbeat time.Time
}

// NewMonitor creates a transition monitor.
// The startTime is used for calculating uptime in heartbeat events.
func NewMonitor(startTime time.Time) *Monitor {
	return &Monitor{
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process takes a new sample and returns any events that should be emitted.
// The first sample establishes the baseline and never produces an event.
func (m *Monitor) Process(input Input) []Event {
	m.iterations++
	button := buttonState(input.Pressed)
	led := ledState(input.LED)

	if !m.baselined {
		m.button, m.led = button, led
		m.baselined = true
		return nil
	}

	m.button = button
	if led == m.led {
		return nil
	}
	m.led = led

	e := Event{
		Timestamp:   input.Time,
		Type:        EventLEDOff,
		ButtonState: button,
		LEDState:    led,
	}
	if led == StateOn {
		e.Type = EventLEDOn
		m.eventCounts.LEDOn++
	} else {
		m.eventCounts.LEDOff++
	}
	return []Event{e}
}

func buttonState(pressed bool) State {
	if pressed {
		return StatePressed
	}
	return StateReleased
}

func ledState(on bool) State {
	if on {
		return StateOn
	}
	return StateOff
}

// IsBaselined returns whether the monitor has seen a sample.
func (m *Monitor) IsBaselined() bool {
	return m.baselined
}

// CurrentState returns the last observed states. Both are empty before
// the baseline.
func (m *Monitor) CurrentState() (button State, led State) {
	return m.button, m.led
}

// EventCountsSnapshot returns a copy of the event counts.
func (m *Monitor) EventCountsSnapshot() EventCounts {
	return m.eventCounts
}

// Iterations returns the number of samples processed.
func (m *Monitor) Iterations() uint64 {
	return m.iterations
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (m *Monitor) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !m.baselined {
		return nil
	}

	if now.Sub(m.lastHeartbeat) < interval {
		return nil
	}

	m.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp:  now,
		Uptime:     now.Sub(m.startTime),
		Counts:     m.eventCounts,
		Iterations: m.iterations,
	}
}
