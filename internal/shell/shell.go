// Package shell provides an interactive console for the simulated port:
// press and release the button, inspect the registers, watch the LED.
package shell

import (
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/sweeney/button-mirror/internal/port"
	"github.com/sweeney/button-mirror/internal/status"
)

// Console drives the external side of a simulated port.
type Console struct {
	port    *port.Port
	button  uint8
	led     uint8
	tracker *status.Tracker
}

// NewConsole returns a console for the given pins of p. tracker may be nil.
func NewConsole(p *port.Port, buttonPin, ledPin uint, tracker *status.Tracker) *Console {
	return &Console{
		port:    p,
		button:  port.Pin(buttonPin),
		led:     port.Pin(ledPin),
		tracker: tracker,
	}
}

// Press pulls the button line low.
func (c *Console) Press() { c.port.Drive(c.button, false) }

// Release lets the pull-up take the button line high.
func (c *Console) Release() { c.port.Drive(c.button, true) }

// Toggle flips the button and reports whether it is now pressed.
func (c *Console) Toggle() bool {
	high := c.port.Level(c.button)
	c.port.Drive(c.button, !high)
	return high
}

// LED reports whether the LED pin reads high.
func (c *Console) LED() bool { return c.port.Level(c.led) }

// Regs formats the port registers.
func (c *Console) Regs() string {
	var b strings.Builder
	for _, r := range []struct {
		name string
		reg  uint8
	}{
		{"DIR", port.DIR},
		{"OUT", port.OUT},
		{"IN", port.IN},
	} {
		v := c.port.Read(r.reg)
		fmt.Fprintf(&b, "%s.%-3s @0x%04X = 0x%02X %08b\n", c.port.Name(), r.name, c.port.Addr(r.reg), v, v)
	}
	return b.String()
}

// Status summarises the line states and, when a tracker is attached, the
// loop counters.
func (c *Console) Status() string {
	button := "RELEASED"
	if !c.port.Level(c.button) {
		button = "PRESSED"
	}
	led := "OFF"
	if c.LED() {
		led = "ON"
	}
	s := fmt.Sprintf("button=%s led=%s", button, led)
	if c.tracker != nil {
		snap := c.tracker.Snapshot()
		s += fmt.Sprintf(" iterations=%d led_on=%d led_off=%d", snap.Iterations, snap.Counts.LEDOn, snap.Counts.LEDOff)
	}
	return s
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// Commands returns the console's shell commands.
func (c *Console) Commands() []*ishell.Cmd {
	return []*ishell.Cmd{
		{
			Name: "press",
			Help: "hold the button down",
			Func: func(ctx *ishell.Context) {
				c.Press()
				ctx.Println("button pressed")
			},
		},
		{
			Name: "release",
			Help: "let go of the button",
			Func: func(ctx *ishell.Context) {
				c.Release()
				ctx.Println("button released")
			},
		},
		{
			Name:    "toggle",
			Aliases: []string{"t"},
			Help:    "flip the button",
			Func: func(ctx *ishell.Context) {
				if c.Toggle() {
					ctx.Println("button pressed")
				} else {
					ctx.Println("button released")
				}
			},
		},
		{
			Name: "led",
			Help: "show the LED",
			Func: func(ctx *ishell.Context) {
				ctx.Println("led", onOff(c.LED()))
			},
		},
		{
			Name: "regs",
			Help: "dump the port registers",
			Func: func(ctx *ishell.Context) {
				ctx.Print(c.Regs())
			},
		},
		{
			Name:    "status",
			Aliases: []string{"st"},
			Help:    "show button, LED and loop counters",
			Func: func(ctx *ishell.Context) {
				ctx.Println(c.Status())
			},
		},
	}
}

// New builds an interactive shell around the console.
func New(c *Console) *ishell.Shell {
	sh := ishell.New()
	sh.SetPrompt(fmt.Sprintf("[%s] > ", c.port.Name()))
	for _, cmd := range c.Commands() {
		sh.AddCmd(cmd)
	}
	return sh
}
