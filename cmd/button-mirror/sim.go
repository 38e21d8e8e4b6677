package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/button-mirror/internal/config"
	"github.com/sweeney/button-mirror/internal/gpio"
	"github.com/sweeney/button-mirror/internal/logic"
	"github.com/sweeney/button-mirror/internal/mirror"
	"github.com/sweeney/button-mirror/internal/port"
	"github.com/sweeney/button-mirror/internal/shell"
	"github.com/sweeney/button-mirror/internal/status"
)

// runSim runs the reflector against a simulated PORTB and hands the
// terminal to an interactive console that plays the button.
func runSim(cfg config.Config) error {
	p := port.New("PORTB", port.BasePORTB)
	button, led := uint(cfg.ButtonPin), uint(cfg.LEDPin)
	p.Drive(port.Pin(button), true)

	pins, err := gpio.NewRegisterPins(p, button, led)
	if err != nil {
		return errors.Wrap(err, "init sim port")
	}
	defer pins.Close()

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	monitor := logic.NewMonitor(time.Now())

	var tick <-chan time.Time
	if cfg.Poll > 0 {
		ticker := time.NewTicker(cfg.Poll)
		defer ticker.Stop()
		tick = ticker.C
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		mirror.New(pins).Run(ctx, tick, func(s mirror.Sample) {
			for _, event := range monitor.Process(logic.Input{Pressed: s.Pressed, LED: s.LED, Time: s.Time}) {
				log.WithField("button", event.ButtonState).Debug(event.Type)
			}
			b, l := monitor.CurrentState()
			tracker.Update(b, l, monitor.IsBaselined(), monitor.EventCountsSnapshot(), monitor.Iterations())
		})
	}()

	sh := shell.New(shell.NewConsole(p, button, led, tracker))
	sh.Println("button-mirror simulator: press, release, toggle, led, regs, status, exit")
	sh.Run()

	cancel()
	<-done
	return nil
}
