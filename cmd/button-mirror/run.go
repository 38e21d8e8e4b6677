package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/button-mirror/internal/config"
	"github.com/sweeney/button-mirror/internal/gpio"
	"github.com/sweeney/button-mirror/internal/logic"
	"github.com/sweeney/button-mirror/internal/mirror"
	"github.com/sweeney/button-mirror/internal/mqtt"
	"github.com/sweeney/button-mirror/internal/status"
	"github.com/sweeney/button-mirror/internal/web"
)

func run(cfg config.Config) error {
	if err := config.LoadEnvFile(cfg.EnvFile); err != nil {
		log.WithError(err).Warn("env file not loaded")
	}

	pins, err := gpio.Open(cfg.GPIO())
	if err != nil {
		return errors.Wrap(err, "init gpio")
	}
	defer pins.Close()

	publisher := mqtt.NewRealPublisher(cfg.Broker, mqtt.ClientID())
	defer publisher.Close()

	// Tracker exists before STARTUP so the snapshot is available.
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.WithError(err).Warn("failed to publish startup event")
	} else {
		log.Info("published startup event")
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTPAddr).Info("http status server listening")
	}

	log.WithFields(log.Fields{
		"backend":   cfg.Backend,
		"button":    cfg.ButtonPin,
		"led":       cfg.LEDPin,
		"poll":      cfg.Poll,
		"broker":    cfg.Broker,
		"heartbeat": cfg.Heartbeat,
	}).Info("started")

	var tick <-chan time.Time
	if cfg.Poll > 0 {
		ticker := time.NewTicker(cfg.Poll)
		defer ticker.Stop()
		tick = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runLoop(pins, publisher, publisher, tracker, cfg.Heartbeat, time.Now, tick, sigCh)
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		Backend:     cfg.Backend,
		ButtonPin:   cfg.ButtonPin,
		LEDPin:      cfg.LEDPin,
		PollMs:      cfg.Poll.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.Broker,
		HTTPAddr:    cfg.HTTPAddr,
	}
}

// systemQueue bounds the heartbeats waiting for the system publisher.
const systemQueue = 4

// runLoop mirrors the button onto the LED until a signal arrives, then
// publishes SHUTDOWN. A nil tick runs the reflector free. System events
// raised inside the loop are published from a separate goroutine; the loop
// never waits on the broker.
func runLoop(pins gpio.Pins, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	monitor := logic.NewMonitor(now())
	reflector := mirror.New(pins)
	reflector.SetClock(now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan os.Signal, 1)
	go func() {
		select {
		case s := <-sig:
			received <- s
			cancel()
		case <-ctx.Done():
		}
	}()

	system := make(chan mqtt.SystemEvent, systemQueue)
	systemDone := make(chan struct{})
	go func() {
		defer close(systemDone)
		for ev := range system {
			if err := publisher.PublishSystem(ev); err != nil {
				log.WithError(err).WithField("event", ev.Event).Warn("system publish error")
			}
		}
	}()

	obs := &observer{
		monitor:    monitor,
		publisher:  publisher,
		system:     system,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		heartbeat:  heartbeat,
	}
	err := reflector.Run(ctx, tick, obs.observe)
	close(system)
	<-systemDone
	if err != nil && err != context.Canceled {
		return err
	}

	s := <-received
	log.WithField("signal", s).Info("shutting down")
	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	event := mqtt.SystemEvent{
		Timestamp: now(),
		Event:     "SHUTDOWN",
		Reason:    signalName,
		Retained:  true,
	}
	if tracker != nil {
		obs.refreshConnected()
		snap := tracker.Snapshot()
		event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
	}
	if err := publisher.PublishSystem(event); err != nil {
		log.WithError(err).Warn("failed to publish shutdown event")
	} else {
		log.Info("published shutdown event")
	}
	return nil
}

// observer turns reflector samples into MQTT events, heartbeats and
// tracker updates. It runs on the reflector goroutine.
type observer struct {
	monitor    *logic.Monitor
	publisher  mqtt.Publisher
	system     chan<- mqtt.SystemEvent
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	heartbeat  time.Duration
}

func (o *observer) observe(s mirror.Sample) {
	events := o.monitor.Process(logic.Input{
		Pressed: s.Pressed,
		LED:     s.LED,
		Time:    s.Time,
	})

	for _, event := range events {
		log.WithFields(log.Fields{
			"button": event.ButtonState,
			"led":    event.LEDState,
		}).Info(event.Type)
		if err := o.publisher.Publish(event); err != nil {
			log.WithError(err).Warn("publish error")
		}
	}

	if !o.monitor.IsBaselined() {
		return
	}

	if hb := o.monitor.CheckHeartbeat(s.Time, o.heartbeat); hb != nil {
		log.WithFields(log.Fields{
			"uptime":     hb.Uptime,
			"led_on":     hb.Counts.LEDOn,
			"led_off":    hb.Counts.LEDOff,
			"iterations": hb.Iterations,
		}).Info("heartbeat")

		hbEvent := mqtt.SystemEvent{
			Timestamp: hb.Timestamp,
			Event:     "HEARTBEAT",
		}
		if o.tracker != nil {
			if net := readNetworkInfo(); net != nil {
				o.tracker.SetNetwork(net)
			}
			o.update()
			hbEvent.RawPayload = status.FormatStatusEvent(o.tracker.Snapshot(), "HEARTBEAT", "")
		}
		select {
		case o.system <- hbEvent:
		default:
			log.Warn("system publisher busy, heartbeat dropped")
		}
	}

	if o.tracker != nil {
		o.update()
	}
}

func (o *observer) update() {
	button, led := o.monitor.CurrentState()
	o.tracker.Update(button, led, o.monitor.IsBaselined(), o.monitor.EventCountsSnapshot(), o.monitor.Iterations())
	o.refreshConnected()
}

func (o *observer) refreshConnected() {
	if o.tracker != nil && o.mqttStatus != nil {
		o.tracker.SetMQTTConnected(o.mqttStatus.IsConnected())
	}
}

// printState reads the button once and prints the LED level it maps to.
func printState(w io.Writer, cfg config.Config) error {
	pins, err := gpio.Open(cfg.GPIO())
	if err != nil {
		return errors.Wrap(err, "init gpio")
	}
	defer pins.Close()

	level, err := pins.ReadButton()
	if err != nil {
		return errors.Wrap(err, "read gpio")
	}
	fmt.Fprintf(w, "button: %s (level %s), led: %s\n",
		buttonString(level), levelString(level), onOff(mirror.LEDFor(level)))
	return nil
}

// Env var names written by pi-helper to /run/pi-helper.env.
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func buttonString(level bool) string {
	if level {
		return string(logic.StateReleased)
	}
	return string(logic.StatePressed)
}

func levelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}

func onOff(on bool) string {
	if on {
		return string(logic.StateOn)
	}
	return string(logic.StateOff)
}
