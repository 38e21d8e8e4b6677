package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/button-mirror/internal/config"
	"github.com/sweeney/button-mirror/internal/gpio"
	"github.com/sweeney/button-mirror/internal/logic"
	"github.com/sweeney/button-mirror/internal/mqtt"
	"github.com/sweeney/button-mirror/internal/port"
	"github.com/sweeney/button-mirror/internal/status"
)

// TestEnvVarNames pins the constants to the names pi-helper writes to
// /run/pi-helper.env. If pi-helper renames them, update the constants.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		assert.Equal(t, canonical, got)
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	require.NotNil(t, info)
	assert.Equal(t, &status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}, info)
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	assert.Nil(t, readNetworkInfo(), "nil when NETWORK_STATUS is unset")
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "")

	info := readNetworkInfo()
	require.NotNil(t, info)
	assert.Equal(t, "connected", info.Status)
	assert.Empty(t, info.IP)
}

// --- runLoop tests ---

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Only called from runLoop's goroutine.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// repeat returns n copies of level.
func repeat(level bool, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = level
	}
	return out
}

// faultPins wraps FakePins and fails a fixed range of ReadButton calls.
type faultPins struct {
	*gpio.FakePins
	call       int
	faultStart int // inclusive
	faultEnd   int // exclusive
}

func (p *faultPins) ReadButton() (bool, error) {
	i := p.call
	p.call++
	if i >= p.faultStart && i < p.faultEnd {
		return false, errors.New("gpio fault")
	}
	return p.FakePins.ReadButton()
}

type loopOpts struct {
	tracker   *status.Tracker
	heartbeat time.Duration
	clock     func() time.Time
	signal    os.Signal
}

// runRunLoop drives runLoop with nTicks ticks and then a signal.
func runRunLoop(t *testing.T, pins gpio.Pins, pub *mqtt.FakePublisher, nTicks int, o loopOpts) error {
	t.Helper()
	if o.clock == nil {
		o.clock = fakeClock(t0, 100*time.Millisecond)
	}
	if o.signal == nil {
		o.signal = syscall.SIGTERM
	}
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(pins, pub, pub, o.tracker, o.heartbeat, o.clock, tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- o.signal

	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("runLoop did not return after signal")
		return nil
	}
}

func TestRunLoopNoEventsAtBaseline(t *testing.T) {
	pins := gpio.NewFakePins(repeat(true, 4)...)
	pub := mqtt.NewFakePublisher()

	require.NoError(t, runRunLoop(t, pins, pub, 4, loopOpts{}))

	assert.Empty(t, pub.Events)
	require.Len(t, pub.SystemEvents, 1)
	assert.Equal(t, "SHUTDOWN", pub.SystemEvents[0].Event)
	assert.Equal(t, []bool{false, false, false, false}, pins.Writes)
}

func TestRunLoopMirrorsEveryTick(t *testing.T) {
	levels := []bool{true, false, false, true, false}
	pins := gpio.NewFakePins(levels...)
	pub := mqtt.NewFakePublisher()

	require.NoError(t, runRunLoop(t, pins, pub, len(levels), loopOpts{}))

	assert.Equal(t, []bool{false, true, true, false, true}, pins.Writes)
}

func TestRunLoopPublishesTransitions(t *testing.T) {
	levels := []bool{true, true, false, false, true}
	pins := gpio.NewFakePins(levels...)
	pub := mqtt.NewFakePublisher()

	require.NoError(t, runRunLoop(t, pins, pub, len(levels), loopOpts{}))

	require.Len(t, pub.Events, 2)
	assert.Equal(t, logic.EventLEDOn, pub.Events[0].Type)
	assert.Equal(t, logic.StatePressed, pub.Events[0].ButtonState)
	assert.Equal(t, logic.StateOn, pub.Events[0].LEDState)
	assert.Equal(t, t0.Add(300*time.Millisecond), pub.Events[0].Timestamp)
	assert.Equal(t, logic.EventLEDOff, pub.Events[1].Type)
	assert.Equal(t, logic.StateReleased, pub.Events[1].ButtonState)
}

func TestRunLoopNoDebounce(t *testing.T) {
	levels := []bool{true, false, true, false, true}
	pins := gpio.NewFakePins(levels...)
	pub := mqtt.NewFakePublisher()

	require.NoError(t, runRunLoop(t, pins, pub, len(levels), loopOpts{}))

	assert.Len(t, pub.Events, 4, "every single-sample change is reported")
}

func TestRunLoopPublishErrorDoesNotStop(t *testing.T) {
	levels := []bool{true, false, true}
	pins := gpio.NewFakePins(levels...)
	pub := mqtt.NewFakePublisher()
	pub.PublishError = errors.New("broker down")

	require.NoError(t, runRunLoop(t, pins, pub, len(levels), loopOpts{}))

	assert.Equal(t, []bool{false, true, false}, pins.Writes)
	assert.Empty(t, pub.Events)
	assert.Len(t, pub.SystemEvents, 1)
}

func TestRunLoopGPIOErrorSkipsWrite(t *testing.T) {
	pins := &faultPins{
		FakePins:   gpio.NewFakePins(false, false, false, false),
		faultStart: 1,
		faultEnd:   3,
	}
	pub := mqtt.NewFakePublisher()

	require.NoError(t, runRunLoop(t, pins, pub, 4, loopOpts{}))

	assert.Equal(t, []bool{true, true}, pins.Writes, "faulted iterations do not write")
	assert.Empty(t, pub.Events)
}

func TestRunLoopShutdownReason(t *testing.T) {
	cases := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			pins := gpio.NewFakePins(true)
			pub := mqtt.NewFakePublisher()

			require.NoError(t, runRunLoop(t, pins, pub, 1, loopOpts{signal: tc.sig}))

			require.Len(t, pub.SystemEvents, 1)
			ev := pub.SystemEvents[0]
			assert.Equal(t, "SHUTDOWN", ev.Event)
			assert.Equal(t, tc.want, ev.Reason)
			assert.True(t, ev.Retained)
		})
	}
}

func TestRunLoopShutdownPayloadWithTracker(t *testing.T) {
	pins := gpio.NewFakePins(true, false)
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	tracker := status.NewTracker(t0, status.Config{Backend: "sim"})

	require.NoError(t, runRunLoop(t, pins, pub, 2, loopOpts{tracker: tracker, signal: syscall.SIGINT}))

	require.Len(t, pub.SystemPayloads, 1)
	var got status.StatusJSON
	require.NoError(t, json.Unmarshal(pub.SystemPayloads[0], &got))
	assert.Equal(t, "SHUTDOWN", got.Status.Event)
	assert.Equal(t, "SIGINT", got.Status.Reason)
	assert.Equal(t, "PRESSED", got.Status.Button)
	assert.Equal(t, "ON", got.Status.LED)
	assert.True(t, got.Status.Ready)
	assert.True(t, got.Status.MQTT.Connected)
	assert.Equal(t, uint64(2), got.Status.Iterations)
	assert.Equal(t, 1, got.Status.Counts.LEDOn)
}

func TestRunLoopHeartbeat(t *testing.T) {
	// Clock advances 5m per call: monitor start at t0, samples at +5m..+20m.
	pins := gpio.NewFakePins(repeat(true, 4)...)
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(t0, status.Config{})

	err := runRunLoop(t, pins, pub, 4, loopOpts{
		tracker:   tracker,
		heartbeat: 15 * time.Minute,
		clock:     fakeClock(t0, 5*time.Minute),
	})
	require.NoError(t, err)

	var heartbeats []mqtt.SystemEvent
	for _, ev := range pub.SystemEvents {
		if ev.Event == "HEARTBEAT" {
			heartbeats = append(heartbeats, ev)
		}
	}
	require.Len(t, heartbeats, 1)
	assert.Equal(t, t0.Add(15*time.Minute), heartbeats[0].Timestamp)
	assert.Contains(t, string(heartbeats[0].RawPayload), `"event":"HEARTBEAT"`)
}

// stallingPublisher holds HEARTBEAT publishes until released, like a broker
// that is slow to acknowledge QoS 1.
type stallingPublisher struct {
	*mqtt.FakePublisher
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *stallingPublisher) PublishSystem(ev mqtt.SystemEvent) error {
	if ev.Event == "HEARTBEAT" {
		p.once.Do(func() { close(p.started) })
		<-p.release
	}
	return p.FakePublisher.PublishSystem(ev)
}

func TestRunLoopSlowHeartbeatDoesNotStallLED(t *testing.T) {
	p := port.New("PORTB", port.BasePORTB)
	p.Drive(port.Pin(gpio.SimButtonPin), true)
	pins, err := gpio.NewRegisterPins(p, gpio.SimButtonPin, gpio.SimLEDPin)
	require.NoError(t, err)

	pub := &stallingPublisher{
		FakePublisher: mqtt.NewFakePublisher(),
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	var releaseOnce sync.Once
	release := func() { releaseOnce.Do(func() { close(pub.release) }) }
	t.Cleanup(release)

	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() {
		// Monitor starts at t0; samples at +5m, +10m, +15m (heartbeat) ...
		errCh <- runLoop(pins, pub, pub, nil, 15*time.Minute, fakeClock(t0, 5*time.Minute), tick, sig)
	}()

	sendTick := func() {
		t.Helper()
		select {
		case tick <- time.Time{}:
		case <-time.After(time.Second):
			t.Fatal("loop stalled")
		}
	}

	for i := 0; i < 3; i++ {
		sendTick()
	}
	select {
	case <-pub.started:
	case <-time.After(5 * time.Second):
		t.Fatal("heartbeat was never published")
	}

	p.Drive(port.Pin(gpio.SimButtonPin), false)
	sendTick()
	sendTick() // the previous iteration has completed once this is received
	assert.True(t, p.Level(port.Pin(gpio.SimLEDPin)), "LED follows the button while the heartbeat is pending")

	release()
	sig <- syscall.SIGTERM
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runLoop did not return after signal")
	}

	require.Len(t, pub.SystemEvents, 2)
	assert.Equal(t, "HEARTBEAT", pub.SystemEvents[0].Event)
	assert.Equal(t, "SHUTDOWN", pub.SystemEvents[1].Event)
	require.Len(t, pub.Events, 1)
	assert.Equal(t, logic.EventLEDOn, pub.Events[0].Type)
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	pins := gpio.NewFakePins(repeat(true, 4)...)
	pub := mqtt.NewFakePublisher()

	err := runRunLoop(t, pins, pub, 4, loopOpts{clock: fakeClock(t0, time.Hour)})
	require.NoError(t, err)

	require.Len(t, pub.SystemEvents, 1)
	assert.Equal(t, "SHUTDOWN", pub.SystemEvents[0].Event)
}

func TestRunLoopUpdatesTracker(t *testing.T) {
	pins := gpio.NewFakePins(true, true, false)
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(t0, status.Config{})

	require.NoError(t, runRunLoop(t, pins, pub, 3, loopOpts{tracker: tracker}))

	snap := tracker.Snapshot()
	assert.Equal(t, logic.StatePressed, snap.Button)
	assert.Equal(t, logic.StateOn, snap.LED)
	assert.True(t, snap.Baselined)
	assert.Equal(t, uint64(3), snap.Iterations)
}

func TestRunLoopFreeRunning(t *testing.T) {
	pins := gpio.NewFakePins(true, false)
	pub := mqtt.NewFakePublisher()
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(pins, pub, pub, nil, 0, time.Now, nil, sig)
	}()

	select {
	case <-errCh:
		t.Fatal("free-running loop returned without a signal")
	case <-time.After(50 * time.Millisecond):
	}

	sig <- syscall.SIGTERM
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runLoop did not return after signal")
	}

	assert.Greater(t, len(pins.Writes), 2)
	assert.True(t, pins.LED)
	require.Len(t, pub.Events, 1)
	assert.Equal(t, logic.EventLEDOn, pub.Events[0].Type)
}

// --- CLI tests ---

func TestPrintStateSim(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = gpio.BackendSim
	cfg.ResolvePins()

	var buf bytes.Buffer
	require.NoError(t, printState(&buf, cfg))
	assert.Equal(t, "button: RELEASED (level HIGH), led: OFF\n", buf.String())
}

func TestPrintStateOpenError(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = "bogus"

	var buf bytes.Buffer
	assert.Error(t, printState(&buf, cfg))
	assert.Empty(t, buf.String())
}

func TestApplyFlagsOnlyChanged(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	f := config.Default()
	cmd.Flags().StringVar(&f.Backend, "backend", f.Backend, "")
	cmd.Flags().StringVar(&f.Broker, "broker", f.Broker, "")
	cmd.Flags().IntVar(&f.LEDPin, "led", f.LEDPin, "")
	require.NoError(t, cmd.Flags().Parse([]string{"--backend", "sim", "--led", "4"}))

	c := config.Default()
	c.Broker = "tcp://from-file:1883"
	applyFlags(cmd, &c, f)

	assert.Equal(t, "sim", c.Backend)
	assert.Equal(t, 4, c.LEDPin)
	assert.Equal(t, "tcp://from-file:1883", c.Broker, "unset flag keeps file value")
}

func TestStatusConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Poll = 2 * time.Millisecond
	cfg.ButtonPin, cfg.LEDPin = 17, 27

	sc := statusConfig(cfg)
	assert.Equal(t, int64(2), sc.PollMs)
	assert.Equal(t, (15 * time.Minute).Milliseconds(), sc.HeartbeatMs)
	assert.Equal(t, 17, sc.ButtonPin)
	assert.Equal(t, 27, sc.LEDPin)
	assert.Equal(t, cfg.Broker, sc.Broker)
}

func TestInstall(t *testing.T) {
	prefix := t.TempDir()
	bin := filepath.Join(t.TempDir(), "button-mirror")
	require.NoError(t, os.WriteFile(bin, []byte("binary"), 0755))

	require.NoError(t, install(prefix, bin, "/etc/button-mirror.toml", false))

	got, err := os.ReadFile(filepath.Join(prefix, "usr/bin/button-mirror"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(got))

	unit, err := os.ReadFile(filepath.Join(prefix, "usr/lib/systemd/system/button-mirror.service"))
	require.NoError(t, err)
	assert.Contains(t, string(unit), "ExecStart=/usr/bin/button-mirror run -c /etc/button-mirror.toml")

	conf, err := os.ReadFile(filepath.Join(prefix, "etc/button-mirror.toml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultFile, string(conf))
}

func TestInstallKeepsExistingConfig(t *testing.T) {
	prefix := t.TempDir()
	bin := filepath.Join(t.TempDir(), "button-mirror")
	require.NoError(t, os.WriteFile(bin, []byte("binary"), 0755))
	confPath := filepath.Join(prefix, "etc/button-mirror.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(confPath), 0755))
	require.NoError(t, os.WriteFile(confPath, []byte("backend = \"sim\"\n"), 0644))

	require.NoError(t, install(prefix, bin, "/etc/button-mirror.toml", false))
	conf, err := os.ReadFile(confPath)
	require.NoError(t, err)
	assert.Equal(t, "backend = \"sim\"\n", string(conf))

	require.NoError(t, install(prefix, bin, "/etc/button-mirror.toml", true))
	conf, err = os.ReadFile(confPath)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultFile, string(conf))
}
