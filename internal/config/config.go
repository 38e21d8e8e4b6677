// Package config loads daemon settings: built-in defaults, then an optional
// TOML file, then whatever flags the caller applies on top.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/sweeney/button-mirror/internal/gpio"
)

// DefaultEnvFile is where the host helper writes NETWORK_* variables.
const DefaultEnvFile = "/run/pi-helper.env"

// AutoPin selects the backend's default pin.
const AutoPin = -1

// Config is the full daemon configuration.
type Config struct {
	Backend   string `toml:"backend"`
	Chip      string `toml:"chip"`
	ButtonPin int    `toml:"button_pin"`
	LEDPin    int    `toml:"led_pin"`

	// Poll paces the loop; 0 runs iterations back to back.
	Poll      time.Duration `toml:"poll"`
	Heartbeat time.Duration `toml:"heartbeat"`

	Broker   string `toml:"broker"`
	HTTPAddr string `toml:"http_addr"`
	EnvFile  string `toml:"env_file"`
	LogLevel string `toml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend:   gpio.BackendCdev,
		Chip:      gpio.DefaultChip,
		ButtonPin: AutoPin,
		LEDPin:    AutoPin,
		Heartbeat: 15 * time.Minute,
		Broker:    "tcp://192.168.1.200:1883",
		HTTPAddr:  ":80",
		EnvFile:   DefaultEnvFile,
		LogLevel:  "info",
	}
}

// Load returns the defaults overlaid with the TOML file at path.
// An empty path yields the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, errors.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// ResolvePins replaces AutoPin with the default pin for the backend.
func (c *Config) ResolvePins() {
	button, led := gpio.DefaultButtonPin, gpio.DefaultLEDPin
	if c.Backend == gpio.BackendSim {
		button, led = gpio.SimButtonPin, gpio.SimLEDPin
	}
	if c.ButtonPin == AutoPin {
		c.ButtonPin = button
	}
	if c.LEDPin == AutoPin {
		c.LEDPin = led
	}
}

// Validate checks the configuration for values the daemon cannot run with.
func (c Config) Validate() error {
	known := false
	for _, b := range gpio.Backends {
		if c.Backend == b {
			known = true
			break
		}
	}
	if !known {
		return errors.Errorf("unknown backend %q (want one of %s)", c.Backend, strings.Join(gpio.Backends, ", "))
	}
	if c.ButtonPin < 0 || c.LEDPin < 0 {
		return errors.Errorf("pins must not be negative (button=%d led=%d)", c.ButtonPin, c.LEDPin)
	}
	if c.ButtonPin == c.LEDPin {
		return errors.Errorf("button and led share pin %d", c.ButtonPin)
	}
	if c.Backend == gpio.BackendSim && (c.ButtonPin > 7 || c.LEDPin > 7) {
		return errors.Errorf("sim port has pins 0-7 (button=%d led=%d)", c.ButtonPin, c.LEDPin)
	}
	if c.Poll < 0 {
		return errors.Errorf("poll must not be negative: %v", c.Poll)
	}
	if c.Heartbeat < 0 {
		return errors.Errorf("heartbeat must not be negative: %v", c.Heartbeat)
	}
	return nil
}

// GPIO returns the backend selection for gpio.Open.
func (c Config) GPIO() gpio.Config {
	return gpio.Config{
		Backend:   c.Backend,
		Chip:      c.Chip,
		ButtonPin: c.ButtonPin,
		LEDPin:    c.LEDPin,
	}
}

// LoadEnvFile merges variables from path into the process environment
// without overriding ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "load env file %s", path)
	}
	return nil
}
