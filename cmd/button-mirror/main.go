// Command button-mirror lights an LED while a push-button is held, polling the
// button as fast as the loop runs, and reports transitions to MQTT.
package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/button-mirror/internal/config"
)

var (
	configPath string
	cfg        config.Config

	flagCfg = config.Default()

	rootCmd = &cobra.Command{
		Use:               "button-mirror",
		Short:             "Mirror an active-low button onto an LED",
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the mirror daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}
	stateCmd = &cobra.Command{
		Use:   "state",
		Short: "Print the current button state and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printState(cmd.OutOrStdout(), cfg)
		},
	}
	simCmd = &cobra.Command{
		Use:   "sim",
		Short: "Run the mirror on a simulated port with an interactive console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSim(cfg)
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "TOML config file")
	pf.StringVar(&flagCfg.LogLevel, "log-level", flagCfg.LogLevel, "Log level (debug, info, warn, error)")
	pf.StringVar(&flagCfg.Backend, "backend", flagCfg.Backend, "GPIO backend (cdev, rpio, periph, sim)")
	pf.StringVar(&flagCfg.Chip, "chip", flagCfg.Chip, "GPIO chip for the cdev backend")
	pf.IntVar(&flagCfg.ButtonPin, "button", flagCfg.ButtonPin, "Button pin (-1 = backend default)")
	pf.IntVar(&flagCfg.LEDPin, "led", flagCfg.LEDPin, "LED pin (-1 = backend default)")

	f := runCmd.Flags()
	f.DurationVar(&flagCfg.Poll, "poll", flagCfg.Poll, "Polling interval (0 = free-running)")
	f.DurationVar(&flagCfg.Heartbeat, "heartbeat", flagCfg.Heartbeat, "Heartbeat interval (0 to disable)")
	f.StringVar(&flagCfg.Broker, "broker", flagCfg.Broker, "MQTT broker address")
	f.StringVar(&flagCfg.HTTPAddr, "http", flagCfg.HTTPAddr, "HTTP status address (empty to disable)")
	f.StringVar(&flagCfg.EnvFile, "env-file", flagCfg.EnvFile, "Env file with NETWORK_* variables")

	simCmd.Flags().DurationVar(&flagCfg.Poll, "poll", flagCfg.Poll, "Polling interval (0 = free-running)")

	rootCmd.AddCommand(runCmd, stateCmd, simCmd)
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg, flagCfg)
	if cmd == simCmd {
		cfg.Backend = "sim"
	}
	cfg.ResolvePins()
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	return nil
}

// applyFlags copies explicitly set flags from f into c.
func applyFlags(cmd *cobra.Command, c *config.Config, f config.Config) {
	set := cmd.Flags().Changed
	if set("log-level") {
		c.LogLevel = f.LogLevel
	}
	if set("backend") {
		c.Backend = f.Backend
	}
	if set("chip") {
		c.Chip = f.Chip
	}
	if set("button") {
		c.ButtonPin = f.ButtonPin
	}
	if set("led") {
		c.LEDPin = f.LEDPin
	}
	if set("poll") {
		c.Poll = f.Poll
	}
	if set("heartbeat") {
		c.Heartbeat = f.Heartbeat
	}
	if set("broker") {
		c.Broker = f.Broker
	}
	if set("http") {
		c.HTTPAddr = f.HTTPAddr
	}
	if set("env-file") {
		c.EnvFile = f.EnvFile
	}
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("fatal")
	}
}
