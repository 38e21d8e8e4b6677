package main

import (
	"io"
	"os"
	"path/filepath"
	"text/template"

	"github.com/kardianos/osext"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sweeney/button-mirror/internal/config"
)

const defaultConfigPath = "/etc/button-mirror.toml"

const serviceFile = `[Unit]
Description=Button to LED mirror
After=network-online.target

[Service]
ExecStart={{.BinPath}} run -c {{.ConfigFile}}
Restart=always
KillSignal=SIGTERM

[Install]
WantedBy=multi-user.target
`

var serviceTmpl = template.Must(template.New("service").Parse(serviceFile))

var (
	installPrefix string
	installReset  bool

	installCmd = &cobra.Command{
		Use:   "install",
		Short: "Install the binary, a systemd unit and a default config",
		Args:  cobra.NoArgs,
		// Config is written, not read, so skip loadConfig.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			bin, err := osext.Executable()
			if err != nil {
				return errors.Wrap(err, "locate executable")
			}
			conf := configPath
			if conf == "" {
				conf = defaultConfigPath
			}
			return install(installPrefix, bin, conf, installReset)
		},
	}
)

func init() {
	installCmd.Flags().StringVar(&installPrefix, "prefix", "/", "Root to install under")
	installCmd.Flags().BoolVar(&installReset, "reset", false, "Overwrite an existing config file")
	rootCmd.AddCommand(installCmd)
}

// install copies bin to <prefix>/usr/bin, writes the systemd unit and, unless
// one exists and reset is false, the default config file.
func install(prefix, bin, configFile string, reset bool) error {
	if prefix == "" {
		prefix = "/"
	}

	binPath := filepath.Join(prefix, "usr/bin/button-mirror")
	if err := copyFile(bin, binPath, 0755); err != nil {
		return errors.Wrap(err, "install binary")
	}

	unitPath := filepath.Join(prefix, "usr/lib/systemd/system/button-mirror.service")
	if err := writeFile(unitPath, 0644, func(w io.Writer) error {
		return serviceTmpl.Execute(w, struct{ BinPath, ConfigFile string }{"/usr/bin/button-mirror", configFile})
	}); err != nil {
		return errors.Wrap(err, "install unit")
	}

	confPath := filepath.Join(prefix, configFile)
	if _, err := os.Stat(confPath); err == nil && !reset {
		return nil
	}
	err := writeFile(confPath, 0644, func(w io.Writer) error {
		_, err := io.WriteString(w, config.DefaultFile)
		return err
	})
	return errors.Wrap(err, "install config")
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return writeFile(dst, perm, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

func writeFile(path string, perm os.FileMode, fill func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
