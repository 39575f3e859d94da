package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cfnotifier/cfnotifier/internal/logbuffer"
	"github.com/cfnotifier/cfnotifier/internal/version"
)

// rootCmd runs the poller when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "cfnotifier",
	Short: "Forward new Cloudflare security events to notification channels",
	Long: `cfnotifier polls the Cloudflare API for new security events on a set of
zones and delivers each event once to a webhook, desktop toasts or kafka.

Every flag can also be set with a CFNOTIFIER_* environment variable,
e.g. CFNOTIFIER_LOG_LEVEL=debug.`,
	SilenceUsage: true,
	RunE:         runE,
}

func init() {
	cobra.OnInitialize(initViper)

	pf := rootCmd.PersistentFlags()
	pf.String("config", defaultConfigPath(), "path to the YAML config file")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("config", pf.Lookup("config"))
	_ = viper.BindPFlag("log_level", pf.Lookup("log-level"))

	rootCmd.Flags().Bool("once", false, "run a single poll cycle and exit")
}

func initViper() {
	viper.SetEnvPrefix("CFNOTIFIER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// defaultConfigPath is config.yaml under the user config dir
// (%APPDATA%\cfnotifier on Windows, ~/.config/cfnotifier elsewhere).
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "cfnotifier", "config.yaml")
}

func configPath() string {
	return viper.GetString("config")
}

// newLogger builds the process logger. Output goes to stdout and to a ring
// buffer served by the API.
func newLogger() (zerolog.Logger, *logbuffer.Buffer) {
	logBuffer := logbuffer.New(1000)

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(viper.GetString("log_level"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	info := version.Get()
	logger := zerolog.New(io.MultiWriter(os.Stdout, logBuffer)).With().
		Timestamp().
		Str("version", info.Version).
		Str("commit", info.Commit).
		Logger()
	return logger, logBuffer
}
