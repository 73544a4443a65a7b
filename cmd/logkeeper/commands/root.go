// Package commands implements the logkeeper command line.
package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/raoulx24/logkeeper/internal/config"
	"github.com/raoulx24/logkeeper/internal/daemon"
)

const version = "0.1.0"

// EnvPrefix prefixes the environment variables that override flags, e.g.
// LOGKEEPER_LOG_LEVEL.
const EnvPrefix = "LOGKEEPER"

// NewRootCmd builds the command tree. Flags and their environment
// overrides are read through a viper instance owned by the tree.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "logkeeper",
		Short: "Prune rotated log files by configurable retention rules",
		Long: `logkeeper watches log directories and deletes rotated files selected
by an ordered chain of retention conditions: name patterns, age, file count,
accumulated size and user scripts.`,
		Example: `  # Run the daemon
  logkeeper run --config /etc/logkeeper.yaml

  # Show what a pass would delete
  logkeeper prune --target app --dry-run`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetVersionTemplate("logkeeper version {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "logkeeper.yaml", "path to the configuration file (yaml or toml)")
	pf.String("log-level", "", "override logging.level: debug, info, warn, error")
	pf.String("log-format", "", "override logging.format: text, json")
	pf.String("log-backend", "", "override logging.backend: slog, zap, logrus, zerolog")
	_ = v.BindPFlags(pf)

	root.AddCommand(
		newRunCmd(v),
		newPruneCmd(v),
		newCheckCmd(v),
		newHistoryCmd(v),
	)
	return root
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// loadConfig reads the configuration file and applies flag and
// environment overrides.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return nil, err
	}
	if s := v.GetString("log-level"); s != "" {
		cfg.Logging.Level = s
	}
	if s := v.GetString("log-format"); s != "" {
		cfg.Logging.Format = s
	}
	if s := v.GetString("log-backend"); s != "" {
		cfg.Logging.Backend = s
	}
	return cfg, nil
}

func openDaemon(cmd *cobra.Command, v *viper.Viper) (*daemon.Daemon, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}
	return daemon.New(cfg, daemon.WithOutput(cmd.ErrOrStderr()))
}
