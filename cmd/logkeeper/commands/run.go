package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/raoulx24/logkeeper/internal/daemon"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Watch every target and prune until interrupted",
		Long: `Run starts the daemon. Passes are triggered by new rotated files, by each
target's cron schedule, and by SIGHUP-driven reloads of the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := openDaemon(cmd, v)
			if err != nil {
				return err
			}
			defer d.Close()

			for _, t := range d.Targets() {
				for _, err := range t.Dropped {
					d.Log().Warn("running with a reduced condition chain", "target", t.Config.Name, "error", err)
				}
			}

			go reloadOnHangup(ctx, v, d)

			err = d.Run(ctx)
			d.Log().Info("exit complete")
			return err
		},
	}
}

// reloadOnHangup re-reads the configuration on every SIGHUP. A file that
// fails to load leaves the running configuration in place.
func reloadOnHangup(ctx context.Context, v *viper.Viper, d *daemon.Daemon) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			cfg, err := loadConfig(v)
			if err != nil {
				d.Log().Error("config reload failed", "error", err)
				continue
			}
			if err := d.Reload(cfg); err != nil {
				d.Log().Error("config reload failed", "error", err)
			}
		}
	}
}
