package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/raoulx24/logkeeper/internal/journal"
)

var ErrNoJournal = errors.New("journal.path is not configured")

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	var (
		target string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent retention passes from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if cfg.Journal.Path == "" {
				return ErrNoJournal
			}

			j, err := journal.Open(cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer j.Close()

			passes, err := j.Recent(cmd.Context(), target, limit)
			if err != nil {
				return err
			}

			headers := []string{"Started", "Target", "Mode", "Scanned", "Deleted", "Failed", "Took", "Error"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft}
			rows := make([][]string, 0, len(passes))
			for _, p := range passes {
				rows = append(rows, []string{
					humanize.Time(p.Started),
					p.Target,
					mode(p.TestMode),
					strconv.Itoa(p.Scanned),
					strconv.Itoa(p.Deleted),
					strconv.Itoa(p.Failed),
					p.Duration.Round(time.Millisecond).String(),
					orDash(p.Error),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", "", "only passes of this target")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of passes to show")
	return cmd
}
