package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ErrDroppedConditions is returned by check when any condition failed to
// build.
var ErrDroppedConditions = errors.New("some retention conditions could not be built")

func newCheckCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and build every condition chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := openDaemon(cmd, v)
			if err != nil {
				return err
			}
			defer d.Close()

			headers := []string{"Target", "Base path", "Watch", "Schedule", "Next run", "Conditions", "Dropped"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight}

			var (
				rows    [][]string
				dropped []string
			)
			for _, t := range d.Targets() {
				next := "-"
				if at, ok := d.NextRun(t.Config.Name); ok {
					next = humanize.Time(at)
				}
				rows = append(rows, []string{
					t.Config.Name,
					t.Config.BasePath,
					t.Config.Watch.Mode,
					orDash(t.Config.Schedule),
					next,
					strconv.Itoa(t.Engine.Conditions()),
					strconv.Itoa(len(t.Dropped)),
				})
				for _, err := range t.Dropped {
					dropped = append(dropped, fmt.Sprintf("  %s: %v", t.Config.Name, err))
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			if len(dropped) > 0 {
				fmt.Fprintln(out, "Dropped conditions:")
				fmt.Fprintln(out, strings.Join(dropped, "\n"))
				return errors.Wrapf(ErrDroppedConditions, "%d dropped", len(dropped))
			}
			fmt.Fprintln(out, "configuration ok")
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
