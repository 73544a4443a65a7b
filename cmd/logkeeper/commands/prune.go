package commands

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/raoulx24/logkeeper/internal/daemon"
	"github.com/raoulx24/logkeeper/internal/retention"
)

func newPruneCmd(v *viper.Viper) *cobra.Command {
	var (
		targets []string
		dryRun  bool
		files   bool
	)
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Run one retention pass now",
		Long: `Prune runs a single pass over the named targets, or over every target when
none is given. With --dry-run nothing is deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := openDaemon(cmd, v)
			if err != nil {
				return err
			}
			defer d.Close()

			if len(targets) == 0 {
				for _, t := range d.Targets() {
					targets = append(targets, t.Config.Name)
				}
			}

			var (
				results []retention.Result
				errs    []error
			)
			for _, name := range targets {
				res, err := d.Prune(cmd.Context(), name, dryRun)
				if errors.Is(err, daemon.ErrUnknownTarget) {
					return err
				}
				if err != nil {
					errs = append(errs, errors.Wrapf(err, "target %q", name))
				}
				results = append(results, res)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, summaryTable(results))
			if files || dryRun {
				fmt.Fprintln(out, filesTable(results))
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringSliceVarP(&targets, "target", "t", nil, "target to prune (repeatable, default all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "select files without deleting them")
	cmd.Flags().BoolVar(&files, "files", false, "list every selected file (always on with --dry-run)")
	return cmd
}

func summaryTable(results []retention.Result) string {
	headers := []string{"Target", "Mode", "Scanned", "Selected", "Deleted", "Failed", "Freed", "Took"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Target,
			mode(r.TestMode),
			strconv.Itoa(r.Scanned),
			strconv.Itoa(len(r.Selected)),
			strconv.Itoa(len(r.Deleted)),
			strconv.Itoa(len(r.Failed)),
			humanize.Bytes(freed(r)),
			r.Duration.Round(time.Millisecond).String(),
		})
	}
	return renderTable(headers, rows, aligns)
}

func filesTable(results []retention.Result) string {
	headers := []string{"Target", "File", "Size", "Modified", "Outcome"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft}

	var rows [][]string
	for _, r := range results {
		failed := make(map[string]error, len(r.Failed))
		for _, f := range r.Failed {
			failed[f.Path] = f.Err
		}
		for _, f := range r.Selected {
			outcome := "deleted"
			switch err, ok := failed[f.Path]; {
			case ok:
				outcome = "failed: " + err.Error()
			case r.TestMode:
				outcome = "would delete"
			}
			rel, err := filepath.Rel(r.BasePath, f.Path)
			if err != nil {
				rel = f.Path
			}
			rows = append(rows, []string{
				r.Target,
				rel,
				humanize.Bytes(uint64(max(f.Size, 0))),
				humanize.Time(f.MTime),
				outcome,
			})
		}
	}
	return renderTable(headers, rows, aligns)
}

func mode(test bool) string {
	if test {
		return "dry-run"
	}
	return "delete"
}

func freed(r retention.Result) uint64 {
	var n int64
	for _, f := range r.Deleted {
		n += f.Size
	}
	return uint64(max(n, 0))
}
