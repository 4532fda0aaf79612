package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/spherical/pdf-diff/internal/domain"
	"github.com/spherical/pdf-diff/internal/storage"
)

// newHistoryCmd creates the history subcommand.
func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded comparison runs, or show one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("db")
			if path == "" {
				path = cfg.Storage.SQLitePath
			}
			if path == "" {
				return domain.ConfigError("no run history database; pass --db or set PDFDIFF_DB", nil)
			}

			store, err := storage.Open(cmd.Context(), path)
			if err != nil {
				return err
			}
			defer store.Close()

			ui := NewUI(noColor)
			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return domain.ValidationError("invalid run id", err)
				}
				run, err := store.Runs().GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				printRun(ui, run)
				return nil
			}

			runs, err := store.Runs().List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				ui.Info("No runs recorded in %s", path)
				return nil
			}
			ui.Section("Runs")
			for _, r := range runs {
				fmt.Fprintf(ui.out, "  %s  %s  %d page(s), %d changed  %s -> %s\n",
					r.ID, r.GeneratedAt.Local().Format(time.DateTime), r.Totals.Pages, r.Totals.PagesWithChanges,
					r.Reference, r.Comparison)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	return cmd
}

func printRun(ui *UI, run *storage.Run) {
	ui.Section("Run " + run.ID.String())
	fmt.Fprintf(ui.out, "  Generated:  %s\n", run.GeneratedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(ui.out, "  Reference:  %s\n", run.Reference)
	fmt.Fprintf(ui.out, "  Comparison: %s\n", run.Comparison)
	fmt.Fprintf(ui.out, "  Output:     %s\n", run.OutputPath)
	fmt.Fprintf(ui.out, "  Totals:     %d changed pixels, %d text changes, %d boxes\n",
		run.Totals.ChangedPixels, run.Totals.TextChangeSpans, run.Totals.MappedBoxes)
	for _, p := range run.Pages {
		fmt.Fprintf(ui.out, "  page %-4d %8d px  %3d spans  %3d boxes  %s\n",
			p.PageIndex+1, p.ChangedPixels, p.TextChangeSpans, p.MappedBoxes, p.Alignment)
	}
}
