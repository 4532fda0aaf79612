// Package main provides the pdf-diff CLI entrypoint.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-diff/internal/config"
	"github.com/spherical/pdf-diff/internal/domain"
	"github.com/spherical/pdf-diff/internal/observability"
	"github.com/spherical/pdf-diff/pkg/pdfdiff"
)

const version = "1.0.0"

var (
	// Global flags
	cfgFile string
	verbose bool
	noColor bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// errDifferent signals a completed run that found differences with --fail-on-diff.
var errDifferent = errors.New("documents differ")

var rootCmd = &cobra.Command{
	Use:     "pdf-diff <reference.pdf> <comparison.pdf>",
	Short:   "Compare two PDF documents visually and textually",
	Version: version,
	Long: `pdf-diff renders both documents, aligns each comparison page onto its
reference page, highlights changed pixels, diffs the page text and boxes
inserted text on the page.

Outputs, written to the output directory:
- diff.pdf       annotated pages plus a summary page
- summary.json   per-page statistics
- overlay and aligned page images`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.Observability.LogLevel = "debug"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       cfg.Observability.LogLevel,
			Format:      cfg.Observability.LogFormat,
			ServiceName: "pdf-diff",
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().String("db", "", "SQLite run history database (default: none)")

	addCompareFlags(rootCmd)
	rootCmd.Args = cobra.ExactArgs(2)
	rootCmd.RunE = runCompare

	rootCmd.AddCommand(newHistoryCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errDifferent) {
			NewUI(noColor).Error("%v", err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes differences (1), bad input (2) and a missing capability (3).
func exitCode(err error) int {
	switch {
	case errors.Is(err, errDifferent):
		return 1
	case domain.IsCapabilityMissing(err):
		return 3
	case domain.IsFatal(err):
		return 2
	default:
		return 1
	}
}

func addCompareFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("out", "o", "", "output directory (default: pdf-diff-out)")
	f.Float64("dpi", 0, "render resolution (default: 300)")
	f.Float64("threshold", 0, "pixel difference threshold 0..1 (default: 0.08)")
	f.String("color", "", "highlight color as hex (default: #ff0000)")
	f.Int("workers", 0, "pages compared in parallel (default: CPU count, max 8)")
	f.String("page-policy", "", "pad or strict handling of unequal page counts (default: pad)")
	f.Bool("anti-alias", false, "count anti-aliased pixels as changes")
	f.Bool("no-signals", false, "skip approach minima comparison on the summary page")
	f.Bool("fail-on-diff", false, "exit with status 1 when the documents differ")
}

// applyFlags overrides configuration with flags the user actually set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error
	if f.Changed("out") {
		cfg.Output.Directory, err = f.GetString("out")
	}
	if err == nil && f.Changed("dpi") {
		cfg.Raster.DPI, err = f.GetFloat64("dpi")
	}
	if err == nil && f.Changed("threshold") {
		cfg.PixelDiff.Threshold, err = f.GetFloat64("threshold")
	}
	if err == nil && f.Changed("color") {
		cfg.PixelDiff.HighlightColor, err = f.GetString("color")
	}
	if err == nil && f.Changed("workers") {
		cfg.Pipeline.Workers, err = f.GetInt("workers")
	}
	if err == nil && f.Changed("page-policy") {
		cfg.Pipeline.PagePolicy, err = f.GetString("page-policy")
	}
	if err == nil && f.Changed("anti-alias") {
		cfg.PixelDiff.IncludeAntiAlias, err = f.GetBool("anti-alias")
	}
	if err == nil && f.Changed("no-signals") {
		var off bool
		off, err = f.GetBool("no-signals")
		cfg.Signals.Enabled = !off
	}
	if err == nil && cmd.Flags().Changed("db") {
		cfg.Storage.SQLitePath, err = cmd.Flags().GetString("db")
	}
	if err != nil {
		return err
	}
	return cfg.Validate()
}

func runCompare(cmd *cobra.Command, args []string) error {
	if err := applyFlags(cmd, cfg); err != nil {
		return domain.ConfigError("invalid options", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui := NewUI(noColor)

	client, err := pdfdiff.NewClientWithConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	ui.Info("Comparing %s with %s", args[0], args[1])

	events := make(chan pdfdiff.StreamEvent, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range events {
			switch event.Type {
			case pdfdiff.EventPageProcessing:
				if p, ok := event.Payload.(pdfdiff.PageProgress); ok {
					ui.Progress(p, false)
				}
			case pdfdiff.EventPageComplete:
				ui.Progress(pdfdiff.PageProgress{}, true)
			}
		}
	}()

	result, err := client.Run(ctx, args[0], args[1], events)
	close(events)
	<-done
	ui.FinishProgress()

	if err != nil {
		return err
	}

	ui.Summary(result)

	if fail, _ := cmd.Flags().GetBool("fail-on-diff"); fail && result.Summary.HasChanges() {
		return errDifferent
	}
	return nil
}
