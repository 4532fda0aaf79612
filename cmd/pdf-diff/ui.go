package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/spherical/pdf-diff/pkg/pdfdiff"
)

// UI provides user-friendly output utilities.
type UI struct {
	out     io.Writer
	noColor bool
	bar     *progressbar.ProgressBar
}

// NewUI creates a new UI instance.
func NewUI(noColor bool) *UI {
	if noColor {
		color.NoColor = true
	}
	return &UI{out: os.Stdout, noColor: noColor}
}

func (ui *UI) print(attr color.Attribute, symbol, format string, args ...interface{}) {
	line := fmt.Sprintf("%s %s\n", symbol, fmt.Sprintf(format, args...))
	if ui.noColor {
		fmt.Fprint(ui.out, line)
		return
	}
	color.New(attr).Fprint(ui.out, line)
}

// Success prints a success message.
func (ui *UI) Success(format string, args ...interface{}) { ui.print(color.FgGreen, "✓", format, args...) }

// Warning prints a warning message.
func (ui *UI) Warning(format string, args ...interface{}) { ui.print(color.FgYellow, "⚠", format, args...) }

// Info prints an info message.
func (ui *UI) Info(format string, args ...interface{}) { ui.print(color.FgCyan, "ℹ", format, args...) }

// Error prints an error message to stderr.
func (ui *UI) Error(format string, args ...interface{}) {
	msg := fmt.Sprintf("✗ %s\n", fmt.Sprintf(format, args...))
	if ui.noColor {
		fmt.Fprint(os.Stderr, msg)
		return
	}
	color.New(color.FgRed).Fprint(os.Stderr, msg)
}

// Section prints a section header.
func (ui *UI) Section(title string) {
	if ui.noColor {
		fmt.Fprintf(ui.out, "\n%s\n%s\n", title, strings.Repeat("=", len(title)))
		return
	}
	color.New(color.FgMagenta, color.Bold).Fprintf(ui.out, "\n━━━ %s ━━━\n", strings.ToUpper(title))
}

// Progress advances the page progress bar, creating it on the first page event.
func (ui *UI) Progress(p pdfdiff.PageProgress, done bool) {
	if ui.bar == nil {
		if done || p.Total <= 0 {
			return
		}
		ui.bar = progressbar.NewOptions(p.Total,
			progressbar.OptionSetWidth(50),
			progressbar.OptionSetDescription("Comparing pages"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "│",
				BarEnd:        "│",
			}),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionEnableColorCodes(!ui.noColor),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(os.Stderr, "\n")
			}),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	if done {
		_ = ui.bar.Add(1)
	}
}

// FinishProgress completes the bar if one was started.
func (ui *UI) FinishProgress() {
	if ui.bar != nil {
		_ = ui.bar.Finish()
	}
}

// Summary prints the run totals and the pages that changed.
func (ui *UI) Summary(res *pdfdiff.Result) {
	s := res.Summary
	t := s.Totals

	ui.Section("Summary")
	fmt.Fprintf(ui.out, "  Pages compared:   %d (padded %d)\n", t.Pages, t.PaddedPages)
	fmt.Fprintf(ui.out, "  Changed pixels:   %d\n", t.ChangedPixels)
	fmt.Fprintf(ui.out, "  Text changes:     %d (+%d / -%d)\n", t.TextChangeSpans, t.Inserts, t.Deletes)
	fmt.Fprintf(ui.out, "  Mapped boxes:     %d\n", t.MappedBoxes)
	if t.PagesWithoutPixelCount > 0 {
		fmt.Fprintf(ui.out, "  No pixel count:   %d page(s)\n", t.PagesWithoutPixelCount)
	}

	for _, p := range s.Pages {
		if p.ChangedPixels == 0 && p.TextChangeSpans == 0 {
			continue
		}
		pixels := "n/a"
		if p.ChangedPixels >= 0 {
			pixels = fmt.Sprint(p.ChangedPixels)
		}
		ui.Warning("Page %d: %s changed pixels, %d text change(s), %d box(es) [%s]",
			p.PageIndex+1, pixels, p.TextChangeSpans, p.MappedBoxes, p.Alignment)
	}

	if degradations := s.Degradations(); len(degradations) > 0 {
		ui.Info("%d stage fallback(s) recorded on %d page(s); see %s", len(degradations), t.DegradedPages, res.SummaryPath)
	}
	for _, d := range s.Document {
		ui.Warning("Output: %s", d)
	}

	fmt.Fprintln(ui.out)
	if s.HasChanges() {
		ui.Warning("Documents differ")
	} else {
		ui.Success("No differences found")
	}
	ui.Success("Annotated document: %s", res.OutputPath)
	ui.Success("Summary: %s", res.SummaryPath)
}
