package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-diff/internal/config"
	"github.com/spherical/pdf-diff/internal/domain"
)

func flagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("db", "", "")
	addCompareFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestApplyFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	cmd := flagCmd(t, "--out", "runs/1", "--dpi", "150", "--color", "#00ff00",
		"--page-policy", "strict", "--no-signals", "--db", "history.db")

	require.NoError(t, applyFlags(cmd, cfg))
	assert.Equal(t, "runs/1", cfg.Output.Directory)
	assert.Equal(t, 150.0, cfg.Raster.DPI)
	assert.Equal(t, "#00ff00", cfg.PixelDiff.HighlightColor)
	assert.Equal(t, config.PagePolicyStrict, cfg.Pipeline.PagePolicy)
	assert.False(t, cfg.Signals.Enabled)
	assert.Equal(t, "history.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 0.08, cfg.PixelDiff.Threshold, "unset flags keep configured values")
}

func TestApplyFlags_Invalid(t *testing.T) {
	tests := [][]string{
		{"--threshold", "1.5"},
		{"--color", "red"},
		{"--page-policy", "loose"},
		{"--dpi", "10"},
	}
	for _, args := range tests {
		t.Run(args[0], func(t *testing.T) {
			assert.Error(t, applyFlags(flagCmd(t, args...), config.DefaultConfig()))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(errDifferent))
	assert.Equal(t, 2, exitCode(fmt.Errorf("reference: %w", domain.RasterizationError("corrupt", nil))))
	assert.Equal(t, 3, exitCode(domain.CapabilityError("MuPDF missing", nil)))
	assert.Equal(t, 1, exitCode(errors.New("other")))
}
