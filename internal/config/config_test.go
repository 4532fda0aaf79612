package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 300.0, cfg.Raster.DPI)
	assert.Equal(t, 0.08, cfg.PixelDiff.Threshold)
	assert.Equal(t, "#ff0000", cfg.PixelDiff.HighlightColor)
	assert.Equal(t, 0.25, cfg.Compose.BoxOpacity)
	assert.Equal(t, 10, cfg.Text.MinNativeChars)
	assert.Equal(t, 500, cfg.Text.MaxSpanChars)
	assert.Equal(t, 8, cfg.Align.MinMatches)
	assert.Equal(t, PagePolicyPad, cfg.Pipeline.PagePolicy)
	assert.Equal(t, []string{"eng"}, cfg.OCR.Languages)
	assert.GreaterOrEqual(t, cfg.Pipeline.Workers, 1)
	assert.LessOrEqual(t, cfg.Pipeline.Workers, 8)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty output", func(c *Config) { c.Output.Directory = " " }},
		{"dpi too low", func(c *Config) { c.Raster.DPI = 10 }},
		{"threshold above one", func(c *Config) { c.PixelDiff.Threshold = 1.5 }},
		{"bad color", func(c *Config) { c.PixelDiff.HighlightColor = "red" }},
		{"too few matches", func(c *Config) { c.Align.MinMatches = 3 }},
		{"zero span cap", func(c *Config) { c.Text.MaxSpanChars = 0 }},
		{"opacity", func(c *Config) { c.Compose.BoxOpacity = 2 }},
		{"no workers", func(c *Config) { c.Pipeline.Workers = 0 }},
		{"unknown policy", func(c *Config) { c.Pipeline.PagePolicy = "truncate" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pdf-diff.yaml")
	yaml := `
output:
  directory: /tmp/diff-out
raster:
  dpi: 150
pixel_diff:
  threshold: 0.2
  highlight_color: "#00ff00"
pipeline:
  page_policy: strict
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("PDFDIFF_WORKERS", "3")
	t.Setenv("PDFDIFF_DB", filepath.Join(dir, "runs.db"))
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/diff-out", cfg.Output.Directory)
	assert.Equal(t, 150.0, cfg.Raster.DPI)
	assert.Equal(t, 0.2, cfg.PixelDiff.Threshold)
	assert.Equal(t, PagePolicyStrict, cfg.Pipeline.PagePolicy)
	assert.Equal(t, 3, cfg.Pipeline.Workers)
	assert.Equal(t, filepath.Join(dir, "runs.db"), cfg.Storage.SQLitePath)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)

	r, g, b := cfg.HighlightRGB()
	assert.Equal(t, [3]uint8{0, 255, 0}, [3]uint8{r, g, b})
}

func TestLoad_InvalidOverride(t *testing.T) {
	t.Setenv("PDFDIFF_PAGE_POLICY", "shrink")

	_, err := Load("")
	assert.ErrorContains(t, err, "invalid page policy")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config file")
}
