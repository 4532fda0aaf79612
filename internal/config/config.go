// Package config provides unified configuration loading for pdf-diff.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// Page-count policies for documents with different page counts.
const (
	PagePolicyPad    = "pad"
	PagePolicyStrict = "strict"
)

// Config holds all configuration for a comparison run.
type Config struct {
	Output        OutputConfig        `yaml:"output"`
	Raster        RasterConfig        `yaml:"raster"`
	Align         AlignConfig         `yaml:"align"`
	PixelDiff     PixelDiffConfig     `yaml:"pixel_diff"`
	Text          TextConfig          `yaml:"text"`
	OCR           OCRConfig           `yaml:"ocr"`
	Compose       ComposeConfig       `yaml:"compose"`
	Signals       SignalsConfig       `yaml:"signals"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// OutputConfig holds where artifacts are written.
type OutputConfig struct {
	Directory string `yaml:"directory"`
}

// RasterConfig holds rendering settings.
type RasterConfig struct {
	DPI float64 `yaml:"dpi"`
}

// AlignConfig holds image registration settings.
type AlignConfig struct {
	MinMatches      int     `yaml:"min_matches"`
	MaxKeypoints    int     `yaml:"max_keypoints"`
	WorkingSize     int     `yaml:"working_size"`
	RansacIters     int     `yaml:"ransac_iterations"`
	RansacTolerance float64 `yaml:"ransac_tolerance"`
}

// PixelDiffConfig holds perceptual diff settings.
type PixelDiffConfig struct {
	Threshold        float64 `yaml:"threshold"`
	HighlightColor   string  `yaml:"highlight_color"`
	IncludeAntiAlias bool    `yaml:"include_anti_alias"`
}

// TextConfig holds extraction and diff settings.
type TextConfig struct {
	MinNativeChars int `yaml:"min_native_chars"`
	MaxSpanChars   int `yaml:"max_span_chars"`
}

// OCRConfig holds OCR engine settings.
type OCRConfig struct {
	Languages     []string `yaml:"languages"`
	TesseractPath string   `yaml:"tesseract_path"`
	LLMAPIKey     string   `yaml:"-"`
	LLMModel      string   `yaml:"llm_model"`
}

// ComposeConfig holds output document settings.
type ComposeConfig struct {
	BoxOpacity      float64 `yaml:"box_opacity"`
	SummaryMaxLines int     `yaml:"summary_max_lines"`
	AttachSummary   bool    `yaml:"attach_summary"`
}

// SignalsConfig toggles minima signal comparison on the summary page.
type SignalsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// PipelineConfig holds concurrency and page-count settings.
type PipelineConfig struct {
	Workers    int    `yaml:"workers"`
	PagePolicy string `yaml:"page_policy"` // pad or strict
}

// StorageConfig holds the optional run history database.
type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies .env and environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	_ = godotenv.Load() // Ignore error if .env doesn't exist

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with the documented defaults.
func DefaultConfig() *Config {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	return &Config{
		Output: OutputConfig{
			Directory: "pdf-diff-out",
		},
		Raster: RasterConfig{
			DPI: 300,
		},
		Align: AlignConfig{
			MinMatches:      8,
			MaxKeypoints:    600,
			WorkingSize:     1000,
			RansacIters:     2000,
			RansacTolerance: 3.0,
		},
		PixelDiff: PixelDiffConfig{
			Threshold:      0.08,
			HighlightColor: "#ff0000",
		},
		Text: TextConfig{
			MinNativeChars: 10,
			MaxSpanChars:   500,
		},
		OCR: OCRConfig{
			Languages:     []string{"eng"},
			TesseractPath: "tesseract",
		},
		Compose: ComposeConfig{
			BoxOpacity:      0.25,
			SummaryMaxLines: 25,
			AttachSummary:   true,
		},
		Signals: SignalsConfig{
			Enabled: true,
		},
		Pipeline: PipelineConfig{
			Workers:    workers,
			PagePolicy: PagePolicyPad,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Output.Directory) == "" {
		return fmt.Errorf("output directory is required")
	}

	if c.Raster.DPI < 36 || c.Raster.DPI > 1200 {
		return fmt.Errorf("dpi must be between 36 and 1200, got %v", c.Raster.DPI)
	}

	if c.PixelDiff.Threshold < 0 || c.PixelDiff.Threshold > 1 {
		return fmt.Errorf("pixel threshold must be between 0 and 1, got %v", c.PixelDiff.Threshold)
	}

	if _, err := colorful.Hex(c.PixelDiff.HighlightColor); err != nil {
		return fmt.Errorf("invalid highlight color %q: %w", c.PixelDiff.HighlightColor, err)
	}

	if c.Align.MinMatches < 4 {
		return fmt.Errorf("min_matches must be at least 4 to fit a homography")
	}

	if c.Text.MaxSpanChars < 1 {
		return fmt.Errorf("max_span_chars must be positive")
	}

	if c.Compose.BoxOpacity < 0 || c.Compose.BoxOpacity > 1 {
		return fmt.Errorf("box_opacity must be between 0 and 1")
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	if c.Pipeline.PagePolicy != PagePolicyPad && c.Pipeline.PagePolicy != PagePolicyStrict {
		return fmt.Errorf("invalid page policy: %s", c.Pipeline.PagePolicy)
	}

	return nil
}

// HighlightRGB returns the highlight color as 8-bit channels.
func (c *Config) HighlightRGB() (r, g, b uint8) {
	col, err := colorful.Hex(c.PixelDiff.HighlightColor)
	if err != nil {
		return 255, 0, 0
	}
	return col.RGB255()
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PDFDIFF_OUTPUT_DIR"); v != "" {
		cfg.Output.Directory = v
	}

	if v := os.Getenv("PDFDIFF_DPI"); v != "" {
		if dpi, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Raster.DPI = dpi
		}
	}

	if v := os.Getenv("PDFDIFF_THRESHOLD"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.PixelDiff.Threshold = t
		}
	}

	if v := os.Getenv("PDFDIFF_HIGHLIGHT"); v != "" {
		cfg.PixelDiff.HighlightColor = v
	}

	if v := os.Getenv("PDFDIFF_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}

	if v := os.Getenv("PDFDIFF_PAGE_POLICY"); v != "" {
		cfg.Pipeline.PagePolicy = v
	}

	if v := os.Getenv("PDFDIFF_DB"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("TESSERACT_PATH"); v != "" {
		cfg.OCR.TesseractPath = v
	}

	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.OCR.LLMAPIKey = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.OCR.LLMModel = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
