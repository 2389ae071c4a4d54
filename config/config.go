// Package config loads the engine configuration from docfold.yaml, with
// DOCFOLD_* environment overrides and sensible defaults for everything.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/docfold/docfold/geometry"
	"github.com/docfold/docfold/measure"
	"github.com/docfold/docfold/paginate"
)

// Measurement modes accepted by Measure.Mode.
const (
	ModeAuto      = "auto"
	ModeTypeset   = "typeset"
	ModeHeuristic = "heuristic"
	ModeScript    = "script"
)

// Config holds everything a binary needs to paginate documents.
type Config struct {
	Paper      Paper      `mapstructure:"paper"`
	Typography Typography `mapstructure:"typography"`
	Measure    Measure    `mapstructure:"measure"`
	Splitter   Splitter   `mapstructure:"splitter"`
	CoverPage  bool       `mapstructure:"cover_page"`
	Server     Server     `mapstructure:"server"`
	Debug      bool       `mapstructure:"debug"`
}

// Paper selects the physical page. Custom extents take precedence over the
// named size when both are set.
type Paper struct {
	Size     string  `mapstructure:"size"` // a4, letter, legal, a3, a5
	WidthMM  float64 `mapstructure:"width_mm"`
	HeightMM float64 `mapstructure:"height_mm"`
	Margins  Margins `mapstructure:"margins"`
	DPI      float64 `mapstructure:"dpi"`
}

// Margins are page margins in millimetres.
type Margins struct {
	TopMM    float64 `mapstructure:"top_mm"`
	BottomMM float64 `mapstructure:"bottom_mm"`
	LeftMM   float64 `mapstructure:"left_mm"`
	RightMM  float64 `mapstructure:"right_mm"`
}

// Typography sets the base text style used for measurement.
type Typography struct {
	FontPath   string  `mapstructure:"font_path"` // TTF used by typeset mode
	FontSize   float64 `mapstructure:"font_size"`
	LineHeight float64 `mapstructure:"line_height"`
}

// Measure selects the height resolver backend.
type Measure struct {
	Mode       string        `mapstructure:"mode"`
	ScriptPath string        `mapstructure:"script_path"` // measure() source for script mode
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Splitter tunes paragraph splitting across page boundaries.
type Splitter struct {
	Enabled  bool    `mapstructure:"enabled"`
	MinRatio float64 `mapstructure:"min_ratio"`
	MaxRatio float64 `mapstructure:"max_ratio"`
	MinRunes int     `mapstructure:"min_runes"`
}

// Server configures the HTTP facade.
type Server struct {
	Addr   string `mapstructure:"addr"`
	APIKey string `mapstructure:"api_key"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Paper: Paper{
			Size:    "a4",
			DPI:     geometry.DefaultDPI,
			Margins: Margins{TopMM: 25.4, BottomMM: 25.4, LeftMM: 25.4, RightMM: 25.4},
		},
		Typography: Typography{
			FontSize:   measure.DefaultFontSize,
			LineHeight: measure.DefaultLineHeight,
		},
		Measure:  Measure{Mode: ModeAuto, Timeout: 5 * time.Second},
		Splitter: Splitter{Enabled: true, MinRatio: 0.15, MaxRatio: 0.9, MinRunes: 20},
		Server:   Server{Addr: ":8085"},
	}
}

// Load reads configuration from configPath, or searches the working
// directory and home directory for docfold.yaml when the path is empty.
// A missing file in search mode falls back to defaults; an explicit path
// that cannot be read is an error. DOCFOLD_* environment variables
// override file values (DOCFOLD_SERVER_ADDR overrides server.addr).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName("docfold")
		v.SetConfigType("yaml")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("DOCFOLD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paper.size", "a4")
	v.SetDefault("paper.dpi", geometry.DefaultDPI)
	v.SetDefault("paper.margins.top_mm", 25.4)
	v.SetDefault("paper.margins.bottom_mm", 25.4)
	v.SetDefault("paper.margins.left_mm", 25.4)
	v.SetDefault("paper.margins.right_mm", 25.4)
	v.SetDefault("typography.font_size", measure.DefaultFontSize)
	v.SetDefault("typography.line_height", measure.DefaultLineHeight)
	v.SetDefault("measure.mode", ModeAuto)
	v.SetDefault("measure.timeout", 5*time.Second)
	v.SetDefault("splitter.enabled", true)
	v.SetDefault("splitter.min_ratio", 0.15)
	v.SetDefault("splitter.max_ratio", 0.9)
	v.SetDefault("splitter.min_runes", 20)
	v.SetDefault("cover_page", false)
	v.SetDefault("server.addr", ":8085")
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Measure.Mode) {
	case ModeAuto, ModeTypeset, ModeHeuristic, ModeScript:
	default:
		return fmt.Errorf("unknown measurement mode %q", c.Measure.Mode)
	}
	if strings.ToLower(c.Measure.Mode) == ModeScript && c.Measure.ScriptPath == "" {
		return errors.New("measurement mode script requires measure.script_path")
	}
	if strings.ToLower(c.Measure.Mode) == ModeTypeset && c.Typography.FontPath == "" {
		return errors.New("measurement mode typeset requires typography.font_path")
	}
	custom := c.Paper.WidthMM > 0 && c.Paper.HeightMM > 0
	if !custom {
		if _, err := geometry.PaperSizeByName(c.Paper.Size); err != nil {
			return err
		}
	}
	if _, err := c.Geometry(); err != nil {
		return err
	}
	return nil
}

// Geometry resolves the configured paper, margins, and DPI to pixels.
func (c *Config) Geometry() (geometry.Geometry, error) {
	paper := geometry.A4
	if c.Paper.WidthMM > 0 && c.Paper.HeightMM > 0 {
		paper = geometry.PaperSize{Width: c.Paper.WidthMM, Height: c.Paper.HeightMM, Name: "custom"}
	} else if c.Paper.Size != "" {
		p, err := geometry.PaperSizeByName(c.Paper.Size)
		if err != nil {
			return geometry.Geometry{}, err
		}
		paper = p
	}
	m := geometry.Margins{
		Top:    c.Paper.Margins.TopMM,
		Bottom: c.Paper.Margins.BottomMM,
		Left:   c.Paper.Margins.LeftMM,
		Right:  c.Paper.Margins.RightMM,
	}
	geo := geometry.Resolve(paper, m, c.Paper.DPI)
	if !geo.Valid() {
		return geometry.Geometry{}, fmt.Errorf("margins leave no content area on %s", paper.Name)
	}
	return geo, nil
}

// PageSplitter builds the configured paragraph splitter, or nil when
// splitting is disabled. Non-positive thresholds keep the defaults.
func (c *Config) PageSplitter() *paginate.Splitter {
	if !c.Splitter.Enabled {
		return nil
	}
	s := paginate.NewSplitter()
	if c.Splitter.MinRatio > 0 {
		s.MinRatio = c.Splitter.MinRatio
	}
	if c.Splitter.MaxRatio > 0 {
		s.MaxRatio = c.Splitter.MaxRatio
	}
	if c.Splitter.MinRunes > 0 {
		s.MinRunes = c.Splitter.MinRunes
	}
	return s
}
