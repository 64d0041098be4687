// Package config defines the validated settings record (spec.md §6) and
// loads it from a YAML file via gopkg.in/yaml.v3, the way
// k-kohey-axe-cli and dixieflatline76-Spice in the retrieval pack load
// their own kebab-case settings files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lumaframe/frame/internal/errs"
)

// Selection chooses among an "active" list of variants.
type Selection string

const (
	SelectionSequential Selection = "sequential"
	SelectionRandom     Selection = "random"
)

func (s Selection) validate(field string) error {
	switch s {
	case SelectionSequential, SelectionRandom, "":
		return nil
	default:
		return fmt.Errorf("%s: unknown selection %q", field, s)
	}
}

// TransitionEntry is one member of transition.active.
type TransitionEntry struct {
	Kind               string    `yaml:"kind"`
	DurationMS         int       `yaml:"duration-ms"`
	ThroughBlack       bool      `yaml:"through-black,omitempty"`
	AngleListDegrees   []float64 `yaml:"angle-list-degrees,omitempty"`
	AngleSelection     Selection `yaml:"angle-selection,omitempty"`
	AngleJitterDegrees float64   `yaml:"angle-jitter-degrees,omitempty"`
	Softness           float64   `yaml:"softness,omitempty"`
	FlashCount         int       `yaml:"flash-count,omitempty"`
	RevealPortion      float64   `yaml:"reveal-portion,omitempty"`
	StripeCount        int       `yaml:"stripe-count,omitempty"`
	FlashColor         string    `yaml:"flash-color,omitempty"`
	Blades             int       `yaml:"blades,omitempty"`
	OpenScale          float64   `yaml:"open-scale,omitempty"`
}

// TransitionConfig is the transition block.
type TransitionConfig struct {
	Active    []TransitionEntry `yaml:"active"`
	Selection Selection         `yaml:"selection"`
}

// MattingEntry is one member of matting.active.
type MattingEntry struct {
	Kind                 string    `yaml:"kind"`
	MinimumMatPercentage float64   `yaml:"minimum-mat-percentage"`
	MaxUpscaleFactor     float64   `yaml:"max-upscale-factor"`
	Colors               []string  `yaml:"colors,omitempty"`
	ColorSelection       Selection `yaml:"color-selection,omitempty"`
	Sigma                float64   `yaml:"sigma,omitempty"`
	SampleScale          float64   `yaml:"sample-scale,omitempty"`
	Backend              string    `yaml:"backend,omitempty"`
	PhotoAverage         bool      `yaml:"photo-average,omitempty"`
	BevelWidthPx         float64   `yaml:"bevel-width-px,omitempty"`
	BevelColor           string    `yaml:"bevel-color,omitempty"`
	TextureStrength      float64   `yaml:"texture-strength,omitempty"`
	WarpPeriodPx         float64   `yaml:"warp-period-px,omitempty"`
	WeftPeriodPx         float64   `yaml:"weft-period-px,omitempty"`
	Paths                []string  `yaml:"paths,omitempty"`
	PathSelection        Selection `yaml:"path-selection,omitempty"`
	Fit                  string    `yaml:"fit,omitempty"`
}

// MattingConfig is the matting block.
type MattingConfig struct {
	Active    []MattingEntry `yaml:"active"`
	Selection Selection      `yaml:"selection"`
}

// EffectConfig is the photo-effect block.
type EffectConfig struct {
	Active    []string       `yaml:"active"`
	Selection Selection      `yaml:"selection"`
	Options   map[string]any `yaml:"options,omitempty"`
}

// ScreenColors is the colors sub-block of greeting/sleep screens.
type ScreenColors struct {
	Background string `yaml:"background"`
	Font       string `yaml:"font"`
	Accent     string `yaml:"accent"`
}

// ScreenConfig is the greeting-screen / sleep-screen block.
type ScreenConfig struct {
	Message         string       `yaml:"message"`
	Font            string       `yaml:"font"`
	StrokeWidth     float64      `yaml:"stroke-width"`
	CornerRadius    float64      `yaml:"corner-radius"`
	DurationSeconds float64      `yaml:"duration-seconds"`
	Colors          ScreenColors `yaml:"colors"`
}

// DayWindow is an on-hours window expressed as local clock times "HH:MM".
type DayWindow struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// DisplayPower holds the optional sleep/wake shell commands.
type DisplayPower struct {
	SleepCommand string `yaml:"sleep-command,omitempty"`
	WakeCommand  string `yaml:"wake-command,omitempty"`
}

// SleepModeConfig is the sleep-mode block.
type SleepModeConfig struct {
	Timezone        string               `yaml:"timezone"`
	OnHours         DayWindow            `yaml:"on-hours"`
	WeekdayOverride *DayWindow           `yaml:"weekday-override,omitempty"`
	WeekendOverride *DayWindow           `yaml:"weekend-override,omitempty"`
	Days            map[string]DayWindow `yaml:"days,omitempty"`
	DimBrightness   float64              `yaml:"dim-brightness"`
	DisplayPower    DisplayPower         `yaml:"display-power"`
}

// PlaylistConfig is the playlist block.
type PlaylistConfig struct {
	NewMultiplicity float64 `yaml:"new-multiplicity"`
	HalfLife        string  `yaml:"half-life"`
}

// DisplayConfig describes the kiosk's physical output, the basis for
// canvas_max (spec.md §4.3: "derived from the display size × oversample").
type DisplayConfig struct {
	WidthPx  int `yaml:"width-px"`
	HeightPx int `yaml:"height-px"`
}

// Raw is the YAML-shaped configuration, as read from disk.
type Raw struct {
	PhotoLibraryPath           string           `yaml:"photo-library-path"`
	Transition                 TransitionConfig `yaml:"transition"`
	DwellMS                    int              `yaml:"dwell-ms"`
	ViewerPreloadCount         int              `yaml:"viewer-preload-count"`
	LoaderMaxConcurrentDecodes int              `yaml:"loader-max-concurrent-decodes"`
	Oversample                 float64          `yaml:"oversample"`
	StartupShuffleSeed         *uint64          `yaml:"startup-shuffle-seed"`
	Playlist                   PlaylistConfig   `yaml:"playlist"`
	Matting                    MattingConfig    `yaml:"matting"`
	PhotoEffect                EffectConfig     `yaml:"photo-effect"`
	GreetingScreen             ScreenConfig     `yaml:"greeting-screen"`
	SleepScreen                ScreenConfig     `yaml:"sleep-screen"`
	SleepMode                  SleepModeConfig  `yaml:"sleep-mode"`
	ControlSocketPath          string           `yaml:"control-socket-path"`
	Display                    DisplayConfig    `yaml:"display"`
}

// Settings is the validated, defaulted record every component receives by
// value at startup (spec.md §5, "configuration is passed by value").
type Settings struct {
	PhotoLibraryPath           string
	Transition                 TransitionConfig
	DwellMS                    int
	ViewerPreloadCount         int
	LoaderMaxConcurrentDecodes int
	Oversample                 float64
	StartupShuffleSeed         *uint64
	NewMultiplicity            float64
	HalfLife                   time.Duration
	Matting                    MattingConfig
	PhotoEffect                EffectConfig
	GreetingScreen             ScreenConfig
	SleepScreen                ScreenConfig
	SleepMode                  SleepModeConfig
	ControlSocketPath          string
	Display                    DisplayConfig
}

const defaultControlSocketPath = "/run/photo-frame/control.sock"

// Load reads and validates a YAML configuration file at path.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, errs.New(errs.ConfigInvalid, "", fmt.Errorf("read %s: %w", path, err))
	}

	var raw Raw
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Settings{}, errs.New(errs.ConfigInvalid, "", fmt.Errorf("parse %s: %w", path, err))
	}

	return validate(raw)
}

func validate(raw Raw) (Settings, error) {
	fail := func(format string, args ...any) (Settings, error) {
		return Settings{}, errs.New(errs.ConfigInvalid, "", fmt.Errorf(format, args...))
	}

	if raw.PhotoLibraryPath == "" {
		return fail("photo-library-path is required")
	}

	s := Settings{
		PhotoLibraryPath:           raw.PhotoLibraryPath,
		Transition:                 raw.Transition,
		DwellMS:                    raw.DwellMS,
		ViewerPreloadCount:         raw.ViewerPreloadCount,
		LoaderMaxConcurrentDecodes: raw.LoaderMaxConcurrentDecodes,
		Oversample:                 raw.Oversample,
		StartupShuffleSeed:         raw.StartupShuffleSeed,
		NewMultiplicity:            raw.Playlist.NewMultiplicity,
		Matting:                    raw.Matting,
		PhotoEffect:                raw.PhotoEffect,
		GreetingScreen:             raw.GreetingScreen,
		SleepScreen:                raw.SleepScreen,
		SleepMode:                  raw.SleepMode,
		ControlSocketPath:          raw.ControlSocketPath,
		Display:                    raw.Display,
	}

	if s.DwellMS == 0 {
		s.DwellMS = 2000
	}
	if s.DwellMS <= 0 {
		return fail("dwell-ms must be > 0, got %d", s.DwellMS)
	}

	if s.ViewerPreloadCount == 0 {
		s.ViewerPreloadCount = 3
	}
	if s.ViewerPreloadCount < 1 {
		return fail("viewer-preload-count must be >= 1, got %d", s.ViewerPreloadCount)
	}

	if s.LoaderMaxConcurrentDecodes == 0 {
		s.LoaderMaxConcurrentDecodes = 4
	}
	if s.LoaderMaxConcurrentDecodes < 1 {
		return fail("loader-max-concurrent-decodes must be >= 1, got %d", s.LoaderMaxConcurrentDecodes)
	}

	if s.Oversample == 0 {
		s.Oversample = 1.0
	}
	if s.Oversample <= 0 {
		return fail("oversample must be > 0, got %f", s.Oversample)
	}

	if s.NewMultiplicity < 1 {
		s.NewMultiplicity = 1
	}
	halfLife := raw.Playlist.HalfLife
	if halfLife == "" {
		halfLife = "24h"
	}
	d, err := time.ParseDuration(halfLife)
	if err != nil {
		return fail("playlist.half-life %q: %w", halfLife, err)
	}
	if d <= 0 {
		return fail("playlist.half-life must be positive, got %s", d)
	}
	s.HalfLife = d

	if err := s.Transition.Selection.validate("transition.selection"); err != nil {
		return fail("%w", err)
	}
	for i := range s.Transition.Active {
		t := &s.Transition.Active[i]
		switch t.Kind {
		case "none", "fade", "wipe", "push", "e-ink", "iris":
		default:
			return fail("transition.active[%d].kind: unknown kind %q", i, t.Kind)
		}
		if t.Kind == "wipe" && (t.Softness < 0 || t.Softness > 0.5) {
			return fail("transition.active[%d].softness must be in [0, 0.5]", i)
		}
		if t.Kind == "e-ink" {
			if t.FlashCount > 6 {
				return fail("transition.active[%d].flash-count must be <= 6", i)
			}
			if t.RevealPortion != 0 && (t.RevealPortion < 0.05 || t.RevealPortion > 0.95) {
				return fail("transition.active[%d].reveal-portion must be in [0.05, 0.95]", i)
			}
			if t.StripeCount == 0 {
				t.StripeCount = 4
			}
			if t.StripeCount < 1 {
				return fail("transition.active[%d].stripe-count must be >= 1", i)
			}
		}
	}

	if err := s.Matting.Selection.validate("matting.selection"); err != nil {
		return fail("%w", err)
	}
	for i := range s.Matting.Active {
		m := &s.Matting.Active[i]
		switch m.Kind {
		case "fixed-color", "blur", "studio", "fixed-image":
		default:
			return fail("matting.active[%d].kind: unknown kind %q", i, m.Kind)
		}
		if m.MinimumMatPercentage < 0 {
			m.MinimumMatPercentage = 0
		}
		if m.MinimumMatPercentage > 45 {
			m.MinimumMatPercentage = 45
		}
		if m.MaxUpscaleFactor < 1 {
			m.MaxUpscaleFactor = 1
		}
	}

	if s.SleepMode.Timezone != "" {
		if _, err := time.LoadLocation(s.SleepMode.Timezone); err != nil {
			return fail("sleep-mode.timezone %q: %w", s.SleepMode.Timezone, err)
		}
		if s.SleepMode.OnHours.Start == s.SleepMode.OnHours.End {
			return fail("sleep-mode.on-hours: start must differ from end")
		}
	}
	if s.SleepMode.DimBrightness == 0 {
		s.SleepMode.DimBrightness = 0.05
	}
	if s.SleepMode.DimBrightness < 0 || s.SleepMode.DimBrightness > 1 {
		return fail("sleep-mode.dim-brightness must be in [0, 1], got %f", s.SleepMode.DimBrightness)
	}

	if s.ControlSocketPath == "" {
		s.ControlSocketPath = defaultControlSocketPath
	}

	if s.Display.WidthPx == 0 {
		s.Display.WidthPx = 1920
	}
	if s.Display.HeightPx == 0 {
		s.Display.HeightPx = 1080
	}
	if s.Display.WidthPx < 1 || s.Display.HeightPx < 1 {
		return fail("display width-px/height-px must be positive")
	}

	return s, nil
}
