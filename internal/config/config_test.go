package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lumaframe/frame/internal/errs"
)

func writeTemp(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeTemp(t, "photo-library-path: /photos\n")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.DwellMS != 2000 {
		t.Errorf("DwellMS default = %d, want 2000", s.DwellMS)
	}
	if s.ViewerPreloadCount != 3 {
		t.Errorf("ViewerPreloadCount default = %d, want 3", s.ViewerPreloadCount)
	}
	if s.LoaderMaxConcurrentDecodes != 4 {
		t.Errorf("LoaderMaxConcurrentDecodes default = %d, want 4", s.LoaderMaxConcurrentDecodes)
	}
	if s.ControlSocketPath != defaultControlSocketPath {
		t.Errorf("ControlSocketPath default = %q, want %q", s.ControlSocketPath, defaultControlSocketPath)
	}
	if s.SleepMode.DimBrightness != 0.05 {
		t.Errorf("DimBrightness default = %f, want 0.05", s.SleepMode.DimBrightness)
	}
	if s.HalfLife.Hours() != 24 {
		t.Errorf("HalfLife default = %v, want 24h", s.HalfLife)
	}
}

func TestLoadMissingPathRejected(t *testing.T) {
	path := writeTemp(t, "dwell-ms: 10\n")
	_, err := Load(path)
	if !errs.Is(err, errs.ConfigInvalid) {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
}

func TestLoadInvalidDimBrightnessRejected(t *testing.T) {
	path := writeTemp(t, "photo-library-path: /photos\nsleep-mode:\n  dim-brightness: 1.5\n")
	_, err := Load(path)
	if !errs.Is(err, errs.ConfigInvalid) {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
}

func TestLoadUnreadableFileIsConfigInvalid(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errs.Is(err, errs.ConfigInvalid) {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
	var pathErr *os.PathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("expected wrapped *os.PathError, got %v", err)
	}
}

func TestLoadRejectsUnknownTransitionKind(t *testing.T) {
	path := writeTemp(t, `
photo-library-path: /photos
transition:
  active:
    - kind: glitter
      duration-ms: 400
`)
	_, err := Load(path)
	if !errs.Is(err, errs.ConfigInvalid) {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
}

func TestLoadClampsMattingPercentage(t *testing.T) {
	path := writeTemp(t, `
photo-library-path: /photos
matting:
  active:
    - kind: fixed-color
      minimum-mat-percentage: 90
`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Matting.Active[0].MinimumMatPercentage != 45 {
		t.Errorf("MinimumMatPercentage = %f, want clamped to 45", s.Matting.Active[0].MinimumMatPercentage)
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	path := writeTemp(t, `
photo-library-path: /photos
sleep-mode:
  timezone: Not/AZone
  on-hours:
    start: "08:00"
    end: "22:00"
`)
	_, err := Load(path)
	if !errs.Is(err, errs.ConfigInvalid) {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
}
