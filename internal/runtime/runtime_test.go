package runtime

import (
	"testing"

	"github.com/lumaframe/frame/internal/config"
)

func TestLoadConfiguredBackdropsSkipsWhenNoneConfigured(t *testing.T) {
	cfg := config.Settings{
		Display: config.DisplayConfig{WidthPx: 64, HeightPx: 64},
		Matting: config.MattingConfig{
			Active: []config.MattingEntry{{Kind: "fixed-color", Colors: []string{"#000000"}}},
		},
	}
	cache, err := loadConfiguredBackdrops(cfg)
	if err != nil {
		t.Fatalf("loadConfiguredBackdrops: %v", err)
	}
	if cache != nil {
		t.Fatalf("expected nil cache when no fixed-image styles are configured, got %v", cache)
	}
}

func TestMaxInt(t *testing.T) {
	if maxInt(3, 5) != 5 {
		t.Fatal("maxInt(3, 5) != 5")
	}
	if maxInt(5, 3) != 5 {
		t.Fatal("maxInt(5, 3) != 5")
	}
}
