package mat

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/lumaframe/frame/internal/config"
)

// ComposeCard renders a full-screen solid-color card with a centered
// message and an accent-colored border: the greeting screen shown at
// startup and the sleep screen shown while asleep (spec.md §4.5
// "sleep/greeting surfaces"). Text is drawn with golang.org/x/image/font's
// basicfont face, the same package internal/loader already pulls in for
// decoding, since legible real text is all a kiosk card needs and exact
// typography is out of this repo's scope (spec.md §1). corner-radius
// rounding is not rendered, the same scope exclusion drawBevel's weave
// texture already documents.
func ComposeCard(canvasW, canvasH int, cfg config.ScreenConfig) *Canvas {
	c := newCanvas(canvasW, canvasH)
	c.fill(parseColorOrDefault(cfg.Colors.Background, color.RGBA{A: 255}))

	accent := parseColorOrDefault(cfg.Colors.Accent, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	drawBevel(c, cfg.StrokeWidth, accent)

	fontColor := parseColorOrDefault(cfg.Colors.Font, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	drawCenteredText(c, cfg.Message, fontColor)
	return c
}

// DimCanvas scales every pixel's RGB channels toward black by
// brightness in [0,1], the CPU-side stand-in for the sleep screen's
// dim-brightness backlight control (spec.md §4.6 dim-brightness).
func DimCanvas(c *Canvas, brightness float64) {
	if brightness < 0 {
		brightness = 0
	}
	if brightness >= 1 {
		return
	}
	for i := 0; i+3 < len(c.Pixels); i += 4 {
		c.Pixels[i] = uint8(float64(c.Pixels[i]) * brightness)
		c.Pixels[i+1] = uint8(float64(c.Pixels[i+1]) * brightness)
		c.Pixels[i+2] = uint8(float64(c.Pixels[i+2]) * brightness)
	}
}

func drawCenteredText(c *Canvas, msg string, col color.RGBA) {
	if msg == "" {
		return
	}
	d := &font.Drawer{
		Dst:  c.asRGBA(),
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
	}
	width := d.MeasureString(msg).Ceil()
	x := (c.Width - width) / 2
	y := c.Height / 2
	if x < 0 {
		x = 0
	}
	d.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	d.DrawString(msg)
}
