package gpu

import "testing"

func TestAlignRowBytesRoundsUpToAlignment(t *testing.T) {
	cases := []struct {
		width, bpp int
		want       uint32
	}{
		{width: 1, bpp: 4, want: 256},
		{width: 64, bpp: 4, want: 256},  // exactly 256, already aligned
		{width: 65, bpp: 4, want: 512},  // 260 rounds up to 512
		{width: 0, bpp: 4, want: 0},
	}
	for _, c := range cases {
		if got := AlignRowBytes(c.width, c.bpp); got != c.want {
			t.Errorf("AlignRowBytes(%d, %d) = %d, want %d", c.width, c.bpp, got, c.want)
		}
	}
}
