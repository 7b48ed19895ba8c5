package pixbuf

import (
	"image"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const (
	propW = 16
	propH = 12
)

func propSource(t *testing.T) *Buffer {
	b, err := New(propW, propH, FormatBGRA32)
	if err != nil {
		t.Fatal(err)
	}
	for y := range propH {
		for x := range propW {
			if err := b.SetPixel(x, y, patternPixel(x, y)); err != nil {
				t.Fatal(err)
			}
		}
	}
	return b
}

// TestCrop_PixelEquality verifies every crop pixel equals its source pixel.
func TestCrop_PixelEquality(t *testing.T) {
	src := propSource(t)
	properties := gopter.NewProperties(nil)

	properties.Property("crop pixel (i,j) equals source pixel (x+i,y+j)", prop.ForAll(
		func(x, y, w, h int) bool {
			if x+w > propW || y+h > propH {
				return true
			}
			view, err := Crop(src, image.Rect(x, y, x+w, y+h))
			if err != nil {
				return false
			}
			for j := range h {
				for i := range w {
					px, err := view.PixelAt(i, j)
					if err != nil || px != patternPixel(x+i, y+j) {
						return false
					}
				}
			}
			return view.Stride() == src.Stride()
		},
		gen.IntRange(0, propW-1),
		gen.IntRange(0, propH-1),
		gen.IntRange(1, propW),
		gen.IntRange(1, propH),
	))

	properties.TestingRun(t)
}

// TestPadAndScale_EdgeClamp verifies same-size pad-and-scale reads the
// nearest source pixel for any crop placement.
func TestPadAndScale_EdgeClamp(t *testing.T) {
	src := propSource(t)
	properties := gopter.NewProperties(nil)

	properties.Property("padded pixels replicate the nearest edge", prop.ForAll(
		func(x, y, w, h int) bool {
			out, err := PadAndScale(src, x, y, w, h, w, h, PadEdge)
			if err != nil {
				return false
			}
			defer out.Release()
			for j := range h {
				for i := range w {
					sx := min(max(x+i, 0), propW-1)
					sy := min(max(y+j, 0), propH-1)
					px, err := out.PixelAt(i, j)
					if err != nil || px != patternPixel(sx, sy) {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(-10, propW+5),
		gen.IntRange(-10, propH+5),
		gen.IntRange(1, 30),
		gen.IntRange(1, 30),
	))

	properties.TestingRun(t)
}

// TestPadAmounts_NoPadInside verifies in-bounds crops never pad.
func TestPadAmounts_NoPadInside(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("crops inside the source need no padding", prop.ForAll(
		func(x, y, w, h int) bool {
			p := PadAmounts(propW, propH, x, y, w, h)
			inside := x+w <= propW && y+h <= propH
			return p.IsZero() == inside
		},
		gen.IntRange(0, propW-1),
		gen.IntRange(0, propH-1),
		gen.IntRange(1, propW),
		gen.IntRange(1, propH),
	))

	properties.TestingRun(t)
}
