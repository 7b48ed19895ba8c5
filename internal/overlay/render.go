package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font/basicfont"

	"github.com/MeKo-Tech/cardscan/internal/geometry"
	"github.com/MeKo-Tech/cardscan/internal/utils"
)

const boxThickness = 2

var textBackground = color.RGBA{A: 200}

// Render draws f over background scaled to size. A nil background renders
// on transparent black.
func Render(background image.Image, size geometry.Size, f Frame) *image.RGBA {
	w := max(1, int(math.Round(size.W)))
	h := max(1, int(math.Round(size.H)))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if background != nil {
		bg := background
		if b := background.Bounds(); b.Dx() != w || b.Dy() != h {
			bg = imaging.Resize(background, w, h, imaging.Linear)
		}
		draw.Draw(dst, dst.Bounds(), bg, bg.Bounds().Min, draw.Src)
	}

	labelHeight := basicfont.Face7x13.Metrics().Height.Ceil() + 2*utils.LabelPadding
	for _, it := range f.Items {
		if it.Rect.Space != geometry.SpaceOverlay {
			continue
		}
		rect := it.Rect.Round()
		utils.DrawRect(dst, rect, it.Color, boxThickness)
		if it.Label == "" {
			continue
		}
		at := image.Pt(rect.Min.X, rect.Min.Y-labelHeight)
		if at.Y < 0 {
			at.Y = rect.Min.Y
		}
		utils.DrawLabel(dst, at, it.Label, color.White, it.Color)
	}
	if f.Text != "" {
		utils.DrawLabel(dst, image.Pt(0, h-labelHeight), f.Text, color.White, textBackground)
	}
	return dst
}
