package utils

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DrawRect draws an axis-aligned rectangle outline clipped to dst.
func DrawRect(dst *image.RGBA, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	for t := range thickness {
		yTop := rect.Min.Y + t
		yBot := rect.Max.Y - 1 - t
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, yTop, col)
			dst.Set(x, yBot, col)
		}
	}
	for t := range thickness {
		xLeft := rect.Min.X + t
		xRight := rect.Max.X - 1 - t
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			dst.Set(xLeft, y, col)
			dst.Set(xRight, y, col)
		}
	}
}

// LabelPadding is the gap between label text and its background box.
const LabelPadding = 2

// DrawLabel writes text on a filled background with its top-left corner at
// at. The background is clipped to dst; text outside dst is dropped.
func DrawLabel(dst *image.RGBA, at image.Point, text string, fg, bg color.Color) image.Rectangle {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	h := face.Metrics().Height.Ceil()
	box := image.Rect(at.X, at.Y, at.X+w+2*LabelPadding, at.Y+h+2*LabelPadding)
	draw.Draw(dst, box.Intersect(dst.Bounds()), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  &image.Uniform{C: fg},
		Face: face,
		Dot:  fixed.P(at.X+LabelPadding, at.Y+LabelPadding+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
	return box
}
