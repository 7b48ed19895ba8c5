package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

// CardImageConfig describes a synthetic card photo.
type CardImageConfig struct {
	Number     string
	Width      int
	Height     int
	Background color.Color
	Card       color.Color
	Foreground color.Color
	Rotation   float64 // rotation in degrees
}

// DefaultCardImageConfig returns a card centred on a dark background.
func DefaultCardImageConfig() CardImageConfig {
	return CardImageConfig{
		Number:     "4111 1111 1111 1111",
		Width:      640,
		Height:     480,
		Background: color.RGBA{32, 32, 40, 255},
		Card:       color.RGBA{210, 180, 60, 255},
		Foreground: color.Black,
	}
}

// GenerateCardImage draws a card body with its number across the middle.
func GenerateCardImage(config CardImageConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, config.Width, config.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)

	// ISO/IEC 7810 ID-1 aspect ratio
	cardW := config.Width * 8 / 10
	cardH := int(float64(cardW) / 1.586)
	card := image.Rect(0, 0, cardW, cardH).Add(image.Pt((config.Width-cardW)/2, (config.Height-cardH)/2))
	draw.Draw(img, card, &image.Uniform{config.Card}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Src: &image.Uniform{config.Foreground}, Face: face}
	textWidth := font.MeasureString(face, config.Number).Ceil()
	drawer.Dot = fixed.P(card.Min.X+(cardW-textWidth)/2, card.Min.Y+cardH/2+face.Metrics().Ascent.Ceil()/2)
	drawer.DrawString(config.Number)

	if config.Rotation != 0 {
		rotated := imaging.Rotate(img, config.Rotation, config.Background)
		rgba := image.NewRGBA(rotated.Bounds())
		draw.Draw(rgba, rgba.Bounds(), rotated, rotated.Bounds().Min, draw.Src)
		return rgba
	}
	return img
}

// SaveImage saves an image as PNG to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// SolidFrame returns a width x height buffer filled with px. It is released
// when the test ends.
func SolidFrame(t *testing.T, width, height int, format pixbuf.Format, px pixbuf.Pixel) *pixbuf.Buffer {
	t.Helper()

	buf, err := pixbuf.New(width, height, format)
	require.NoError(t, err)
	require.NoError(t, buf.Fill(px))
	t.Cleanup(buf.Release)
	return buf
}

// CoordFrame returns a BGRA frame whose pixels encode their own position:
// R = x mod 256, G = y mod 256, B = (x+y) mod 256. Crops can be checked
// pixel by pixel against it.
func CoordFrame(t *testing.T, width, height int) *pixbuf.Buffer {
	t.Helper()

	buf, err := pixbuf.New(width, height, pixbuf.FormatBGRA32)
	require.NoError(t, err)
	for y := range height {
		for x := range width {
			require.NoError(t, buf.SetPixel(x, y, CoordPixel(x, y)))
		}
	}
	t.Cleanup(buf.Release)
	return buf
}

// CoordPixel is the pixel CoordFrame stores at (x, y).
func CoordPixel(x, y int) pixbuf.Pixel {
	return pixbuf.Pixel{R: uint8(x % 256), G: uint8(y % 256), B: uint8((x + y) % 256), A: 255} //nolint:gosec // G115: reduced mod 256
}
