package utils

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	assert.True(t, IsSupportedImage("card.PNG"))
	assert.True(t, IsSupportedImage("/tmp/frame.jpeg"))
	assert.True(t, IsSupportedImage("frame.bmp"))
	assert.False(t, IsSupportedImage("scan.pdf"))
	assert.False(t, IsSupportedImage("noext"))
}

func TestSaveAndLoadImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	path := filepath.Join(t.TempDir(), "nested", "frame.png")
	require.NoError(t, SavePNG(path, img))

	loaded, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), loaded.Bounds())
	r, g, b, _ := loaded.At(1, 2).RGBA()
	assert.Equal(t, []uint32{10, 20, 30}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestLoadImage_Errors(t *testing.T) {
	_, err := LoadImage("")
	require.Error(t, err)

	_, err = LoadImage("frame.gif")
	var ie *ImageError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "load", ie.Operation)

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not a png"), 0o600))
	_, err = LoadImage(bad)
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "decode", ie.Operation)
}

func TestDiscoverImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.jpg", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o750))

	got, err := DiscoverImages([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.png")}, got)

	_, err = DiscoverImages([]string{filepath.Join(dir, "notes.txt")})
	require.Error(t, err)

	_, err = DiscoverImages([]string{filepath.Join(dir, "missing.png")})
	require.Error(t, err)
}

func TestDrawRect(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	red := color.RGBA{R: 255, A: 255}
	DrawRect(dst, image.Rect(2, 2, 6, 6), red, 1)

	assert.Equal(t, red, dst.RGBAAt(2, 2))
	assert.Equal(t, red, dst.RGBAAt(5, 4))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(3, 3))

	// Fully outside is a no-op.
	DrawRect(dst, image.Rect(20, 20, 30, 30), red, 2)
}

func TestDrawLabel(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 100, 40))
	bg := color.RGBA{B: 200, A: 255}
	box := DrawLabel(dst, image.Pt(5, 5), "42  (90%)", color.White, bg)

	assert.Equal(t, 5, box.Min.X)
	assert.Greater(t, box.Dx(), 2*LabelPadding)
	assert.Equal(t, bg, dst.RGBAAt(5, 5))

	lit := 0
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			if dst.RGBAAt(x, y) != bg {
				lit++
			}
		}
	}
	assert.Positive(t, lit, "text pixels drawn")
}
