package pixbuf

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// patterned builds a buffer whose pixels encode their own coordinates.
func patterned(t *testing.T, w, h int, format Format) *Buffer {
	t.Helper()
	b, err := New(w, h, format)
	require.NoError(t, err)
	for y := range h {
		for x := range w {
			require.NoError(t, b.SetPixel(x, y, patternPixel(x, y)))
		}
	}
	return b
}

func patternPixel(x, y int) Pixel {
	return Pixel{R: uint8(x * 7), G: uint8(y * 11), B: uint8(x + y), A: 255} //nolint:gosec // G115: test values stay small
}

func TestNew_Validation(t *testing.T) {
	_, err := New(0, 10, FormatBGRA32)
	require.ErrorIs(t, err, ErrInvalidSize)

	_, err = New(10, 10, Format(42))
	require.ErrorIs(t, err, ErrFormat)

	_, err = New(100000, 100000, FormatBGRA32)
	require.ErrorIs(t, err, ErrAllocation)

	var te *TransformError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "new", te.Op)
}

func TestFromBytes(t *testing.T) {
	data := make([]byte, 3*16)
	data[16+4+2] = 200 // row 1, pixel 1, R channel of BGRA

	b, err := FromBytes(data, 3, 3, 16, FormatBGRA32)
	require.NoError(t, err)
	assert.Equal(t, 16, b.Stride())

	px, err := b.PixelAt(1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint8(200), px.R)

	_, err = FromBytes(data[:40], 3, 3, 16, FormatBGRA32)
	require.ErrorIs(t, err, ErrInvalidSize)

	_, err = FromBytes(data, 5, 3, 16, FormatBGRA32)
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"":       FormatBGRA32,
		"BGRA32": FormatBGRA32,
		"argb":   FormatARGB32,
		"rgba32": FormatRGBA32,
		"Gray8":  FormatGray8,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("yuv420")
	assert.Error(t, err)
}

func TestFormats_RoundTripPixel(t *testing.T) {
	px := Pixel{R: 10, G: 20, B: 30, A: 200}
	for _, f := range []Format{FormatBGRA32, FormatARGB32, FormatRGBA32} {
		t.Run(f.String(), func(t *testing.T) {
			b, err := New(2, 2, f)
			require.NoError(t, err)
			require.NoError(t, b.SetPixel(1, 0, px))
			got, err := b.PixelAt(1, 0)
			require.NoError(t, err)
			assert.Equal(t, px, got)
		})
	}
}

func TestCrop_SharesStorage(t *testing.T) {
	src := patterned(t, 10, 8, FormatBGRA32)
	defer src.Release()

	view, err := Crop(src, image.Rect(2, 3, 7, 8))
	require.NoError(t, err)
	assert.True(t, view.IsView())
	assert.Equal(t, 5, view.Width())
	assert.Equal(t, 5, view.Height())
	assert.Equal(t, src.Stride(), view.Stride())

	px, err := view.PixelAt(0, 0)
	require.NoError(t, err)
	assert.Equal(t, patternPixel(2, 3), px)

	// Writes through the root are visible in the view.
	require.NoError(t, src.SetPixel(6, 7, Pixel{R: 1, G: 2, B: 3, A: 4}))
	px, err = view.PixelAt(4, 4)
	require.NoError(t, err)
	assert.Equal(t, Pixel{R: 1, G: 2, B: 3, A: 4}, px)

	nested, err := Crop(view, image.Rect(1, 1, 3, 3))
	require.NoError(t, err)
	px, err = nested.PixelAt(0, 0)
	require.NoError(t, err)
	assert.Equal(t, patternPixel(3, 4), px)
}

func TestCrop_ViewIsReadOnly(t *testing.T) {
	src, err := New(4, 4, FormatRGBA32)
	require.NoError(t, err)
	defer src.Release()
	require.NoError(t, src.Fill(Pixel{A: 255}))

	view, err := Crop(src, image.Rect(1, 1, 3, 3))
	require.NoError(t, err)

	require.ErrorIs(t, view.Fill(Pixel{R: 9, A: 255}), ErrReadOnly)
	require.ErrorIs(t, view.SetPixel(0, 0, Pixel{R: 9, A: 255}), ErrReadOnly)

	px, err := src.PixelAt(1, 1)
	require.NoError(t, err)
	assert.Equal(t, Pixel{A: 255}, px)
}

func TestCrop_OutOfBounds(t *testing.T) {
	src := patterned(t, 10, 8, FormatBGRA32)
	defer src.Release()

	for _, r := range []image.Rectangle{
		image.Rect(-1, 0, 5, 5),
		image.Rect(0, 0, 11, 5),
		image.Rect(5, 5, 5, 8),
		image.Rect(2, 7, 4, 9),
	} {
		_, err := Crop(src, r)
		require.ErrorIs(t, err, ErrOutOfBounds, "rect %v", r)
	}
}

func TestRelease_InvalidatesViews(t *testing.T) {
	src, err := NewPooled(4, 4, FormatBGRA32)
	require.NoError(t, err)
	view, err := Crop(src, image.Rect(1, 1, 3, 3))
	require.NoError(t, err)

	view.Release() // no-op on views
	assert.False(t, src.Released())

	src.Release()
	src.Release()
	assert.True(t, view.Released())

	_, err = view.PixelAt(0, 0)
	require.ErrorIs(t, err, ErrReleased)
	err = view.View(func([]byte, int) error { return nil })
	require.ErrorIs(t, err, ErrReleased)
	_, err = Crop(src, image.Rect(0, 0, 1, 1))
	require.ErrorIs(t, err, ErrReleased)
}

func TestView_LastRowSpan(t *testing.T) {
	src := patterned(t, 6, 4, FormatBGRA32)
	view, err := Crop(src, image.Rect(4, 2, 6, 4))
	require.NoError(t, err)

	err = view.View(func(pix []byte, stride int) error {
		assert.Len(t, pix, stride+2*4)
		return nil
	})
	require.NoError(t, err)

	row, err := view.Row(1)
	require.NoError(t, err)
	assert.Len(t, row, 8)
}

func TestImageConversion(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(2, 1, color.NRGBA{R: 9, G: 8, B: 7, A: 255})

	b, err := FromImage(img, FormatBGRA32)
	require.NoError(t, err)
	px, err := b.PixelAt(2, 1)
	require.NoError(t, err)
	assert.Equal(t, Pixel{R: 9, G: 8, B: 7, A: 255}, px)

	back, err := b.ToImage()
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 9, G: 8, B: 7, A: 255}, back.At(2, 1))

	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	gray.SetGray(1, 1, color.Gray{Y: 77})
	gb, err := FromImage(gray, FormatGray8)
	require.NoError(t, err)
	px, err = gb.PixelAt(1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint8(77), px.R)

	_, err = FromImage(nil, FormatBGRA32)
	require.Error(t, err)
}
