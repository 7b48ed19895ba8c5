package pixbuf

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// FromImage copies img into a new buffer of the given format.
func FromImage(img image.Image, format Format) (*Buffer, error) {
	const op = "from_image"
	if img == nil {
		return nil, &TransformError{Op: op, Err: ErrInvalidSize}
	}
	b := img.Bounds()
	dst, err := New(b.Dx(), b.Dy(), format)
	if err != nil {
		return nil, opErr(op, err)
	}

	if g, ok := img.(*image.Gray); ok && format == FormatGray8 {
		err = dst.edit(func(pix []byte, stride int) error {
			for y := range dst.height {
				copy(pix[y*stride:y*stride+dst.width], g.Pix[y*g.Stride:])
			}
			return nil
		})
		if err != nil {
			return nil, opErr(op, err)
		}
		return dst, nil
	}

	src := imaging.Clone(img)
	bpp := format.BytesPerPixel()
	err = dst.edit(func(pix []byte, stride int) error {
		for y := range dst.height {
			srow := src.Pix[y*src.Stride:]
			drow := pix[y*stride:]
			for x := range dst.width {
				s := srow[x*4 : x*4+4]
				format.encode(drow[x*bpp:], Pixel{R: s[0], G: s[1], B: s[2], A: s[3]})
			}
		}
		return nil
	})
	if err != nil {
		return nil, opErr(op, err)
	}
	return dst, nil
}

// ToImage copies the buffer into an *image.Gray for Gray8 and an
// *image.NRGBA otherwise.
func (b *Buffer) ToImage() (image.Image, error) {
	const op = "to_image"
	if b.format == FormatGray8 {
		out := image.NewGray(b.Bounds())
		err := b.View(func(pix []byte, stride int) error {
			for y := range b.height {
				copy(out.Pix[y*out.Stride:y*out.Stride+b.width], pix[y*stride:])
			}
			return nil
		})
		if err != nil {
			return nil, opErr(op, err)
		}
		return out, nil
	}

	out := image.NewNRGBA(b.Bounds())
	bpp := b.format.BytesPerPixel()
	err := b.View(func(pix []byte, stride int) error {
		for y := range b.height {
			srow := pix[y*stride:]
			drow := out.Pix[y*out.Stride:]
			for x := range b.width {
				px := b.format.decode(srow[x*bpp:])
				d := drow[x*4 : x*4+4]
				d[0], d[1], d[2], d[3] = px.R, px.G, px.B, px.A
			}
		}
		return nil
	})
	if err != nil {
		return nil, opErr(op, err)
	}
	return out, nil
}

// splitAlpha copies the colour channels into an opaque image and the alpha
// channel into a gray image. Resampling them apart keeps colour from being
// weighted by alpha, which camera formats use as padding.
func (b *Buffer) splitAlpha() (*image.NRGBA, *image.Gray, error) {
	colour := image.NewNRGBA(b.Bounds())
	alpha := image.NewGray(b.Bounds())
	bpp := b.format.BytesPerPixel()
	err := b.View(func(pix []byte, stride int) error {
		for y := range b.height {
			srow := pix[y*stride:]
			crow := colour.Pix[y*colour.Stride:]
			arow := alpha.Pix[y*alpha.Stride:]
			for x := range b.width {
				px := b.format.decode(srow[x*bpp:])
				c := crow[x*4 : x*4+4]
				c[0], c[1], c[2], c[3] = px.R, px.G, px.B, 0xff
				arow[x] = px.A
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return colour, alpha, nil
}

// ToRGBA renders the buffer into a drawable *image.RGBA.
func (b *Buffer) ToRGBA() (*image.RGBA, error) {
	img, err := b.ToImage()
	if err != nil {
		return nil, err
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, image.Point{}, draw.Src)
	return out, nil
}
