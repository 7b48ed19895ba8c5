package pixbuf

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// PadMode selects how pixels outside the source are synthesized.
type PadMode int

const (
	// PadEdge replicates the nearest edge pixel.
	PadEdge PadMode = iota
	// PadZero fills with zero bytes.
	PadZero
)

func (m PadMode) String() string {
	if m == PadZero {
		return "zero"
	}
	return "edge"
}

// ParsePadMode maps "edge" and "zero" to a PadMode.
func ParsePadMode(s string) (PadMode, error) {
	switch s {
	case "", "edge":
		return PadEdge, nil
	case "zero":
		return PadZero, nil
	default:
		return PadEdge, fmt.Errorf("unknown pad mode %q (want edge or zero)", s)
	}
}

// Crop returns a view of rect inside src. The view shares src's storage and
// stride; no pixels are copied.
func Crop(src *Buffer, rect image.Rectangle) (*Buffer, error) {
	const op = "crop"
	if rect.Dx() <= 0 || rect.Dy() <= 0 || !rect.In(src.Bounds()) {
		return nil, &TransformError{Op: op, Err: fmt.Errorf("%w: %v in %dx%d",
			ErrOutOfBounds, rect, src.width, src.height)}
	}
	if src.Released() {
		return nil, &TransformError{Op: op, Err: ErrReleased}
	}
	return &Buffer{
		width:  rect.Dx(),
		height: rect.Dy(),
		stride: src.stride,
		format: src.format,
		offset: src.offset + rect.Min.Y*src.stride + rect.Min.X*src.format.BytesPerPixel(),
		store:  src.store,
	}, nil
}

// Padding is the number of synthesized pixels on each side.
type Padding struct {
	Left, Top, Right, Bottom int
}

// IsZero reports whether no padding is needed.
func (p Padding) IsZero() bool {
	return p.Left == 0 && p.Top == 0 && p.Right == 0 && p.Bottom == 0
}

// PadAmounts computes how far a crop of (x, y, w, h) overhangs a source of
// width x height on each side.
func PadAmounts(width, height, x, y, w, h int) Padding {
	return Padding{
		Left:   max(0, -x),
		Top:    max(0, -y),
		Right:  max(0, x+w-width),
		Bottom: max(0, y+h-height),
	}
}

// PadAndScale crops (cropX, cropY, cropW, cropH) from src, padding wherever
// the crop overhangs the source, and rescales the result to targetW x
// targetH. The returned buffer owns its storage.
func PadAndScale(src *Buffer, cropX, cropY, cropW, cropH, targetW, targetH int, mode PadMode) (*Buffer, error) {
	const op = "pad_and_scale"
	if targetW <= 0 || targetH <= 0 {
		return nil, &TransformError{Op: op, Err: fmt.Errorf("%w: target %dx%d", ErrInvalidSize, targetW, targetH)}
	}
	if cropW <= 0 || cropH <= 0 {
		return nil, &TransformError{Op: op, Err: fmt.Errorf("%w: crop %dx%d", ErrInvalidSize, cropW, cropH)}
	}

	source, x, y := src, cropX, cropY
	pad := PadAmounts(src.width, src.height, cropX, cropY, cropW, cropH)
	if !pad.IsZero() {
		padded, err := padBuffer(src, pad, mode)
		if err != nil {
			return nil, opErr(op, err)
		}
		defer padded.Release()
		source, x, y = padded, cropX+pad.Left, cropY+pad.Top
	}

	region, err := Crop(source, image.Rect(x, y, x+cropW, y+cropH))
	if err != nil {
		return nil, opErr(op, err)
	}
	out, err := Scale(region, targetW, targetH)
	if err != nil {
		return nil, opErr(op, err)
	}
	return out, nil
}

func padBuffer(src *Buffer, pad Padding, mode PadMode) (*Buffer, error) {
	w := src.width + pad.Left + pad.Right
	h := src.height + pad.Top + pad.Bottom
	dst, err := NewPooled(w, h, src.format)
	if err != nil {
		return nil, err
	}
	bpp := src.format.BytesPerPixel()
	rowBytes := src.width * bpp

	err = src.View(func(spix []byte, sstride int) error {
		return dst.edit(func(dpix []byte, dstride int) error {
			for dy := range h {
				sy := dy - pad.Top
				inside := sy >= 0 && sy < src.height
				if !inside && mode == PadZero {
					continue
				}
				sy = min(max(sy, 0), src.height-1)
				srow := spix[sy*sstride : sy*sstride+rowBytes]
				drow := dpix[dy*dstride : dy*dstride+w*bpp]
				copy(drow[pad.Left*bpp:], srow)
				if mode == PadEdge {
					first, last := srow[:bpp], srow[rowBytes-bpp:]
					for dx := range pad.Left {
						copy(drow[dx*bpp:], first)
					}
					for dx := pad.Left + src.width; dx < w; dx++ {
						copy(drow[dx*bpp:], last)
					}
				}
			}
			return nil
		})
	})
	if err != nil {
		dst.Release()
		return nil, err
	}
	return dst, nil
}

// Scale resamples src to width x height with bilinear filtering. Sampling
// clamps at the source edges. Same-size requests copy the pixels unchanged.
func Scale(src *Buffer, width, height int) (*Buffer, error) {
	const op = "scale"
	if width <= 0 || height <= 0 {
		return nil, &TransformError{Op: op, Err: fmt.Errorf("%w: target %dx%d", ErrInvalidSize, width, height)}
	}
	if width == src.width && height == src.height {
		out, err := src.Clone()
		if err != nil {
			return nil, opErr(op, err)
		}
		return out, nil
	}
	if src.format == FormatGray8 {
		img, err := src.ToImage()
		if err != nil {
			return nil, opErr(op, err)
		}
		out, err := FromImage(imaging.Resize(img, width, height, imaging.Linear), src.format)
		if err != nil {
			return nil, opErr(op, err)
		}
		return out, nil
	}

	colour, alpha, err := src.splitAlpha()
	if err != nil {
		return nil, opErr(op, err)
	}
	rc := imaging.Resize(colour, width, height, imaging.Linear)
	ra := imaging.Resize(alpha, width, height, imaging.Linear)

	out, err := New(width, height, src.format)
	if err != nil {
		return nil, opErr(op, err)
	}
	bpp := src.format.BytesPerPixel()
	err = out.edit(func(pix []byte, stride int) error {
		for y := range height {
			crow := rc.Pix[y*rc.Stride:]
			arow := ra.Pix[y*ra.Stride:]
			drow := pix[y*stride:]
			for x := range width {
				c := crow[x*4 : x*4+4]
				src.format.encode(drow[x*bpp:], Pixel{R: c[0], G: c[1], B: c[2], A: arow[x*4]})
			}
		}
		return nil
	})
	if err != nil {
		return nil, opErr(op, err)
	}
	return out, nil
}
