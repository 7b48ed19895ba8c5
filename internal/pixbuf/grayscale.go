package pixbuf

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/cardscan/internal/mempool"
)

// BT.709 luma weights in 4.12 fixed point.
const (
	lumaShift = 12
	lumaR     = 870  // 0.2126
	lumaG     = 2929 // 0.7152
	lumaB     = 295  // 0.0722
	lumaRound = 1 << (lumaShift - 1)
)

// Luma converts one color sample to an 8-bit luma value.
func Luma(r, g, b uint8) uint8 {
	return uint8((lumaR*uint32(r) + lumaG*uint32(g) + lumaB*uint32(b) + lumaRound) >> lumaShift)
}

// ToGrayscale converts src to a packed Gray8 buffer.
func ToGrayscale(src *Buffer) (*Buffer, error) {
	const op = "grayscale"
	dst, err := New(src.width, src.height, FormatGray8)
	if err != nil {
		return nil, opErr(op, err)
	}
	bpp := src.format.BytesPerPixel()
	err = src.View(func(spix []byte, sstride int) error {
		return dst.edit(func(dpix []byte, dstride int) error {
			for y := range src.height {
				srow := spix[y*sstride:]
				drow := dpix[y*dstride:]
				for x := range src.width {
					px := src.format.decode(srow[x*bpp:])
					drow[x] = Luma(px.R, px.G, px.B)
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, opErr(op, err)
	}
	return dst, nil
}

// QuantizedGray returns the luma of every pixel as packed bytes, the input
// format of quantized models.
func QuantizedGray(src *Buffer) ([]byte, error) {
	const op = "quantize_gray"
	out := make([]byte, src.width*src.height)
	bpp := src.format.BytesPerPixel()
	err := src.View(func(pix []byte, stride int) error {
		for y := range src.height {
			row := pix[y*stride:]
			for x := range src.width {
				px := src.format.decode(row[x*bpp:])
				out[y*src.width+x] = Luma(px.R, px.G, px.B)
			}
		}
		return nil
	})
	if err != nil {
		return nil, opErr(op, err)
	}
	return out, nil
}

// QuantizedRGB returns packed R, G, B bytes in the given layout.
func QuantizedRGB(src *Buffer, layout Layout) ([]byte, error) {
	const op = "quantize_rgb"
	plane := src.width * src.height
	out := make([]byte, 3*plane)
	bpp := src.format.BytesPerPixel()
	err := src.View(func(pix []byte, stride int) error {
		for y := range src.height {
			row := pix[y*stride:]
			for x := range src.width {
				px := src.format.decode(row[x*bpp:])
				i := y*src.width + x
				if layout == LayoutNCHW {
					out[i], out[plane+i], out[2*plane+i] = px.R, px.G, px.B
				} else {
					out[3*i], out[3*i+1], out[3*i+2] = px.R, px.G, px.B
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, opErr(op, err)
	}
	return out, nil
}

var errZeroStd = errors.New("standard deviation must be non-zero")

// NormalizeGray returns (luma-mean)/std per pixel, row-major. The slice
// comes from the float32 pool; return it with mempool.PutFloat32.
func NormalizeGray(src *Buffer, mean, std float32) ([]float32, error) {
	const op = "normalize_gray"
	if std == 0 {
		return nil, &TransformError{Op: op, Err: errZeroStd}
	}
	out := mempool.GetFloat32(src.width * src.height)
	bpp := src.format.BytesPerPixel()
	err := src.View(func(pix []byte, stride int) error {
		for y := range src.height {
			row := pix[y*stride:]
			for x := range src.width {
				px := src.format.decode(row[x*bpp:])
				out[y*src.width+x] = (float32(Luma(px.R, px.G, px.B)) - mean) / std
			}
		}
		return nil
	})
	if err != nil {
		mempool.PutFloat32(out)
		return nil, opErr(op, err)
	}
	return out, nil
}

// Layout is the memory order of a normalized color tensor.
type Layout int

const (
	// LayoutNHWC interleaves channels per pixel.
	LayoutNHWC Layout = iota
	// LayoutNCHW stores each channel as its own plane.
	LayoutNCHW
)

// ParseLayout maps "nhwc" and "nchw" to a Layout.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "", "nhwc", "NHWC":
		return LayoutNHWC, nil
	case "nchw", "NCHW":
		return LayoutNCHW, nil
	default:
		return LayoutNHWC, fmt.Errorf("unknown tensor layout %q", s)
	}
}

// NormalizeRGB returns (channel-mean)/std for R, G and B in the given
// layout. The slice comes from the float32 pool.
func NormalizeRGB(src *Buffer, mean, std float32, layout Layout) ([]float32, error) {
	const op = "normalize_rgb"
	if std == 0 {
		return nil, &TransformError{Op: op, Err: errZeroStd}
	}
	plane := src.width * src.height
	out := mempool.GetFloat32(3 * plane)
	bpp := src.format.BytesPerPixel()
	err := src.View(func(pix []byte, stride int) error {
		for y := range src.height {
			row := pix[y*stride:]
			for x := range src.width {
				px := src.format.decode(row[x*bpp:])
				r := (float32(px.R) - mean) / std
				g := (float32(px.G) - mean) / std
				b := (float32(px.B) - mean) / std
				i := y*src.width + x
				if layout == LayoutNCHW {
					out[i], out[plane+i], out[2*plane+i] = r, g, b
				} else {
					out[3*i], out[3*i+1], out[3*i+2] = r, g, b
				}
			}
		}
		return nil
	})
	if err != nil {
		mempool.PutFloat32(out)
		return nil, opErr(op, err)
	}
	return out, nil
}
