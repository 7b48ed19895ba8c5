// Package pixbuf provides stride-aware pixel buffers and the crop, pad,
// rescale and grayscale steps that prepare camera frames for the detectors.
//
// A Buffer is either a root owning its storage or a view sharing a root's
// storage at an offset (see Crop). Views never outlive the root: once the
// root is released every access through a view fails with ErrReleased.
package pixbuf

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/MeKo-Tech/cardscan/internal/mempool"
)

// MaxBytes caps the storage of a single buffer.
const MaxBytes = 256 << 20

// Format is the byte layout of one pixel.
type Format int

const (
	FormatBGRA32 Format = iota
	FormatARGB32
	FormatRGBA32
	FormatGray8
)

func (f Format) String() string {
	switch f {
	case FormatBGRA32:
		return "BGRA32"
	case FormatARGB32:
		return "ARGB32"
	case FormatRGBA32:
		return "RGBA32"
	case FormatGray8:
		return "Gray8"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat maps a format name, case-insensitively, to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "bgra32", "bgra":
		return FormatBGRA32, nil
	case "argb32", "argb":
		return FormatARGB32, nil
	case "rgba32", "rgba":
		return FormatRGBA32, nil
	case "gray8", "gray":
		return FormatGray8, nil
	default:
		return FormatBGRA32, fmt.Errorf("unknown pixel format %q", s)
	}
}

// BytesPerPixel returns the pixel size in bytes.
func (f Format) BytesPerPixel() int {
	if f == FormatGray8 {
		return 1
	}
	return 4
}

func (f Format) valid() bool { return f >= FormatBGRA32 && f <= FormatGray8 }

// Pixel is a decoded, straight-alpha color sample.
type Pixel struct {
	R, G, B, A uint8
}

func (f Format) decode(p []byte) Pixel {
	switch f {
	case FormatBGRA32:
		return Pixel{R: p[2], G: p[1], B: p[0], A: p[3]}
	case FormatARGB32:
		return Pixel{R: p[1], G: p[2], B: p[3], A: p[0]}
	case FormatRGBA32:
		return Pixel{R: p[0], G: p[1], B: p[2], A: p[3]}
	default:
		return Pixel{R: p[0], G: p[0], B: p[0], A: 255}
	}
}

func (f Format) encode(p []byte, px Pixel) {
	switch f {
	case FormatBGRA32:
		p[0], p[1], p[2], p[3] = px.B, px.G, px.R, px.A
	case FormatARGB32:
		p[0], p[1], p[2], p[3] = px.A, px.R, px.G, px.B
	case FormatRGBA32:
		p[0], p[1], p[2], p[3] = px.R, px.G, px.B, px.A
	default:
		p[0] = Luma(px.R, px.G, px.B)
	}
}

type storage struct {
	mu       sync.RWMutex
	data     []byte
	pooled   bool
	released bool
}

// Buffer is a rectangular grid of pixels over shared storage.
type Buffer struct {
	width  int
	height int
	stride int
	format Format
	offset int
	root   bool
	store  *storage
}

// New allocates a zeroed buffer with a packed stride.
func New(width, height int, format Format) (*Buffer, error) {
	return alloc("new", width, height, format, false)
}

// NewPooled is New with storage drawn from the shared byte pool; Release
// returns it.
func NewPooled(width, height int, format Format) (*Buffer, error) {
	return alloc("new", width, height, format, true)
}

func alloc(op string, width, height int, format Format, pooled bool) (*Buffer, error) {
	if !format.valid() {
		return nil, &TransformError{Op: op, Err: ErrFormat}
	}
	if width <= 0 || height <= 0 {
		return nil, &TransformError{Op: op, Err: fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)}
	}
	stride := width * format.BytesPerPixel()
	if height > MaxBytes/stride {
		return nil, &TransformError{Op: op, Err: fmt.Errorf("%w: %dx%d %s", ErrAllocation, width, height, format)}
	}
	var data []byte
	if pooled {
		data = mempool.GetBytes(stride * height)
	} else {
		data = make([]byte, stride*height)
	}
	return &Buffer{
		width:  width,
		height: height,
		stride: stride,
		format: format,
		root:   true,
		store:  &storage{data: data, pooled: pooled},
	}, nil
}

// FromBytes wraps caller-owned bytes without copying. The caller must not
// modify data while the buffer is in use.
func FromBytes(data []byte, width, height, stride int, format Format) (*Buffer, error) {
	const op = "wrap"
	if !format.valid() {
		return nil, &TransformError{Op: op, Err: ErrFormat}
	}
	if width <= 0 || height <= 0 || stride < width*format.BytesPerPixel() {
		return nil, &TransformError{Op: op, Err: fmt.Errorf("%w: %dx%d stride %d", ErrInvalidSize, width, height, stride)}
	}
	if len(data) < stride*height {
		return nil, &TransformError{Op: op, Err: fmt.Errorf("%w: %d bytes for %d rows of stride %d",
			ErrInvalidSize, len(data), height, stride)}
	}
	return &Buffer{
		width:  width,
		height: height,
		stride: stride,
		format: format,
		root:   true,
		store:  &storage{data: data},
	}, nil
}

func (b *Buffer) Width() int     { return b.width }
func (b *Buffer) Height() int    { return b.height }
func (b *Buffer) Stride() int    { return b.stride }
func (b *Buffer) Format() Format { return b.format }

// Bounds returns the buffer rectangle with origin at zero.
func (b *Buffer) Bounds() image.Rectangle { return image.Rect(0, 0, b.width, b.height) }

// IsView reports whether b shares another buffer's storage.
func (b *Buffer) IsView() bool { return !b.root }

// span is the number of bytes reachable from offset: full stride for every
// row but the last, which only needs its pixels.
func (b *Buffer) span() int {
	return (b.height-1)*b.stride + b.width*b.format.BytesPerPixel()
}

// View runs fn with read access to the pixel bytes. pix starts at the
// buffer's first pixel and row y begins at y*stride. fn must not retain pix.
func (b *Buffer) View(fn func(pix []byte, stride int) error) error {
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	if b.store.released {
		return &TransformError{Op: "view", Err: ErrReleased}
	}
	return fn(b.store.data[b.offset:b.offset+b.span()], b.stride)
}

// edit is View with exclusive access, used while filling fresh buffers.
func (b *Buffer) edit(fn func(pix []byte, stride int) error) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if b.store.released {
		return &TransformError{Op: "edit", Err: ErrReleased}
	}
	return fn(b.store.data[b.offset:b.offset+b.span()], b.stride)
}

// Release frees the storage of a root buffer. Calling it on a view is a
// no-op; calling it twice is safe.
func (b *Buffer) Release() {
	if b == nil || !b.root {
		return
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if b.store.released {
		return
	}
	b.store.released = true
	if b.store.pooled {
		mempool.PutBytes(b.store.data)
	}
	b.store.data = nil
}

// Released reports whether the underlying storage has been freed.
func (b *Buffer) Released() bool {
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	return b.store.released
}

// PixelAt decodes the pixel at (x, y).
func (b *Buffer) PixelAt(x, y int) (Pixel, error) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return Pixel{}, &TransformError{Op: "pixel", Err: fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)}
	}
	var px Pixel
	err := b.View(func(pix []byte, stride int) error {
		px = b.format.decode(pix[y*stride+x*b.format.BytesPerPixel():])
		return nil
	})
	return px, err
}

// Row returns a copy of the pixel bytes of row y.
func (b *Buffer) Row(y int) ([]byte, error) {
	if y < 0 || y >= b.height {
		return nil, &TransformError{Op: "row", Err: fmt.Errorf("%w: row %d", ErrOutOfBounds, y)}
	}
	n := b.width * b.format.BytesPerPixel()
	out := make([]byte, n)
	err := b.View(func(pix []byte, stride int) error {
		copy(out, pix[y*stride:y*stride+n])
		return nil
	})
	return out, err
}

// Clone copies the pixels into a new packed root buffer.
func (b *Buffer) Clone() (*Buffer, error) {
	dst, err := New(b.width, b.height, b.format)
	if err != nil {
		return nil, err
	}
	n := b.width * b.format.BytesPerPixel()
	err = b.View(func(src []byte, sstride int) error {
		return dst.edit(func(out []byte, dstride int) error {
			for y := range b.height {
				copy(out[y*dstride:y*dstride+n], src[y*sstride:y*sstride+n])
			}
			return nil
		})
	})
	if err != nil {
		return nil, opErr("clone", err)
	}
	return dst, nil
}

// Fill sets every pixel to px. Views share their frame's storage and
// cannot be written.
func (b *Buffer) Fill(px Pixel) error {
	if !b.root {
		return &TransformError{Op: "fill", Err: ErrReadOnly}
	}
	bpp := b.format.BytesPerPixel()
	return b.edit(func(pix []byte, stride int) error {
		for y := range b.height {
			row := pix[y*stride:]
			for x := range b.width {
				b.format.encode(row[x*bpp:], px)
			}
		}
		return nil
	})
}

// SetPixel writes px at (x, y).
func (b *Buffer) SetPixel(x, y int, px Pixel) error {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return &TransformError{Op: "set_pixel", Err: fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)}
	}
	if !b.root {
		return &TransformError{Op: "set_pixel", Err: ErrReadOnly}
	}
	return b.edit(func(pix []byte, stride int) error {
		b.format.encode(pix[y*stride+x*b.format.BytesPerPixel():], px)
		return nil
	})
}
