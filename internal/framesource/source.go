// Package framesource delivers camera frames to the pipeline.
//
// Live sources publish into a Mailbox, a single slot that always holds the
// newest frame. Late frames are dropped, never queued, so a slow pipeline
// always works on the most recent image.
package framesource

import (
	"context"
	"errors"
	"io"

	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
	"github.com/MeKo-Tech/cardscan/internal/utils"
)

// ErrClosed is returned by Next once a source is exhausted by Close.
var ErrClosed = errors.New("frame source closed")

// Source yields frames one at a time. The caller owns every returned
// buffer and must Release it. Next returns io.EOF or ErrClosed when no
// more frames will arrive.
type Source interface {
	Next(ctx context.Context) (*pixbuf.Buffer, error)
}

// Files reads a fixed list of image files in order, one frame per call.
type Files struct {
	paths  []string
	format pixbuf.Format
	pos    int
}

// NewFiles builds a file source decoding into format.
func NewFiles(paths []string, format pixbuf.Format) *Files {
	return &Files{paths: paths, format: format}
}

// Next loads the next file, or returns io.EOF after the last.
func (f *Files) Next(ctx context.Context) (*pixbuf.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.pos >= len(f.paths) {
		return nil, io.EOF
	}
	path := f.paths[f.pos]
	f.pos++
	return LoadFrame(path, f.format)
}

// Current returns the path of the most recently returned frame.
func (f *Files) Current() string {
	if f.pos == 0 {
		return ""
	}
	return f.paths[f.pos-1]
}

// LoadFrame decodes an image file into a pixel buffer.
func LoadFrame(path string, format pixbuf.Format) (*pixbuf.Buffer, error) {
	img, err := utils.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return pixbuf.FromImage(img, format)
}
