package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

// recordingPublisher collects published frames for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	frames []*pixbuf.Buffer
}

func (p *recordingPublisher) Publish(frame *pixbuf.Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, frame)
}

func (p *recordingPublisher) published() []*pixbuf.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*pixbuf.Buffer(nil), p.frames...)
}

// createTestImage creates a simple gradient image for testing.
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, color.RGBA{byte(x % 256), byte(y % 256), 0, 255})
		}
	}
	return img
}

// encodeImageToPNG encodes an image to PNG bytes.
func encodeImageToPNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	err := png.Encode(&buf, img)
	return buf.Bytes(), err
}

// createFrameRequest creates a multipart POST /api/frames request carrying
// data in the given form field.
func createFrameRequest(field, filename string, data []byte) (*http.Request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req := httptest.NewRequest(http.MethodPost, "/api/frames", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}
