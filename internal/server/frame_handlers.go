package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"

	_ "golang.org/x/image/bmp"

	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

const frameField = "frame"

// frameUploadHandler decodes an uploaded image and hands it to the
// pipeline as the next camera frame. The frame is processed
// asynchronously; results arrive over /ws and /api/latest.
func (s *Server) frameUploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.frames == nil {
		frameUploadsTotal.WithLabelValues("unavailable").Inc()
		s.writeErrorResponse(w, "Frame input not enabled", http.StatusServiceUnavailable)
		return
	}

	img, err := s.parseFrameRequest(w, r)
	if err != nil {
		frameUploadsTotal.WithLabelValues("rejected").Inc()
		return // error already written
	}

	buf, err := pixbuf.FromImage(img, s.frameFormat)
	if err != nil {
		frameUploadsTotal.WithLabelValues("error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Failed to convert frame: %v", err), http.StatusInternalServerError)
		return
	}
	width, height := buf.Width(), buf.Height()
	s.frames.Publish(buf)
	frameUploadsTotal.WithLabelValues("accepted").Inc()
	slog.Debug("Frame uploaded", "width", width, "height", height, "client", getClientIP(r))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(FrameResponse{Success: true, Width: width, Height: height}); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding frame response: %v\n", err)
	}
}

func (s *Server) parseFrameRequest(w http.ResponseWriter, r *http.Request) (image.Image, error) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, err
	}

	file, header, err := r.FormFile(frameField)
	if err != nil {
		s.writeErrorResponse(w, "No frame file provided", http.StatusBadRequest)
		return nil, err
	}
	defer func() { _ = file.Close() }()

	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read frame data", http.StatusInternalServerError)
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return nil, err
	}
	return img, nil
}
