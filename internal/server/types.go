package server

import (
	"net/http"
	"sync"

	"github.com/MeKo-Tech/cardscan/internal/geometry"
	"github.com/MeKo-Tech/cardscan/internal/overlay"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

// FramePublisher accepts frames for the pipeline. framesource.Mailbox
// satisfies it.
type FramePublisher interface {
	Publish(frame *pixbuf.Buffer)
}

// Server exposes a running frame pipeline over HTTP: overlays stream to
// websocket clients, the latest result is queryable, and clients may push
// their own camera frames.
type Server struct {
	corsOrigin  string
	maxUploadMB int64
	modelsDir   string
	overlaySize geometry.Size
	frameFormat pixbuf.Format
	version     string

	hub         *Hub
	frames      FramePublisher
	rateLimiter *RateLimiter

	mu         sync.RWMutex
	lastResult *pipeline.FrameResult
	lastFrame  *overlay.Frame
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	ModelsDir   string
	Version     string

	// OverlaySize is the surface /api/overlay.png renders onto.
	OverlaySize geometry.Size
	// FrameFormat is the pixel layout uploaded frames are decoded into.
	FrameFormat pixbuf.Format

	// Frames receives uploaded frames; nil disables POST /api/frames.
	Frames FramePublisher

	// UploadRate limits frame uploads per client in frames per second;
	// zero disables the limit.
	UploadRate  float64
	UploadBurst int
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
	Clients int    `json:"clients"`
}

type ModelInfo struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Present     bool   `json:"present"`
}

type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
	Count  int         `json:"count"`
}

// LatestResponse carries the newest pipeline result and the overlay that
// was presented for it.
type LatestResponse struct {
	Result  *pipeline.FrameResult `json:"result,omitempty"`
	Overlay *overlay.Frame        `json:"overlay,omitempty"`
}

// FrameResponse acknowledges an uploaded frame.
type FrameResponse struct {
	Success bool   `json:"success"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewServer creates a server. It starts no goroutines; the hub's clients
// run only while connected.
func NewServer(config Config) *Server {
	s := &Server{
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		modelsDir:   config.ModelsDir,
		overlaySize: config.OverlaySize,
		frameFormat: config.FrameFormat,
		version:     config.Version,
		hub:         NewHub(),
		frames:      config.Frames,
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 10
	}
	if !s.overlaySize.Valid() {
		s.overlaySize = pipeline.DefaultConfig().OverlaySize
	}
	if config.UploadRate > 0 {
		s.rateLimiter = NewRateLimiter(config.UploadRate, config.UploadBurst)
	}
	return s
}

// Present records f and broadcasts it to websocket clients. It makes the
// server an overlay.Presenter.
func (s *Server) Present(f overlay.Frame) {
	s.mu.Lock()
	s.lastFrame = &f
	s.mu.Unlock()
	s.hub.Broadcast(f)
}

// Record stores the newest pipeline result for /api/latest. Debug buffers
// are not retained.
func (s *Server) Record(res pipeline.FrameResult) {
	res.Debug = nil
	s.mu.Lock()
	s.lastResult = &res
	s.mu.Unlock()
}

func (s *Server) latest() (*pipeline.FrameResult, *overlay.Frame) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastResult, s.lastFrame
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Close disconnects all websocket clients.
func (s *Server) Close() error {
	s.hub.Close()
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/models", s.corsMiddleware(s.modelsHandler))
	mux.HandleFunc("/api/latest", s.corsMiddleware(s.latestHandler))
	mux.HandleFunc("/api/overlay.png", s.corsMiddleware(s.overlayHandler))
	mux.HandleFunc("/api/frames", s.corsMiddleware(s.rateLimitMiddleware(s.frameUploadHandler)))
	mux.HandleFunc("/ws", s.overlayWebSocketHandler)
	mux.Handle("/metrics", metricsHandler())
}
