package pipeline

import (
	"time"

	"github.com/MeKo-Tech/cardscan/internal/detection"
	"github.com/MeKo-Tech/cardscan/internal/digits"
	"github.com/MeKo-Tech/cardscan/internal/geometry"
	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

// Status summarizes what happened to a frame.
type Status string

const (
	// StatusRecognized means a line was found and digits are available.
	StatusRecognized Status = "recognized"
	// StatusLineOnly means a line was found but no digits are available yet.
	StatusLineOnly Status = "line_only"
	// StatusNoLine means the locator found nothing; the display is cleared.
	StatusNoLine Status = "no_line"
	// StatusSkipped means the locator was throttled before any result existed.
	StatusSkipped Status = "skipped"
	// StatusFault means a buffer or geometry step failed for this frame.
	StatusFault Status = "fault"
)

// Timing holds per-stage wall time.
type Timing struct {
	LocatorNs    int64 `json:"locator_ns"`
	RecognizerNs int64 `json:"recognizer_ns"`
	TotalNs      int64 `json:"total_ns"`
}

// InferenceMs is the combined detector time in milliseconds.
func (t Timing) InferenceMs() float64 {
	return float64(t.LocatorNs+t.RecognizerNs) / float64(time.Millisecond)
}

// FrameResult is the outcome of one ProcessFrame call.
type FrameResult struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
	// Reused marks a frame skipped by the locator throttle; every other
	// field repeats the previous result.
	Reused bool `json:"reused,omitempty"`

	Digits       digits.DigitString `json:"digits"`
	DigitsReused bool               `json:"digits_reused,omitempty"`

	LineBox        geometry.Rect `json:"line_box"`
	LineLabel      string        `json:"line_label,omitempty"`
	LineConfidence float64       `json:"line_confidence"`
	OverlayBox     geometry.Rect `json:"overlay_box"`

	// Detections are the digit boxes in reading order, in recognizer
	// input space.
	Detections []detection.Result `json:"detections,omitempty"`

	Timing Timing `json:"timing"`
	Error  string `json:"error,omitempty"`

	// Debug is the recognizer input when KeepDebugBuffers is set. The
	// caller owns it and must Release it.
	Debug *pixbuf.Buffer `json:"-"`
}
