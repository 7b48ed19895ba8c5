// Package detection defines the detector contract shared by the line
// locator and the digit recognizer.
package detection

import (
	"context"

	"github.com/MeKo-Tech/cardscan/internal/geometry"
	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

// Result is one labelled box reported by a detector, expressed in the
// detector's input space.
type Result struct {
	Box        geometry.Rect `json:"box"`
	Label      string        `json:"label"`
	ClassID    int           `json:"class_id"`
	Confidence float64       `json:"confidence"`
}

// Detector turns an input buffer into labelled boxes. Implementations apply
// their own confidence threshold; an empty result means nothing was found.
type Detector interface {
	Detect(ctx context.Context, input *pixbuf.Buffer) ([]Result, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, input *pixbuf.Buffer) ([]Result, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, input *pixbuf.Buffer) ([]Result, error) {
	return f(ctx, input)
}

// Best returns the highest-confidence result. Ties keep the earliest.
func Best(results []Result) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}
	return best, true
}

// Filter keeps results at or above minConfidence.
func Filter(results []Result, minConfidence float64) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Confidence >= minConfidence {
			out = append(out, r)
		}
	}
	return out
}
