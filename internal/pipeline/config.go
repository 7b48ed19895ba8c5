package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/cardscan/internal/geometry"
	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

// DefaultLocatorInterval is the minimum gap between line locator runs.
const DefaultLocatorInterval = 100 * time.Millisecond

// DefaultEdgeOffset is the inset kept between overlay boxes and the
// overlay edge.
const DefaultEdgeOffset = 2.0

// Config holds the geometry and pacing of a frame pipeline.
type Config struct {
	// Guideline is the on-screen target rectangle in guideline space, and
	// GuidelineSize the surface it is drawn on.
	Guideline     geometry.Rect
	GuidelineSize geometry.Size
	// OverlaySize is the presentation surface.
	OverlaySize geometry.Size

	// LocatorInput and RecognizerInput are the model input sizes.
	LocatorInput    geometry.Size
	RecognizerInput geometry.Size

	// Minimum wall time between invocations of each stage; zero disables
	// throttling for that stage.
	LocatorInterval    time.Duration
	RecognizerInterval time.Duration

	PadMode    pixbuf.PadMode
	EdgeOffset float64

	// KeepDebugBuffers hands the recognizer input buffer back on each
	// result instead of releasing it.
	KeepDebugBuffers bool
}

// DefaultConfig returns a config for a 1000x1000 preview with the card
// number guideline across its middle.
func DefaultConfig() Config {
	return Config{
		Guideline:          geometry.NewRect(geometry.SpaceGuideline, 100, 100, 800, 200),
		GuidelineSize:      geometry.Size{W: 1000, H: 1000},
		OverlaySize:        geometry.Size{W: 1000, H: 1000},
		LocatorInput:       geometry.Size{W: 320, H: 320},
		RecognizerInput:    geometry.Size{W: 512, H: 512},
		LocatorInterval:    DefaultLocatorInterval,
		RecognizerInterval: DefaultLocatorInterval,
		PadMode:            pixbuf.PadEdge,
		EdgeOffset:         DefaultEdgeOffset,
	}
}

// Validate checks the config for unusable values.
func (c Config) Validate() error {
	var errs []error
	if err := c.Guideline.Expect("guideline", geometry.SpaceGuideline); err != nil {
		errs = append(errs, err)
	}
	if c.Guideline.Empty() {
		errs = append(errs, fmt.Errorf("guideline %v has no area", c.Guideline))
	}
	for name, s := range map[string]geometry.Size{
		"guideline surface": c.GuidelineSize,
		"overlay":           c.OverlaySize,
		"locator input":     c.LocatorInput,
		"recognizer input":  c.RecognizerInput,
	} {
		if s.W < 1 || s.H < 1 {
			errs = append(errs, fmt.Errorf("%s size %vx%v must be at least 1x1", name, s.W, s.H))
		}
	}
	if c.LocatorInterval < 0 || c.RecognizerInterval < 0 {
		errs = append(errs, errors.New("stage intervals must not be negative"))
	}
	if c.EdgeOffset < 0 {
		errs = append(errs, fmt.Errorf("edge offset %v must not be negative", c.EdgeOffset))
	}
	return errors.Join(errs...)
}
