package pipeline

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/MeKo-Tech/cardscan/internal/detection"
	"github.com/MeKo-Tech/cardscan/internal/geometry"
	"github.com/MeKo-Tech/cardscan/internal/overlay"
	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg        Config
	locator    detection.Detector
	recognizer detection.Detector
	presenter  overlay.Presenter
	clock      func() time.Time
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig(), clock: time.Now}
}

// WithConfig replaces the whole config.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithGuideline sets the guideline rectangle and the surface it lives on.
func (b *Builder) WithGuideline(r geometry.Rect, surface geometry.Size) *Builder {
	b.cfg.Guideline = r
	b.cfg.GuidelineSize = surface
	return b
}

// WithOverlaySize sets the presentation surface size.
func (b *Builder) WithOverlaySize(s geometry.Size) *Builder {
	b.cfg.OverlaySize = s
	return b
}

// WithInputSizes sets the locator and recognizer model input sizes.
func (b *Builder) WithInputSizes(locator, recognizer geometry.Size) *Builder {
	b.cfg.LocatorInput = locator
	b.cfg.RecognizerInput = recognizer
	return b
}

// WithIntervals sets the minimum gap between stage invocations.
func (b *Builder) WithIntervals(locator, recognizer time.Duration) *Builder {
	b.cfg.LocatorInterval = locator
	b.cfg.RecognizerInterval = recognizer
	return b
}

// WithPadMode selects how out-of-frame pixels are filled.
func (b *Builder) WithPadMode(m pixbuf.PadMode) *Builder {
	b.cfg.PadMode = m
	return b
}

// WithDebugBuffers keeps recognizer input buffers on results.
func (b *Builder) WithDebugBuffers(keep bool) *Builder {
	b.cfg.KeepDebugBuffers = keep
	return b
}

// WithLocator sets the line locator.
func (b *Builder) WithLocator(d detection.Detector) *Builder {
	b.locator = d
	return b
}

// WithRecognizer sets the digit recognizer.
func (b *Builder) WithRecognizer(d detection.Detector) *Builder {
	b.recognizer = d
	return b
}

// WithPresenter sets where overlay frames go. Defaults to overlay.Discard.
func (b *Builder) WithPresenter(p overlay.Presenter) *Builder {
	b.presenter = p
	return b
}

// WithClock overrides the time source used for throttling.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	if now != nil {
		b.clock = now
	}
	return b
}

// Config returns the current builder config.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and returns a ready pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if b.locator == nil || b.recognizer == nil {
		return nil, errors.New("pipeline needs both a line locator and a digit recognizer")
	}
	presenter := b.presenter
	if presenter == nil {
		presenter = overlay.Discard{}
	}
	return &Pipeline{
		cfg:             b.cfg,
		locator:         b.locator,
		recognizer:      b.recognizer,
		presenter:       presenter,
		now:             b.clock,
		locatorLimit:    newLimiter(b.cfg.LocatorInterval),
		recognizerLimit: newLimiter(b.cfg.RecognizerInterval),
	}, nil
}

// newLimiter allows one event per interval with no burst.
func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
