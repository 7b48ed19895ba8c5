package onnx

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/cardscan/internal/digits"
	"github.com/MeKo-Tech/cardscan/internal/geometry"
	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

// OutputKind selects how model outputs are decoded.
type OutputKind string

const (
	// OutputSSD is a post-processed SSD head: boxes, classes, scores, count.
	OutputSSD OutputKind = "ssd"
	// OutputSequence is a greedy class-index sequence, one symbol per step.
	OutputSequence OutputKind = "sequence"
)

// Config describes one model and how to feed it.
type Config struct {
	ModelPath   string
	LibraryPath string

	// InputName and OutputNames default to the model's own names.
	InputName   string
	OutputNames []string

	Width    int
	Height   int
	Channels int // 1 (luma) or 3 (RGB)
	Layout   pixbuf.Layout
	Mean     float32
	Std      float32
	// Quantized feeds raw bytes instead of normalized floats. It is also
	// switched on when the model declares a uint8 input.
	Quantized bool

	Output      OutputKind
	Threshold   float64
	Labels      digits.Alphabet
	LabelOffset int
	// Space tags the boxes the detector reports.
	Space geometry.Space

	NumThreads int
	GPU        GPUConfig
}

// DefaultLocatorConfig returns settings for a 320x320 RGB line locator.
func DefaultLocatorConfig() Config {
	return Config{
		Width:     320,
		Height:    320,
		Channels:  3,
		Layout:    pixbuf.LayoutNHWC,
		Mean:      127.5,
		Std:       127.5,
		Output:    OutputSSD,
		Threshold: 0.5,
		Labels:    digits.Alphabet{"line"},
		Space:     geometry.SpaceLocatorInput,
		GPU:       DefaultGPUConfig(),
	}
}

// DefaultRecognizerConfig returns settings for a 512x512 RGB digit detector.
func DefaultRecognizerConfig() Config {
	return Config{
		Width:     512,
		Height:    512,
		Channels:  3,
		Layout:    pixbuf.LayoutNHWC,
		Mean:      127.5,
		Std:       127.5,
		Output:    OutputSSD,
		Threshold: 0.5,
		Labels:    digits.DefaultAlphabet(),
		Space:     geometry.SpaceRecognizerInput,
		GPU:       DefaultGPUConfig(),
	}
}

// Validate checks the config for unusable values.
func (c Config) Validate() error {
	var errs []error
	if c.ModelPath == "" {
		errs = append(errs, errors.New("model path cannot be empty"))
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("input size %dx%d must be positive", c.Width, c.Height))
	}
	if c.Channels != 1 && c.Channels != 3 {
		errs = append(errs, fmt.Errorf("channels must be 1 or 3, got %d", c.Channels))
	}
	if !c.Quantized && c.Std == 0 {
		errs = append(errs, errors.New("std must be non-zero"))
	}
	switch c.Output {
	case OutputSSD:
		if n := len(c.OutputNames); n != 0 && n != 3 && n != 4 {
			errs = append(errs, fmt.Errorf("ssd output needs 3 or 4 output names, got %d", n))
		}
	case OutputSequence:
		if n := len(c.OutputNames); n > 1 {
			errs = append(errs, fmt.Errorf("sequence output needs 1 output name, got %d", n))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown output kind %q", c.Output))
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		errs = append(errs, fmt.Errorf("threshold %v must be within [0, 1]", c.Threshold))
	}
	if len(c.Labels) == 0 {
		errs = append(errs, errors.New("labels cannot be empty"))
	}
	if c.Space == geometry.SpaceUnknown {
		errs = append(errs, errors.New("output space must be set"))
	}
	if c.NumThreads < 0 {
		errs = append(errs, fmt.Errorf("thread count %d must not be negative", c.NumThreads))
	}
	if err := ValidateGPUConfig(c.GPU); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// inputSize is the model input as a geometry size.
func (c Config) inputSize() geometry.Size {
	return geometry.Size{W: float64(c.Width), H: float64(c.Height)}
}
