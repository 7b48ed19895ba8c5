package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/cardscan/internal/digits"
	"github.com/MeKo-Tech/cardscan/internal/geometry"
	"github.com/MeKo-Tech/cardscan/internal/models"
	"github.com/MeKo-Tech/cardscan/internal/onnx"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	p := pipeline.DefaultConfig()
	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Verbose:   false,
		Pipeline: PipelineConfig{
			Guideline: RectConfig{
				X:      p.Guideline.X,
				Y:      p.Guideline.Y,
				Width:  p.Guideline.W,
				Height: p.Guideline.H,
			},
			GuidelineSize:      sizeConfig(p.GuidelineSize),
			OverlaySize:        sizeConfig(p.OverlaySize),
			LocatorInput:       sizeConfig(p.LocatorInput),
			RecognizerInput:    sizeConfig(p.RecognizerInput),
			LocatorInterval:    p.LocatorInterval,
			RecognizerInterval: p.RecognizerInterval,
			PadMode:            p.PadMode.String(),
			EdgeOffset:         p.EdgeOffset,
			KeepDebugBuffers:   false,
		},
		Models: ModelsConfig{
			Locator:    defaultModelConfig(onnx.DefaultLocatorConfig()),
			Recognizer: defaultModelConfig(onnx.DefaultRecognizerConfig()),
		},
		Source: SourceConfig{
			FPS:    30,
			Loop:   false,
			Format: pixbuf.FormatBGRA32.String(),
		},
		Output: OutputConfig{
			Format:              "text",
			ConfidencePrecision: 2,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     10,
			ShutdownTimeout: 10,
			UploadRate:      30,
			UploadBurst:     5,
		},
		GPU: GPUConfig{
			Enabled:     false,
			Device:      0,
			MemoryLimit: "auto",
		},
	}
}

// defaultModelConfig mirrors an onnx default into the file representation.
func defaultModelConfig(cfg onnx.Config) ModelConfig {
	layout := "nhwc"
	if cfg.Layout == pixbuf.LayoutNCHW {
		layout = "nchw"
	}
	return ModelConfig{
		Output:      string(cfg.Output),
		Channels:    cfg.Channels,
		Layout:      layout,
		Mean:        cfg.Mean,
		Std:         cfg.Std,
		Quantized:   cfg.Quantized,
		Threshold:   cfg.Threshold,
		Labels:      []string(cfg.Labels),
		LabelOffset: cfg.LabelOffset,
		NumThreads:  cfg.NumThreads,
	}
}

func sizeConfig(s geometry.Size) SizeConfig {
	return SizeConfig{Width: int(s.W), Height: int(s.H)}
}

func (s SizeConfig) size() geometry.Size {
	return geometry.Size{W: float64(s.Width), H: float64(s.Height)}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	// Validate output format
	validFormats := []string{"text", "json"}
	if c.Output.Format != "" && !contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if _, err := pixbuf.ParsePadMode(c.Pipeline.PadMode); err != nil {
		return fmt.Errorf("invalid pipeline.pad_mode: %w", err)
	}
	if err := c.ToPipelineConfig().Validate(); err != nil {
		return fmt.Errorf("invalid pipeline: %w", err)
	}

	for name, m := range map[string]ModelConfig{
		"locator":    c.Models.Locator,
		"recognizer": c.Models.Recognizer,
	} {
		if err := m.validate(name); err != nil {
			return err
		}
	}

	if _, err := pixbuf.ParseFormat(c.Source.Format); err != nil {
		return fmt.Errorf("invalid source.format: %w", err)
	}
	if c.Source.FPS <= 0 {
		return fmt.Errorf("invalid source fps: %v (must be positive)", c.Source.FPS)
	}

	// Validate positive integers
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must be positive)", c.Server.ShutdownTimeout)
	}
	if c.Server.UploadRate < 0 {
		return fmt.Errorf("invalid upload rate: %v (must not be negative)", c.Server.UploadRate)
	}
	if c.Server.UploadRate > 0 && c.Server.UploadBurst <= 0 {
		return fmt.Errorf("invalid upload burst: %d (must be positive)", c.Server.UploadBurst)
	}

	// Validate GPU memory limit format
	if c.GPU.MemoryLimit != "auto" && c.GPU.MemoryLimit != "" {
		if err := validateMemoryLimit(c.GPU.MemoryLimit); err != nil {
			return fmt.Errorf("invalid GPU memory limit: %w", err)
		}
	}
	if c.GPU.Device < 0 {
		return fmt.Errorf("invalid GPU device: %d (must be non-negative)", c.GPU.Device)
	}

	return nil
}

func (m ModelConfig) validate(name string) error {
	if err := validateThreshold(m.Threshold, "models."+name+".threshold"); err != nil {
		return err
	}
	validOutputs := []string{string(onnx.OutputSSD), string(onnx.OutputSequence)}
	if !contains(validOutputs, m.Output) {
		return fmt.Errorf("invalid models.%s.output: %s (must be one of: %s)", name, m.Output, strings.Join(validOutputs, ", "))
	}
	if m.Channels != 1 && m.Channels != 3 {
		return fmt.Errorf("invalid models.%s.channels: %d (must be 1 or 3)", name, m.Channels)
	}
	if _, err := pixbuf.ParseLayout(m.Layout); err != nil {
		return fmt.Errorf("invalid models.%s.layout: %w", name, err)
	}
	if m.NumThreads < 0 {
		return fmt.Errorf("invalid models.%s.num_threads: %d (must not be negative)", name, m.NumThreads)
	}
	return nil
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	p := c.Pipeline
	padMode, _ := pixbuf.ParsePadMode(p.PadMode)
	return pipeline.Config{
		Guideline: geometry.NewRect(geometry.SpaceGuideline,
			p.Guideline.X, p.Guideline.Y, p.Guideline.Width, p.Guideline.Height),
		GuidelineSize:      p.GuidelineSize.size(),
		OverlaySize:        p.OverlaySize.size(),
		LocatorInput:       p.LocatorInput.size(),
		RecognizerInput:    p.RecognizerInput.size(),
		LocatorInterval:    p.LocatorInterval,
		RecognizerInterval: p.RecognizerInterval,
		PadMode:            padMode,
		EdgeOffset:         p.EdgeOffset,
		KeepDebugBuffers:   p.KeepDebugBuffers,
	}
}

// ToLocatorConfig converts to the line locator's onnx.Config. The model
// input size follows pipeline.locator_input.
func (c *Config) ToLocatorConfig() (onnx.Config, error) {
	cfg := onnx.DefaultLocatorConfig()
	if err := c.applyModelConfig(&cfg, c.Models.Locator, c.Pipeline.LocatorInput); err != nil {
		return onnx.Config{}, fmt.Errorf("locator: %w", err)
	}
	if cfg.ModelPath == "" {
		cfg.ModelPath = models.GetLocatorModelPath(c.ModelsDir)
	}
	return cfg, nil
}

// ToRecognizerConfig converts to the digit recognizer's onnx.Config. Labels
// come from alphabet_path when set, else from labels.
func (c *Config) ToRecognizerConfig() (onnx.Config, error) {
	cfg := onnx.DefaultRecognizerConfig()
	if err := c.applyModelConfig(&cfg, c.Models.Recognizer, c.Pipeline.RecognizerInput); err != nil {
		return onnx.Config{}, fmt.Errorf("recognizer: %w", err)
	}
	if cfg.ModelPath == "" {
		cfg.ModelPath = models.GetRecognizerModelPath(c.ModelsDir)
	}
	return cfg, nil
}

func (c *Config) applyModelConfig(cfg *onnx.Config, m ModelConfig, input SizeConfig) error {
	layout, err := pixbuf.ParseLayout(m.Layout)
	if err != nil {
		return err
	}
	memLimit, err := parseMemoryLimit(c.GPU.MemoryLimit)
	if err != nil {
		return err
	}

	cfg.ModelPath = m.ModelPath
	cfg.LibraryPath = c.Models.LibraryPath
	cfg.Width = input.Width
	cfg.Height = input.Height
	cfg.Channels = m.Channels
	cfg.Layout = layout
	cfg.Mean = m.Mean
	cfg.Std = m.Std
	cfg.Quantized = m.Quantized
	cfg.Output = onnx.OutputKind(m.Output)
	cfg.Threshold = m.Threshold
	cfg.LabelOffset = m.LabelOffset
	cfg.NumThreads = m.NumThreads
	cfg.GPU.UseGPU = c.GPU.Enabled
	cfg.GPU.DeviceID = c.GPU.Device
	cfg.GPU.GPUMemLimit = memLimit

	switch {
	case m.AlphabetPath != "":
		labels, err := digits.LoadAlphabet(m.AlphabetPath)
		if err != nil {
			return err
		}
		cfg.Labels = labels
	case len(m.Labels) > 0:
		cfg.Labels = digits.Alphabet(m.Labels)
	}
	return nil
}

// ShutdownTimeout returns the server drain timeout as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeout) * time.Second
}

// Helper functions

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

var memoryUnits = []struct {
	suffix string
	scale  float64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// validateMemoryLimit validates GPU memory limit format (e.g., "1GB", "512MB").
func validateMemoryLimit(limit string) error {
	_, err := parseMemoryLimit(limit)
	return err
}

// parseMemoryLimit converts a limit like "512MB" to bytes. "auto" and the
// empty string mean no limit.
func parseMemoryLimit(limit string) (uint64, error) {
	if limit == "" || limit == "auto" {
		return 0, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(limit))
	for _, unit := range memoryUnits {
		if !strings.HasSuffix(upper, unit.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(upper, unit.suffix)), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * unit.scale), nil
	}

	names := make([]string, len(memoryUnits))
	for i, u := range memoryUnits {
		names[i] = u.suffix
	}
	return 0, fmt.Errorf("memory limit must end with one of: %s", strings.Join(names, ", "))
}
