//nolint:lll
package config

import "time"

// Config represents the complete configuration for the cardscan application.
// It covers the scan and serve commands and is loaded from configuration
// files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Frame geometry and stage pacing
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Locator and recognizer models
	Models ModelsConfig `mapstructure:"models" yaml:"models" json:"models"`

	// Frame source for scan and serve
	Source SourceConfig `mapstructure:"source" yaml:"source" json:"source"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// GPU configuration
	GPU GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// RectConfig is a rectangle in guideline coordinates.
type RectConfig struct {
	X      float64 `mapstructure:"x" yaml:"x" json:"x"`
	Y      float64 `mapstructure:"y" yaml:"y" json:"y"`
	Width  float64 `mapstructure:"width" yaml:"width" json:"width"`
	Height float64 `mapstructure:"height" yaml:"height" json:"height"`
}

// SizeConfig is a width and height in pixels.
type SizeConfig struct {
	Width  int `mapstructure:"width" yaml:"width" json:"width"`
	Height int `mapstructure:"height" yaml:"height" json:"height"`
}

// PipelineConfig contains frame pipeline settings.
type PipelineConfig struct {
	Guideline     RectConfig `mapstructure:"guideline" yaml:"guideline" json:"guideline"`
	GuidelineSize SizeConfig `mapstructure:"guideline_size" yaml:"guideline_size" json:"guideline_size"`
	OverlaySize   SizeConfig `mapstructure:"overlay_size" yaml:"overlay_size" json:"overlay_size"`

	LocatorInput    SizeConfig `mapstructure:"locator_input" yaml:"locator_input" json:"locator_input"`
	RecognizerInput SizeConfig `mapstructure:"recognizer_input" yaml:"recognizer_input" json:"recognizer_input"`

	LocatorInterval    time.Duration `mapstructure:"locator_interval" yaml:"locator_interval" json:"locator_interval"`
	RecognizerInterval time.Duration `mapstructure:"recognizer_interval" yaml:"recognizer_interval" json:"recognizer_interval"`

	PadMode          string  `mapstructure:"pad_mode" yaml:"pad_mode" json:"pad_mode"`
	EdgeOffset       float64 `mapstructure:"edge_offset" yaml:"edge_offset" json:"edge_offset"`
	KeepDebugBuffers bool    `mapstructure:"keep_debug_buffers" yaml:"keep_debug_buffers" json:"keep_debug_buffers"`
}

// ModelsConfig contains the two detector models.
type ModelsConfig struct {
	// LibraryPath points at the ONNX Runtime shared library; empty searches
	// the usual locations.
	LibraryPath string      `mapstructure:"library_path" yaml:"library_path" json:"library_path"`
	Locator     ModelConfig `mapstructure:"locator" yaml:"locator" json:"locator"`
	Recognizer  ModelConfig `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`
}

// ModelConfig describes one ONNX model and how its input is prepared.
type ModelConfig struct {
	ModelPath    string   `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	Output       string   `mapstructure:"output" yaml:"output" json:"output"`
	Channels     int      `mapstructure:"channels" yaml:"channels" json:"channels"`
	Layout       string   `mapstructure:"layout" yaml:"layout" json:"layout"`
	Mean         float32  `mapstructure:"mean" yaml:"mean" json:"mean"`
	Std          float32  `mapstructure:"std" yaml:"std" json:"std"`
	Quantized    bool     `mapstructure:"quantized" yaml:"quantized" json:"quantized"`
	Threshold    float64  `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	Labels       []string `mapstructure:"labels" yaml:"labels" json:"labels"`
	AlphabetPath string   `mapstructure:"alphabet_path" yaml:"alphabet_path" json:"alphabet_path"`
	LabelOffset  int      `mapstructure:"label_offset" yaml:"label_offset" json:"label_offset"`
	NumThreads   int      `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
}

// SourceConfig contains frame source settings.
type SourceConfig struct {
	Dir    string  `mapstructure:"dir" yaml:"dir" json:"dir"`
	FPS    float64 `mapstructure:"fps" yaml:"fps" json:"fps"`
	Loop   bool    `mapstructure:"loop" yaml:"loop" json:"loop"`
	Format string  `mapstructure:"format" yaml:"format" json:"format"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format              string `mapstructure:"format" yaml:"format" json:"format"`
	ConfidencePrecision int    `mapstructure:"confidence_precision" yaml:"confidence_precision" json:"confidence_precision"`
	// OverlayDir receives one rendered overlay PNG per frame when set.
	OverlayDir string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string  `mapstructure:"host" yaml:"host" json:"host"`
	Port            int     `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string  `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int     `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	ShutdownTimeout int     `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	UploadRate      float64 `mapstructure:"upload_rate" yaml:"upload_rate" json:"upload_rate"` // frames per second per client, 0 = unlimited
	UploadBurst     int     `mapstructure:"upload_burst" yaml:"upload_burst" json:"upload_burst"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}
