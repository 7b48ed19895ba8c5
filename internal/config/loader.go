package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "cardscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "CARDSCAN"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	// Use the global viper instance to ensure flag bindings work
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader over v instead of the global instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from files, environment variables, and sets defaults.
// It returns the loaded configuration and any error encountered.
func (l *Loader) Load() (*Config, error) {
	config, err := l.LoadWithoutValidation()
	if err != nil {
		return nil, err
	}

	// Validate the configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadWithoutValidation loads configuration from files, environment variables, and sets defaults.
// It returns the loaded configuration without validation.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	// Set configuration file details
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml") // Primary format, but viper supports multiple formats

	// Add configuration search paths
	l.addConfigPaths()

	// Set environment variable handling
	l.setupEnvironmentVariables()

	// Set defaults
	l.setDefaults()

	// Try to read configuration file
	if err := l.v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we'll use defaults and env vars
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal into our config struct
	return l.unmarshal()
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}

	config, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}

	// Validate the configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadWithFileWithoutValidation loads configuration from a specific file path without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile == "" {
		return l.LoadWithoutValidation()
	}

	// Check if file exists
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	// Set the specific config file
	l.v.SetConfigFile(configFile)

	// Set environment variable handling
	l.setupEnvironmentVariables()

	// Set defaults
	l.setDefaults()

	// Read the config file
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	// Unmarshal into our config struct
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()

	// Replace dots and dashes with underscores in env var names
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	// Global settings
	l.v.SetDefault("models_dir", defaults.ModelsDir)
	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	// Pipeline defaults
	p := defaults.Pipeline
	l.v.SetDefault("pipeline.guideline.x", p.Guideline.X)
	l.v.SetDefault("pipeline.guideline.y", p.Guideline.Y)
	l.v.SetDefault("pipeline.guideline.width", p.Guideline.Width)
	l.v.SetDefault("pipeline.guideline.height", p.Guideline.Height)
	l.setSizeDefault("pipeline.guideline_size", p.GuidelineSize)
	l.setSizeDefault("pipeline.overlay_size", p.OverlaySize)
	l.setSizeDefault("pipeline.locator_input", p.LocatorInput)
	l.setSizeDefault("pipeline.recognizer_input", p.RecognizerInput)
	l.v.SetDefault("pipeline.locator_interval", p.LocatorInterval)
	l.v.SetDefault("pipeline.recognizer_interval", p.RecognizerInterval)
	l.v.SetDefault("pipeline.pad_mode", p.PadMode)
	l.v.SetDefault("pipeline.edge_offset", p.EdgeOffset)
	l.v.SetDefault("pipeline.keep_debug_buffers", p.KeepDebugBuffers)

	// Model defaults
	l.v.SetDefault("models.library_path", defaults.Models.LibraryPath)
	l.setModelDefaults("models.locator", defaults.Models.Locator)
	l.setModelDefaults("models.recognizer", defaults.Models.Recognizer)

	// Source defaults
	l.v.SetDefault("source.dir", defaults.Source.Dir)
	l.v.SetDefault("source.fps", defaults.Source.FPS)
	l.v.SetDefault("source.loop", defaults.Source.Loop)
	l.v.SetDefault("source.format", defaults.Source.Format)

	// Output defaults
	l.v.SetDefault("output.format", defaults.Output.Format)
	l.v.SetDefault("output.confidence_precision", defaults.Output.ConfidencePrecision)
	l.v.SetDefault("output.overlay_dir", defaults.Output.OverlayDir)

	// Server defaults
	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	l.v.SetDefault("server.upload_rate", defaults.Server.UploadRate)
	l.v.SetDefault("server.upload_burst", defaults.Server.UploadBurst)

	// GPU defaults
	l.v.SetDefault("gpu.enabled", defaults.GPU.Enabled)
	l.v.SetDefault("gpu.device", defaults.GPU.Device)
	l.v.SetDefault("gpu.memory_limit", defaults.GPU.MemoryLimit)
}

func (l *Loader) setSizeDefault(prefix string, s SizeConfig) {
	l.v.SetDefault(prefix+".width", s.Width)
	l.v.SetDefault(prefix+".height", s.Height)
}

func (l *Loader) setModelDefaults(prefix string, m ModelConfig) {
	l.v.SetDefault(prefix+".model_path", m.ModelPath)
	l.v.SetDefault(prefix+".output", m.Output)
	l.v.SetDefault(prefix+".channels", m.Channels)
	l.v.SetDefault(prefix+".layout", m.Layout)
	l.v.SetDefault(prefix+".mean", m.Mean)
	l.v.SetDefault(prefix+".std", m.Std)
	l.v.SetDefault(prefix+".quantized", m.Quantized)
	l.v.SetDefault(prefix+".threshold", m.Threshold)
	l.v.SetDefault(prefix+".labels", m.Labels)
	l.v.SetDefault(prefix+".alphabet_path", m.AlphabetPath)
	l.v.SetDefault(prefix+".label_offset", m.LabelOffset)
	l.v.SetDefault(prefix+".num_threads", m.NumThreads)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]interface{} {
	return l.v.AllSettings()
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile generates a default configuration file.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()

	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}

	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if homeErr == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	paths = append(paths, "/etc/"+ConfigFileName)

	return paths
}

// PrintConfigInfo writes information about configuration loading to w.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	used := l.GetConfigFileUsed()
	if used == "" {
		used = "(none, using defaults)"
	}
	_, _ = fmt.Fprintf(w, "Configuration file used: %s\n", used)
	_, _ = fmt.Fprintf(w, "Configuration search paths: %v\n", GetConfigSearchPaths())
	_, _ = fmt.Fprintf(w, "Environment prefix: %s\n", EnvPrefix)
}
