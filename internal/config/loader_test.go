package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

const (
	testValue = "test_value"
)

// isolate moves the test into an empty directory with no reachable
// config files and returns a loader over a fresh viper instance.
func isolate(t *testing.T) *Loader {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, EnvPrefix+"_") {
			name, _, _ := strings.Cut(env, "=")
			t.Setenv(name, "")
			if err := os.Unsetenv(name); err != nil {
				t.Fatalf("Failed to unset %s: %v", name, err)
			}
		}
	}
	t.Chdir(dir)
	return NewLoaderWithViper(viper.New())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName+".yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if loader.v != viper.GetViper() {
		t.Error("NewLoader should use the global viper instance")
	}
}

func TestLoadWithNoConfigFile(t *testing.T) {
	loader := isolate(t)

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected default log level '%s', got %s", infoLevel, cfg.LogLevel)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Pipeline.LocatorInterval != 100*time.Millisecond {
		t.Errorf("Expected default locator interval 100ms, got %v", cfg.Pipeline.LocatorInterval)
	}
	if len(cfg.Models.Recognizer.Labels) != 10 {
		t.Errorf("Expected default digit labels, got %v", cfg.Models.Recognizer.Labels)
	}
	if loader.GetConfigFileUsed() != "" {
		t.Errorf("Expected no config file, got %s", loader.GetConfigFileUsed())
	}
}

func TestLoadFromWorkingDirectory(t *testing.T) {
	loader := isolate(t)
	if err := os.WriteFile(ConfigFileName+".yaml", []byte("log_level: warn\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.LogLevel != warnLevel {
		t.Errorf("Expected log level from ./cardscan.yaml, got %s", cfg.LogLevel)
	}
}

func TestLoadWithValidYAMLFile(t *testing.T) {
	loader := isolate(t)
	configFile := writeConfig(t, `
log_level: debug
verbose: true
models_dir: /custom/models
pipeline:
  guideline:
    x: 50
    y: 300
    width: 900
    height: 150
  locator_interval: 250ms
  recognizer_interval: 1s
  pad_mode: zero
models:
  recognizer:
    output: sequence
    channels: 1
    labels: ["0", "1", "2", "3", "4", "5", "6", "7", "8", "9", " "]
source:
  dir: /frames
  fps: 12.5
  loop: true
server:
  host: 0.0.0.0
  port: 9090
`)

	cfg, err := loader.LoadWithFile(configFile)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}

	if cfg.LogLevel != debugLevel || !cfg.Verbose {
		t.Errorf("Global settings not loaded: %+v", cfg)
	}
	if cfg.ModelsDir != "/custom/models" {
		t.Errorf("ModelsDir = %s", cfg.ModelsDir)
	}
	if cfg.Pipeline.Guideline != (RectConfig{X: 50, Y: 300, Width: 900, Height: 150}) {
		t.Errorf("Guideline = %+v", cfg.Pipeline.Guideline)
	}
	if cfg.Pipeline.LocatorInterval != 250*time.Millisecond || cfg.Pipeline.RecognizerInterval != time.Second {
		t.Errorf("Intervals = %v / %v", cfg.Pipeline.LocatorInterval, cfg.Pipeline.RecognizerInterval)
	}
	if cfg.Pipeline.PadMode != "zero" {
		t.Errorf("PadMode = %s", cfg.Pipeline.PadMode)
	}
	if cfg.Models.Recognizer.Output != "sequence" || cfg.Models.Recognizer.Channels != 1 {
		t.Errorf("Recognizer = %+v", cfg.Models.Recognizer)
	}
	if len(cfg.Models.Recognizer.Labels) != 11 {
		t.Errorf("Labels = %v", cfg.Models.Recognizer.Labels)
	}
	// Untouched keys keep their defaults.
	if cfg.Models.Recognizer.Threshold != 0.5 {
		t.Errorf("Threshold default lost: %v", cfg.Models.Recognizer.Threshold)
	}
	if cfg.Source.Dir != "/frames" || cfg.Source.FPS != 12.5 || !cfg.Source.Loop {
		t.Errorf("Source = %+v", cfg.Source)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if loader.GetConfigFileUsed() != configFile {
		t.Errorf("GetConfigFileUsed() = %s, want %s", loader.GetConfigFileUsed(), configFile)
	}
}

func TestLoadWithInvalidYAMLFile(t *testing.T) {
	loader := isolate(t)
	configFile := writeConfig(t, "log_level: [unterminated\n")

	if _, err := loader.LoadWithFile(configFile); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoadWithNonExistentFile(t *testing.T) {
	loader := isolate(t)

	_, err := loader.LoadWithFile("/nonexistent/cardscan.yaml")
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("Expected missing file error, got %v", err)
	}
}

func TestLoadWithValidationFailure(t *testing.T) {
	loader := isolate(t)
	configFile := writeConfig(t, "log_level: chatty\n")

	_, err := loader.LoadWithFile(configFile)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestLoadWithoutValidation(t *testing.T) {
	loader := isolate(t)
	configFile := writeConfig(t, "log_level: chatty\n")

	cfg, err := loader.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.LogLevel != "chatty" {
		t.Errorf("Expected unvalidated log level, got %s", cfg.LogLevel)
	}
}

func TestLoadWithEmptyFilenameUsesDefaultLoad(t *testing.T) {
	loader := isolate(t)

	cfg, err := loader.LoadWithFile("")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected defaults, got log level %s", cfg.LogLevel)
	}
}

func TestEnvironmentVariableOverride(t *testing.T) {
	loader := isolate(t)
	t.Setenv("CARDSCAN_LOG_LEVEL", "debug")
	t.Setenv("CARDSCAN_SERVER_PORT", "9999")
	t.Setenv("CARDSCAN_VERBOSE", "true")

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.LogLevel != debugLevel {
		t.Errorf("Expected log level 'debug' from env, got %s", cfg.LogLevel)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Expected port 9999 from env, got %d", cfg.Server.Port)
	}
	if !cfg.Verbose {
		t.Error("Expected verbose true from env")
	}
}

func TestEnvironmentVariableWithUnderscores(t *testing.T) {
	loader := isolate(t)
	t.Setenv("CARDSCAN_PIPELINE_RECOGNIZER_INTERVAL", "300ms")
	t.Setenv("CARDSCAN_MODELS_LOCATOR_MODEL_PATH", "/env/locator.onnx")
	t.Setenv("CARDSCAN_SOURCE_FPS", "5")

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Pipeline.RecognizerInterval != 300*time.Millisecond {
		t.Errorf("RecognizerInterval = %v", cfg.Pipeline.RecognizerInterval)
	}
	if cfg.Models.Locator.ModelPath != "/env/locator.onnx" {
		t.Errorf("Locator model path = %s", cfg.Models.Locator.ModelPath)
	}
	if cfg.Source.FPS != 5 {
		t.Errorf("FPS = %v", cfg.Source.FPS)
	}
}

func TestMultipleConfigSourcesPrecedence(t *testing.T) {
	loader := isolate(t)
	configFile := writeConfig(t, "log_level: warn\nserver:\n  port: 7000\n")
	t.Setenv("CARDSCAN_SERVER_PORT", "7001")

	cfg, err := loader.LoadWithFile(configFile)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.LogLevel != warnLevel {
		t.Errorf("File value should apply, got %s", cfg.LogLevel)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("Env should beat file, got %d", cfg.Server.Port)
	}

	loader.Set("server.port", 7002)
	cfg, err = loader.LoadWithFile(configFile)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Server.Port != 7002 {
		t.Errorf("Explicit Set should beat env, got %d", cfg.Server.Port)
	}
}

func TestGetSetConfigValues(t *testing.T) {
	loader := isolate(t)

	loader.Set("custom.key", testValue)
	if got := loader.GetString("custom.key"); got != testValue {
		t.Errorf("GetString() = %s, want %s", got, testValue)
	}
	if got := loader.Get("custom.key"); got != testValue {
		t.Errorf("Get() = %v, want %s", got, testValue)
	}
	if loader.GetViper() == nil {
		t.Error("GetViper() returned nil")
	}
}

func TestGetResolvedConfig(t *testing.T) {
	loader := isolate(t)
	if _, err := loader.Load(); err != nil {
		t.Fatal(err)
	}

	settings := loader.GetResolvedConfig()
	for _, key := range []string{"log_level", "pipeline", "models", "server", "source"} {
		if _, ok := settings[key]; !ok {
			t.Errorf("Resolved config missing %s", key)
		}
	}
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "generated.yaml")

	if err := GenerateDefaultConfigFile(path); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() error: %v", err)
	}

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	if err != nil {
		t.Fatalf("Generated file does not load: %v", err)
	}
	if cfg.Pipeline.LocatorInterval != 100*time.Millisecond {
		t.Errorf("Generated locator interval = %v", cfg.Pipeline.LocatorInterval)
	}
}

func TestGenerateDefaultConfigFileWithEmptyFilename(t *testing.T) {
	isolate(t)

	if err := GenerateDefaultConfigFile(""); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() error: %v", err)
	}
	if _, err := os.Stat(ConfigFileName + ".yaml"); err != nil {
		t.Errorf("Expected %s.yaml in working directory: %v", ConfigFileName, err)
	}
}

func TestGetConfigSearchPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	paths := GetConfigSearchPaths()
	want := []string{".", home, filepath.Join("/xdg", "cardscan"), "/etc/cardscan"}
	if len(paths) != len(want) {
		t.Fatalf("GetConfigSearchPaths() = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path %d = %s, want %s", i, paths[i], want[i])
		}
	}
}

func TestGetConfigSearchPathsWithoutXDG(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	if err := os.Unsetenv("XDG_CONFIG_HOME"); err != nil {
		t.Fatal(err)
	}

	paths := GetConfigSearchPaths()
	if paths[2] != filepath.Join(home, ".config", "cardscan") {
		t.Errorf("Expected ~/.config/cardscan fallback, got %v", paths)
	}
}
