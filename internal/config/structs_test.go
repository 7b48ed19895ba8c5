package config

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestConfigRoundTripYAML(t *testing.T) {
	original := DefaultConfig()
	original.LogLevel = warnLevel
	original.Pipeline.Guideline = RectConfig{X: 12.5, Y: 40, Width: 600, Height: 90}
	original.Pipeline.RecognizerInterval = 750 * time.Millisecond
	original.Models.Recognizer.Labels = []string{"0", "1", "2"}
	original.GPU.Enabled = true
	original.GPU.MemoryLimit = "2GB"

	data, err := yaml.Marshal(original)
	if err != nil {
		t.Fatalf("yaml.Marshal() error: %v", err)
	}
	if !strings.Contains(string(data), "recognizer_interval: 750ms") {
		t.Errorf("Durations should render as strings:\n%s", data)
	}

	var decoded Config
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("yaml.Unmarshal() error: %v", err)
	}

	if decoded.LogLevel != original.LogLevel {
		t.Errorf("LogLevel mismatch: expected %s, got %s", original.LogLevel, decoded.LogLevel)
	}
	if decoded.Pipeline != original.Pipeline {
		t.Errorf("Pipeline mismatch:\n%+v\n%+v", original.Pipeline, decoded.Pipeline)
	}
	if strings.Join(decoded.Models.Recognizer.Labels, "") != "012" {
		t.Errorf("Labels mismatch: %v", decoded.Models.Recognizer.Labels)
	}
	if decoded.GPU != original.GPU {
		t.Errorf("GPU mismatch: expected %+v, got %+v", original.GPU, decoded.GPU)
	}
}

func TestStructTags(t *testing.T) {
	data, err := json.Marshal(DefaultConfig())
	if err != nil {
		t.Fatalf("json.Marshal() error: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"models_dir", "log_level", "pipeline", "models", "source", "output", "server", "gpu"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("JSON output missing %q", key)
		}
	}

	var pipeline map[string]json.RawMessage
	if err := json.Unmarshal(fields["pipeline"], &pipeline); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"guideline", "guideline_size", "locator_interval", "pad_mode", "edge_offset"} {
		if _, ok := pipeline[key]; !ok {
			t.Errorf("pipeline JSON missing %q", key)
		}
	}
}
