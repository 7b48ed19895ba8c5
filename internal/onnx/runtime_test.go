package onnx

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultGPUConfig(t *testing.T) {
	config := DefaultGPUConfig()

	if config.UseGPU {
		t.Error("Expected UseGPU to be false by default")
	}
	if config.ArenaExtendStrategy != "kNextPowerOfTwo" {
		t.Errorf("Expected ArenaExtendStrategy to be 'kNextPowerOfTwo', got %s", config.ArenaExtendStrategy)
	}
}

func TestValidateGPUConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GPUConfig
		wantErr bool
	}{
		{name: "valid CPU config", config: DefaultGPUConfig()},
		{name: "valid GPU config", config: GPUConfig{UseGPU: true, ArenaExtendStrategy: "kSameAsRequested"}},
		{name: "negative device ID", config: GPUConfig{UseGPU: true, DeviceID: -1}, wantErr: true},
		{name: "invalid arena extend strategy", config: GPUConfig{UseGPU: true, ArenaExtendStrategy: "invalid"}, wantErr: true},
		{name: "invalid values ignored without GPU", config: GPUConfig{DeviceID: -1, ArenaExtendStrategy: "invalid"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGPUConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGPUConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCUDASettings(t *testing.T) {
	got := cudaSettings(GPUConfig{UseGPU: true, DeviceID: 1, GPUMemLimit: 2048, ArenaExtendStrategy: "kSameAsRequested"})
	want := map[string]string{
		"device_id":             "1",
		"gpu_mem_limit":         "2048",
		"arena_extend_strategy": "kSameAsRequested",
	}
	if len(got) != len(want) {
		t.Fatalf("cudaSettings() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("cudaSettings()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestSystemLibraryPathPriority(t *testing.T) {
	cpu := getSystemLibraryPaths(false)
	gpu := getSystemLibraryPaths(true)
	if len(gpu) != len(cpu)+1 {
		t.Fatalf("expected one extra GPU path, got %d vs %d", len(gpu), len(cpu))
	}
	if gpu[0] != "/opt/onnxruntime/gpu/lib/libonnxruntime.so" {
		t.Errorf("GPU library should be tried first, got %s", gpu[0])
	}
}

func TestGetLibraryName(t *testing.T) {
	name, err := getLibraryName()
	if err != nil {
		t.Skipf("unsupported OS: %v", err)
	}
	switch runtime.GOOS {
	case "linux":
		if name != "libonnxruntime.so" {
			t.Errorf("got %s", name)
		}
	case "darwin":
		if name != "libonnxruntime.dylib" {
			t.Errorf("got %s", name)
		}
	}
}

func TestResolveLibraryPath(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libonnxruntime.so")
	if err := os.WriteFile(lib, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("explicit path", func(t *testing.T) {
		got, err := ResolveLibraryPath(lib, false)
		if err != nil || got != lib {
			t.Errorf("ResolveLibraryPath() = %q, %v", got, err)
		}
	})

	t.Run("missing explicit path", func(t *testing.T) {
		if _, err := ResolveLibraryPath(filepath.Join(dir, "nope.so"), false); err == nil {
			t.Error("expected an error for a missing library")
		}
	})

	t.Run("environment override", func(t *testing.T) {
		t.Setenv(LibraryEnv, lib)
		got, err := ResolveLibraryPath("", true)
		if err != nil || got != lib {
			t.Errorf("ResolveLibraryPath() = %q, %v", got, err)
		}
	})
}
