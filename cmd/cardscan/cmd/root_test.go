package cmd

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/cardscan/internal/config"
)

// isolate keeps config discovery away from the developer's own files.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Chdir(dir)
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd := GetRootCommand()
	// Flag values survive between Execute calls on the shared root.
	for _, name := range []string{"help", "version"} {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = f.Value.Set("false")
		}
	}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "cardscan", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommandHelp(t *testing.T) {
	isolate(t)

	output, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, output, "number line")
	assert.Contains(t, output, "Available Commands:")
}

func TestRootCommandVersion(t *testing.T) {
	isolate(t)

	output, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, output, "cardscan version")
	assert.Contains(t, output, "Commit:")
}

func TestRootCommandSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	for _, expected := range []string{"scan", "serve", "bench", "config", "models"} {
		assert.True(t, names[expected], "expected subcommand %q", expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	isolate(t)

	_, err := execute(t, "--no-such-flag")
	assert.Error(t, err)
}

func TestConfigInitAndShow(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "generated.yaml")

	output, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote "+path)
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init", path)
	require.Error(t, err, "refuses to overwrite without --force")

	output, err = execute(t, "config", "show")
	require.NoError(t, err)

	var shown config.Config
	require.NoError(t, yaml.Unmarshal([]byte(output), &shown))
	def := config.DefaultConfig()
	assert.Equal(t, def.Server.Port, shown.Server.Port)
	assert.Equal(t, def.Pipeline.RecognizerInterval, shown.Pipeline.RecognizerInterval)
}

func TestScanCommandRequiresArgs(t *testing.T) {
	isolate(t)

	_, err := execute(t, "scan")
	assert.Error(t, err)
}

func TestScanCommandMissingInput(t *testing.T) {
	dir := isolate(t)

	_, err := execute(t, "scan", filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestModelsCommand(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "models"), 0o750))

	output, err := execute(t, "models", "--models-dir", filepath.Join(dir, "models"))
	require.NoError(t, err)
	assert.Contains(t, output, "line-locator")
	assert.Contains(t, output, "missing")
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		cfg  config.Config
		want slog.Level
	}{
		{config.Config{LogLevel: "debug"}, slog.LevelDebug},
		{config.Config{LogLevel: "warn"}, slog.LevelWarn},
		{config.Config{LogLevel: "error"}, slog.LevelError},
		{config.Config{LogLevel: "info"}, slog.LevelInfo},
		{config.Config{LogLevel: "error", Verbose: true}, slog.LevelDebug},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, logLevel(&tt.cfg))
	}
}
