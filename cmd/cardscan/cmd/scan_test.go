package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cardscan/internal/config"
	"github.com/MeKo-Tech/cardscan/internal/detection"
	"github.com/MeKo-Tech/cardscan/internal/geometry"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/MeKo-Tech/cardscan/internal/testutil"
)

func writeFrames(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	img := testutil.GenerateCardImage(testutil.DefaultCardImageConfig())
	paths := make([]string, n)
	for i := range n {
		paths[i] = filepath.Join(dir, fmt.Sprintf("frame_%02d.png", i))
		testutil.SaveImage(t, img, paths[i])
	}
	return paths
}

func scanConfig() *config.Config {
	cfg := config.DefaultConfig()
	// 200ms per frame clears both stage intervals.
	cfg.Source.FPS = 5
	return &cfg
}

func scriptedPair() (detection.Detector, detection.Detector) {
	locator := testutil.Always(testutil.Box(geometry.SpaceLocatorInput, "", 0, 0.8, 50, 50, 300, 100))
	recognizer := testutil.Always(
		testutil.Digit("7", 400),
		testutil.Digit("4", 100),
		testutil.Digit("2", 250),
	)
	return locator, recognizer
}

func TestRunScan_Text(t *testing.T) {
	paths := writeFrames(t, 3)
	locator, recognizer := scriptedPair()

	var out bytes.Buffer
	require.NoError(t, runScan(context.Background(), scanConfig(), paths, locator, recognizer, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5, out.String())
	for i, line := range lines[:3] {
		assert.Contains(t, line, filepath.Base(paths[i]))
		assert.Contains(t, line, "recognized")
		assert.Contains(t, line, "digits=427")
		assert.Contains(t, line, "luhn=fail")
		assert.Contains(t, line, "line=0.80")
	}
	assert.Equal(t, "Processed 3 frames: recognized=3", lines[3])
	assert.Equal(t, "Last digits: 427", lines[4])
}

func TestRunScan_JSON(t *testing.T) {
	paths := writeFrames(t, 2)
	locator, recognizer := scriptedPair()
	cfg := scanConfig()
	cfg.Output.Format = "json"

	var out bytes.Buffer
	require.NoError(t, runScan(context.Background(), cfg, paths, locator, recognizer, &out))

	scanner := bufio.NewScanner(&out)
	var records []map[string]any
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.Len(t, records, 2)
	for i, rec := range records {
		assert.Equal(t, paths[i], rec["file"])
		assert.Equal(t, "recognized", rec["status"])
		assert.Equal(t, "427", rec["digits"])
		assert.InDelta(t, 0.8, rec["line_confidence"], 1e-9)
	}
}

func TestRunScan_NoLine(t *testing.T) {
	paths := writeFrames(t, 1)

	var out bytes.Buffer
	err := runScan(context.Background(), scanConfig(), paths, testutil.Always(), testutil.Always(), &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "no_line")
	assert.Contains(t, out.String(), "Processed 1 frames: no_line=1")
	assert.NotContains(t, out.String(), "Last digits")
}

func TestRunScan_OverlayDir(t *testing.T) {
	paths := writeFrames(t, 2)
	locator, recognizer := scriptedPair()
	cfg := scanConfig()
	cfg.Output.OverlayDir = filepath.Join(t.TempDir(), "overlays")

	var out bytes.Buffer
	require.NoError(t, runScan(context.Background(), cfg, paths, locator, recognizer, &out))

	entries, err := os.ReadDir(cfg.Output.OverlayDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.True(t, strings.HasSuffix(e.Name(), "_overlay.png"), e.Name())
	}
}

func TestRunScan_BadFormat(t *testing.T) {
	cfg := scanConfig()
	cfg.Source.Format = "yuv420"
	locator, recognizer := scriptedPair()

	err := runScan(context.Background(), cfg, writeFrames(t, 1), locator, recognizer, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestFormatResultText(t *testing.T) {
	tests := []struct {
		name     string
		res      pipeline.FrameResult
		contains []string
		excludes []string
	}{
		{
			name:     "fault",
			res:      pipeline.FrameResult{Seq: 4, Status: pipeline.StatusFault, Error: "crop: out of bounds"},
			contains: []string{"#4 f.png: fault", `error="crop: out of bounds"`},
			excludes: []string{"line="},
		},
		{
			name:     "skipped",
			res:      pipeline.FrameResult{Seq: 1, Status: pipeline.StatusSkipped},
			contains: []string{"#1 f.png: skipped"},
			excludes: []string{"digits="},
		},
		{
			name: "cached valid number",
			res: pipeline.FrameResult{
				Seq: 2, Status: pipeline.StatusRecognized, Reused: true,
				Digits: "4111111111111111", DigitsReused: true, LineConfidence: 0.876,
			},
			contains: []string{"(reused)", "line=0.88", "digits=4111111111111111 (cached)", "luhn=ok"},
		},
		{
			name:     "line only",
			res:      pipeline.FrameResult{Seq: 3, Status: pipeline.StatusLineOnly, LineConfidence: 0.5},
			contains: []string{"line_only", "line=0.50"},
			excludes: []string{"digits=", "luhn"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatResultText("/tmp/f.png", tt.res, 2)
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, got, s)
			}
		})
	}
}

func TestRoundTo(t *testing.T) {
	assert.InDelta(t, 0.88, roundTo(0.876, 2), 1e-12)
	assert.InDelta(t, 1.0, roundTo(0.96, 0), 1e-12)
	assert.InDelta(t, 0.123456, roundTo(0.123456, -1), 1e-12)
}
