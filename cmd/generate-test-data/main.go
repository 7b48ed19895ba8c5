package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/cardscan/internal/digits"
	"github.com/MeKo-Tech/cardscan/internal/testutil"
	"github.com/MeKo-Tech/cardscan/internal/utils"
)

// frameFixture records what a generated frame shows.
type frameFixture struct {
	File     string  `json:"file"`
	Number   string  `json:"number"`
	Luhn     bool    `json:"luhn"`
	Rotation float64 `json:"rotation"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir  = flag.String("out", "testdata/frames", "Output directory, relative to the project root")
		width   = flag.Int("width", 640, "Frame width")
		height  = flag.Int("height", 480, "Frame height")
		rotate  = flag.Bool("rotated", true, "Also write slightly rotated variants")
		verbose = flag.Bool("v", false, "Verbose output")
		help    = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic card frames for cardscan testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                      # Write frames to testdata/frames\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -rotated=false       # Upright frames only\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	dir := *outDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	if *verbose {
		slog.Info("Options", "out", dir, "width", *width, "height", *height, "rotated", *rotate)
	}

	fixtures, err := generateFrames(dir, *width, *height, *rotate)
	if err != nil {
		slog.Error("Failed to generate frames", "error", err)
		os.Exit(1)
	}
	if err := saveManifest(filepath.Join(dir, "manifest.json"), fixtures); err != nil {
		slog.Error("Failed to write manifest", "error", err)
		os.Exit(1)
	}

	slog.Info("Test data generation completed", "frames", len(fixtures), "dir", dir)
}

var cardNumbers = []string{
	"4111 1111 1111 1111",
	"5500 0000 0000 0004",
	"3400 000000 00009",
	"6011 0000 0000 0004",
	"4111 1111 1111 1112",
}

// generateFrames writes one PNG per card number and rotation.
func generateFrames(dir string, width, height int, rotated bool) ([]frameFixture, error) {
	if err := testutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	rotations := []float64{0}
	if rotated {
		rotations = append(rotations, -4, 4)
	}

	var fixtures []frameFixture
	for i, number := range cardNumbers {
		for _, rot := range rotations {
			cfg := testutil.DefaultCardImageConfig()
			cfg.Number = number
			cfg.Width = width
			cfg.Height = height
			cfg.Rotation = rot

			name := fmt.Sprintf("card_%02d_rot%+.0f.png", i+1, rot)
			if err := utils.SavePNG(filepath.Join(dir, name), testutil.GenerateCardImage(cfg)); err != nil {
				return nil, err
			}

			plain := digits.DigitString(strings.ReplaceAll(number, " ", ""))
			fixtures = append(fixtures, frameFixture{
				File:     name,
				Number:   plain.String(),
				Luhn:     plain.Luhn(),
				Rotation: rot,
			})
			slog.Debug("Wrote frame", "file", name)
		}
	}
	return fixtures, nil
}

func saveManifest(path string, fixtures []frameFixture) error {
	data, err := json.MarshalIndent(fixtures, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
