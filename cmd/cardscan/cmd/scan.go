package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cardscan/internal/config"
	"github.com/MeKo-Tech/cardscan/internal/detection"
	"github.com/MeKo-Tech/cardscan/internal/framesource"
	"github.com/MeKo-Tech/cardscan/internal/overlay"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
	"github.com/MeKo-Tech/cardscan/internal/utils"
)

// scanCmd runs the pipeline over image files as a frame sequence.
var scanCmd = &cobra.Command{
	Use:   "scan <image|dir>...",
	Short: "Run the scanner over a sequence of image frames",
	Long: `Treat image files as consecutive camera frames and run the locator and
recognizer pipeline over them.

Directories are expanded to the images they contain, sorted by name. The
pipeline clock advances by one frame interval per frame (see --fps), so
rate limiting behaves as it would on a live camera at that frame rate.

Examples:
  cardscan scan frames/
  cardscan scan a.png b.png --fps 10 --format json
  cardscan scan frames/ --overlay-dir out/`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		if cmd.Flags().Changed("format") {
			cfg.Output.Format, _ = cmd.Flags().GetString("format")
		}
		if cmd.Flags().Changed("fps") {
			cfg.Source.FPS, _ = cmd.Flags().GetFloat64("fps")
		}
		if cmd.Flags().Changed("overlay-dir") {
			cfg.Output.OverlayDir, _ = cmd.Flags().GetString("overlay-dir")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		paths, err := utils.DiscoverImages(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no supported images found in %s", strings.Join(args, ", "))
		}

		dets, err := loadDetectors(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := dets.Close(); err != nil {
				slog.Warn("Failed to release detectors", "error", err)
			}
		}()

		return runScan(cmd.Context(), cfg, paths, dets.locator, dets.recognizer, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("format", "f", "text", "output format: text or json")
	scanCmd.Flags().Float64("fps", 30, "frame rate the sequence was captured at")
	scanCmd.Flags().String("overlay-dir", "", "write a rendered overlay PNG per frame into this directory")
}

// scanRecord is one line of JSON output.
type scanRecord struct {
	File string `json:"file"`
	pipeline.FrameResult
}

// scanSummary counts results by status.
type scanSummary struct {
	Frames int
	ByStat map[pipeline.Status]int
	Last   string
}

// runScan feeds paths through a pipeline built from cfg and writes one
// result per frame to out.
func runScan(ctx context.Context, cfg *config.Config, paths []string,
	locator, recognizer detection.Detector, out io.Writer,
) error {
	if ctx == nil {
		ctx = context.Background()
	}
	format, err := pixbuf.ParseFormat(cfg.Source.Format)
	if err != nil {
		return err
	}
	if cfg.Output.OverlayDir != "" {
		if err := os.MkdirAll(cfg.Output.OverlayDir, 0o750); err != nil {
			return fmt.Errorf("failed to create overlay directory: %w", err)
		}
	}

	latest := &overlay.Latest{}
	p, err := pipeline.NewBuilder().
		WithConfig(cfg.ToPipelineConfig()).
		WithLocator(locator).
		WithRecognizer(recognizer).
		WithPresenter(latest).
		WithClock(pipeline.NewFPSClock(cfg.Source.FPS).Now).
		Build()
	if err != nil {
		return err
	}

	files := framesource.NewFiles(paths, format)
	summary := scanSummary{ByStat: map[pipeline.Status]int{}}
	enc := json.NewEncoder(out)
	var writeErr error

	runErr := p.Run(ctx, files, func(res pipeline.FrameResult) {
		if res.Debug != nil {
			res.Debug.Release()
			res.Debug = nil
		}
		path := files.Current()
		summary.Frames++
		summary.ByStat[res.Status]++
		if res.Digits != "" {
			summary.Last = res.Digits.String()
		}

		if writeErr != nil {
			return
		}
		switch cfg.Output.Format {
		case "json":
			res.LineConfidence = roundTo(res.LineConfidence, cfg.Output.ConfidencePrecision)
			writeErr = enc.Encode(scanRecord{File: path, FrameResult: res})
		default:
			_, writeErr = fmt.Fprintln(out, formatResultText(path, res, cfg.Output.ConfidencePrecision))
		}

		if cfg.Output.OverlayDir != "" && res.Status != pipeline.StatusFault {
			if f, ok := latest.Get(); ok {
				if err := saveOverlay(cfg, path, res.Seq, f); err != nil {
					slog.Warn("Failed to write overlay", "file", path, "error", err)
				}
			}
		}
	})
	if runErr != nil {
		return runErr
	}
	if writeErr != nil {
		return fmt.Errorf("failed to write results: %w", writeErr)
	}

	if cfg.Output.Format != "json" {
		_, err = fmt.Fprintln(out, formatSummary(summary))
		return err
	}
	return nil
}

// formatResultText renders one frame result as a single line.
func formatResultText(path string, res pipeline.FrameResult, precision int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s: %s", res.Seq, filepath.Base(path), res.Status)
	if res.Reused {
		b.WriteString(" (reused)")
	}
	switch res.Status {
	case pipeline.StatusFault:
		fmt.Fprintf(&b, " error=%q", res.Error)
		return b.String()
	case pipeline.StatusNoLine, pipeline.StatusSkipped:
		return b.String()
	}

	fmt.Fprintf(&b, " line=%.*f", precision, res.LineConfidence)
	if res.Digits != "" {
		fmt.Fprintf(&b, " digits=%s", res.Digits)
		if res.DigitsReused {
			b.WriteString(" (cached)")
		}
		if res.Digits.IsNumeric() {
			if res.Digits.Luhn() {
				b.WriteString(" luhn=ok")
			} else {
				b.WriteString(" luhn=fail")
			}
		}
	}
	fmt.Fprintf(&b, " inference=%.1fms", res.Timing.InferenceMs())
	return b.String()
}

// formatSummary renders the per-status totals.
func formatSummary(s scanSummary) string {
	order := []pipeline.Status{
		pipeline.StatusRecognized, pipeline.StatusLineOnly, pipeline.StatusNoLine,
		pipeline.StatusSkipped, pipeline.StatusFault,
	}
	parts := make([]string, 0, len(order))
	for _, st := range order {
		if n := s.ByStat[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", st, n))
		}
	}
	line := fmt.Sprintf("Processed %d frames", s.Frames)
	if len(parts) > 0 {
		line += ": " + strings.Join(parts, " ")
	}
	if s.Last != "" {
		line += fmt.Sprintf("\nLast digits: %s", s.Last)
	}
	return line
}

// saveOverlay renders f over the source frame and writes it as PNG.
func saveOverlay(cfg *config.Config, path string, seq uint64, f overlay.Frame) error {
	img, err := utils.LoadImage(path)
	if err != nil {
		return err
	}
	rendered := overlay.Render(img, cfg.ToPipelineConfig().OverlaySize, f)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := fmt.Sprintf("%04d_%s_overlay.png", seq, base)
	return utils.SavePNG(filepath.Join(cfg.Output.OverlayDir, name), rendered)
}

func roundTo(v float64, precision int) float64 {
	if precision < 0 {
		return v
	}
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}
