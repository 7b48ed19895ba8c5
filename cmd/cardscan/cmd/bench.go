package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cardscan/internal/benchmark"
	"github.com/MeKo-Tech/cardscan/internal/config"
	"github.com/MeKo-Tech/cardscan/internal/detection"
	"github.com/MeKo-Tech/cardscan/internal/framesource"
	"github.com/MeKo-Tech/cardscan/internal/overlay"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
	"github.com/MeKo-Tech/cardscan/internal/utils"
)

var benchCmd = &cobra.Command{
	Use:   "bench <image|dir>...",
	Short: "Measure per-stage pipeline latency",
	Long: `Run the pipeline repeatedly over the given frames and report locator,
recognizer and whole-frame latency percentiles.

Stage throttling is disabled unless --throttle is set, so every frame runs
both detectors.

Examples:
  cardscan bench frames/ --iterations 50
  cardscan bench card.png --throttle`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		iterations, _ := cmd.Flags().GetInt("iterations")
		throttle, _ := cmd.Flags().GetBool("throttle")

		paths, err := utils.DiscoverImages(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no supported images found")
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

		return runBench(cmd.Context(), cfg, paths, dets.locator, dets.recognizer, iterations, throttle, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().IntP("iterations", "n", 20, "passes over the frame set")
	benchCmd.Flags().Bool("throttle", false, "keep the configured stage intervals")
}

// runBench times frame decoding and overlay rendering, then the pipeline
// itself, and prints both reports to out.
func runBench(ctx context.Context, cfg *config.Config, paths []string,
	locator, recognizer detection.Detector, iterations int, throttle bool, out io.Writer,
) error {
	format, err := pixbuf.ParseFormat(cfg.Source.Format)
	if err != nil {
		return err
	}

	frames := make([]*pixbuf.Buffer, 0, len(paths))
	defer func() {
		for _, f := range frames {
			f.Release()
		}
	}()
	for _, path := range paths {
		f, err := framesource.LoadFrame(path, format)
		if err != nil {
			return err
		}
		frames = append(frames, f)
	}

	pCfg := cfg.ToPipelineConfig()
	if !throttle {
		pCfg.LocatorInterval = 0
		pCfg.RecognizerInterval = 0
	}
	latest := &overlay.Latest{}
	p, err := pipeline.NewBuilder().
		WithConfig(pCfg).
		WithLocator(locator).
		WithRecognizer(recognizer).
		WithPresenter(latest).
		Build()
	if err != nil {
		return err
	}

	report, err := benchmark.RunPipeline(ctx, p, frames, iterations)
	if err != nil {
		return err
	}

	suite := benchmark.NewSuite()
	suite.Add("frame decode", func() error {
		f, err := framesource.LoadFrame(paths[0], format)
		if err != nil {
			return err
		}
		f.Release()
		return nil
	})
	suite.Add("overlay render", func() error {
		f, _ := latest.Get()
		overlay.Render(nil, pCfg.OverlaySize, f)
		return nil
	})
	suite.RunAll(iterations)

	_, _ = fmt.Fprintf(out, "Pipeline (%d frames x %d iterations, throttle=%v)\n", len(frames), iterations, throttle)
	report.Print(out)
	_, _ = fmt.Fprintln(out)
	suite.PrintResults(out)
	return nil
}
