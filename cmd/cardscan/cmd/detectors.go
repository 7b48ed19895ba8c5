package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/cardscan/internal/config"
	"github.com/MeKo-Tech/cardscan/internal/onnx"
)

// detectors holds the two ONNX models a pipeline needs.
type detectors struct {
	locator    *onnx.Detector
	recognizer *onnx.Detector
}

// loadDetectors opens the locator and recognizer sessions described by cfg.
func loadDetectors(cfg *config.Config) (*detectors, error) {
	locCfg, err := cfg.ToLocatorConfig()
	if err != nil {
		return nil, err
	}
	recCfg, err := cfg.ToRecognizerConfig()
	if err != nil {
		return nil, err
	}

	locator, err := onnx.NewDetector(locCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load line locator: %w", err)
	}
	recognizer, err := onnx.NewDetector(recCfg)
	if err != nil {
		_ = locator.Close()
		return nil, fmt.Errorf("failed to load digit recognizer: %w", err)
	}

	slog.Info("Models loaded",
		"locator", locCfg.ModelPath,
		"recognizer", recCfg.ModelPath,
		"gpu", locCfg.GPU.UseGPU)
	return &detectors{locator: locator, recognizer: recognizer}, nil
}

// Close releases both sessions and the runtime environment.
func (d *detectors) Close() error {
	return errors.Join(d.locator.Close(), d.recognizer.Close(), onnx.Shutdown())
}
