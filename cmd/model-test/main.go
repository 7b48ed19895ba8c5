package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yalue/onnxruntime_go"

	"github.com/MeKo-Tech/cardscan/internal/models"
	"github.com/MeKo-Tech/cardscan/internal/onnx"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	modelsDir := flag.String("models-dir", "", "models directory (default: $"+models.EnvModelsDir+" or ./models)")
	libPath := flag.String("lib", "", "ONNX Runtime shared library")
	flag.Parse()

	if err := onnx.Initialize(*libPath, false); err != nil {
		slog.Error("Failed to initialize ONNX Runtime", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := onnx.Shutdown(); err != nil {
			slog.Error("Failed to destroy ONNX Runtime environment", "error", err)
		}
	}()

	dir := models.GetModelsDir(*modelsDir)

	fmt.Println("Testing ONNX model compatibility...")
	fmt.Println("=====================================")

	failed := false
	for _, info := range models.ListAvailableModels() {
		if filepath.Ext(info.Filename) != ".onnx" {
			continue
		}
		modelPath := models.ResolveModelPath(dir, info.Type, info.Filename)
		if err := models.ValidateModelExists(modelPath); err != nil {
			fmt.Printf("MISSING %s: %s\n", info.Name, modelPath)
			failed = true
			continue
		}

		inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(modelPath)
		if err != nil {
			fmt.Printf("FAILED  %s: %v\n", info.Name, err)
			failed = true
			continue
		}

		fmt.Printf("OK      %s (%s)\n", info.Name, modelPath)
		fmt.Printf("   - Inputs: %d\n", len(inputs))
		for i, input := range inputs {
			fmt.Printf("     [%d] %s: %v (type: %s)\n", i, input.Name, input.Dimensions, input.DataType)
		}
		fmt.Printf("   - Outputs: %d\n", len(outputs))
		for i, output := range outputs {
			fmt.Printf("     [%d] %s: %v (type: %s)\n", i, output.Name, output.Dimensions, output.DataType)
		}

		metadata, err := onnxruntime_go.GetModelMetadata(modelPath)
		if err == nil {
			if producer, err := metadata.GetProducerName(); err == nil && producer != "" {
				fmt.Printf("   - Producer: %s\n", producer)
			}
			if version, err := metadata.GetVersion(); err == nil {
				fmt.Printf("   - Version: %d\n", version)
			}
			if err := metadata.Destroy(); err != nil {
				slog.Error("Failed to destroy model metadata", "error", err)
			}
		}
		fmt.Println()
	}

	if failed {
		os.Exit(1)
	}
	fmt.Println("Model compatibility test completed!")
}
