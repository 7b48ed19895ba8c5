// Package models resolves where the card scanner's model files live.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Model file names.
const (
	LineLocator     = "card_line_locator.onnx"
	DigitRecognizer = "card_digit_recognizer.onnx"

	// DigitAlphabet maps recognizer class ids to labels, one per line.
	DigitAlphabet = "digits.txt"
)

// Model type categories for organized directory structure.
const (
	TypeLocator      = "locator"
	TypeRecognizer   = "recognizer"
	TypeDictionaries = "dictionaries"
)

// Default models directory.
const DefaultModelsDir = "models"

// Environment variable for models directory override.
const EnvModelsDir = "CARDSCAN_MODELS_DIR"

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.New("could not find project root (go.mod not found)")
}

// ModelInfo contains metadata about a model file.
type ModelInfo struct {
	Name        string
	Type        string
	Description string
	Filename    string
}

// GetModelsDir returns the models directory path from various sources
// Priority: 1. Explicit modelsDir parameter, 2. Environment variable, 3. Project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}

	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}

	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}

	return DefaultModelsDir
}

// ResolveModelPath resolves a model filename to its full path. Files under
// modelsDir/<modelType>/ win; otherwise the flat modelsDir/<filename> is used.
func ResolveModelPath(modelsDir, modelType, filename string) string {
	baseDir := GetModelsDir(modelsDir)

	if modelType != "" {
		organizedPath := filepath.Join(baseDir, modelType, filename)
		if _, err := os.Stat(organizedPath); err == nil {
			return organizedPath
		}
	}

	return filepath.Join(baseDir, filename)
}

// GetLocatorModelPath returns the path for the line locator model.
func GetLocatorModelPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeLocator, LineLocator)
}

// GetRecognizerModelPath returns the path for the digit recognizer model.
func GetRecognizerModelPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeRecognizer, DigitRecognizer)
}

// GetAlphabetPath returns the path for the recognizer alphabet file.
func GetAlphabetPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeDictionaries, DigitAlphabet)
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

// ListAvailableModels returns information about the files the scanner uses.
func ListAvailableModels() []ModelInfo {
	return []ModelInfo{
		{
			Name:        "line-locator",
			Type:        TypeLocator,
			Description: "Card number line locator",
			Filename:    LineLocator,
		},
		{
			Name:        "digit-recognizer",
			Type:        TypeRecognizer,
			Description: "Per-digit detector over the square line crop",
			Filename:    DigitRecognizer,
		},
		{
			Name:        "digit-alphabet",
			Type:        TypeDictionaries,
			Description: "Recognizer class labels",
			Filename:    DigitAlphabet,
		},
	}
}
