package utils

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
)

// ImageError wraps a failure while reading or writing frame images.
type ImageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *ImageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("image error in %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("image error in %s (%s): %v", e.Operation, e.Path, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	return slices.Contains(SupportedImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// LoadImage opens and decodes a frame image.
func LoadImage(path string) (image.Image, error) {
	if path == "" {
		return nil, &ImageError{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		return nil, &ImageError{Operation: "load", Path: path, Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}

	f, err := os.Open(path) //nolint:gosec // G304: Reading user-provided frame path is expected
	if err != nil {
		return nil, &ImageError{Operation: "load", Path: path, Err: err}
	}
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing image file: %v\n", err)
		}
	}()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &ImageError{Operation: "decode", Path: path, Err: err}
	}
	return img, nil
}

// SavePNG encodes img as PNG at path, creating parent directories.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &ImageError{Operation: "save", Path: path, Err: err}
	}
	f, err := os.Create(path) //nolint:gosec // G304: Writing to user-selected output path is expected
	if err != nil {
		return &ImageError{Operation: "save", Path: path, Err: err}
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return &ImageError{Operation: "encode", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &ImageError{Operation: "save", Path: path, Err: err}
	}
	return nil
}

// DiscoverImages expands files and directories into a sorted list of
// supported image paths. Directories are scanned one level deep.
func DiscoverImages(inputs []string) ([]string, error) {
	var out []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, &ImageError{Operation: "discover", Path: in, Err: err}
		}
		if !info.IsDir() {
			if !IsSupportedImage(in) {
				return nil, &ImageError{Operation: "discover", Path: in, Err: fmt.Errorf("unsupported format: %s", filepath.Ext(in))}
			}
			out = append(out, in)
			continue
		}
		entries, err := os.ReadDir(in)
		if err != nil {
			return nil, &ImageError{Operation: "discover", Path: in, Err: err}
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && IsSupportedImage(e.Name()) {
				found = append(found, filepath.Join(in, e.Name()))
			}
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}
