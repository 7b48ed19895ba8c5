package onnx

import (
	"fmt"

	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

// InputShape returns the single-image input shape for layout: [1, H, W, C]
// for NHWC or [1, C, H, W] for NCHW.
func InputShape(layout pixbuf.Layout, c, h, w int) []int64 {
	if layout == pixbuf.LayoutNCHW {
		return []int64{1, int64(c), int64(h), int64(w)}
	}
	return []int64{1, int64(h), int64(w), int64(c)}
}

// ValidateShape ensures shape is rank 4 with positive dimensions and that
// n elements fill it exactly.
func ValidateShape(shape []int64, n int) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	total := int64(1)
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
		total *= v
	}
	if int64(n) != total {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", n, total, shape)
	}
	return nil
}

// TensorStats computes simple statistics for debug output.
func TensorStats(data []float32) (float32, float32, float32) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	minVal, maxVal := data[0], data[0]
	var sum float64
	for _, v := range data {
		minVal = min(minVal, v)
		maxVal = max(maxVal, v)
		sum += float64(v)
	}
	return minVal, maxVal, float32(sum / float64(len(data)))
}
