package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

func TestInputShape(t *testing.T) {
	assert.Equal(t, []int64{1, 320, 320, 3}, InputShape(pixbuf.LayoutNHWC, 3, 320, 320))
	assert.Equal(t, []int64{1, 1, 31, 200}, InputShape(pixbuf.LayoutNCHW, 1, 31, 200))
}

func TestValidateShape(t *testing.T) {
	require.NoError(t, ValidateShape([]int64{1, 2, 3, 4}, 24))
	require.ErrorContains(t, ValidateShape([]int64{1, 2, 3}, 6), "rank")
	require.ErrorContains(t, ValidateShape([]int64{1, 0, 3, 4}, 0), "dimension 1")
	require.ErrorContains(t, ValidateShape([]int64{1, 2, 3, 4}, 23), "length 23")
}

func TestTensorStats(t *testing.T) {
	lo, hi, mean := TensorStats([]float32{-1, 0, 1, 4})
	assert.InDelta(t, -1, lo, 1e-6)
	assert.InDelta(t, 4, hi, 1e-6)
	assert.InDelta(t, 1, mean, 1e-6)

	lo, hi, mean = TensorStats(nil)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
	assert.Zero(t, mean)
}
