package detection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cardscan/internal/geometry"
	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

func result(label string, conf float64) Result {
	return Result{Box: geometry.NewRect(geometry.SpaceLocatorInput, 0, 0, 1, 1), Label: label, Confidence: conf}
}

func TestBest(t *testing.T) {
	_, ok := Best(nil)
	assert.False(t, ok)

	got, ok := Best([]Result{result("a", 0.4), result("b", 0.9), result("c", 0.9), result("d", 0.1)})
	require.True(t, ok)
	assert.Equal(t, "b", got.Label)
}

func TestFilter(t *testing.T) {
	got := Filter([]Result{result("a", 0.4), result("b", 0.5), result("c", 0.6)}, 0.5)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Label)
	assert.Equal(t, "c", got[1].Label)
}

func TestDetectorFunc(t *testing.T) {
	var seen *pixbuf.Buffer
	det := DetectorFunc(func(_ context.Context, in *pixbuf.Buffer) ([]Result, error) {
		seen = in
		return []Result{result("x", 1)}, nil
	})

	buf, err := pixbuf.New(2, 2, pixbuf.FormatBGRA32)
	require.NoError(t, err)
	out, err := det.Detect(context.Background(), buf)
	require.NoError(t, err)
	assert.Same(t, buf, seen)
	assert.Len(t, out, 1)
}
