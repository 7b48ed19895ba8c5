package geometry

import (
	"encoding/json"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSquareAroundLine(t *testing.T) {
	tests := []struct {
		name string
		in   Rect
		want Rect
	}{
		{
			name: "wide line grows upward and downward",
			in:   NewRect(SpaceSensor, 10, 100, 300, 100),
			want: NewRect(SpaceSensor, 10, 0, 300, 300),
		},
		{
			name: "already square",
			in:   NewRect(SpaceSensor, 5, 5, 40, 40),
			want: NewRect(SpaceSensor, 5, 5, 40, 40),
		},
		{
			name: "taller than wide shrinks around center",
			in:   NewRect(SpaceSensor, 0, 0, 10, 30),
			want: NewRect(SpaceSensor, 0, 10, 10, 10),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SquareAroundLine(tt.in)
			assert.True(t, got.ApproxEqual(tt.want, 1e-9), "got %v want %v", got, tt.want)
			_, cy := got.Center()
			_, inCy := tt.in.Center()
			assert.InDelta(t, inCy, cy, 1e-9)
		})
	}
}

func TestClampToBounds(t *testing.T) {
	bounds := Size{W: 100, H: 100}

	t.Run("inside untouched", func(t *testing.T) {
		r := NewRect(SpaceOverlay, 10, 10, 20, 20)
		assert.Equal(t, r, ClampToBounds(r, bounds, 2))
	})

	t.Run("negative origin pushed to inset", func(t *testing.T) {
		got := ClampToBounds(NewRect(SpaceOverlay, -5, -1, 20, 20), bounds, 2)
		assert.InDelta(t, 2.0, got.X, 1e-9)
		assert.InDelta(t, 2.0, got.Y, 1e-9)
	})

	t.Run("overflow trimmed on right and bottom", func(t *testing.T) {
		got := ClampToBounds(NewRect(SpaceOverlay, 90, 80, 50, 50), bounds, 2)
		assert.InDelta(t, 8.0, got.W, 1e-9)
		assert.InDelta(t, 18.0, got.H, 1e-9)
		assert.LessOrEqual(t, got.MaxX(), bounds.W-2)
		assert.LessOrEqual(t, got.MaxY(), bounds.H-2)
	})
}

func TestTransformApply_RejectsWrongSpace(t *testing.T) {
	tr, err := Stretch(SpaceGuideline, SpaceOverlay, Size{W: 10, H: 10}, Size{W: 20, H: 20})
	require.NoError(t, err)

	_, err = tr.Apply(NewRect(SpaceSensor, 0, 0, 1, 1))
	require.ErrorIs(t, err, ErrSpaceMismatch)

	var se *SpaceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, SpaceGuideline, se.Want)
	assert.Equal(t, SpaceSensor, se.Got)
}

func TestStretch_DegenerateSize(t *testing.T) {
	_, err := Stretch(SpaceSensor, SpaceGuideline, Size{W: 0, H: 10}, Size{W: 10, H: 10})
	require.ErrorIs(t, err, ErrDegenerate)

	_, err = SensorToGuideline(NewRect(SpaceSensor, 0, 0, 1, 1), Size{W: 10, H: 10}, Size{W: 10, H: -1})
	require.ErrorIs(t, err, ErrDegenerate)
}

func TestInputToSource(t *testing.T) {
	region := NewRect(SpaceSensor, 100, 100, 800, 200)
	tr, err := InputToSource(SpaceLocatorInput, Size{W: 320, H: 320}, region)
	require.NoError(t, err)

	got, err := tr.Apply(NewRect(SpaceLocatorInput, 50, 50, 300, 100))
	require.NoError(t, err)
	assert.True(t, got.ApproxEqual(NewRect(SpaceSensor, 225, 131.25, 750, 62.5), 1e-9), "got %v", got)

	whole, err := tr.Apply(NewRect(SpaceLocatorInput, 0, 0, 320, 320))
	require.NoError(t, err)
	assert.True(t, whole.ApproxEqual(region, 1e-9))
}

func TestTransformThen(t *testing.T) {
	a, err := Stretch(SpaceSensor, SpaceGuideline, Size{W: 2000, H: 1000}, Size{W: 1000, H: 500})
	require.NoError(t, err)
	b, err := Stretch(SpaceGuideline, SpaceOverlay, Size{W: 1000, H: 500}, Size{W: 500, H: 500})
	require.NoError(t, err)

	ab, err := a.Then(b)
	require.NoError(t, err)
	got, err := ab.Apply(NewRect(SpaceSensor, 200, 100, 400, 200))
	require.NoError(t, err)
	assert.True(t, got.ApproxEqual(NewRect(SpaceOverlay, 50, 50, 100, 100), 1e-9), "got %v", got)

	_, err = b.Then(a)
	require.ErrorIs(t, err, ErrSpaceMismatch)
}

func TestRectRound(t *testing.T) {
	r := NewRect(SpaceSensor, 225.4, -212.5, 749.6, 750.2)
	assert.Equal(t, image.Rect(225, -213, 975, 537), r.Round())
}

func TestSpaceJSON(t *testing.T) {
	data, err := json.Marshal(NewRect(SpaceRecognizerInput, 1, 2, 3, 4))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"space":"recognizer_input"`)

	var back Rect
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, SpaceRecognizerInput, back.Space)

	var s Space
	require.Error(t, s.UnmarshalText([]byte("nowhere")))
}
