package geometry

import "fmt"

// Transform is an axis-aligned affine map between two spaces:
// x' = x*ScaleX + OffsetX, y' = y*ScaleY + OffsetY.
type Transform struct {
	From    Space
	To      Space
	ScaleX  float64
	ScaleY  float64
	OffsetX float64
	OffsetY float64
}

// Apply maps r from t.From into t.To.
func (t Transform) Apply(r Rect) (Rect, error) {
	if err := r.Expect(fmt.Sprintf("map %s->%s", t.From, t.To), t.From); err != nil {
		return Rect{}, err
	}
	return Rect{
		Space: t.To,
		X:     r.X*t.ScaleX + t.OffsetX,
		Y:     r.Y*t.ScaleY + t.OffsetY,
		W:     r.W * t.ScaleX,
		H:     r.H * t.ScaleY,
	}, nil
}

// Inverse returns the map from t.To back to t.From.
func (t Transform) Inverse() Transform {
	return Transform{
		From:    t.To,
		To:      t.From,
		ScaleX:  1 / t.ScaleX,
		ScaleY:  1 / t.ScaleY,
		OffsetX: -t.OffsetX / t.ScaleX,
		OffsetY: -t.OffsetY / t.ScaleY,
	}
}

// Then composes t with next, applying t first.
func (t Transform) Then(next Transform) (Transform, error) {
	if t.To != next.From {
		return Transform{}, &SpaceError{Op: "compose", Want: next.From, Got: t.To}
	}
	return Transform{
		From:    t.From,
		To:      next.To,
		ScaleX:  t.ScaleX * next.ScaleX,
		ScaleY:  t.ScaleY * next.ScaleY,
		OffsetX: t.OffsetX*next.ScaleX + next.OffsetX,
		OffsetY: t.OffsetY*next.ScaleY + next.OffsetY,
	}, nil
}

// Stretch maps a whole surface onto another by independent x and y scaling.
func Stretch(from, to Space, fromSize, toSize Size) (Transform, error) {
	if !fromSize.Valid() || !toSize.Valid() {
		return Transform{}, fmt.Errorf("stretch %s->%s (%vx%v to %vx%v): %w",
			from, to, fromSize.W, fromSize.H, toSize.W, toSize.H, ErrDegenerate)
	}
	return Transform{
		From:   from,
		To:     to,
		ScaleX: toSize.W / fromSize.W,
		ScaleY: toSize.H / fromSize.H,
	}, nil
}

// SensorToGuideline maps a sensor rectangle onto the guideline surface.
func SensorToGuideline(r Rect, sensor, guideline Size) (Rect, error) {
	t, err := Stretch(SpaceSensor, SpaceGuideline, sensor, guideline)
	if err != nil {
		return Rect{}, err
	}
	return t.Apply(r)
}

// GuidelineToSensor maps a guideline rectangle onto the sensor frame.
func GuidelineToSensor(r Rect, sensor, guideline Size) (Rect, error) {
	t, err := Stretch(SpaceGuideline, SpaceSensor, guideline, sensor)
	if err != nil {
		return Rect{}, err
	}
	return t.Apply(r)
}

// GuidelineToOverlay maps a guideline rectangle onto the overlay surface.
func GuidelineToOverlay(r Rect, guideline, overlay Size) (Rect, error) {
	t, err := Stretch(SpaceGuideline, SpaceOverlay, guideline, overlay)
	if err != nil {
		return Rect{}, err
	}
	return t.Apply(r)
}

// OverlayToGuideline maps an overlay rectangle back onto the guideline surface.
func OverlayToGuideline(r Rect, guideline, overlay Size) (Rect, error) {
	t, err := Stretch(SpaceOverlay, SpaceGuideline, overlay, guideline)
	if err != nil {
		return Rect{}, err
	}
	return t.Apply(r)
}

// InputToSource returns the map from a model input surface of inputSize back
// into the space of region, the source rectangle that was stretched to fill
// the input.
func InputToSource(input Space, inputSize Size, region Rect) (Transform, error) {
	if !inputSize.Valid() || region.Empty() {
		return Transform{}, fmt.Errorf("input %s to %s: %w", input, region.Space, ErrDegenerate)
	}
	return Transform{
		From:    input,
		To:      region.Space,
		ScaleX:  region.W / inputSize.W,
		ScaleY:  region.H / inputSize.H,
		OffsetX: region.X,
		OffsetY: region.Y,
	}, nil
}
