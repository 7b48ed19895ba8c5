// Package geometry holds rectangles tagged with the coordinate space they
// live in, and the transforms that move them between spaces.
package geometry

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// Space identifies the coordinate system a rectangle is expressed in.
type Space int

const (
	SpaceUnknown Space = iota
	// SpaceSensor is the full camera frame in pixels.
	SpaceSensor
	// SpaceGuideline is the preview surface hosting the guideline rectangle.
	SpaceGuideline
	// SpaceLocatorInput is the line locator's model input.
	SpaceLocatorInput
	// SpaceRecognizerInput is the digit recognizer's model input.
	SpaceRecognizerInput
	// SpaceOverlay is the presentation layer.
	SpaceOverlay
)

var spaceNames = map[Space]string{
	SpaceUnknown:         "unknown",
	SpaceSensor:          "sensor",
	SpaceGuideline:       "guideline",
	SpaceLocatorInput:    "locator_input",
	SpaceRecognizerInput: "recognizer_input",
	SpaceOverlay:         "overlay",
}

func (s Space) String() string {
	if n, ok := spaceNames[s]; ok {
		return n
	}
	return fmt.Sprintf("space(%d)", int(s))
}

// MarshalText encodes the space by name.
func (s Space) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a space name.
func (s *Space) UnmarshalText(text []byte) error {
	for k, v := range spaceNames {
		if v == string(text) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown coordinate space %q", text)
}

var (
	// ErrSpaceMismatch is returned when a rectangle is used in the wrong space.
	ErrSpaceMismatch = errors.New("coordinate space mismatch")
	// ErrDegenerate is returned for zero or negative surface sizes.
	ErrDegenerate = errors.New("degenerate size")
)

// SpaceError reports a rectangle arriving in an unexpected space.
type SpaceError struct {
	Op   string
	Want Space
	Got  Space
}

func (e *SpaceError) Error() string {
	return fmt.Sprintf("%s: expected %s space, got %s", e.Op, e.Want, e.Got)
}

func (e *SpaceError) Unwrap() error { return ErrSpaceMismatch }

// Size is the extent of a surface.
type Size struct {
	W float64 `json:"w" yaml:"w" mapstructure:"w"`
	H float64 `json:"h" yaml:"h" mapstructure:"h"`
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool { return s.W > 0 && s.H > 0 }

// Rect is an axis-aligned rectangle with its coordinate space.
type Rect struct {
	Space Space   `json:"space"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
}

// NewRect builds a rectangle in the given space.
func NewRect(space Space, x, y, w, h float64) Rect {
	return Rect{Space: space, X: x, Y: y, W: w, H: h}
}

// FromImageRect lifts an integer rectangle into a space.
func FromImageRect(space Space, r image.Rectangle) Rect {
	return Rect{
		Space: space,
		X:     float64(r.Min.X),
		Y:     float64(r.Min.Y),
		W:     float64(r.Dx()),
		H:     float64(r.Dy()),
	}
}

func (r Rect) MinX() float64 { return math.Min(r.X, r.X+r.W) }
func (r Rect) MinY() float64 { return math.Min(r.Y, r.Y+r.H) }
func (r Rect) MaxX() float64 { return math.Max(r.X, r.X+r.W) }
func (r Rect) MaxY() float64 { return math.Max(r.Y, r.Y+r.H) }

// Center returns the midpoint of the rectangle.
func (r Rect) Center() (float64, float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Expect returns a SpaceError when r is not in space.
func (r Rect) Expect(op string, space Space) error {
	if r.Space != space {
		return &SpaceError{Op: op, Want: space, Got: r.Space}
	}
	return nil
}

// Round snaps the rectangle to whole pixels: the origin is floored and the
// size rounded to nearest, so a crop never starts right of its float origin.
func (r Rect) Round() image.Rectangle {
	x := int(math.Floor(r.MinX()))
	y := int(math.Floor(r.MinY()))
	w := int(math.Round(math.Abs(r.W)))
	h := int(math.Round(math.Abs(r.H)))
	return image.Rect(x, y, x+w, y+h)
}

// ApproxEqual compares two rectangles in the same space within tol.
func (r Rect) ApproxEqual(o Rect, tol float64) bool {
	return r.Space == o.Space &&
		math.Abs(r.X-o.X) <= tol &&
		math.Abs(r.Y-o.Y) <= tol &&
		math.Abs(r.W-o.W) <= tol &&
		math.Abs(r.H-o.H) <= tol
}

func (r Rect) String() string {
	return fmt.Sprintf("%s(%.2f,%.2f %.2fx%.2f)", r.Space, r.X, r.Y, r.W, r.H)
}

// SquareAroundLine grows a line box into a square of side W sharing its
// left edge and vertical center. A box taller than wide yields a square
// shorter than the box, centred the same way.
func SquareAroundLine(r Rect) Rect {
	return Rect{
		Space: r.Space,
		X:     r.X,
		Y:     r.Y - (r.W-r.H)/2,
		W:     r.W,
		H:     r.W,
	}
}

// ClampToBounds keeps r inside a surface of the given size. A negative
// origin moves to edgeOffset; a box overflowing the right or bottom edge is
// trimmed to end edgeOffset short of it.
func ClampToBounds(r Rect, bounds Size, edgeOffset float64) Rect {
	out := r
	if out.X < 0 {
		out.X = edgeOffset
	}
	if out.Y < 0 {
		out.Y = edgeOffset
	}
	if out.Y+out.H > bounds.H {
		out.H = bounds.H - out.Y - edgeOffset
	}
	if out.X+out.W > bounds.W {
		out.W = bounds.W - out.X - edgeOffset
	}
	if out.W < 0 {
		out.W = 0
	}
	if out.H < 0 {
		out.H = 0
	}
	return out
}
