// Package overlay carries recognition results to the presentation layer.
//
// Presenters receive immutable Frames. The pipeline never waits on a
// presenter: slow consumers are wrapped in an AsyncPresenter, which keeps
// only the newest frame.
package overlay

import (
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/MeKo-Tech/cardscan/internal/geometry"
)

// Item is one outlined, labelled box in overlay space.
type Item struct {
	Rect  geometry.Rect `json:"rect"`
	Label string        `json:"label"`
	Color color.RGBA    `json:"color"`
}

// Frame is everything shown for one processed camera frame. A frame with no
// items and no text clears the display.
type Frame struct {
	Seq    uint64 `json:"seq"`
	Items  []Item `json:"items"`
	Text   string `json:"text,omitempty"`
	Reused bool   `json:"reused,omitempty"`
}

// Cleared reports whether the frame erases the display.
func (f Frame) Cleared() bool { return len(f.Items) == 0 && f.Text == "" }

// Presenter displays frames.
type Presenter interface {
	Present(f Frame)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(f Frame)

// Present calls fn.
func (fn PresenterFunc) Present(f Frame) { fn(f) }

// Discard drops every frame.
type Discard struct{}

// Present does nothing.
func (Discard) Present(Frame) {}

// Multi fans a frame out to several presenters in order.
func Multi(presenters ...Presenter) Presenter {
	return PresenterFunc(func(f Frame) {
		for _, p := range presenters {
			p.Present(f)
		}
	})
}

// Latest keeps the most recent frame for polling readers.
type Latest struct {
	mu    sync.RWMutex
	frame Frame
	ok    bool
}

// Present stores f.
func (l *Latest) Present(f Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frame = f
	l.ok = true
}

// Get returns the last frame and whether one has arrived.
func (l *Latest) Get() (Frame, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frame, l.ok
}

// FormatLabel renders "<class>  (<percent>%)" with the confidence truncated
// to a whole percent.
func FormatLabel(class string, confidence float64) string {
	return fmt.Sprintf("%s  (%d%%)", class, int(confidence*100))
}

// ColorStride controls how far colors of later palette cycles are shifted.
const ColorStride = 10

var palette = []color.RGBA{
	{R: 255, A: 255},                // red
	{R: 90, G: 200, B: 250, A: 255}, // sky
	{R: 255, G: 128, A: 255},        // orange
	{B: 255, A: 255},                // blue
	{R: 128, B: 128, A: 255},        // purple
	{R: 255, B: 255, A: 255},        // magenta
	{R: 255, G: 255, A: 255},        // yellow
	{G: 255, B: 255, A: 255},        // cyan
	{R: 153, G: 102, B: 51, A: 255}, // brown
}

// ColorForClass picks a palette color for a class index. Each pass through
// the palette lightens the base color a little less.
func ColorForClass(index int) color.RGBA {
	if index < 0 {
		index = -index
	}
	base := palette[index%len(palette)]
	percentage := float64((ColorStride/2 - index/len(palette)) * ColorStride)
	shift := func(c uint8) uint8 {
		v := float64(c)/255 + percentage/100
		v = math.Min(math.Max(v, 0), 1)
		return uint8(math.Round(v * 255))
	}
	return color.RGBA{R: shift(base.R), G: shift(base.G), B: shift(base.B), A: 255}
}
