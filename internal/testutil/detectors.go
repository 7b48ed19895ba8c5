package testutil

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/MeKo-Tech/cardscan/internal/detection"
	"github.com/MeKo-Tech/cardscan/internal/geometry"
	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

// ErrScripted is returned by detectors scripted to fail.
var ErrScripted = errors.New("scripted detector failure")

// Call records one Detect invocation.
type Call struct {
	Width, Height int
	Format        pixbuf.Format
	// Center is the pixel at the middle of the input.
	Center pixbuf.Pixel
}

// ScriptedDetector replays a queue of responses and records every call.
// Once the queue is drained the last response repeats. Safe for concurrent
// use.
type ScriptedDetector struct {
	mu        sync.Mutex
	responses []Response
	calls     []Call
}

// Response is one scripted Detect outcome.
type Response struct {
	Results []detection.Result
	Err     error
	Panic   any
}

// NewScriptedDetector returns a detector replaying responses in order.
func NewScriptedDetector(responses ...Response) *ScriptedDetector {
	return &ScriptedDetector{responses: responses}
}

// Always returns a detector that always reports results.
func Always(results ...detection.Result) *ScriptedDetector {
	return NewScriptedDetector(Response{Results: results})
}

// Failing returns a detector that always fails.
func Failing() *ScriptedDetector {
	return NewScriptedDetector(Response{Err: ErrScripted})
}

// Panicking returns a detector that always panics with v.
func Panicking(v any) *ScriptedDetector {
	return NewScriptedDetector(Response{Panic: v})
}

// Push appends responses to the queue.
func (d *ScriptedDetector) Push(responses ...Response) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responses = append(d.responses, responses...)
}

// Detect implements detection.Detector.
func (d *ScriptedDetector) Detect(ctx context.Context, input *pixbuf.Buffer) ([]detection.Result, error) {
	call := Call{Width: input.Width(), Height: input.Height(), Format: input.Format()}
	call.Center, _ = input.PixelAt(input.Width()/2, input.Height()/2)

	d.mu.Lock()
	d.calls = append(d.calls, call)
	var resp Response
	switch len(d.responses) {
	case 0:
	case 1:
		resp = d.responses[0]
	default:
		resp = d.responses[0]
		d.responses = d.responses[1:]
	}
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if resp.Panic != nil {
		panic(resp.Panic)
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return slices.Clone(resp.Results), nil
}

// Calls returns a copy of the recorded calls.
func (d *ScriptedDetector) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.calls)
}

// CallCount returns how many times Detect ran.
func (d *ScriptedDetector) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// Box builds a detector result in space.
func Box(space geometry.Space, label string, classID int, conf, x, y, w, h float64) detection.Result {
	return detection.Result{
		Box:        geometry.NewRect(space, x, y, w, h),
		Label:      label,
		ClassID:    classID,
		Confidence: conf,
	}
}

// Digit builds a recognizer result for a single digit at x.
func Digit(label string, x float64) detection.Result {
	id := 0
	if len(label) == 1 && label[0] >= '0' && label[0] <= '9' {
		id = int(label[0] - '0')
	}
	return Box(geometry.SpaceRecognizerInput, label, id, 0.9, x, 200, 30, 50)
}
