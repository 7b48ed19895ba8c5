// Package pipeline runs the two-stage card number reader: a line locator
// finds the number line inside the guideline crop, then a digit recognizer
// reads a square crop around that line.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/time/rate"

	"github.com/MeKo-Tech/cardscan/internal/detection"
	"github.com/MeKo-Tech/cardscan/internal/digits"
	"github.com/MeKo-Tech/cardscan/internal/geometry"
	"github.com/MeKo-Tech/cardscan/internal/overlay"
	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

const defaultLineLabel = "line"

// Pipeline processes frames one at a time. It is not safe for concurrent
// use; Run drives it from a single goroutine.
type Pipeline struct {
	cfg        Config
	locator    detection.Detector
	recognizer detection.Detector
	presenter  overlay.Presenter
	now        func() time.Time

	locatorLimit    *rate.Limiter
	recognizerLimit *rate.Limiter

	seq       uint64
	last      FrameResult
	lastFrame overlay.Frame
	hasLast   bool
	cache     digitCache
}

// digitCache holds the most recent recognizer output for throttled frames.
type digitCache struct {
	valid  bool
	digits digits.DigitString
	dets   []detection.Result
	items  []overlay.Item
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// ProcessFrame runs one frame through both stages and presents the result.
// Detector failures never escape: they count as empty detections. The
// caller keeps ownership of frame.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame *pixbuf.Buffer) (res FrameResult) {
	start := p.now()
	wallStart := time.Now()
	p.seq++
	res = FrameResult{Seq: p.seq, Timestamp: start}
	defer func() { res.Timing.TotalNs = time.Since(wallStart).Nanoseconds() }()

	if frame == nil {
		return p.fault(res, "acquire", errors.New("nil frame"))
	}

	sensor := geometry.Size{W: float64(frame.Width()), H: float64(frame.Height())}
	guide, err := geometry.GuidelineToSensor(p.cfg.Guideline, sensor, p.cfg.GuidelineSize)
	if err != nil {
		return p.fault(res, "guideline", err)
	}
	cropRect := guide.Round().Intersect(frame.Bounds())
	region, err := pixbuf.Crop(frame, cropRect)
	if err != nil {
		return p.fault(res, "guideline crop", err)
	}

	if !p.locatorLimit.AllowN(start, 1) {
		return p.reemit(res)
	}

	var scratch []*pixbuf.Buffer
	defer func() {
		for _, b := range scratch {
			b.Release()
		}
	}()

	locIn, err := pixbuf.Scale(region, int(p.cfg.LocatorInput.W), int(p.cfg.LocatorInput.H))
	if err != nil {
		return p.fault(res, "locator input", err)
	}
	scratch = append(scratch, locIn)

	lines, locDur := p.invoke(ctx, stageLocator, p.locator, locIn)
	res.Timing.LocatorNs = locDur.Nanoseconds()
	best, ok := detection.Best(lines)
	if !ok {
		slog.Debug("No card number line", "seq", res.Seq)
		p.cache = digitCache{}
		res.Status = StatusNoLine
		p.publish(res, overlay.Frame{Seq: res.Seq})
		return res
	}

	toSensor, err := geometry.InputToSource(geometry.SpaceLocatorInput, p.cfg.LocatorInput,
		geometry.FromImageRect(geometry.SpaceSensor, cropRect))
	if err != nil {
		return p.fault(res, "locator mapping", err)
	}
	line, err := toSensor.Apply(best.Box)
	if err != nil {
		return p.fault(res, "locator mapping", err)
	}
	overlayBox, err := p.toOverlay(line, sensor)
	if err != nil {
		return p.fault(res, "overlay mapping", err)
	}
	res.LineBox = line
	res.LineLabel = best.Label
	if res.LineLabel == "" {
		res.LineLabel = defaultLineLabel
	}
	res.LineConfidence = best.Confidence
	res.OverlayBox = overlayBox
	slog.Debug("Line located", "seq", res.Seq, "box", line, "confidence", best.Confidence)

	if p.recognizerLimit.AllowN(start, 1) {
		square := geometry.SquareAroundLine(line).Round()
		recIn, err := pixbuf.PadAndScale(frame, square.Min.X, square.Min.Y, square.Dx(), square.Dy(),
			int(p.cfg.RecognizerInput.W), int(p.cfg.RecognizerInput.H), p.cfg.PadMode)
		if err != nil {
			return p.fault(res, "recognizer input", err)
		}
		if p.cfg.KeepDebugBuffers {
			res.Debug = recIn
		} else {
			scratch = append(scratch, recIn)
		}

		dets, recDur := p.invoke(ctx, stageRecognizer, p.recognizer, recIn)
		res.Timing.RecognizerNs = recDur.Nanoseconds()
		detectionsPerFrame.Observe(float64(len(dets)))
		p.cache = p.readDigits(dets, geometry.FromImageRect(geometry.SpaceSensor, square), sensor)
	} else if p.cache.valid {
		res.DigitsReused = true
		digitsReusedTotal.Inc()
	}

	res.Digits = p.cache.digits
	res.Detections = slices.Clone(p.cache.dets)
	res.Status = StatusLineOnly
	if res.Digits != "" {
		res.Status = StatusRecognized
	}

	items := make([]overlay.Item, 0, 1+len(p.cache.items))
	items = append(items, overlay.Item{
		Rect:  overlayBox,
		Label: overlay.FormatLabel(res.LineLabel, best.Confidence),
		Color: overlay.ColorForClass(best.ClassID),
	})
	items = append(items, p.cache.items...)
	p.publish(res, overlay.Frame{Seq: res.Seq, Items: items, Text: string(res.Digits)})
	return res
}

// readDigits orders fresh recognizer output and maps it to overlay items.
// square is the sensor rectangle that was stretched into the recognizer.
// Untagged boxes are taken to be in recognizer input space; boxes tagged
// with any other space are discarded.
func (p *Pipeline) readDigits(dets []detection.Result, square geometry.Rect, sensor geometry.Size) digitCache {
	dets = tagRecognizerSpace(dets)
	for _, d := range dets {
		if err := d.Box.Expect("read digits", geometry.SpaceRecognizerInput); err != nil {
			slog.Warn("Discarding digit detections", "error", err, "count", len(dets))
			return digitCache{valid: true}
		}
	}

	str, err := digits.Order(dets)
	if err != nil {
		slog.Warn("Discarding digit detections", "error", err)
		return digitCache{valid: true}
	}
	sorted := digits.Sorted(dets)

	cache := digitCache{valid: true, digits: str, dets: sorted}
	toSensor, err := geometry.InputToSource(geometry.SpaceRecognizerInput, p.cfg.RecognizerInput, square)
	if err != nil {
		return cache
	}
	for _, d := range sorted {
		s, err := toSensor.Apply(d.Box)
		if err != nil {
			continue
		}
		r, err := p.toOverlay(s, sensor)
		if err != nil {
			continue
		}
		cache.items = append(cache.items, overlay.Item{
			Rect:  r,
			Label: overlay.FormatLabel(d.Label, d.Confidence),
			Color: overlay.ColorForClass(d.ClassID),
		})
	}
	return cache
}

// tagRecognizerSpace returns dets with untagged boxes moved into recognizer
// input space. dets itself is left untouched.
func tagRecognizerSpace(dets []detection.Result) []detection.Result {
	out := slices.Clone(dets)
	for i := range out {
		if out[i].Box.Space == geometry.SpaceUnknown {
			out[i].Box.Space = geometry.SpaceRecognizerInput
		}
	}
	return out
}

// toOverlay maps a sensor rectangle onto the overlay, clamped to its bounds.
func (p *Pipeline) toOverlay(r geometry.Rect, sensor geometry.Size) (geometry.Rect, error) {
	g, err := geometry.SensorToGuideline(r, sensor, p.cfg.GuidelineSize)
	if err != nil {
		return geometry.Rect{}, err
	}
	o, err := geometry.GuidelineToOverlay(g, p.cfg.GuidelineSize, p.cfg.OverlaySize)
	if err != nil {
		return geometry.Rect{}, err
	}
	return geometry.ClampToBounds(o, p.cfg.OverlaySize, p.cfg.EdgeOffset), nil
}

// invoke runs a detector, turning errors and panics into zero detections.
func (p *Pipeline) invoke(
	ctx context.Context,
	stage string,
	det detection.Detector,
	in *pixbuf.Buffer,
) (out []detection.Result, elapsed time.Duration) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Detector panicked", "stage", stage, "panic", fmt.Sprint(r))
			stageInvocations.WithLabelValues(stage, "panic").Inc()
			out = nil
		}
		elapsed = time.Since(start)
		stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	}()

	res, err := det.Detect(ctx, in)
	if err != nil {
		slog.Warn("Detector failed", "stage", stage, "error", err)
		stageInvocations.WithLabelValues(stage, "error").Inc()
		return nil, elapsed
	}
	stageInvocations.WithLabelValues(stage, "ok").Inc()
	return res, elapsed
}

// reemit answers a throttled frame with the previous result.
func (p *Pipeline) reemit(res FrameResult) FrameResult {
	framesTotal.WithLabelValues("reused").Inc()
	if !p.hasLast {
		res.Status = StatusSkipped
		return res
	}
	prev := p.last
	prev.Seq = res.Seq
	prev.Timestamp = res.Timestamp
	prev.Reused = true
	prev.Timing = Timing{}
	prev.Detections = slices.Clone(prev.Detections)

	f := p.lastFrame
	f.Seq = res.Seq
	f.Reused = true
	f.Items = slices.Clone(f.Items)
	p.presenter.Present(f)
	return prev
}

// publish records res as the latest result and presents f.
func (p *Pipeline) publish(res FrameResult, f overlay.Frame) {
	framesTotal.WithLabelValues(string(res.Status)).Inc()
	p.last = res
	p.last.Debug = nil
	p.last.Detections = slices.Clone(res.Detections)
	p.lastFrame = f
	p.hasLast = true
	p.presenter.Present(overlay.Frame{
		Seq:   f.Seq,
		Items: slices.Clone(f.Items),
		Text:  f.Text,
	})
}

// fault marks the frame failed. Presentation and cached results are left
// untouched.
func (p *Pipeline) fault(res FrameResult, step string, err error) FrameResult {
	slog.Warn("Frame fault", "seq", res.Seq, "step", step, "error", err)
	framesTotal.WithLabelValues(string(StatusFault)).Inc()
	if res.Debug != nil {
		res.Debug.Release()
		res.Debug = nil
	}
	res.Status = StatusFault
	res.Error = fmt.Sprintf("%s: %v", step, err)
	return res
}
