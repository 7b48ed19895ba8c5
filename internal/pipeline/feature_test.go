package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/cardscan/internal/detection"
	"github.com/MeKo-Tech/cardscan/internal/geometry"
	"github.com/MeKo-Tech/cardscan/internal/overlay"
	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
	"github.com/MeKo-Tech/cardscan/internal/testutil"
)

// scenario holds the state of one feature scenario.
type scenario struct {
	frame      *pixbuf.Buffer
	locator    *testutil.ScriptedDetector
	recognizer *testutil.ScriptedDetector
	step       time.Duration
	locInt     time.Duration
	recInt     time.Duration

	pipe    *Pipeline
	latest  overlay.Latest
	results []FrameResult
}

func (s *scenario) aCameraFrame(w, h int) error {
	buf, err := pixbuf.New(w, h, pixbuf.FormatBGRA32)
	if err != nil {
		return err
	}
	s.frame = buf
	return buf.Fill(pixbuf.Pixel{R: 180, G: 180, B: 180, A: 255})
}

func (s *scenario) locatorReportsLine(x, y, w, h float64) error {
	s.locator = testutil.Always(testutil.Box(geometry.SpaceLocatorInput, "", 0, 0.8, x, y, w, h))
	return nil
}

func (s *scenario) recognizerReports(spec string) error {
	var dets []detection.Result
	for _, tok := range strings.Fields(spec) {
		label, at, ok := strings.Cut(tok, "@")
		if !ok {
			return fmt.Errorf("digit %q must look like <label>@<x>", tok)
		}
		x, err := strconv.ParseFloat(at, 64)
		if err != nil {
			return err
		}
		dets = append(dets, testutil.Digit(label, x))
	}
	s.recognizer = testutil.Always(dets...)
	return nil
}

func (s *scenario) recognizerFails() error {
	s.recognizer = testutil.Failing()
	return nil
}

func (s *scenario) locatorStops() error {
	s.locator = testutil.NewScriptedDetector(testutil.Response{})
	return nil
}

func (s *scenario) framesEvery(ms int) error {
	s.step = time.Duration(ms) * time.Millisecond
	return nil
}

func (s *scenario) recognizerEvery(ms int) error {
	s.recInt = time.Duration(ms) * time.Millisecond
	return nil
}

func (s *scenario) locatorEvery(ms int) error {
	s.locInt = time.Duration(ms) * time.Millisecond
	return nil
}

func (s *scenario) framesProcessed(ctx context.Context, n int) error {
	if s.pipe == nil {
		p, err := NewBuilder().
			WithLocator(detection.DetectorFunc(func(ctx context.Context, in *pixbuf.Buffer) ([]detection.Result, error) {
				return s.locator.Detect(ctx, in)
			})).
			WithRecognizer(detection.DetectorFunc(func(ctx context.Context, in *pixbuf.Buffer) ([]detection.Result, error) {
				return s.recognizer.Detect(ctx, in)
			})).
			WithIntervals(s.locInt, s.recInt).
			WithPresenter(&s.latest).
			WithClock(NewStepClock(time.Unix(0, 0), s.step).Now).
			Build()
		if err != nil {
			return err
		}
		s.pipe = p
	}
	for range n {
		s.results = append(s.results, s.pipe.ProcessFrame(ctx, s.frame))
	}
	return nil
}

func (s *scenario) last() (FrameResult, error) {
	if len(s.results) == 0 {
		return FrameResult{}, errors.New("no frame was processed")
	}
	return s.results[len(s.results)-1], nil
}

func (s *scenario) statusIs(want string) error {
	res, err := s.last()
	if err != nil {
		return err
	}
	if string(res.Status) != want {
		return fmt.Errorf("status %q, want %q (error %q)", res.Status, want, res.Error)
	}
	return nil
}

func (s *scenario) digitsAre(want string) error {
	res, err := s.last()
	if err != nil {
		return err
	}
	if res.Digits.String() != want {
		return fmt.Errorf("digits %q, want %q", res.Digits, want)
	}
	return nil
}

func (s *scenario) lineBoxIs(x, y, w, h float64) error {
	res, err := s.last()
	if err != nil {
		return err
	}
	want := geometry.NewRect(geometry.SpaceSensor, x, y, w, h)
	if !res.LineBox.ApproxEqual(want, 1e-6) {
		return fmt.Errorf("line box %v, want %v", res.LineBox, want)
	}
	return nil
}

func (s *scenario) overlayShows(n int) error {
	f, ok := s.latest.Get()
	if !ok {
		return errors.New("nothing was presented")
	}
	if len(f.Items) != n {
		return fmt.Errorf("overlay has %d boxes, want %d", len(f.Items), n)
	}
	return nil
}

func (s *scenario) overlayCleared() error {
	f, ok := s.latest.Get()
	if !ok {
		return errors.New("nothing was presented")
	}
	if !f.Cleared() {
		return fmt.Errorf("overlay still shows %d boxes and %q", len(f.Items), f.Text)
	}
	return nil
}

func (s *scenario) recognizerRan(n int) error {
	if got := s.recognizer.CallCount(); got != n {
		return fmt.Errorf("recognizer ran %d times, want %d", got, n)
	}
	return nil
}

func (s *scenario) locatorRan(n int) error {
	if got := s.locator.CallCount(); got != n {
		return fmt.Errorf("locator ran %d times, want %d", got, n)
	}
	return nil
}

func (s *scenario) digitsWereReused() error {
	res, err := s.last()
	if err != nil {
		return err
	}
	if !res.DigitsReused {
		return errors.New("digits were recognized afresh")
	}
	return nil
}

func (s *scenario) resultWasReused() error {
	res, err := s.last()
	if err != nil {
		return err
	}
	if !res.Reused {
		return errors.New("frame was processed afresh")
	}
	return nil
}

func initializeScenario(sc *godog.ScenarioContext) {
	s := &scenario{step: 50 * time.Millisecond}

	sc.Step(`^a (\d+)x(\d+) camera frame$`, s.aCameraFrame)
	sc.Step(`^the line locator reports a line at ([\d.]+),([\d.]+) size ([\d.]+)x([\d.]+)$`, s.locatorReportsLine)
	sc.Step(`^the digit recognizer reports "([^"]*)"$`, s.recognizerReports)
	sc.Step(`^the digit recognizer fails$`, s.recognizerFails)
	sc.Step(`^the line locator stops finding lines$`, s.locatorStops)
	sc.Step(`^frames arrive every (\d+) ms$`, s.framesEvery)
	sc.Step(`^the recognizer runs at most every (\d+) ms$`, s.recognizerEvery)
	sc.Step(`^the locator runs at most every (\d+) ms$`, s.locatorEvery)
	sc.Step(`^(\d+) frames? (?:is|are) processed$`, s.framesProcessed)
	sc.Step(`^the status is "([^"]*)"$`, s.statusIs)
	sc.Step(`^the digits are "([^"]*)"$`, s.digitsAre)
	sc.Step(`^the line box is ([\d.]+),([\d.]+) size ([\d.]+)x([\d.]+) in sensor space$`, s.lineBoxIs)
	sc.Step(`^the overlay shows (\d+) boxes$`, s.overlayShows)
	sc.Step(`^the overlay is cleared$`, s.overlayCleared)
	sc.Step(`^the recognizer ran (\d+) times?$`, s.recognizerRan)
	sc.Step(`^the locator ran (\d+) times?$`, s.locatorRan)
	sc.Step(`^the digits were reused$`, s.digitsWereReused)
	sc.Step(`^the result was reused$`, s.resultWasReused)

	sc.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		if s.frame != nil {
			s.frame.Release()
		}
		return ctx, nil
	})
}

func TestFeatures(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("features", "*.feature"))
	if err != nil || len(paths) == 0 {
		t.Fatalf("no .feature files found in features/: %v", err)
	}

	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "pretty"
	}

	suite := godog.TestSuite{
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:   format,
			Tags:     os.Getenv("GODOG_TAGS"),
			Paths:    paths,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
