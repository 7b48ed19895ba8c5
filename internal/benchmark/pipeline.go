package benchmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

// PipelineReport holds per-stage latency for repeated pipeline runs.
type PipelineReport struct {
	Frames     int
	Duration   time.Duration
	Locator    Stats
	Recognizer Stats
	Total      Stats
	ByStatus   map[pipeline.Status]int

	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
}

// FPS is the sustained frame rate over the run.
func (r PipelineReport) FPS() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Frames) / r.Duration.Seconds()
}

// Print writes a human readable report to w.
func (r PipelineReport) Print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Frames:      %d in %v (%.1f fps)\n", r.Frames, r.Duration.Round(time.Millisecond), r.FPS())
	_, _ = fmt.Fprintf(w, "Locator:     %s\n", r.Locator)
	_, _ = fmt.Fprintf(w, "Recognizer:  %s\n", r.Recognizer)
	_, _ = fmt.Fprintf(w, "Frame total: %s\n", r.Total)
	for _, st := range []pipeline.Status{
		pipeline.StatusRecognized, pipeline.StatusLineOnly, pipeline.StatusNoLine,
		pipeline.StatusSkipped, pipeline.StatusFault,
	} {
		if n := r.ByStatus[st]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %-11s %d\n", st, n)
		}
	}
	_, _ = fmt.Fprintf(w, "Memory:      %s\n", r.MemoryAfter)
}

// RunPipeline feeds frames through p iterations times and collects the
// stage timings each result reports. Stages that did not run on a frame
// (throttled or short-circuited) contribute no sample. Frames are not
// released.
func RunPipeline(ctx context.Context, p *pipeline.Pipeline, frames []*pixbuf.Buffer, iterations int) (PipelineReport, error) {
	if len(frames) == 0 {
		return PipelineReport{}, errors.New("no frames to benchmark")
	}
	if iterations < 1 {
		return PipelineReport{}, fmt.Errorf("invalid iteration count %d", iterations)
	}

	runtime.GC()
	report := PipelineReport{ByStatus: map[pipeline.Status]int{}, MemoryBefore: GetMemoryStats()}
	n := iterations * len(frames)
	locator := make([]time.Duration, 0, n)
	recognizer := make([]time.Duration, 0, n)
	total := make([]time.Duration, 0, n)

	start := time.Now()
	for range iterations {
		for _, frame := range frames {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			res := p.ProcessFrame(ctx, frame)
			if res.Debug != nil {
				res.Debug.Release()
			}
			report.Frames++
			report.ByStatus[res.Status]++
			total = append(total, time.Duration(res.Timing.TotalNs))
			if !res.Reused && res.Timing.LocatorNs > 0 {
				locator = append(locator, time.Duration(res.Timing.LocatorNs))
			}
			if res.Timing.RecognizerNs > 0 {
				recognizer = append(recognizer, time.Duration(res.Timing.RecognizerNs))
			}
		}
	}
	report.Duration = time.Since(start)
	report.MemoryAfter = GetMemoryStats()
	report.Locator = Summarize(locator)
	report.Recognizer = Summarize(recognizer)
	report.Total = Summarize(total)
	return report, nil
}
