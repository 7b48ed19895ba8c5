// Package benchmark measures frame pipeline latency and memory use.
package benchmark

import (
	"fmt"
	"io"
	"runtime"
	"slices"
	"sync"
	"time"
)

// MemoryStats holds the memory figures reported alongside a run.
type MemoryStats struct {
	Alloc         uint64
	TotalAlloc    uint64
	Sys           uint64
	HeapObjects   uint64
	NumGC         uint32
	GCCPUFraction float64
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		Alloc:         m.Alloc,
		TotalAlloc:    m.TotalAlloc,
		Sys:           m.Sys,
		HeapObjects:   m.HeapObjects,
		NumGC:         m.NumGC,
		GCCPUFraction: m.GCCPUFraction,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.Alloc/1024, m.TotalAlloc/1024, m.Sys/1024, m.NumGC, m.GCCPUFraction*100)
}

// Stats summarizes a set of latency samples.
type Stats struct {
	Count int
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
}

// Summarize computes Stats over samples. An empty set yields zero Stats.
func Summarize(samples []time.Duration) Stats {
	if len(samples) == 0 {
		return Stats{}
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	var sum time.Duration
	for _, s := range sorted {
		sum += s
	}
	return Stats{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  sum / time.Duration(len(sorted)),
		P50:   percentile(sorted, 0.50),
		P95:   percentile(sorted, 0.95),
		P99:   percentile(sorted, 0.99),
	}
}

// percentile uses the nearest-rank method on sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(p*float64(len(sorted))+0.5) - 1
	return sorted[min(max(rank, 0), len(sorted)-1)]
}

func (s Stats) String() string {
	if s.Count == 0 {
		return "no samples"
	}
	return fmt.Sprintf("n=%d mean=%v p50=%v p95=%v p99=%v min=%v max=%v",
		s.Count, round(s.Mean), round(s.P50), round(s.P95), round(s.P99), round(s.Min), round(s.Max))
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Microsecond)
}

// Result holds the outcome of one benchmark case.
type Result struct {
	Name         string
	Iterations   int
	Duration     time.Duration
	Latency      Stats
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	Error        error
}

// PerSecond returns completed iterations per second.
func (r Result) PerSecond() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Latency.Count) / r.Duration.Seconds()
}

// String returns a formatted string representation of the benchmark result.
func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	memDiff := int64(r.MemoryAfter.TotalAlloc) - int64(r.MemoryBefore.TotalAlloc) //nolint:gosec // G115: Safe conversion for memory display
	return fmt.Sprintf("%s: %d iterations, %.1f/s, %s, alloc: +%d KB",
		r.Name, r.Iterations, r.PerSecond(), r.Latency, memDiff/1024)
}

// Case is a named function measured once per iteration.
type Case struct {
	Name string
	Func func() error
}

// Suite runs a set of cases and keeps their results.
type Suite struct {
	mu      sync.Mutex
	cases   []Case
	results []Result
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add appends a case.
func (s *Suite) Add(name string, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases = append(s.cases, Case{Name: name, Func: fn})
}

// Run runs the named case for the given number of iterations.
func (s *Suite) Run(name string, iterations int) Result {
	s.mu.Lock()
	idx := slices.IndexFunc(s.cases, func(c Case) bool { return c.Name == name })
	var c Case
	if idx >= 0 {
		c = s.cases[idx]
	}
	s.mu.Unlock()

	if idx < 0 {
		return Result{Name: name, Error: fmt.Errorf("benchmark '%s' not found", name)}
	}
	return runCase(c, iterations)
}

// RunAll runs every case in insertion order.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	cases := slices.Clone(s.cases)
	s.mu.Unlock()

	results := make([]Result, 0, len(cases))
	for _, c := range cases {
		results = append(results, runCase(c, iterations))
	}

	s.mu.Lock()
	s.results = results
	s.mu.Unlock()
	return results
}

// Results returns the last RunAll results.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.results)
}

// PrintResults writes the last RunAll results to w.
func (s *Suite) PrintResults(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Benchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range s.Results() {
		_, _ = fmt.Fprintln(w, r.String())
	}
}

// runCase stops at the first failing iteration.
func runCase(c Case, iterations int) Result {
	runtime.GC()
	res := Result{Name: c.Name, Iterations: iterations, MemoryBefore: GetMemoryStats()}

	samples := make([]time.Duration, 0, iterations)
	start := time.Now()
	for range iterations {
		t0 := time.Now()
		if err := c.Func(); err != nil {
			res.Error = err
			break
		}
		samples = append(samples, time.Since(t0))
	}
	res.Duration = time.Since(start)
	res.MemoryAfter = GetMemoryStats()
	res.Latency = Summarize(samples)
	return res
}
