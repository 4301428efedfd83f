// Package timing accumulates per-stage durations of the driving loop.
package timing

import (
	"sort"
	"sync"
	"time"
)

type StageStats struct {
	Stage string
	Count int
	Total time.Duration
	Max   time.Duration
}

func (s StageStats) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

type Tracker struct {
	stages  map[string]*StageStats
	mu      sync.Mutex
	enabled bool
}

func NewTracker() *Tracker {
	return &Tracker{
		stages:  make(map[string]*StageStats),
		enabled: true,
	}
}

func (tt *Tracker) Observe(stage string, d time.Duration) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if !tt.enabled {
		return
	}
	s, ok := tt.stages[stage]
	if !ok {
		s = &StageStats{Stage: stage}
		tt.stages[stage] = s
	}
	s.Count++
	s.Total += d
	if d > s.Max {
		s.Max = d
	}
}

// Start returns a func that records the time elapsed since Start.
func (tt *Tracker) Start(stage string) func() {
	begin := time.Now()
	return func() { tt.Observe(stage, time.Since(begin)) }
}

// Summary lists the stages in name order.
func (tt *Tracker) Summary() []StageStats {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	out := make([]StageStats, 0, len(tt.stages))
	for _, s := range tt.stages {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return out
}

// Fields flattens the summary for a log line.
func (tt *Tracker) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	for _, s := range tt.Summary() {
		fields[s.Stage+"_mean_ms"] = float64(s.Mean().Microseconds()) / 1000
		fields[s.Stage+"_max_ms"] = float64(s.Max.Microseconds()) / 1000
	}
	return fields
}

func (tt *Tracker) SetEnabled(enabled bool) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.enabled = enabled
}

func (tt *Tracker) Reset() {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.stages = make(map[string]*StageStats)
}
