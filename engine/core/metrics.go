package core

import (
	"sync"

	"golang.org/x/exp/constraints"
)

const AVG_COUNT uint8 = 30

// rollingAverage keeps the last AVG_COUNT samples and refreshes its mean every
// time the window wraps, the same way frame times were averaged in the engine.
type rollingAverage struct {
	counter uint8
	samples [AVG_COUNT]float64
	avg     float64
	filled  bool
}

func (r *rollingAverage) add(sample float64) {
	r.samples[r.counter] = sample
	if r.counter == AVG_COUNT-1 {
		r.avg = Mean(r.samples[:])
		r.filled = true
	}
	r.counter++
	r.counter %= AVG_COUNT
}

func (r *rollingAverage) value() float64 {
	if !r.filled {
		return Mean(r.samples[:r.counter])
	}
	return r.avg
}

// Mean returns the arithmetic mean of values, or zero for an empty slice.
func Mean[T constraints.Integer | constraints.Float](values []T) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// Metrics collects submission statistics for one scheduler.
type Metrics struct {
	mu          sync.Mutex
	submissions uint64
	forced      uint64
	deferredRun uint64
	waitMS      rollingAverage
	recordMS    rollingAverage
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Submitted() {
	m.mu.Lock()
	m.submissions++
	m.mu.Unlock()
}

// ForcedFlush counts submissions issued only to make a wait target reachable.
func (m *Metrics) ForcedFlush() {
	m.mu.Lock()
	m.forced++
	m.mu.Unlock()
}

func (m *Metrics) DeferredRun(n int) {
	m.mu.Lock()
	m.deferredRun += uint64(n)
	m.mu.Unlock()
}

func (m *Metrics) WaitTime(ms float64) {
	m.mu.Lock()
	m.waitMS.add(ms)
	m.mu.Unlock()
}

func (m *Metrics) RecordTime(ms float64) {
	m.mu.Lock()
	m.recordMS.add(ms)
	m.mu.Unlock()
}

// MetricsSnapshot is a copy of the counters at one point in time.
type MetricsSnapshot struct {
	Submissions uint64
	ForcedFlush uint64
	DeferredRun uint64
	AvgWaitMS   float64
	AvgRecordMS float64
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Submissions: m.submissions,
		ForcedFlush: m.forced,
		DeferredRun: m.deferredRun,
		AvgWaitMS:   m.waitMS.value(),
		AvgRecordMS: m.recordMS.value(),
	}
}
