package scheduler

import (
	"sync/atomic"

	"github.com/spaghettifunk/anima-scheduler/engine/core"
)

// Profiler brackets each recorded command buffer with a scope. A scheduler
// without a profiler skips all profiling work.
type Profiler interface {
	Enter(cmd CommandBuffer, location string) Scope
	// Collect gathers results recorded into cmd once its scope has exited.
	Collect(cmd CommandBuffer)
}

type Scope interface {
	Exit()
}

// LogProfiler times the CPU-side recording of each command buffer and
// feeds the result to the scheduler metrics.
type LogProfiler struct {
	metrics   *core.Metrics
	collected atomic.Uint64
}

func NewLogProfiler(metrics *core.Metrics) *LogProfiler {
	return &LogProfiler{metrics: metrics}
}

func (p *LogProfiler) Enter(cmd CommandBuffer, location string) Scope {
	clock := core.NewClock()
	clock.Start()
	return &logScope{profiler: p, clock: clock, location: location}
}

func (p *LogProfiler) Collect(cmd CommandBuffer) {
	p.collected.Add(1)
}

// Collected returns how many scopes have been collected.
func (p *LogProfiler) Collected() uint64 {
	return p.collected.Load()
}

type logScope struct {
	profiler *LogProfiler
	clock    *core.Clock
	location string
}

func (s *logScope) Exit() {
	s.clock.Update()
	ms := s.clock.ElapsedMS()
	s.clock.Stop()
	if s.profiler.metrics != nil {
		s.profiler.metrics.RecordTime(ms)
	}
	core.LogDebug("%s recorded in %.3fms", s.location, ms)
}
