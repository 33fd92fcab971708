package engine

import (
	"github.com/spaghettifunk/anima-scheduler/engine/renderer/scheduler"
)

// Workload is the application driven by the engine. Every frame it records
// into the scheduler's current command buffer; the engine flushes after it.
type Workload struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnRender          Render
	FnShutdown        Shutdown
}

type Initialize func(s *scheduler.Scheduler) error
type Render func(s *scheduler.Scheduler, frame uint64, deltaTime float64) error
type Shutdown func() error
