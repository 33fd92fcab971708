package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/anima-scheduler/engine/core"
	"github.com/spaghettifunk/anima-scheduler/engine/renderer/scheduler"
)

type Stage uint32

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine has released the scheduler
	EngineStageStopped
)

type Engine struct {
	stage     atomic.Uint32
	workload  *Workload
	device    scheduler.Device
	scheduler *scheduler.Scheduler
	metrics   *core.Metrics
	isRunning atomic.Bool
	clock     *core.Clock
	lastTime  time.Duration
	frame     uint64
	done      chan struct{}

	mu     sync.Mutex
	config core.EngineConfig
	sched  core.SchedulerConfig
}

// New prepares an engine driving w on device. The scheduler is created in
// Initialize.
func New(w *Workload, device scheduler.Device) (*Engine, error) {
	if w == nil || w.FnRender == nil {
		return nil, fmt.Errorf("workload without a render callback: %w", core.ErrInvalidConfig)
	}
	if w.ApplicationConfig == nil {
		w.ApplicationConfig = &ApplicationConfig{Name: "anima-scheduler"}
	}
	cfg := w.ApplicationConfig.Config
	if cfg == nil {
		cfg = core.DefaultConfig()
		w.ApplicationConfig.Config = cfg
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		workload: w,
		device:   device,
		metrics:  core.NewMetrics(),
		clock:    core.NewClock(),
		done:     make(chan struct{}),
		config:   cfg.Engine,
		sched:    cfg.Scheduler,
	}, nil
}

func (e *Engine) Stage() Stage {
	return Stage(e.stage.Load())
}

func (e *Engine) Scheduler() *scheduler.Scheduler {
	return e.scheduler
}

func (e *Engine) Metrics() *core.Metrics {
	return e.metrics
}

// Frames returns how many frames have been flushed. Only valid once Run returned.
func (e *Engine) Frames() uint64 {
	return e.frame
}

func (e *Engine) Initialize() error {
	e.stage.Store(uint32(EngineStageInitializing))

	opts := []scheduler.Option{
		scheduler.WithPoolGrowStep(e.sched.PoolGrowStep),
		scheduler.WithMetrics(e.metrics),
		scheduler.WithCheckpoints(e.sched.Checkpoints),
	}
	if e.sched.Profiling {
		opts = append(opts, scheduler.WithProfiler(scheduler.NewLogProfiler(e.metrics)))
	}
	s, err := scheduler.New(e.device, opts...)
	if err != nil {
		return err
	}
	e.scheduler = s

	if e.workload.FnInitialize != nil {
		if err := e.workload.FnInitialize(s); err != nil {
			return err
		}
	}

	e.isRunning.Store(true)
	e.stage.Store(uint32(EngineStageInitialized))
	core.LogInfo("%s initialized (scheduler %s)", e.workload.ApplicationConfig.Name, s.ID())
	return nil
}

// Reload applies the hot-reloadable parts of cfg: frame pacing and the
// finish interval. Scheduler settings only take effect on restart.
func (e *Engine) Reload(cfg *core.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.config.FinishEvery = cfg.Engine.FinishEvery
	e.config.TargetFPS = cfg.Engine.TargetFPS
	core.LogInfo("engine config reloaded: finish_every=%d target_fps=%d", e.config.FinishEvery, e.config.TargetFPS)
}

func (e *Engine) frameConfig() core.EngineConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

func (e *Engine) Run() error {
	if !e.stage.CompareAndSwap(uint32(EngineStageInitialized), uint32(EngineStageRunning)) {
		return fmt.Errorf("engine cannot run from stage %d", e.Stage())
	}
	defer close(e.done)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		cfg := e.frameConfig()
		if cfg.Frames > 0 && e.frame >= cfg.Frames {
			break
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := (currentTime - e.lastTime).Seconds()
		frameStartTime := time.Now()

		if err := e.workload.FnRender(e.scheduler, e.frame, delta); err != nil {
			core.LogError("workload render failed, shutting down: %s", err)
			return err
		}
		if err := e.scheduler.Flush(nil); err != nil {
			return err
		}
		e.frame++

		if cfg.FinishEvery > 0 && e.frame%cfg.FinishEvery == 0 {
			if err := e.scheduler.Finish(); err != nil {
				return err
			}
		}

		if cfg.TargetFPS > 0 {
			targetFrame := time.Second / time.Duration(cfg.TargetFPS)
			if remaining := targetFrame - time.Since(frameStartTime); remaining > 0 {
				time.Sleep(remaining)
			}
		}

		e.lastTime = currentTime
	}

	// Outstanding work completes before Run returns.
	return e.scheduler.Finish()
}

// Shutdown stops the run loop, waits for it to drain and runs the
// workload's shutdown callback. It is safe to call from another goroutine.
func (e *Engine) Shutdown() error {
	prev := Stage(e.stage.Swap(uint32(EngineStageShuttingDown)))
	if prev == EngineStageShuttingDown || prev == EngineStageStopped {
		e.stage.Store(uint32(prev))
		return nil
	}
	e.isRunning.Store(false)

	switch prev {
	case EngineStageRunning:
		<-e.done
	case EngineStageInitialized:
		if err := e.scheduler.Finish(); err != nil {
			return err
		}
	}

	if e.workload.FnShutdown != nil {
		if err := e.workload.FnShutdown(); err != nil {
			return err
		}
	}
	e.stage.Store(uint32(EngineStageStopped))
	core.LogInfo("%s shut down after %d frames", e.workload.ApplicationConfig.Name, e.frame)
	return nil
}
