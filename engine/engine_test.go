package engine_test

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/anima-scheduler/engine"
	"github.com/spaghettifunk/anima-scheduler/engine/core"
	"github.com/spaghettifunk/anima-scheduler/engine/renderer/headless"
	"github.com/spaghettifunk/anima-scheduler/engine/renderer/scheduler"
)

func testConfig(frames, finishEvery uint64) *core.Config {
	cfg := core.DefaultConfig()
	cfg.Engine.Frames = frames
	cfg.Engine.FinishEvery = finishEvery
	cfg.Engine.TargetFPS = 0
	return cfg
}

func TestRunFlushesEveryFrame(t *testing.T) {
	dev := headless.New(headless.WithSynchronous())
	defer dev.Close()

	var rendered []uint64
	w := &engine.Workload{
		ApplicationConfig: &engine.ApplicationConfig{Name: "test", Config: testConfig(10, 4)},
		FnRender: func(s *scheduler.Scheduler, frame uint64, _ float64) error {
			rendered = append(rendered, frame)
			return nil
		},
	}
	e, err := engine.New(w, dev)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.Run(); err != nil {
		t.Fatal(err)
	}

	if e.Frames() != 10 || len(rendered) != 10 {
		t.Fatalf("frames: have %d (rendered %d), want 10", e.Frames(), len(rendered))
	}
	for i, f := range rendered {
		if f != uint64(i) {
			t.Fatalf("frame %d rendered as %d", i, f)
		}
	}
	// 10 flushes, 2 periodic finishes and the final finish.
	if n := len(dev.HeadlessQueue().Submissions()); n != 13 {
		t.Fatalf("submissions: have %d, want 13", n)
	}
	if n := e.Metrics().Snapshot().Submissions; n != 13 {
		t.Fatalf("metrics submissions: have %d, want 13", n)
	}
	if s := e.Scheduler(); !s.IsFree(s.PendingTick() - 1) {
		t.Fatal("outstanding work after Run returned")
	}
}

func TestShutdownStopsRun(t *testing.T) {
	dev := headless.New(headless.WithSynchronous())
	defer dev.Close()

	var e *engine.Engine
	w := &engine.Workload{
		ApplicationConfig: &engine.ApplicationConfig{Name: "test", Config: testConfig(0, 0)},
		FnRender: func(s *scheduler.Scheduler, frame uint64, _ float64) error {
			if frame == 3 {
				go e.Shutdown()
			}
			return nil
		},
	}
	var err error
	if e, err = engine.New(w, dev); err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.Run(); err != nil {
		t.Fatal(err)
	}
	// Shutdown returns once the loop has drained.
	if err := e.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if e.Frames() < 4 {
		t.Fatalf("frames: have %d, want at least 4", e.Frames())
	}
	if e.Stage() != engine.EngineStageStopped && e.Stage() != engine.EngineStageShuttingDown {
		t.Fatalf("stage: have %d", e.Stage())
	}
}

func TestRenderErrorStopsRun(t *testing.T) {
	dev := headless.New(headless.WithSynchronous())
	defer dev.Close()

	boom := errors.New("boom")
	w := &engine.Workload{
		ApplicationConfig: &engine.ApplicationConfig{Name: "test", Config: testConfig(0, 0)},
		FnRender: func(s *scheduler.Scheduler, frame uint64, _ float64) error {
			if frame == 2 {
				return boom
			}
			return nil
		},
	}
	e, err := engine.New(w, dev)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.Run(); !errors.Is(err, boom) {
		t.Fatalf("Run: have %v, want %v", err, boom)
	}
	if e.Frames() != 2 {
		t.Fatalf("frames: have %d, want 2", e.Frames())
	}
}

func TestRunRequiresInitialize(t *testing.T) {
	dev := headless.New(headless.WithSynchronous())
	defer dev.Close()

	w := &engine.Workload{FnRender: func(*scheduler.Scheduler, uint64, float64) error { return nil }}
	e, err := engine.New(w, dev)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Run(); err == nil {
		t.Fatal("Run before Initialize succeeded")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Scheduler.PoolGrowStep = 0
	w := &engine.Workload{
		ApplicationConfig: &engine.ApplicationConfig{Config: cfg},
		FnRender:          func(*scheduler.Scheduler, uint64, float64) error { return nil },
	}
	if _, err := engine.New(w, headless.New()); !errors.Is(err, core.ErrInvalidConfig) {
		t.Fatalf("have %v, want ErrInvalidConfig", err)
	}
	if _, err := engine.New(&engine.Workload{}, headless.New()); !errors.Is(err, core.ErrInvalidConfig) {
		t.Fatalf("have %v, want ErrInvalidConfig", err)
	}
}

func TestReload(t *testing.T) {
	dev := headless.New(headless.WithSynchronous())
	defer dev.Close()

	w := &engine.Workload{
		ApplicationConfig: &engine.ApplicationConfig{Config: testConfig(6, 0)},
		FnRender:          func(*scheduler.Scheduler, uint64, float64) error { return nil },
	}
	e, err := engine.New(w, dev)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	e.Reload(testConfig(0, 2))
	if err := e.Run(); err != nil {
		t.Fatal(err)
	}
	// Frames is not reloadable: 6 flushes, 3 finishes, final finish.
	if n := len(dev.HeadlessQueue().Submissions()); n != 10 {
		t.Fatalf("submissions: have %d, want 10", n)
	}
}
