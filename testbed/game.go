package testbed

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/anima-scheduler/engine"
	"github.com/spaghettifunk/anima-scheduler/engine/core"
	"github.com/spaghettifunk/anima-scheduler/engine/renderer/scheduler"
	"github.com/spaghettifunk/anima-scheduler/engine/systems"
)

const (
	readbackWorkers = 2
	readbackBacklog = 64
)

// attachment names an image or view of the synthetic frame. Any comparable
// value works as a handle for the headless device.
type attachment string

type TestWorkload struct {
	*engine.Workload
}

type workloadState struct {
	width  uint32
	height uint32

	geometry scheduler.RenderState
	lighting scheduler.RenderState

	// Readbacks are scheduled once the frame retires and resolved on the
	// job system.
	jobs          *systems.JobSystem
	readbacks     atomic.Uint64
	lastReadback  atomic.Uint64
	outOfOrder    atomic.Uint64
	readbackEvery uint64
}

func NewTestWorkload(cfg *core.Config) *TestWorkload {
	tw := &TestWorkload{
		Workload: &engine.Workload{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:   "Anima Scheduler Testbed",
				Config: cfg,
			},
			State: &workloadState{
				width:         1280,
				height:        720,
				readbackEvery: 1,
			},
		},
	}

	tw.FnInitialize = tw.Initialize
	tw.FnRender = tw.Render
	tw.FnShutdown = tw.Shutdown

	return tw
}

func (w *TestWorkload) state() *workloadState {
	return w.State.(*workloadState)
}

func (w *TestWorkload) Initialize(s *scheduler.Scheduler) error {
	core.LogInfo("initializing testbed workload...")

	st := w.state()
	jobs, err := systems.NewJobSystem(readbackWorkers, readbackBacklog)
	if err != nil {
		return err
	}
	st.jobs = jobs

	st.geometry = gbufferPass(st.width, st.height)
	st.lighting = lightingPass(st.width, st.height)

	if err := st.geometry.Validate(); err != nil {
		return err
	}
	return st.lighting.Validate()
}

// Render records one frame: a G-buffer pass, a repeated bind of the same
// pass, a lighting pass and a deferred readback of the frame.
func (w *TestWorkload) Render(s *scheduler.Scheduler, frame uint64, deltaTime float64) error {
	st := w.state()

	if err := s.BeginRendering(st.geometry); err != nil {
		return err
	}
	// Binding the same attachments again continues the open pass.
	if err := s.BeginRendering(st.geometry); err != nil {
		return err
	}
	if err := s.BeginRendering(st.lighting); err != nil {
		return err
	}
	s.EndRendering()

	if frame%st.readbackEvery == 0 {
		s.DeferOperation(func() {
			if prev := st.lastReadback.Swap(frame); prev > frame {
				st.outOfOrder.Add(1)
			}
			err := st.jobs.Submit(systems.JobTask{
				Run: func() error {
					st.readbacks.Add(1)
					return nil
				},
			})
			if err != nil {
				core.LogWarn("frame %d readback dropped: %s", frame, err)
			}
		})
	}

	if frame > 0 && frame%120 == 0 {
		core.LogDebug("frame %d: delta %.3fms, tick %d", frame, deltaTime*1000, s.CurrentTick())
	}
	return nil
}

func (w *TestWorkload) Shutdown() error {
	st := w.state()
	if st.jobs != nil {
		if err := st.jobs.Shutdown(); err != nil {
			return err
		}
	}
	if n := st.outOfOrder.Load(); n > 0 {
		return fmt.Errorf("%d readbacks ran out of order", n)
	}
	core.LogInfo("testbed workload done: %d readbacks", st.readbacks.Load())
	return nil
}

// Readbacks returns how many readbacks have been resolved.
func (w *TestWorkload) Readbacks() uint64 {
	return w.state().readbacks.Load()
}

func gbufferPass(width, height uint32) scheduler.RenderState {
	rs := scheduler.RenderState{
		Width:               width,
		Height:              height,
		NumColorAttachments: 3,
		HasDepth:            true,
		HasStencil:          true,
		DepthImage:          attachment("gbuffer.depth"),
		DepthAttachment: scheduler.RenderingAttachment{
			View:    attachment("gbuffer.depth.view"),
			Layout:  scheduler.ImageLayoutDepthStencilAttachmentOptimal,
			LoadOp:  scheduler.LoadOpClear,
			StoreOp: scheduler.StoreOpStore,
			Clear:   scheduler.ClearValue{Depth: 1},
		},
	}
	for i, name := range []string{"albedo", "normal", "material"} {
		rs.ColorImages[i] = attachment("gbuffer." + name)
		rs.ColorAttachments[i] = scheduler.RenderingAttachment{
			View:    attachment("gbuffer." + name + ".view"),
			Layout:  scheduler.ImageLayoutColorAttachmentOptimal,
			LoadOp:  scheduler.LoadOpClear,
			StoreOp: scheduler.StoreOpStore,
		}
	}
	return rs
}

func lightingPass(width, height uint32) scheduler.RenderState {
	rs := scheduler.RenderState{
		Width:               width,
		Height:              height,
		NumColorAttachments: 1,
	}
	rs.ColorImages[0] = attachment("hdr")
	rs.ColorAttachments[0] = scheduler.RenderingAttachment{
		View:    attachment("hdr.view"),
		Layout:  scheduler.ImageLayoutColorAttachmentOptimal,
		LoadOp:  scheduler.LoadOpDontCare,
		StoreOp: scheduler.StoreOpStore,
	}
	return rs
}
