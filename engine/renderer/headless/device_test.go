package headless

import (
	"errors"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-scheduler/engine/core"
	"github.com/spaghettifunk/anima-scheduler/engine/renderer/scheduler"
)

func submitSignal(t *testing.T, d *Device, value uint64, waits ...*Timeline) *CommandBuffer {
	t.Helper()
	bufs, err := d.Allocator().Allocate(1)
	if err != nil {
		t.Fatal(err)
	}
	cb := bufs[0].(*CommandBuffer)
	if err := cb.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := cb.End(); err != nil {
		t.Fatal(err)
	}
	s := &scheduler.Submission{
		CommandBuffer:    cb,
		SignalSemaphores: []scheduler.Handle{d.Timeline().Handle()},
		SignalValues:     []uint64{value},
	}
	for _, w := range waits {
		s.WaitSemaphores = append(s.WaitSemaphores, w)
		s.WaitValues = append(s.WaitValues, 1)
		s.WaitStages = append(s.WaitStages, scheduler.PipelineStageAllCommands)
	}
	if err := d.Queue().Submit(s); err != nil {
		t.Fatal(err)
	}
	return cb
}

func TestHeldQueueRetiresInOrder(t *testing.T) {
	d := New(WithHeld())
	defer d.Close()

	cb := submitSignal(t, d, 1)
	submitSignal(t, d, 2)
	if v, _ := d.Timeline().Value(); v != 0 {
		t.Fatalf("held queue executed early: value %d", v)
	}
	if err := cb.Begin(); !errors.Is(err, ErrInFlight) {
		t.Fatalf("Begin in flight: have %v, want ErrInFlight", err)
	}

	d.HeadlessQueue().Release(1)
	if err := d.Timeline().Wait(1); err != nil {
		t.Fatal(err)
	}
	d.HeadlessQueue().Release(1)
	if err := d.Timeline().Wait(2); err != nil {
		t.Fatal(err)
	}
	if cb.State() != CommandBufferStateReady {
		t.Fatalf("state after retire: have %v", cb.State())
	}
}

func TestSubmissionWaitsOnOtherTimeline(t *testing.T) {
	d := New()
	defer d.Close()

	upload := d.NewTimeline()
	submitSignal(t, d, 1, upload)

	time.Sleep(10 * time.Millisecond)
	if v, _ := d.Timeline().Value(); v != 0 {
		t.Fatalf("submission ran before its wait: value %d", v)
	}
	upload.Signal(1)
	if err := d.Timeline().Wait(1); err != nil {
		t.Fatal(err)
	}
}

func TestDeviceLoss(t *testing.T) {
	d := New(WithSynchronous(), WithCheckpoints(scheduler.Checkpoint{Stage: scheduler.PipelineStageFragmentShader, Marker: 0x2a}))
	defer d.Close()

	d.HeadlessQueue().LoseDeviceAfter(1)
	submitSignal(t, d, 1)

	bufs, _ := d.Allocator().Allocate(1)
	cb := bufs[0]
	_ = cb.Begin()
	_ = cb.End()
	err := d.Queue().Submit(&scheduler.Submission{CommandBuffer: cb})
	if !errors.Is(err, core.ErrDeviceLost) {
		t.Fatalf("Submit: have %v, want ErrDeviceLost", err)
	}
	if _, err := d.Timeline().Value(); !errors.Is(err, core.ErrDeviceLost) {
		t.Fatalf("Value: have %v, want ErrDeviceLost", err)
	}
	if err := d.Timeline().Wait(5); !errors.Is(err, core.ErrDeviceLost) {
		t.Fatalf("Wait: have %v, want ErrDeviceLost", err)
	}

	if !d.HeadlessQueue().SupportsCheckpoints() {
		t.Fatal("checkpoints not supported")
	}
	cps, _ := d.HeadlessQueue().Checkpoints()
	if len(cps) != 1 || cps[0].Marker != 0x2a {
		t.Fatalf("checkpoints: have %+v", cps)
	}
}

func TestSubmitRejectsMismatchedArrays(t *testing.T) {
	d := New(WithSynchronous())
	defer d.Close()

	bufs, _ := d.Allocator().Allocate(1)
	err := d.Queue().Submit(&scheduler.Submission{
		CommandBuffer:  bufs[0],
		WaitSemaphores: []scheduler.Handle{d.Timeline().Handle()},
	})
	if err == nil {
		t.Fatal("mismatched wait arrays accepted")
	}
}

func TestAllocatorFailure(t *testing.T) {
	a := &Allocator{}
	if _, err := a.Allocate(2); err != nil {
		t.Fatal(err)
	}
	a.FailWith(core.ErrOutOfDeviceMemory)
	if _, err := a.Allocate(1); !errors.Is(err, core.ErrOutOfDeviceMemory) {
		t.Fatalf("have %v", err)
	}
	if a.Calls() != 1 || len(a.Buffers()) != 2 {
		t.Fatalf("calls %d buffers %d", a.Calls(), len(a.Buffers()))
	}
}
