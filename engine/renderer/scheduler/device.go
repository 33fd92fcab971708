package scheduler

// Device is the narrow view the scheduler has of the GPU: one graphics
// queue, one timeline primitive and a command buffer allocator. Creating
// and destroying these objects is the caller's business.
type Device interface {
	Queue() Queue
	Timeline() Timeline
	Allocator() Allocator
}

// Submission is the fully assembled unit handed to Queue.Submit.
type Submission struct {
	CommandBuffer    CommandBuffer
	WaitSemaphores   []Handle
	WaitValues       []uint64
	WaitStages       []PipelineStage
	SignalSemaphores []Handle
	SignalValues     []uint64
	Fence            Handle
}

// Queue submits command buffers to the device. The queue itself is not safe
// for concurrent submission; the scheduler serializes calls.
type Queue interface {
	// Submit returns an error wrapping core.ErrDeviceLost when the device is gone.
	Submit(s *Submission) error
}

// CheckpointReporter is implemented by queues that can report diagnostic
// checkpoints after device loss.
type CheckpointReporter interface {
	SupportsCheckpoints() bool
	Checkpoints() ([]Checkpoint, error)
}

// Timeline is a monotonically increasing device semaphore.
type Timeline interface {
	// Handle is the object placed in submission wait/signal sets.
	Handle() Handle
	// Value returns the value the device has signaled so far.
	Value() (uint64, error)
	// Wait blocks until the signaled value is at least value.
	Wait(value uint64) error
}

// Allocator creates command buffers. Buffers are never freed individually;
// the pool recycles them.
type Allocator interface {
	Allocate(count int) ([]CommandBuffer, error)
}

// CommandBuffer is a recordable command buffer. Begin implicitly resets
// whatever was recorded before.
type CommandBuffer interface {
	Begin() error
	End() error
	BeginRendering(info *RenderingInfo)
	EndRendering()
	PipelineBarrier(src, dst PipelineStage, deps DependencyFlags, barriers []ImageBarrier)
}
