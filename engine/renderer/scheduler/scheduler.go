// Package scheduler batches recorded GPU work into command buffers, tracks
// which submissions have completed through a timeline semaphore, and inserts
// the barriers needed between dynamic rendering passes.
package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spaghettifunk/anima-scheduler/engine/containers"
	"github.com/spaghettifunk/anima-scheduler/engine/core"
)

// submitMu serializes every queue submission in the process. It guards the
// submit step only; recording into different schedulers proceeds in parallel.
var submitMu sync.Mutex

const profileScopeLocation = "Guest Frame"

type pendingOp struct {
	tick     uint64
	callback func()
}

type schedulerOptions struct {
	growStep    int
	profiler    Profiler
	metrics     *core.Metrics
	checkpoints bool
	fatal       func(err error)
}

type Option func(*schedulerOptions)

// WithPoolGrowStep sets how many command buffers the pool allocates at once.
func WithPoolGrowStep(n int) Option {
	return func(o *schedulerOptions) {
		o.growStep = n
	}
}

func WithProfiler(p Profiler) Option {
	return func(o *schedulerOptions) {
		o.profiler = p
	}
}

func WithMetrics(m *core.Metrics) Option {
	return func(o *schedulerOptions) {
		o.metrics = m
	}
}

// WithCheckpoints enables checkpoint collection on device loss for queues
// that support it.
func WithCheckpoints(enabled bool) Option {
	return func(o *schedulerOptions) {
		o.checkpoints = enabled
	}
}

// WithFatalHandler replaces the process exit performed on device loss.
func WithFatalHandler(fn func(err error)) Option {
	return func(o *schedulerOptions) {
		o.fatal = fn
	}
}

type Scheduler struct {
	id     string
	logger *log.Logger

	queue    Queue
	master   *MasterSemaphore
	pool     *CommandPool
	profiler Profiler
	scope    Scope
	metrics  *core.Metrics

	checkpoints bool
	fatal       func(err error)
	lost        atomic.Bool

	cmdbuf    CommandBuffer
	state     RenderState
	rendering bool
	barriers  [maxBarriers]ImageBarrier

	opsMu    sync.Mutex
	ops      *containers.RingQueue[pendingOp]
	draining atomic.Bool
}

// New creates a scheduler on device and opens its first command buffer.
func New(device Device, options ...Option) (*Scheduler, error) {
	opts := &schedulerOptions{
		growStep:    DefaultPoolGrowStep,
		checkpoints: true,
	}
	for _, o := range options {
		o(opts)
	}
	if opts.metrics == nil {
		opts.metrics = core.NewMetrics()
	}

	id := uuid.New().String()
	logger := core.LoggerWith("scheduler", id[:8])
	if opts.fatal == nil {
		opts.fatal = func(err error) {
			logger.Fatal("unrecoverable GPU failure", "err", err)
		}
	}

	master := NewMasterSemaphore(device.Timeline())
	s := &Scheduler{
		id:          id,
		logger:      logger,
		queue:       device.Queue(),
		master:      master,
		pool:        NewCommandPool(master, device.Allocator(), opts.growStep),
		profiler:    opts.profiler,
		metrics:     opts.metrics,
		checkpoints: opts.checkpoints,
		fatal:       opts.fatal,
		ops:         containers.NewRingQueue[pendingOp](16, true),
	}
	if err := s.allocateWorkerCommandBuffers(); err != nil {
		return nil, err
	}
	s.logger.Debug("scheduler created")
	return s, nil
}

func (s *Scheduler) ID() string {
	return s.id
}

// CommandBuffer returns the buffer currently open for recording. It changes
// after every submission and is nil when no buffer could be opened.
func (s *Scheduler) CommandBuffer() CommandBuffer {
	return s.cmdbuf
}

// CurrentTick returns the last tick known to have retired.
func (s *Scheduler) CurrentTick() uint64 {
	return s.master.CurrentTick()
}

// PendingTick returns the tick the work being recorded now will signal.
func (s *Scheduler) PendingTick() uint64 {
	return s.master.PendingTick()
}

func (s *Scheduler) IsFree(tick uint64) bool {
	return s.master.IsFree(tick)
}

func (s *Scheduler) IsRendering() bool {
	return s.rendering
}

func (s *Scheduler) RenderState() RenderState {
	return s.state
}

func (s *Scheduler) Metrics() *core.Metrics {
	return s.metrics
}

// DeferOperation runs fn once the work being recorded now has completed.
func (s *Scheduler) DeferOperation(fn func()) {
	s.DeferOperationAt(s.master.PendingTick(), fn)
}

// DeferOperationAt runs fn once tick has retired. Operations run in the
// order they were deferred, so ticks should be non-decreasing.
func (s *Scheduler) DeferOperationAt(tick uint64, fn func()) {
	s.opsMu.Lock()
	s.ops.Enqueue(pendingOp{tick: tick, callback: fn})
	s.opsMu.Unlock()
}

// BeginRendering opens a pass on state, ending the open pass first when
// the attachments differ. Beginning the pass that is already open is a no-op.
func (s *Scheduler) BeginRendering(state RenderState) error {
	if s.rendering && s.state == state {
		return nil
	}
	if err := state.Validate(); err != nil {
		return err
	}
	if err := s.ensureCommandBuffer(); err != nil {
		return err
	}
	s.EndRendering()
	s.rendering = true
	s.state = state
	s.cmdbuf.BeginRendering(s.state.renderingInfo())
	return nil
}

// EndRendering closes the open pass and makes its attachments visible to
// fragment shaders of later passes. It is a no-op outside a pass.
func (s *Scheduler) EndRendering() {
	if !s.rendering {
		return
	}
	s.rendering = false
	s.cmdbuf.EndRendering()

	n, src := s.state.barriers(&s.barriers)
	if n > 0 {
		s.cmdbuf.PipelineBarrier(src, PipelineStageFragmentShader, DependencyByRegion, s.barriers[:n])
	}
}

// Flush submits the recorded work without waiting for it.
func (s *Scheduler) Flush(info *SubmitInfo) error {
	if info == nil {
		info = &SubmitInfo{}
	}
	_, err := s.submitExecution(info)
	return err
}

// Finish submits the recorded work and blocks until the device has
// executed it.
func (s *Scheduler) Finish() error {
	tick, err := s.submitExecution(&SubmitInfo{})
	if err != nil {
		return err
	}
	return s.Wait(tick)
}

// Wait blocks until tick has retired. A tick that no submission has
// reserved yet forces a flush first so the wait can complete.
func (s *Scheduler) Wait(tick uint64) error {
	if tick >= s.master.PendingTick() {
		s.metrics.ForcedFlush()
		if err := s.Flush(nil); err != nil {
			return err
		}
		if last := s.master.PendingTick() - 1; tick > last {
			s.logger.Warn("wait target was never reserved, waiting on the last submission", "tick", tick, "last", last)
			tick = last
		}
	}

	clock := core.NewClock()
	clock.Start()
	if err := s.master.Wait(tick); err != nil {
		return s.checkLost(err)
	}
	clock.Update()
	s.metrics.WaitTime(clock.ElapsedMS())

	s.drainPendingOps()
	return nil
}

// ensureCommandBuffer opens a buffer when the last attempt after a
// submission failed.
func (s *Scheduler) ensureCommandBuffer() error {
	if s.cmdbuf != nil {
		return nil
	}
	if err := s.allocateWorkerCommandBuffers(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrNoCommandBuffers, err)
	}
	return nil
}

func (s *Scheduler) allocateWorkerCommandBuffers() error {
	cmdbuf, err := s.pool.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit command buffer: %w", err)
	}
	if err := cmdbuf.Begin(); err != nil {
		return fmt.Errorf("failed to begin command buffer: %w", err)
	}
	s.cmdbuf = cmdbuf
	if s.profiler != nil {
		s.scope = s.profiler.Enter(cmdbuf, profileScopeLocation)
	}
	return nil
}

// submitExecution closes the current command buffer, submits it with the
// timeline signal appended to info, opens a new buffer and runs deferred
// operations that have become free. It returns the tick the submission
// signals.
func (s *Scheduler) submitExecution(info *SubmitInfo) (uint64, error) {
	tick, err := s.submitLocked(info)
	if err != nil {
		return tick, err
	}
	// Callbacks run outside the submission lock so they may submit again.
	s.drainPendingOps()
	return tick, nil
}

func (s *Scheduler) submitLocked(info *SubmitInfo) (uint64, error) {
	submitMu.Lock()
	defer submitMu.Unlock()

	if s.lost.Load() {
		return 0, core.ErrDeviceLost
	}
	if err := s.ensureCommandBuffer(); err != nil {
		return 0, err
	}

	signal := s.master.NextTick()

	if s.scope != nil {
		s.scope.Exit()
		s.scope = nil
		s.profiler.Collect(s.cmdbuf)
	}

	s.EndRendering()
	if err := s.cmdbuf.End(); err != nil {
		s.master.rollback(signal)
		return 0, s.recover(fmt.Errorf("failed to end command buffer: %w", err))
	}

	info.AddSignal(s.master.Handle(), signal)

	submission := &Submission{
		CommandBuffer:    s.cmdbuf,
		WaitSemaphores:   info.WaitSemaphores,
		WaitValues:       info.WaitValues,
		WaitStages:       waitStages(len(info.WaitSemaphores)),
		SignalSemaphores: info.SignalSemaphores,
		SignalValues:     info.SignalValues,
		Fence:            info.Fence,
	}

	if err := s.queue.Submit(submission); err != nil {
		if errors.Is(err, core.ErrDeviceLost) {
			s.deviceLost(err)
			return 0, err
		}
		s.master.rollback(signal)
		return 0, s.recover(fmt.Errorf("failed to submit command buffer: %w", err))
	}
	// The submitted buffer is in flight and must not be recorded into again.
	s.cmdbuf = nil
	s.metrics.Submitted()

	if err := s.master.Refresh(); err != nil {
		if errors.Is(err, core.ErrDeviceLost) {
			s.deviceLost(err)
			return signal, err
		}
		s.logger.Warn("failed to refresh timeline", "err", err)
	}
	if err := s.allocateWorkerCommandBuffers(); err != nil {
		return signal, fmt.Errorf("%w: %w", core.ErrNoCommandBuffers, err)
	}
	return signal, nil
}

// recover opens a fresh command buffer after a failed submission so
// recording can continue. The work recorded into the failed buffer is lost.
func (s *Scheduler) recover(err error) error {
	s.logger.Error("submission failed, recorded work dropped", "err", err)
	s.cmdbuf = nil
	if aerr := s.allocateWorkerCommandBuffers(); aerr != nil {
		return errors.Join(err, aerr)
	}
	return err
}

func (s *Scheduler) checkLost(err error) error {
	if errors.Is(err, core.ErrDeviceLost) {
		s.deviceLost(err)
	}
	return err
}

// deviceLost logs what diagnostics the queue can give and hands the error to
// the fatal handler. There is no way to continue once the device is lost.
func (s *Scheduler) deviceLost(err error) {
	if !s.lost.CompareAndSwap(false, true) {
		return
	}
	if reporter, ok := s.queue.(CheckpointReporter); ok && s.checkpoints && reporter.SupportsCheckpoints() {
		checkpoints, cerr := reporter.Checkpoints()
		if cerr != nil {
			s.logger.Error("failed to query checkpoints", "err", cerr)
		}
		for _, cp := range checkpoints {
			s.logger.Errorf("%s: %#x", cp.Stage, cp.Marker)
		}
	}
	s.fatal(fmt.Errorf("device lost during submit: %w", err))
}

// drainPendingOps runs, in FIFO order, every deferred operation whose tick
// has retired, stopping at the first one that is still in flight. Only one
// goroutine drains at a time; callbacks may defer new operations or submit.
func (s *Scheduler) drainPendingOps() {
	for {
		if !s.draining.CompareAndSwap(false, true) {
			return
		}
		ran := 0
		for {
			s.opsMu.Lock()
			op, err := s.ops.Peek()
			if err != nil || !s.master.IsFree(op.tick) {
				s.opsMu.Unlock()
				break
			}
			s.ops.Dequeue()
			s.opsMu.Unlock()

			op.callback()
			ran++
		}
		s.draining.Store(false)
		if ran > 0 {
			s.metrics.DeferredRun(ran)
		}

		// Another goroutine may have freed an op after the last check and
		// skipped draining because the flag was held.
		s.opsMu.Lock()
		op, err := s.ops.Peek()
		again := err == nil && s.master.IsFree(op.tick)
		s.opsMu.Unlock()
		if !again {
			return
		}
	}
}
