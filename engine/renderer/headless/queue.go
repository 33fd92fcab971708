package headless

import (
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/anima-scheduler/engine/core"
	"github.com/spaghettifunk/anima-scheduler/engine/renderer/scheduler"
)

// SubmissionRecord is what the queue saw for one Submit call.
type SubmissionRecord struct {
	CommandBuffer    *CommandBuffer
	Commands         []Command
	WaitSemaphores   []scheduler.Handle
	WaitValues       []uint64
	WaitStages       []scheduler.PipelineStage
	SignalSemaphores []scheduler.Handle
	SignalValues     []uint64
	Fence            scheduler.Handle
}

type job struct {
	record SubmissionRecord
}

// Queue executes submissions in order on a worker goroutine. Execution
// means waiting for the submission's timeline waits, sleeping for the
// configured latency and signaling its timelines and fence.
type Queue struct {
	mu          sync.Mutex
	records     []SubmissionRecord
	lost        bool
	loseAfter   int
	checkpoints []scheduler.Checkpoint
	supportsCP  bool
	timelines   []*Timeline

	latency     time.Duration
	synchronous bool
	held        bool
	gate        chan struct{}
	jobs        chan job
	done        chan struct{}
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

func newQueue(o *options) *Queue {
	q := &Queue{
		latency:     o.latency,
		synchronous: o.synchronous,
		held:        o.held,
		supportsCP:  o.checkpoints != nil,
		checkpoints: o.checkpoints,
		loseAfter:   -1,
		gate:        make(chan struct{}, 1024),
		jobs:        make(chan job, 64),
		done:        make(chan struct{}),
	}
	if !q.synchronous {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *Queue) Submit(s *scheduler.Submission) error {
	cb, ok := s.CommandBuffer.(*CommandBuffer)
	if !ok {
		return fmt.Errorf("headless queue: foreign command buffer %T", s.CommandBuffer)
	}
	if len(s.WaitSemaphores) != len(s.WaitValues) || len(s.WaitSemaphores) != len(s.WaitStages) {
		return fmt.Errorf("headless queue: mismatched wait arrays")
	}
	if len(s.SignalSemaphores) != len(s.SignalValues) {
		return fmt.Errorf("headless queue: mismatched signal arrays")
	}

	q.mu.Lock()
	if q.loseAfter == 0 {
		q.lost = true
	}
	if q.loseAfter > 0 {
		q.loseAfter--
	}
	if q.lost {
		q.mu.Unlock()
		q.loseTimelines()
		return fmt.Errorf("headless queue submit: %w", core.ErrDeviceLost)
	}
	rec := SubmissionRecord{
		CommandBuffer:    cb,
		Commands:         cb.Commands(),
		WaitSemaphores:   append([]scheduler.Handle(nil), s.WaitSemaphores...),
		WaitValues:       append([]uint64(nil), s.WaitValues...),
		WaitStages:       append([]scheduler.PipelineStage(nil), s.WaitStages...),
		SignalSemaphores: append([]scheduler.Handle(nil), s.SignalSemaphores...),
		SignalValues:     append([]uint64(nil), s.SignalValues...),
		Fence:            s.Fence,
	}
	q.records = append(q.records, rec)
	q.mu.Unlock()

	cb.setState(CommandBufferStateSubmitted)
	if q.synchronous {
		q.execute(rec)
		return nil
	}
	select {
	case q.jobs <- job{record: rec}:
	case <-q.done:
		return fmt.Errorf("headless queue closed: %w", core.ErrDeviceLost)
	}
	return nil
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case j := <-q.jobs:
			if q.held {
				select {
				case <-q.gate:
				case <-q.done:
					return
				}
			}
			q.execute(j.record)
		case <-q.done:
			return
		}
	}
}

func (q *Queue) execute(rec SubmissionRecord) {
	for i, h := range rec.WaitSemaphores {
		if t, ok := h.(*Timeline); ok {
			if err := t.Wait(rec.WaitValues[i]); err != nil {
				return
			}
		}
	}
	if q.latency > 0 {
		time.Sleep(q.latency)
	}
	// The buffer is reusable before anyone can observe the signal.
	rec.CommandBuffer.setState(CommandBufferStateReady)
	for i, h := range rec.SignalSemaphores {
		if t, ok := h.(*Timeline); ok {
			t.Signal(rec.SignalValues[i])
		}
	}
	if f, ok := rec.Fence.(*Fence); ok {
		f.signal()
	}
}

// Release lets n held submissions execute.
func (q *Queue) Release(n int) {
	for i := 0; i < n; i++ {
		q.gate <- struct{}{}
	}
}

// Submissions returns every accepted submission in order.
func (q *Queue) Submissions() []SubmissionRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]SubmissionRecord(nil), q.records...)
}

// LoseDeviceAfter makes the device fail after n more successful submissions.
func (q *Queue) LoseDeviceAfter(n int) {
	q.mu.Lock()
	q.loseAfter = n
	q.mu.Unlock()
}

func (q *Queue) SupportsCheckpoints() bool {
	return q.supportsCP
}

func (q *Queue) Checkpoints() ([]scheduler.Checkpoint, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]scheduler.Checkpoint(nil), q.checkpoints...), nil
}

func (q *Queue) track(t *Timeline) {
	q.mu.Lock()
	q.timelines = append(q.timelines, t)
	q.mu.Unlock()
}

func (q *Queue) loseTimelines() {
	q.mu.Lock()
	timelines := append([]*Timeline(nil), q.timelines...)
	q.mu.Unlock()
	for _, t := range timelines {
		t.lose()
	}
}

func (q *Queue) close() {
	q.closeOnce.Do(func() {
		close(q.done)
		q.wg.Wait()
	})
}
