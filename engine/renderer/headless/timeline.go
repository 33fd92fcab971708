package headless

import (
	"sync"

	"github.com/spaghettifunk/anima-scheduler/engine/core"
	"github.com/spaghettifunk/anima-scheduler/engine/renderer/scheduler"
)

// Timeline is a software timeline semaphore. It also serves as the handle
// placed in submissions, so a queue can signal or wait on it directly.
type Timeline struct {
	mu    sync.Mutex
	cond  *sync.Cond
	value uint64
	lost  bool
}

func NewTimeline() *Timeline {
	t := &Timeline{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

func (t *Timeline) Handle() scheduler.Handle {
	return t
}

func (t *Timeline) Value() (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lost {
		return t.value, core.ErrDeviceLost
	}
	return t.value, nil
}

func (t *Timeline) Wait(value uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.value < value && !t.lost {
		t.cond.Wait()
	}
	if t.value < value {
		return core.ErrDeviceLost
	}
	return nil
}

// Signal raises the value. Lower values are ignored.
func (t *Timeline) Signal(value uint64) {
	t.mu.Lock()
	if value > t.value {
		t.value = value
	}
	t.mu.Unlock()
	t.cond.Broadcast()
}

func (t *Timeline) lose() {
	t.mu.Lock()
	t.lost = true
	t.mu.Unlock()
	t.cond.Broadcast()
}

// Fence is a one-shot completion flag that can be attached to a submission.
type Fence struct {
	done chan struct{}
	once sync.Once
}

func NewFence() *Fence {
	return &Fence{done: make(chan struct{})}
}

func (f *Fence) signal() {
	f.once.Do(func() { close(f.done) })
}

// Wait blocks until the submission carrying the fence has completed.
func (f *Fence) Wait() {
	<-f.done
}

func (f *Fence) Signaled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
