package scheduler

import (
	"fmt"

	"github.com/spaghettifunk/anima-scheduler/engine/core"
)

const DefaultPoolGrowStep = 4

// CommandPool recycles command buffers. Every buffer is stamped with the tick
// its recorded work signals, and is handed out again only once that tick has
// retired.
type CommandPool struct {
	master    *MasterSemaphore
	allocator Allocator
	growStep  int
	buffers   []CommandBuffer
	ticks     []uint64
	hint      int
}

func NewCommandPool(master *MasterSemaphore, allocator Allocator, growStep int) *CommandPool {
	if growStep <= 0 {
		growStep = DefaultPoolGrowStep
	}
	return &CommandPool{
		master:    master,
		allocator: allocator,
		growStep:  growStep,
	}
}

// Commit returns a buffer whose previous work has completed, growing the pool
// when every buffer is still in flight.
func (p *CommandPool) Commit() (CommandBuffer, error) {
	// Refresh to pick up work retired since the last submission.
	if err := p.master.Refresh(); err != nil {
		return nil, err
	}

	found, ok := p.search(p.hint, len(p.ticks))
	if !ok {
		found, ok = p.search(0, p.hint)
	}
	if !ok {
		var err error
		if found, err = p.grow(); err != nil {
			return nil, err
		}
	}
	p.ticks[found] = p.master.PendingTick()
	p.hint = (found + 1) % len(p.ticks)
	return p.buffers[found], nil
}

func (p *CommandPool) search(begin, end int) (int, bool) {
	for i := begin; i < end; i++ {
		if p.master.IsFree(p.ticks[i]) {
			return i, true
		}
	}
	return 0, false
}

// grow allocates growStep buffers and returns the index of the first new one.
func (p *CommandPool) grow() (int, error) {
	buffers, err := p.allocator.Allocate(p.growStep)
	if err != nil {
		return 0, fmt.Errorf("failed to grow command pool: %w", err)
	}
	if len(buffers) == 0 {
		return 0, core.ErrNoCommandBuffers
	}
	first := len(p.buffers)
	p.buffers = append(p.buffers, buffers...)
	// Fresh buffers carry tick 0, which is always free.
	p.ticks = append(p.ticks, make([]uint64, len(buffers))...)
	core.LogDebug("command pool grown to %d buffers", len(p.buffers))
	return first, nil
}

// Size returns how many buffers the pool owns.
func (p *CommandPool) Size() int {
	return len(p.buffers)
}
