package scheduler

import (
	"fmt"
	"sync/atomic"
)

// MasterSemaphore tracks the scheduler's timeline. It separates the next
// value to be signaled (reserved once per submission) from the last value
// known to have retired on the device.
type MasterSemaphore struct {
	timeline    Timeline
	currentTick atomic.Uint64 // next tick to hand out
	gpuTick     atomic.Uint64 // last tick observed as retired
}

func NewMasterSemaphore(timeline Timeline) *MasterSemaphore {
	m := &MasterSemaphore{timeline: timeline}
	m.currentTick.Store(1)
	return m
}

// Handle returns the timeline primitive for submission descriptors.
func (m *MasterSemaphore) Handle() Handle {
	return m.timeline.Handle()
}

// NextTick reserves the next signal value. Must be called exactly once per
// submission.
func (m *MasterSemaphore) NextTick() uint64 {
	return m.currentTick.Add(1) - 1
}

// PendingTick returns the value the next NextTick call will reserve.
func (m *MasterSemaphore) PendingTick() uint64 {
	return m.currentTick.Load()
}

// CurrentTick returns the last tick cached as retired.
func (m *MasterSemaphore) CurrentTick() uint64 {
	return m.gpuTick.Load()
}

func (m *MasterSemaphore) IsFree(tick uint64) bool {
	return m.CurrentTick() >= tick
}

// Refresh queries the device and raises the cached retired value. It never
// moves the cache backwards, even when racing with another refresh.
func (m *MasterSemaphore) Refresh() error {
	counter, err := m.timeline.Value()
	if err != nil {
		return fmt.Errorf("failed to query timeline value: %w", err)
	}
	for {
		tick := m.gpuTick.Load()
		if counter <= tick {
			return nil
		}
		if m.gpuTick.CompareAndSwap(tick, counter) {
			return nil
		}
	}
}

// Wait blocks until tick has retired on the device. The tick must already
// be reserved by a submission.
func (m *MasterSemaphore) Wait(tick uint64) error {
	if m.IsFree(tick) {
		return nil
	}
	if err := m.Refresh(); err != nil {
		return err
	}
	if m.IsFree(tick) {
		return nil
	}
	if err := m.timeline.Wait(tick); err != nil {
		return fmt.Errorf("failed to wait for tick %d: %w", tick, err)
	}
	return m.Refresh()
}

// rollback returns an unused reservation. Only valid while the caller holds
// the submission lock and tick was the last value reserved.
func (m *MasterSemaphore) rollback(tick uint64) {
	m.currentTick.CompareAndSwap(tick+1, tick)
}
