package vulkan

import (
	"github.com/spaghettifunk/anima-scheduler/engine/core"
	"github.com/spaghettifunk/anima-scheduler/engine/renderer/scheduler"
)

// VulkanDevice adapts an already created logical device to the
// scheduler.Device contract. It owns the timeline semaphore and the
// command pool it creates, not the device itself.
type VulkanDevice struct {
	context  *VulkanContext
	queue    *VulkanQueue
	timeline *VulkanTimeline
	pool     *VulkanCommandPool
}

var _ scheduler.Device = (*VulkanDevice)(nil)

func NewDevice(context *VulkanContext) (*VulkanDevice, error) {
	context.locks()
	if _, err := context.loadProcs(); err != nil {
		return nil, err
	}

	timeline, err := NewTimeline(context)
	if err != nil {
		return nil, err
	}
	pool, err := NewCommandPool(context)
	if err != nil {
		timeline.Destroy()
		return nil, err
	}
	core.LogInfo("vulkan scheduler device ready (queue family %d, checkpoints %t)",
		context.GraphicsQueueIndex, context.HasNvCheckpoints)

	return &VulkanDevice{
		context:  context,
		queue:    &VulkanQueue{context: context},
		timeline: timeline,
		pool:     pool,
	}, nil
}

func (d *VulkanDevice) Queue() scheduler.Queue         { return d.queue }
func (d *VulkanDevice) Timeline() scheduler.Timeline   { return d.timeline }
func (d *VulkanDevice) Allocator() scheduler.Allocator { return d.pool }

// Destroy releases the pool and the timeline. The caller must have waited
// for the device to go idle.
func (d *VulkanDevice) Destroy() {
	d.pool.Destroy()
	d.timeline.Destroy()
}
