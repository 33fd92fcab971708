package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-scheduler/engine/core"
	"github.com/spaghettifunk/anima-scheduler/engine/renderer/scheduler"
)

// VulkanQueue submits to the graphics queue using timeline semaphore values.
type VulkanQueue struct {
	context *VulkanContext
}

var (
	_ scheduler.Queue              = (*VulkanQueue)(nil)
	_ scheduler.CheckpointReporter = (*VulkanQueue)(nil)
)

func (q *VulkanQueue) Submit(s *scheduler.Submission) error {
	cb, ok := s.CommandBuffer.(*VulkanCommandBuffer)
	if !ok {
		return fmt.Errorf("vulkan queue: unexpected command buffer %T", s.CommandBuffer)
	}

	timelineInfo := vk.TimelineSemaphoreSubmitInfo{
		SType:                     vk.StructureTypeTimelineSemaphoreSubmitInfo,
		WaitSemaphoreValueCount:   uint32(len(s.WaitValues)),
		PWaitSemaphoreValues:      s.WaitValues,
		SignalSemaphoreValueCount: uint32(len(s.SignalValues)),
		PSignalSemaphoreValues:    s.SignalValues,
	}
	timelineRef, allocs := timelineInfo.PassRef()
	defer allocs.Free()

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		PNext:                unsafe.Pointer(timelineRef),
		WaitSemaphoreCount:   uint32(len(s.WaitSemaphores)),
		PWaitSemaphores:      toSemaphores(s.WaitSemaphores),
		PWaitDstStageMask:    toWaitStages(s.WaitStages),
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.Handle},
		SignalSemaphoreCount: uint32(len(s.SignalSemaphores)),
		PSignalSemaphores:    toSemaphores(s.SignalSemaphores),
	}

	err := q.context.locks().SafeQueueCall(q.context.GraphicsQueueIndex, func() error {
		res := vk.QueueSubmit(q.context.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence(s.Fence))
		return VulkanResultError(res, "vkQueueSubmit")
	})
	if err != nil {
		return err
	}
	cb.UpdateSubmitted()
	return nil
}

func (q *VulkanQueue) SupportsCheckpoints() bool {
	return q.context.HasNvCheckpoints
}

// Checkpoints reads the NV diagnostic checkpoints left on the queue.
func (q *VulkanQueue) Checkpoints() ([]scheduler.Checkpoint, error) {
	if !q.context.HasNvCheckpoints {
		return nil, nil
	}

	procs, err := q.context.loadProcs()
	if err != nil {
		return nil, err
	}
	out := procs.queueCheckpoints(q.context.GraphicsQueue)
	core.LogDebug("read %d device checkpoints", len(out))
	return out, nil
}
