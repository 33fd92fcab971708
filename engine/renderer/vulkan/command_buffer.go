package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-scheduler/engine/core"
	"github.com/spaghettifunk/anima-scheduler/engine/renderer/scheduler"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
)

// VulkanCommandBuffer is a primary command buffer allocated from a
// VulkanCommandPool. It implements scheduler.CommandBuffer.
type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState

	procs *deviceProcs
}

var _ scheduler.CommandBuffer = (*VulkanCommandBuffer)(nil)

// Begin starts a one-time-submit recording. The owning pool was created
// with the reset flag, so beginning implicitly resets the buffer.
func (v *VulkanCommandBuffer) Begin() error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}

	if res := vk.BeginCommandBuffer(v.Handle, beginInfo); res != vk.Success {
		err := VulkanResultError(res, "vkBeginCommandBuffer")
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING

	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		err := VulkanResultError(res, "vkEndCommandBuffer")
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) BeginRendering(info *scheduler.RenderingInfo) {
	v.procs.cmdBeginRenderingCall(v.Handle, info)
	v.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (v *VulkanCommandBuffer) EndRendering() {
	v.procs.cmdEndRenderingCall(v.Handle)
	v.State = COMMAND_BUFFER_STATE_RECORDING
}

func (v *VulkanCommandBuffer) PipelineBarrier(src, dst scheduler.PipelineStage, deps scheduler.DependencyFlags, barriers []scheduler.ImageBarrier) {
	imageBarriers := make([]vk.ImageMemoryBarrier, len(barriers))
	for i := range barriers {
		imageBarriers[i] = toImageMemoryBarrier(&barriers[i])
	}
	vk.CmdPipelineBarrier(
		v.Handle,
		vk.PipelineStageFlags(src),
		vk.PipelineStageFlags(dst),
		vk.DependencyFlags(deps),
		0, nil,
		0, nil,
		uint32(len(imageBarriers)), imageBarriers,
	)
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() {
	v.State = COMMAND_BUFFER_STATE_READY
}
