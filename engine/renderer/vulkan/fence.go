package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-scheduler/engine/core"
)

// VulkanFence is a binary fence. The scheduler's Finish path does not use
// one; it exists for callers that pass a fence through a submission.
type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
	context    *VulkanContext
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
		context:    context,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if res := vk.CreateFence(context.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence); res != vk.Success {
		err := VulkanResultError(res, "vkCreateFence")
		core.LogError(err.Error())
		return nil, err
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) Destroy() {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(vf.context.LogicalDevice, vf.Handle, vf.context.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

// Wait blocks up to timeoutNs. A timeout is reported as (false, nil).
func (vf *VulkanFence) Wait(timeoutNs uint64) (bool, error) {
	if vf.IsSignaled {
		// If already signaled, do not wait.
		return true, nil
	}
	result := vk.WaitForFences(vf.context.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return true, nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return false, nil
	default:
		err := VulkanResultError(result, "vkWaitForFences")
		core.LogError(err.Error())
		return false, err
	}
}

func (vf *VulkanFence) Reset() error {
	if vf.IsSignaled {
		if res := vk.ResetFences(vf.context.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
			err := VulkanResultError(res, "vkResetFences")
			core.LogError(err.Error())
			return err
		}
		vf.IsSignaled = false
	}
	return nil
}
