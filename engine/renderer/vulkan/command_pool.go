package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-scheduler/engine/core"
	"github.com/spaghettifunk/anima-scheduler/engine/renderer/scheduler"
)

// VulkanCommandPool allocates primary command buffers for the graphics
// queue family. Buffers live as long as the pool.
type VulkanCommandPool struct {
	Handle  vk.CommandPool
	context *VulkanContext
	procs   *deviceProcs
	buffers []*VulkanCommandBuffer
}

var _ scheduler.Allocator = (*VulkanCommandPool)(nil)

func NewCommandPool(context *VulkanContext) (*VulkanCommandPool, error) {
	procs, err := context.loadProcs()
	if err != nil {
		return nil, err
	}

	createInfo := vk.CommandPoolCreateInfo{
		SType: vk.StructureTypeCommandPoolCreateInfo,
		Flags: vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit) |
			vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: context.GraphicsQueueIndex,
	}

	var pool vk.CommandPool
	if res := vk.CreateCommandPool(context.LogicalDevice, &createInfo, context.Allocator, &pool); res != vk.Success {
		err := VulkanResultError(res, "vkCreateCommandPool")
		core.LogError(err.Error())
		return nil, err
	}
	return &VulkanCommandPool{Handle: pool, context: context, procs: procs}, nil
}

func (p *VulkanCommandPool) Allocate(count int) ([]scheduler.CommandBuffer, error) {
	if count <= 0 {
		return nil, nil
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.Handle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}
	handles := make([]vk.CommandBuffer, count)

	// Pools are externally synchronized.
	err := p.context.locks().SafeCall(CommandPoolManagement, func() error {
		res := vk.AllocateCommandBuffers(p.context.LogicalDevice, &allocateInfo, handles)
		return VulkanResultError(res, "vkAllocateCommandBuffers")
	})
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	out := make([]scheduler.CommandBuffer, count)
	for i, h := range handles {
		cb := &VulkanCommandBuffer{Handle: h, State: COMMAND_BUFFER_STATE_READY, procs: p.procs}
		p.buffers = append(p.buffers, cb)
		out[i] = cb
	}
	return out, nil
}

// Destroy frees every buffer and the pool. The device must be idle.
func (p *VulkanCommandPool) Destroy() {
	if p.Handle == vk.NullCommandPool {
		return
	}
	if len(p.buffers) > 0 {
		handles := make([]vk.CommandBuffer, len(p.buffers))
		for i, cb := range p.buffers {
			handles[i] = cb.Handle
		}
		vk.FreeCommandBuffers(p.context.LogicalDevice, p.Handle, uint32(len(handles)), handles)
		p.buffers = nil
	}
	vk.DestroyCommandPool(p.context.LogicalDevice, p.Handle, p.context.Allocator)
	p.Handle = vk.NullCommandPool
}
