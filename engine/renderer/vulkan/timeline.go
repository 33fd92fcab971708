package vulkan

import (
	"math"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-scheduler/engine/core"
	"github.com/spaghettifunk/anima-scheduler/engine/renderer/scheduler"
)

// VulkanTimeline is a timeline semaphore starting at zero.
type VulkanTimeline struct {
	Semaphore vk.Semaphore
	context   *VulkanContext
	procs     *deviceProcs
}

var _ scheduler.Timeline = (*VulkanTimeline)(nil)

func NewTimeline(context *VulkanContext) (*VulkanTimeline, error) {
	procs, err := context.loadProcs()
	if err != nil {
		return nil, err
	}

	typeInfo := vk.SemaphoreTypeCreateInfo{
		SType:         vk.StructureTypeSemaphoreTypeCreateInfo,
		SemaphoreType: vk.SemaphoreTypeTimeline,
		InitialValue:  0,
	}
	typeRef, allocs := typeInfo.PassRef()
	defer allocs.Free()

	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
		PNext: unsafe.Pointer(typeRef),
	}

	var sem vk.Semaphore
	if res := vk.CreateSemaphore(context.LogicalDevice, &createInfo, context.Allocator, &sem); res != vk.Success {
		err := VulkanResultError(res, "vkCreateSemaphore")
		core.LogError(err.Error())
		return nil, err
	}
	return &VulkanTimeline{Semaphore: sem, context: context, procs: procs}, nil
}

func (vt *VulkanTimeline) Destroy() {
	if vt.Semaphore != vk.NullSemaphore {
		vk.DestroySemaphore(vt.context.LogicalDevice, vt.Semaphore, vt.context.Allocator)
		vt.Semaphore = vk.NullSemaphore
	}
}

// Handle returns the timeline itself; submissions unwrap it.
func (vt *VulkanTimeline) Handle() scheduler.Handle { return vt }

func (vt *VulkanTimeline) Value() (uint64, error) {
	value, res := vt.procs.semaphoreCounterValue(vt.context.LogicalDevice, vt.Semaphore)
	if res != vk.Success {
		return 0, VulkanResultError(res, "vkGetSemaphoreCounterValue")
	}
	return value, nil
}

func (vt *VulkanTimeline) Wait(value uint64) error {
	res := vt.procs.waitSemaphore(vt.context.LogicalDevice, vt.Semaphore, value, math.MaxUint64)
	return VulkanResultError(res, "vkWaitSemaphores")
}
