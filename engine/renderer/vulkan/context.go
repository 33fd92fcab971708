package vulkan

import (
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// VulkanContext holds the device objects the scheduler backend borrows.
// Instance and device creation happen elsewhere; the device must have been
// created with Vulkan 1.3 (timeline semaphores and dynamic rendering).
type VulkanContext struct {
	Instance      vk.Instance
	LogicalDevice vk.Device
	// Optional. The pointer handed to vk.SetGetInstanceProcAddr; when nil
	// the system Vulkan loader is opened directly.
	GetInstanceProcAddr unsafe.Pointer
	Allocator           *vk.AllocationCallbacks

	GraphicsQueue      vk.Queue
	GraphicsQueueIndex uint32

	// Set when VK_NV_device_diagnostic_checkpoints is enabled on the device.
	HasNvCheckpoints bool

	// Shared with any other code that submits or presents on the same queues.
	Locks *VulkanLockPool

	procsOnce sync.Once
	procs     *deviceProcs
	procsErr  error
}

// loadProcs resolves the entry points goki/vulkan does not bind. It runs
// once per context.
func (vc *VulkanContext) loadProcs() (*deviceProcs, error) {
	vc.procsOnce.Do(func() {
		vc.procs, vc.procsErr = loadDeviceProcs(vc)
	})
	return vc.procs, vc.procsErr
}

func (vc *VulkanContext) locks() *VulkanLockPool {
	if vc.Locks == nil {
		vc.Locks = NewVulkanLockPool()
	}
	return vc.Locks
}
