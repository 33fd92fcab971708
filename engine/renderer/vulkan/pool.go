package vulkan

import "sync"

type LockGroup string

const (
	CommandPoolManagement     LockGroup = "command_pool_management"
	SynchronizationManagement LockGroup = "synchronization_management"
)

// Mutex pool
type VulkanLockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // Protects access to the locks map

	queueMutexes map[uint32]*sync.Mutex // Queue family index as key
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

func (vs *VulkanLockPool) groupLock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.locks[group]; !exists {
		vs.locks[group] = &sync.Mutex{}
	}
	return vs.locks[group]
}

func (vs *VulkanLockPool) queueLock(index uint32) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.queueMutexes[index]; !exists {
		vs.queueMutexes[index] = &sync.Mutex{}
	}
	return vs.queueMutexes[index]
}

// SafeCall runs fn holding the lock of group.
func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.groupLock(group)
	l.Lock()
	defer l.Unlock()

	return fn()
}

// SafeQueueCall runs fn holding the lock of a queue family. Vulkan requires
// external synchronization of every vkQueue* call.
func (vs *VulkanLockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	l := vs.queueLock(queueFamilyIndex)
	l.Lock()
	defer l.Unlock()

	return fn()
}
