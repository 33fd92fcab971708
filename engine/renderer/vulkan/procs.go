package vulkan

/*
#cgo linux LDFLAGS: -ldl

#include <stdint.h>
#include <stdlib.h>
#if defined(_WIN32)
#include <windows.h>
#else
#include <dlfcn.h>
#endif

// Mirrors of the Vulkan 1.2/1.3 structures whose entry points goki/vulkan
// does not export. Non-dispatchable handles are 64-bit on every platform.

typedef struct {
	float depth;
	uint32_t stencil;
} schedClearDepthStencil;

typedef union {
	float color[4];
	schedClearDepthStencil depthStencil;
} schedClearValue;

typedef struct {
	int32_t x;
	int32_t y;
	uint32_t width;
	uint32_t height;
} schedRect2D;

typedef struct {
	int32_t sType;
	const void* pNext;
	uint64_t imageView;
	int32_t imageLayout;
	uint32_t resolveMode;
	uint64_t resolveImageView;
	int32_t resolveImageLayout;
	int32_t loadOp;
	int32_t storeOp;
	schedClearValue clearValue;
} schedRenderingAttachmentInfo;

typedef struct {
	int32_t sType;
	const void* pNext;
	uint32_t flags;
	schedRect2D renderArea;
	uint32_t layerCount;
	uint32_t viewMask;
	uint32_t colorAttachmentCount;
	const schedRenderingAttachmentInfo* pColorAttachments;
	const schedRenderingAttachmentInfo* pDepthAttachment;
	const schedRenderingAttachmentInfo* pStencilAttachment;
} schedRenderingInfo;

typedef struct {
	int32_t sType;
	const void* pNext;
	uint32_t flags;
	uint32_t semaphoreCount;
	const uint64_t* pSemaphores;
	const uint64_t* pValues;
} schedSemaphoreWaitInfo;

typedef struct {
	int32_t sType;
	void* pNext;
	uint32_t stage;
	void* pCheckpointMarker;
} schedCheckpointDataNV;

typedef void* (*PFN_schedGetInstanceProcAddr)(void*, const char*);
typedef void* (*PFN_schedGetDeviceProcAddr)(void*, const char*);
typedef void (*PFN_schedCmdBeginRendering)(void*, const schedRenderingInfo*);
typedef void (*PFN_schedCmdEndRendering)(void*);
typedef int32_t (*PFN_schedGetSemaphoreCounterValue)(void*, uint64_t, uint64_t*);
typedef int32_t (*PFN_schedWaitSemaphores)(void*, const schedSemaphoreWaitInfo*, uint64_t);
typedef void (*PFN_schedGetQueueCheckpointDataNV)(void*, uint32_t*, schedCheckpointDataNV*);

// VK_ERROR_EXTENSION_NOT_PRESENT
#define SCHED_ERROR_NOT_LOADED -7

// Resolves vkGetDeviceProcAddr through the host's vkGetInstanceProcAddr, or
// from the system loader library when none was given.
static void* sched_device_proc_addr(void* getInstanceProcAddr, void* instance) {
	if (getInstanceProcAddr != NULL) {
		return ((PFN_schedGetInstanceProcAddr)getInstanceProcAddr)(instance, "vkGetDeviceProcAddr");
	}
#if defined(_WIN32)
	HMODULE lib = LoadLibrary(TEXT("vulkan-1.dll"));
	if (lib == NULL) return NULL;
	return (void*)GetProcAddress(lib, "vkGetDeviceProcAddr");
#else
	void* lib = dlopen("libvulkan.so.1", RTLD_NOW | RTLD_LOCAL);
	if (lib == NULL) lib = dlopen("libvulkan.so", RTLD_NOW | RTLD_LOCAL);
	if (lib == NULL) return NULL;
	return dlsym(lib, "vkGetDeviceProcAddr");
#endif
}

static void* call_vkGetDeviceProcAddr(void* fn, void* device, const char* name) {
	if (fn == NULL) return NULL;
	return ((PFN_schedGetDeviceProcAddr)fn)(device, name);
}

static void call_vkCmdBeginRendering(void* fn, void* cmd, const schedRenderingInfo* info) {
	if (fn == NULL) return;
	((PFN_schedCmdBeginRendering)fn)(cmd, info);
}

static void call_vkCmdEndRendering(void* fn, void* cmd) {
	if (fn == NULL) return;
	((PFN_schedCmdEndRendering)fn)(cmd);
}

static int32_t call_vkGetSemaphoreCounterValue(void* fn, void* device, uint64_t semaphore, uint64_t* value) {
	if (fn == NULL) return SCHED_ERROR_NOT_LOADED;
	return ((PFN_schedGetSemaphoreCounterValue)fn)(device, semaphore, value);
}

static int32_t call_vkWaitSemaphore(void* fn, void* device, int32_t sType, uint64_t semaphore, uint64_t value, uint64_t timeout) {
	if (fn == NULL) return SCHED_ERROR_NOT_LOADED;
	schedSemaphoreWaitInfo info = {0};
	info.sType = sType;
	info.semaphoreCount = 1;
	info.pSemaphores = &semaphore;
	info.pValues = &value;
	return ((PFN_schedWaitSemaphores)fn)(device, &info, timeout);
}

static void call_vkGetQueueCheckpointDataNV(void* fn, void* queue, uint32_t* count, schedCheckpointDataNV* data) {
	if (fn == NULL) {
		*count = 0;
		return;
	}
	((PFN_schedGetQueueCheckpointDataNV)fn)(queue, count, data);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-scheduler/engine/core"
	"github.com/spaghettifunk/anima-scheduler/engine/renderer/scheduler"
)

var (
	renderingInfoSize           = unsafe.Sizeof(C.schedRenderingInfo{})
	renderingAttachmentInfoSize = unsafe.Sizeof(C.schedRenderingAttachmentInfo{})
	checkpointDataSize          = unsafe.Sizeof(C.schedCheckpointDataNV{})
)

// deviceProcs holds device-level entry points resolved through
// vkGetDeviceProcAddr.
type deviceProcs struct {
	cmdBeginRendering        unsafe.Pointer
	cmdEndRendering          unsafe.Pointer
	getSemaphoreCounterValue unsafe.Pointer
	waitSemaphores           unsafe.Pointer
	getQueueCheckpointDataNV unsafe.Pointer
}

// loadDeviceProcs resolves the entry points for the context's device.
func loadDeviceProcs(vc *VulkanContext) (*deviceProcs, error) {
	gdpa := C.sched_device_proc_addr(vc.GetInstanceProcAddr, dispatchable(vc.Instance))
	if gdpa == nil {
		err := fmt.Errorf("vulkan: vkGetDeviceProcAddr not found")
		core.LogError(err.Error())
		return nil, err
	}

	device := dispatchable(vc.LogicalDevice)
	procs := &deviceProcs{
		cmdBeginRendering:        deviceProc(gdpa, device, "vkCmdBeginRendering"),
		cmdEndRendering:          deviceProc(gdpa, device, "vkCmdEndRendering"),
		getSemaphoreCounterValue: deviceProc(gdpa, device, "vkGetSemaphoreCounterValue"),
		waitSemaphores:           deviceProc(gdpa, device, "vkWaitSemaphores"),
	}
	if vc.HasNvCheckpoints {
		procs.getQueueCheckpointDataNV = deviceProc(gdpa, device, "vkGetQueueCheckpointDataNV")
	}

	required := []struct {
		name string
		fn   unsafe.Pointer
	}{
		{"vkCmdBeginRendering", procs.cmdBeginRendering},
		{"vkCmdEndRendering", procs.cmdEndRendering},
		{"vkGetSemaphoreCounterValue", procs.getSemaphoreCounterValue},
		{"vkWaitSemaphores", procs.waitSemaphores},
	}
	for _, r := range required {
		if r.fn == nil {
			err := fmt.Errorf("vulkan: device does not expose %s (Vulkan 1.3 required)", r.name)
			core.LogError(err.Error())
			return nil, err
		}
	}
	if vc.HasNvCheckpoints && procs.getQueueCheckpointDataNV == nil {
		core.LogWarn("vkGetQueueCheckpointDataNV not found, checkpoints disabled")
	}
	return procs, nil
}

func deviceProc(gdpa, device unsafe.Pointer, name string) unsafe.Pointer {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.call_vkGetDeviceProcAddr(gdpa, device, cname)
}

// dispatchable reinterprets a goki dispatchable handle (VkDevice, VkQueue,
// VkCommandBuffer) as the C pointer it wraps.
func dispatchable[T any](h T) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(&h))
}

// nonDispatchable reinterprets a goki non-dispatchable handle as its 64-bit
// value.
func nonDispatchable[T any](h T) C.uint64_t {
	if unsafe.Sizeof(h) != 8 {
		panic(fmt.Sprintf("vulkan: %T is not a 64-bit handle", h))
	}
	return *(*C.uint64_t)(unsafe.Pointer(&h))
}

func (p *deviceProcs) cmdBeginRenderingCall(cmd vk.CommandBuffer, info *scheduler.RenderingInfo) {
	block := newRenderingBlock(info)
	defer block.free()
	C.call_vkCmdBeginRendering(p.cmdBeginRendering, dispatchable(cmd), block.info)
}

func (p *deviceProcs) cmdEndRenderingCall(cmd vk.CommandBuffer) {
	C.call_vkCmdEndRendering(p.cmdEndRendering, dispatchable(cmd))
}

func (p *deviceProcs) semaphoreCounterValue(device vk.Device, sem vk.Semaphore) (uint64, vk.Result) {
	var value C.uint64_t
	res := C.call_vkGetSemaphoreCounterValue(p.getSemaphoreCounterValue, dispatchable(device), nonDispatchable(sem), &value)
	return uint64(value), vk.Result(res)
}

func (p *deviceProcs) waitSemaphore(device vk.Device, sem vk.Semaphore, value, timeout uint64) vk.Result {
	res := C.call_vkWaitSemaphore(p.waitSemaphores, dispatchable(device),
		C.int32_t(vk.StructureTypeSemaphoreWaitInfo), nonDispatchable(sem), C.uint64_t(value), C.uint64_t(timeout))
	return vk.Result(res)
}

func (p *deviceProcs) queueCheckpoints(queue vk.Queue) []scheduler.Checkpoint {
	if p.getQueueCheckpointDataNV == nil {
		return nil
	}
	var count C.uint32_t
	C.call_vkGetQueueCheckpointDataNV(p.getQueueCheckpointDataNV, dispatchable(queue), &count, nil)
	if count == 0 {
		return nil
	}

	ptr := C.calloc(C.size_t(count), C.size_t(checkpointDataSize))
	defer C.free(ptr)
	data := unsafe.Slice((*C.schedCheckpointDataNV)(ptr), int(count))
	for i := range data {
		data[i].sType = C.int32_t(vk.StructureTypeCheckpointDataNv)
	}
	C.call_vkGetQueueCheckpointDataNV(p.getQueueCheckpointDataNV, dispatchable(queue), &count, &data[0])

	out := make([]scheduler.Checkpoint, 0, int(count))
	for i := 0; i < int(count); i++ {
		out = append(out, scheduler.Checkpoint{
			Stage:  scheduler.PipelineStage(data[i].stage),
			Marker: uint64(uintptr(data[i].pCheckpointMarker)),
		})
	}
	return out
}

// renderingBlock is a VkRenderingInfo and its attachments in C memory, so
// the driver never sees Go pointers.
type renderingBlock struct {
	info        *C.schedRenderingInfo
	attachments []C.schedRenderingAttachmentInfo
	mem         unsafe.Pointer
}

func newRenderingBlock(info *scheduler.RenderingInfo) *renderingBlock {
	colors := len(info.ColorAttachments)
	n := colors
	if info.Depth != nil {
		n++
	}
	if info.Stencil != nil {
		n++
	}

	// One allocation: the info struct followed by the attachment array.
	mem := C.calloc(1, C.size_t(renderingInfoSize+uintptr(n)*renderingAttachmentInfoSize))
	b := &renderingBlock{
		info: (*C.schedRenderingInfo)(mem),
		mem:  mem,
	}
	if n > 0 {
		first := (*C.schedRenderingAttachmentInfo)(unsafe.Add(mem, renderingInfoSize))
		b.attachments = unsafe.Slice(first, n)
	}

	for i := range info.ColorAttachments {
		fillAttachment(&b.attachments[i], &info.ColorAttachments[i], false)
	}
	next := colors

	b.info.sType = C.int32_t(vk.StructureTypeRenderingInfo)
	b.info.renderArea = C.schedRect2D{
		x:      C.int32_t(info.Area.Offset.X),
		y:      C.int32_t(info.Area.Offset.Y),
		width:  C.uint32_t(info.Area.Extent.Width),
		height: C.uint32_t(info.Area.Extent.Height),
	}
	b.info.layerCount = C.uint32_t(info.LayerCount)
	b.info.colorAttachmentCount = C.uint32_t(colors)
	if colors > 0 {
		b.info.pColorAttachments = &b.attachments[0]
	}
	if info.Depth != nil {
		fillAttachment(&b.attachments[next], info.Depth, true)
		b.info.pDepthAttachment = &b.attachments[next]
		next++
	}
	if info.Stencil != nil {
		fillAttachment(&b.attachments[next], info.Stencil, true)
		b.info.pStencilAttachment = &b.attachments[next]
	}
	return b
}

func (b *renderingBlock) free() {
	C.free(b.mem)
	b.info, b.attachments, b.mem = nil, nil, nil
}

func fillAttachment(dst *C.schedRenderingAttachmentInfo, a *scheduler.RenderingAttachment, depth bool) {
	dst.sType = C.int32_t(vk.StructureTypeRenderingAttachmentInfo)
	dst.imageView = nonDispatchable(imageView(a.View))
	dst.imageLayout = C.int32_t(a.Layout)
	dst.resolveMode = C.uint32_t(a.ResolveMode)
	dst.resolveImageView = nonDispatchable(imageView(a.ResolveView))
	dst.resolveImageLayout = C.int32_t(resolveLayout(a))
	dst.loadOp = C.int32_t(a.LoadOp)
	dst.storeOp = C.int32_t(a.StoreOp)

	cv := unsafe.Pointer(&dst.clearValue)
	if depth {
		*(*float32)(cv) = a.Clear.Depth
		*(*uint32)(unsafe.Add(cv, 4)) = a.Clear.Stencil
	} else {
		*(*[4]float32)(cv) = a.Clear.Color
	}
}
