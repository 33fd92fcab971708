package vulkan

import (
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-scheduler/engine/renderer/scheduler"
)

func TestPipelineStageValues(t *testing.T) {
	cases := []struct {
		got  scheduler.PipelineStage
		want vk.PipelineStageFlagBits
	}{
		{scheduler.PipelineStageTopOfPipe, vk.PipelineStageTopOfPipeBit},
		{scheduler.PipelineStageFragmentShader, vk.PipelineStageFragmentShaderBit},
		{scheduler.PipelineStageEarlyFragmentTests, vk.PipelineStageEarlyFragmentTestsBit},
		{scheduler.PipelineStageLateFragmentTests, vk.PipelineStageLateFragmentTestsBit},
		{scheduler.PipelineStageColorAttachmentOutput, vk.PipelineStageColorAttachmentOutputBit},
		{scheduler.PipelineStageTransfer, vk.PipelineStageTransferBit},
		{scheduler.PipelineStageAllGraphics, vk.PipelineStageAllGraphicsBit},
		{scheduler.PipelineStageAllCommands, vk.PipelineStageAllCommandsBit},
	}
	for _, c := range cases {
		if uint32(c.got) != uint32(c.want) {
			t.Errorf("%v: have %#x, want %#x", c.got, uint32(c.got), uint32(c.want))
		}
	}
}

func TestAccessAndLayoutValues(t *testing.T) {
	if uint32(scheduler.AccessShaderRead) != uint32(vk.AccessShaderReadBit) {
		t.Error("AccessShaderRead mismatch")
	}
	if uint32(scheduler.AccessColorAttachmentWrite) != uint32(vk.AccessColorAttachmentWriteBit) {
		t.Error("AccessColorAttachmentWrite mismatch")
	}
	if uint32(scheduler.AccessDepthStencilAttachmentWrite) != uint32(vk.AccessDepthStencilAttachmentWriteBit) {
		t.Error("AccessDepthStencilAttachmentWrite mismatch")
	}
	if int32(scheduler.ImageLayoutColorAttachmentOptimal) != int32(vk.ImageLayoutColorAttachmentOptimal) {
		t.Error("ImageLayoutColorAttachmentOptimal mismatch")
	}
	if int32(scheduler.ImageLayoutShaderReadOnlyOptimal) != int32(vk.ImageLayoutShaderReadOnlyOptimal) {
		t.Error("ImageLayoutShaderReadOnlyOptimal mismatch")
	}
	if int32(scheduler.ImageLayoutDepthStencilAttachmentOptimal) != int32(vk.ImageLayoutDepthStencilAttachmentOptimal) {
		t.Error("ImageLayoutDepthStencilAttachmentOptimal mismatch")
	}
	if uint32(scheduler.ImageAspectStencil) != uint32(vk.ImageAspectStencilBit) {
		t.Error("ImageAspectStencil mismatch")
	}
	if uint32(scheduler.DependencyByRegion) != uint32(vk.DependencyByRegionBit) {
		t.Error("DependencyByRegion mismatch")
	}
	if int32(scheduler.LoadOpClear) != int32(vk.AttachmentLoadOpClear) {
		t.Error("LoadOpClear mismatch")
	}
	if int32(scheduler.StoreOpDontCare) != int32(vk.AttachmentStoreOpDontCare) {
		t.Error("StoreOpDontCare mismatch")
	}
}

func TestToImageMemoryBarrier(t *testing.T) {
	b := scheduler.ImageBarrier{
		SrcAccess: scheduler.AccessColorAttachmentWrite,
		DstAccess: scheduler.AccessShaderRead,
		OldLayout: scheduler.ImageLayoutColorAttachmentOptimal,
		NewLayout: scheduler.ImageLayoutColorAttachmentOptimal,
		Range: scheduler.SubresourceRange{
			AspectMask: scheduler.ImageAspectColor,
			LevelCount: scheduler.RemainingMipLevels,
			LayerCount: scheduler.RemainingArrayLayers,
		},
	}
	got := toImageMemoryBarrier(&b)
	if got.SType != vk.StructureTypeImageMemoryBarrier {
		t.Fatalf("SType: have %v", got.SType)
	}
	if got.SrcQueueFamilyIndex != vk.QueueFamilyIgnored || got.DstQueueFamilyIndex != vk.QueueFamilyIgnored {
		t.Fatal("queue family indices must be ignored")
	}
	if got.SrcAccessMask != vk.AccessFlags(vk.AccessColorAttachmentWriteBit) {
		t.Fatalf("SrcAccessMask: have %#x", got.SrcAccessMask)
	}
	if got.SubresourceRange.LevelCount != vk.RemainingMipLevels || got.SubresourceRange.LayerCount != vk.RemainingArrayLayers {
		t.Fatalf("range: have %+v", got.SubresourceRange)
	}
}

func TestRenderingBlock(t *testing.T) {
	depth := scheduler.RenderingAttachment{
		Layout: scheduler.ImageLayoutDepthStencilAttachmentOptimal,
		LoadOp: scheduler.LoadOpClear,
		Clear:  scheduler.ClearValue{Depth: 1, Stencil: 7},
	}
	info := scheduler.RenderingInfo{
		Area:       scheduler.Rect2D{Extent: scheduler.Extent2D{Width: 640, Height: 480}},
		LayerCount: 1,
		ColorAttachments: []scheduler.RenderingAttachment{
			{Layout: scheduler.ImageLayoutColorAttachmentOptimal, StoreOp: scheduler.StoreOpStore},
			{
				Layout:  scheduler.ImageLayoutColorAttachmentOptimal,
				StoreOp: scheduler.StoreOpStore,
				Clear:   scheduler.ClearValue{Color: [4]float32{0.25, 0.5, 0.75, 1}},
			},
		},
		Depth:   &depth,
		Stencil: &depth,
	}

	b := newRenderingBlock(&info)
	defer b.free()

	if b.info.colorAttachmentCount != 2 || len(b.attachments) != 4 {
		t.Fatalf("attachments: have %d colors, %d total", b.info.colorAttachmentCount, len(b.attachments))
	}
	if b.info.renderArea.width != 640 || b.info.renderArea.height != 480 || b.info.layerCount != 1 {
		t.Fatalf("area: have %+v", b.info.renderArea)
	}
	if b.info.pColorAttachments != &b.attachments[0] {
		t.Fatal("color attachments must point into the block")
	}
	if b.info.pDepthAttachment != &b.attachments[2] || b.info.pStencilAttachment != &b.attachments[3] {
		t.Fatal("depth and stencil attachments must follow the colors")
	}
	if int32(b.attachments[2].loadOp) != int32(vk.AttachmentLoadOpClear) {
		t.Fatalf("depth LoadOp: have %d", b.attachments[2].loadOp)
	}
	if int32(b.attachments[0].imageLayout) != int32(vk.ImageLayoutColorAttachmentOptimal) {
		t.Fatalf("color layout: have %d", b.attachments[0].imageLayout)
	}

	ds := unsafe.Pointer(&b.attachments[2].clearValue)
	if *(*float32)(ds) != 1 || *(*uint32)(unsafe.Add(ds, 4)) != 7 {
		t.Fatal("depth clear value not written")
	}
	if *(*[4]float32)(unsafe.Pointer(&b.attachments[1].clearValue)) != info.ColorAttachments[1].Clear.Color {
		t.Fatal("color clear value not written")
	}
}

func TestRenderingBlockWithoutDepth(t *testing.T) {
	b := newRenderingBlock(&scheduler.RenderingInfo{
		LayerCount:       1,
		ColorAttachments: []scheduler.RenderingAttachment{{}},
	})
	defer b.free()

	if b.info.pDepthAttachment != nil || b.info.pStencilAttachment != nil {
		t.Fatal("no depth attachment expected")
	}
	if len(b.attachments) != 1 {
		t.Fatalf("attachments: have %d", len(b.attachments))
	}
}

func TestMirrorStructSizes(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("layout checked on 64-bit targets only")
	}
	if renderingInfoSize != 72 {
		t.Errorf("VkRenderingInfo: have %d bytes, want 72", renderingInfoSize)
	}
	if renderingAttachmentInfoSize != 72 {
		t.Errorf("VkRenderingAttachmentInfo: have %d bytes, want 72", renderingAttachmentInfoSize)
	}
	if checkpointDataSize != 32 {
		t.Errorf("VkCheckpointDataNV: have %d bytes, want 32", checkpointDataSize)
	}
}

func TestResolveLayout(t *testing.T) {
	a := scheduler.RenderingAttachment{
		Layout:        scheduler.ImageLayoutColorAttachmentOptimal,
		ResolveLayout: scheduler.ImageLayoutTransferDstOptimal,
	}
	if got := resolveLayout(&a); got != scheduler.ImageLayoutUndefined {
		t.Fatalf("no resolve: have %d, want undefined", got)
	}

	a.ResolveMode = scheduler.ResolveModeAverage
	if got := resolveLayout(&a); got != scheduler.ImageLayoutTransferDstOptimal {
		t.Fatalf("resolve: have %d", got)
	}

	a.ResolveLayout = scheduler.ImageLayoutUndefined
	if got := resolveLayout(&a); got != a.Layout {
		t.Fatalf("resolve fallback: have %d, want %d", got, a.Layout)
	}

	b := newRenderingBlock(&scheduler.RenderingInfo{ColorAttachments: []scheduler.RenderingAttachment{a}})
	defer b.free()
	if int32(b.attachments[0].resolveImageLayout) != int32(a.Layout) {
		t.Fatalf("block resolve layout: have %d", b.attachments[0].resolveImageLayout)
	}
}

func TestWaitStages(t *testing.T) {
	got := toWaitStages([]scheduler.PipelineStage{
		scheduler.PipelineStageAllCommands,
		scheduler.PipelineStageColorAttachmentOutput,
	})
	want := []vk.PipelineStageFlags{
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stage %d: have %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestResultError(t *testing.T) {
	if err := VulkanResultError(vk.Success, "op"); err != nil {
		t.Fatalf("success: have %v", err)
	}
	if err := VulkanResultError(vk.ErrorDeviceLost, "vkQueueSubmit"); err == nil || err.Error() != "vkQueueSubmit: device lost" {
		t.Fatalf("device lost: have %v", err)
	}
}

func TestHandleUnwrapping(t *testing.T) {
	if fence(nil) != vk.NullFence {
		t.Fatal("nil fence handle must map to VK_NULL_HANDLE")
	}
	if fence(&VulkanFence{Handle: vk.NullFence}) != vk.NullFence {
		t.Fatal("fence wrapper not unwrapped")
	}
	if semaphore(&VulkanTimeline{Semaphore: vk.NullSemaphore}) != vk.NullSemaphore {
		t.Fatal("timeline wrapper not unwrapped")
	}
	if semaphore("foreign") != vk.NullSemaphore {
		t.Fatal("foreign handle must map to VK_NULL_HANDLE")
	}
	if got := toSemaphores([]scheduler.Handle{nil, nil}); len(got) != 2 {
		t.Fatalf("have %d semaphores", len(got))
	}
}
