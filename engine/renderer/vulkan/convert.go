package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-scheduler/engine/renderer/scheduler"
)

// The scheduler's enums and flags carry Vulkan's numeric values, so the
// conversions below are plain casts.

func imageView(h scheduler.Handle) vk.ImageView {
	v, _ := h.(vk.ImageView)
	return v
}

func image(h scheduler.Handle) vk.Image {
	v, _ := h.(vk.Image)
	return v
}

func semaphore(h scheduler.Handle) vk.Semaphore {
	switch s := h.(type) {
	case vk.Semaphore:
		return s
	case *VulkanTimeline:
		return s.Semaphore
	}
	return vk.NullSemaphore
}

func fence(h scheduler.Handle) vk.Fence {
	switch f := h.(type) {
	case vk.Fence:
		return f
	case *VulkanFence:
		return f.Handle
	}
	return vk.NullFence
}

// resolveLayout is the layout the resolve target is in. It is ignored by the
// driver unless a resolve mode is set.
func resolveLayout(a *scheduler.RenderingAttachment) scheduler.ImageLayout {
	if a.ResolveMode == scheduler.ResolveModeNone {
		return scheduler.ImageLayoutUndefined
	}
	if a.ResolveLayout == scheduler.ImageLayoutUndefined {
		return a.Layout
	}
	return a.ResolveLayout
}

func toImageMemoryBarrier(b *scheduler.ImageBarrier) vk.ImageMemoryBarrier {
	return vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(b.SrcAccess),
		DstAccessMask:       vk.AccessFlags(b.DstAccess),
		OldLayout:           vk.ImageLayout(b.OldLayout),
		NewLayout:           vk.ImageLayout(b.NewLayout),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image(b.Image),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(b.Range.AspectMask),
			BaseMipLevel:   b.Range.BaseMipLevel,
			LevelCount:     b.Range.LevelCount,
			BaseArrayLayer: b.Range.BaseArrayLayer,
			LayerCount:     b.Range.LayerCount,
		},
	}
}

func toWaitStages(stages []scheduler.PipelineStage) []vk.PipelineStageFlags {
	out := make([]vk.PipelineStageFlags, len(stages))
	for i, s := range stages {
		out[i] = vk.PipelineStageFlags(s)
	}
	return out
}

func toSemaphores(handles []scheduler.Handle) []vk.Semaphore {
	out := make([]vk.Semaphore, len(handles))
	for i, h := range handles {
		out[i] = semaphore(h)
	}
	return out
}
