package scheduler

import (
	"fmt"

	"github.com/spaghettifunk/anima-scheduler/engine/core"
)

const (
	MaxColorAttachments = 8
	// One barrier per color attachment plus the depth/stencil attachment.
	maxBarriers = MaxColorAttachments + 1
)

// RenderingAttachment describes one attachment of a dynamic rendering pass.
type RenderingAttachment struct {
	View        Handle
	Layout      ImageLayout
	ResolveMode ResolveMode
	ResolveView Handle
	// Layout of ResolveView. Undefined means the same as Layout.
	ResolveLayout ImageLayout
	LoadOp        LoadOp
	StoreOp       StoreOp
	Clear         ClearValue
}

// RenderState is the set of attachments and the extent bound for drawing.
// Two states are the same pass iff they compare equal with ==.
type RenderState struct {
	Width               uint32
	Height              uint32
	NumColorAttachments uint32
	ColorAttachments    [MaxColorAttachments]RenderingAttachment
	ColorImages         [MaxColorAttachments]Handle
	HasDepth            bool
	HasStencil          bool
	DepthAttachment     RenderingAttachment
	DepthImage          Handle
}

func (rs *RenderState) Validate() error {
	if rs.NumColorAttachments > MaxColorAttachments {
		return fmt.Errorf("%w: %d > %d", core.ErrTooManyAttachments, rs.NumColorAttachments, MaxColorAttachments)
	}
	return nil
}

// renderingInfo builds the begin-pass description for the state.
func (rs *RenderState) renderingInfo() *RenderingInfo {
	info := &RenderingInfo{
		Area: Rect2D{
			Offset: Offset2D{X: 0, Y: 0},
			Extent: Extent2D{Width: rs.Width, Height: rs.Height},
		},
		LayerCount:       1,
		ColorAttachments: rs.ColorAttachments[:rs.NumColorAttachments],
	}
	if rs.HasDepth {
		info.Depth = &rs.DepthAttachment
	}
	if rs.HasStencil {
		info.Stencil = &rs.DepthAttachment
	}
	return info
}

// barriers writes the barriers that make the pass output visible to later
// fragment shaders into dst and returns how many were written together with
// the source stages they wait on.
func (rs *RenderState) barriers(dst *[maxBarriers]ImageBarrier) (int, PipelineStage) {
	n := 0
	for i := uint32(0); i < rs.NumColorAttachments; i++ {
		dst[n] = ImageBarrier{
			SrcAccess: AccessColorAttachmentWrite,
			DstAccess: AccessShaderRead | AccessShaderWrite,
			// Color targets stay attachment-optimal; they are read back as
			// attachments, not sampled.
			OldLayout: ImageLayoutColorAttachmentOptimal,
			NewLayout: ImageLayoutColorAttachmentOptimal,
			Image:     rs.ColorImages[i],
			Range: SubresourceRange{
				AspectMask:     ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     RemainingMipLevels,
				BaseArrayLayer: 0,
				LayerCount:     RemainingArrayLayers,
			},
		}
		n++
	}
	src := PipelineStageColorAttachmentOutput
	if rs.HasDepth {
		aspect := ImageAspectDepth
		if rs.HasStencil {
			aspect |= ImageAspectStencil
		}
		dst[n] = ImageBarrier{
			SrcAccess: AccessDepthStencilAttachmentWrite,
			DstAccess: AccessShaderRead | AccessShaderWrite,
			OldLayout: rs.DepthAttachment.Layout,
			NewLayout: rs.DepthAttachment.Layout,
			Image:     rs.DepthImage,
			Range: SubresourceRange{
				AspectMask:     aspect,
				BaseMipLevel:   0,
				LevelCount:     RemainingMipLevels,
				BaseArrayLayer: 0,
				LayerCount:     RemainingArrayLayers,
			},
		}
		n++
		src |= PipelineStageEarlyFragmentTests | PipelineStageLateFragmentTests
	}
	return n, src
}
