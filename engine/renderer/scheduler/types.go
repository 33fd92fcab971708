package scheduler

import (
	"fmt"
	"strings"
)

// Handle is an opaque backend object: an image, image view, semaphore or
// fence. Backends type-assert it to their own handle type. Handles must be
// comparable so RenderState values can be compared with ==.
type Handle interface{}

// The flag and enum values below match the Vulkan encoding, so the vulkan
// backend converts them with plain casts.

type PipelineStage uint32

const (
	PipelineStageNone                  PipelineStage = 0
	PipelineStageTopOfPipe             PipelineStage = 0x00000001
	PipelineStageDrawIndirect          PipelineStage = 0x00000002
	PipelineStageVertexInput           PipelineStage = 0x00000004
	PipelineStageVertexShader          PipelineStage = 0x00000008
	PipelineStageFragmentShader        PipelineStage = 0x00000080
	PipelineStageEarlyFragmentTests    PipelineStage = 0x00000100
	PipelineStageLateFragmentTests     PipelineStage = 0x00000200
	PipelineStageColorAttachmentOutput PipelineStage = 0x00000400
	PipelineStageComputeShader         PipelineStage = 0x00000800
	PipelineStageTransfer              PipelineStage = 0x00001000
	PipelineStageBottomOfPipe          PipelineStage = 0x00002000
	PipelineStageHost                  PipelineStage = 0x00004000
	PipelineStageAllGraphics           PipelineStage = 0x00008000
	PipelineStageAllCommands           PipelineStage = 0x00010000
)

var pipelineStageNames = []struct {
	bit  PipelineStage
	name string
}{
	{PipelineStageTopOfPipe, "TopOfPipe"},
	{PipelineStageDrawIndirect, "DrawIndirect"},
	{PipelineStageVertexInput, "VertexInput"},
	{PipelineStageVertexShader, "VertexShader"},
	{PipelineStageFragmentShader, "FragmentShader"},
	{PipelineStageEarlyFragmentTests, "EarlyFragmentTests"},
	{PipelineStageLateFragmentTests, "LateFragmentTests"},
	{PipelineStageColorAttachmentOutput, "ColorAttachmentOutput"},
	{PipelineStageComputeShader, "ComputeShader"},
	{PipelineStageTransfer, "Transfer"},
	{PipelineStageBottomOfPipe, "BottomOfPipe"},
	{PipelineStageHost, "Host"},
	{PipelineStageAllGraphics, "AllGraphics"},
	{PipelineStageAllCommands, "AllCommands"},
}

func (s PipelineStage) String() string {
	if s == PipelineStageNone {
		return "None"
	}
	var names []string
	rest := s
	for _, n := range pipelineStageNames {
		if s&n.bit != 0 {
			names = append(names, n.name)
			rest &^= n.bit
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("%#x", uint32(rest)))
	}
	return "{ " + strings.Join(names, " | ") + " }"
}

type Access uint32

const (
	AccessNone                        Access = 0
	AccessShaderRead                  Access = 0x00000020
	AccessShaderWrite                 Access = 0x00000040
	AccessColorAttachmentRead         Access = 0x00000080
	AccessColorAttachmentWrite        Access = 0x00000100
	AccessDepthStencilAttachmentRead  Access = 0x00000200
	AccessDepthStencilAttachmentWrite Access = 0x00000400
	AccessTransferRead                Access = 0x00000800
	AccessTransferWrite               Access = 0x00001000
)

type ImageLayout int32

const (
	ImageLayoutUndefined                     ImageLayout = 0
	ImageLayoutGeneral                       ImageLayout = 1
	ImageLayoutColorAttachmentOptimal        ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal ImageLayout = 3
	ImageLayoutDepthStencilReadOnlyOptimal   ImageLayout = 4
	ImageLayoutShaderReadOnlyOptimal         ImageLayout = 5
	ImageLayoutTransferSrcOptimal            ImageLayout = 6
	ImageLayoutTransferDstOptimal            ImageLayout = 7
	ImageLayoutDepthAttachmentOptimal        ImageLayout = 1000241000
	ImageLayoutPresentSrc                    ImageLayout = 1000001002
)

type ImageAspect uint32

const (
	ImageAspectNone    ImageAspect = 0
	ImageAspectColor   ImageAspect = 0x1
	ImageAspectDepth   ImageAspect = 0x2
	ImageAspectStencil ImageAspect = 0x4
)

type DependencyFlags uint32

const DependencyByRegion DependencyFlags = 0x1

type LoadOp int32

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

type StoreOp int32

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

type ResolveMode uint32

const (
	ResolveModeNone       ResolveMode = 0
	ResolveModeSampleZero ResolveMode = 0x1
	ResolveModeAverage    ResolveMode = 0x2
)

const (
	RemainingMipLevels   = ^uint32(0)
	RemainingArrayLayers = ^uint32(0)
)

// ClearValue holds either a color (RGBA) or a depth/stencil pair.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

type Offset2D struct {
	X, Y int32
}

type Extent2D struct {
	Width, Height uint32
}

type Rect2D struct {
	Offset Offset2D
	Extent Extent2D
}

type SubresourceRange struct {
	AspectMask     ImageAspect
	BaseMipLevel   uint32
	LevelCount     uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

// ImageBarrier is an image memory barrier without a queue family transfer.
type ImageBarrier struct {
	SrcAccess Access
	DstAccess Access
	OldLayout ImageLayout
	NewLayout ImageLayout
	Image     Handle
	Range     SubresourceRange
}

// RenderingInfo describes a dynamic rendering pass.
type RenderingInfo struct {
	Area             Rect2D
	LayerCount       uint32
	ColorAttachments []RenderingAttachment
	Depth            *RenderingAttachment
	Stencil          *RenderingAttachment
}

// Checkpoint is a diagnostic marker reported by the queue after device loss.
type Checkpoint struct {
	Stage  PipelineStage
	Marker uint64
}
