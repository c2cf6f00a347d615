package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-quad/engine/core"
)

// VulkanRenderpass clears the back buffer color and the depth-stencil
// attachment on begin and leaves the color image ready to present.
type VulkanRenderpass struct {
	Handle     vk.RenderPass
	X, Y, W, H float32
	Color      [4]float32
	Depth      float32
	Stencil    uint32
}

func RenderpassCreate(context *VulkanContext, colorFormat, depthFormat vk.Format) (*VulkanRenderpass, error) {
	rp := &VulkanRenderpass{Depth: 1}

	attachments := []vk.AttachmentDescription{
		{
			Format:         colorFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		},
		{
			Format:         depthFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpClear,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}

	depthRef := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{
			{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal},
		},
		PDepthStencilAttachment: &depthRef,
	}

	stages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit)
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  stages,
		DstStageMask:  stages,
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}

	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	if err := check(vk.CreateRenderPass(context.Device.LogicalDevice, &info, context.Allocator, &rp.Handle), "vkCreateRenderPass"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return rp, nil
}

func (vr *VulkanRenderpass) Destroy(context *VulkanContext) {
	if vr.Handle != vk.NullRenderPass {
		vk.DestroyRenderPass(context.Device.LogicalDevice, vr.Handle, context.Allocator)
		vr.Handle = vk.NullRenderPass
	}
}

func (vr *VulkanRenderpass) Begin(cmd *VulkanCommandBuffer, framebuffer vk.Framebuffer) {
	info := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: int32(vr.X), Y: int32(vr.Y)},
			Extent: vk.Extent2D{Width: uint32(vr.W), Height: uint32(vr.H)},
		},
		ClearValueCount: 2,
		PClearValues: []vk.ClearValue{
			vk.NewClearValue(vr.Color[:]),
			vk.NewClearDepthStencil(vr.Depth, vr.Stencil),
		},
	}
	vk.CmdBeginRenderPass(cmd.Handle, &info, vk.SubpassContentsInline)
	cmd.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (vr *VulkanRenderpass) End(cmd *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(cmd.Handle)
	cmd.State = COMMAND_BUFFER_STATE_RECORDING
}
