package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-quad/engine/core"
)

type VulkanFramebuffer struct {
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	Renderpass  *VulkanRenderpass
}

func FramebufferCreate(context *VulkanContext, renderpass *VulkanRenderpass, width, height uint32, attachments []vk.ImageView) (*VulkanFramebuffer, error) {
	fb := &VulkanFramebuffer{
		Attachments: append([]vk.ImageView(nil), attachments...),
		Renderpass:  renderpass,
	}

	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(fb.Attachments)),
		PAttachments:    fb.Attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}
	if err := check(vk.CreateFramebuffer(context.Device.LogicalDevice, &info, context.Allocator, &fb.Handle), "vkCreateFramebuffer"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return fb, nil
}

func (vfb *VulkanFramebuffer) Destroy(context *VulkanContext) {
	vk.DestroyFramebuffer(context.Device.LogicalDevice, vfb.Handle, context.Allocator)
	vfb.Handle = vk.NullFramebuffer
	vfb.Attachments = nil
	vfb.Renderpass = nil
}
