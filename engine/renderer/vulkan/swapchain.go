package vulkan

import (
	"fmt"
	stdmath "math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/math"
)

type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
	Handle      vk.Swapchain
	Images      []vk.Image
	Views       []vk.ImageView

	DepthAttachment *VulkanImage
	Framebuffers    []*VulkanFramebuffer
}

// chooseSurfaceFormat prefers RGBA8, then its BGRA equivalent, then
// whatever the surface lists first.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, want := range []vk.Format{vk.FormatR8g8b8a8Unorm, vk.FormatB8g8r8a8Unorm} {
		for _, f := range formats {
			if f.Format == want && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
				return f
			}
		}
	}
	return formats[0]
}

// choosePresentMode picks the mode closest to presenting without a sync
// interval. FIFO is always available.
func choosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, want := range []vk.PresentMode{vk.PresentModeImmediate, vk.PresentModeMailbox} {
		for _, m := range modes {
			if m == want {
				return m
			}
		}
	}
	return vk.PresentModeFifo
}

func chooseExtent(caps vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != stdmath.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  math.Clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: math.Clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// chooseImageCount honours the requested back buffer count within the
// surface limits. A max of zero means unlimited.
func chooseImageCount(caps vk.SurfaceCapabilities, requested uint32) uint32 {
	count := requested
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func SwapchainCreate(context *VulkanContext, width, height, backBuffers uint32) (*VulkanSwapchain, error) {
	device := context.Device
	support, err := DeviceQuerySwapchainSupport(device.PhysicalDevice, context.Surface)
	if err != nil {
		return nil, err
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return nil, fmt.Errorf("surface lost its formats: %w", core.ErrCreationFailed)
	}
	device.SwapchainSupport = support
	caps := support.Capabilities

	sc := &VulkanSwapchain{
		ImageFormat: chooseSurfaceFormat(support.Formats),
		PresentMode: choosePresentMode(support.PresentModes),
		Extent:      chooseExtent(caps, width, height),
	}

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    chooseImageCount(caps, backBuffers),
		ImageFormat:      sc.ImageFormat.Format,
		ImageColorSpace:  sc.ImageFormat.ColorSpace,
		ImageExtent:      sc.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      sc.PresentMode,
		Clipped:          vk.True,
	}
	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = 2
		info.PQueueFamilyIndices = []uint32{uint32(device.GraphicsQueueIndex), uint32(device.PresentQueueIndex)}
	}

	if err := check(vk.CreateSwapchain(device.LogicalDevice, &info, context.Allocator, &sc.Handle), "vkCreateSwapchain"); err != nil {
		core.LogError(err.Error())
		return nil, fmt.Errorf("%w: %w", core.ErrCreationFailed, err)
	}

	var count uint32
	if err := check(vk.GetSwapchainImages(device.LogicalDevice, sc.Handle, &count, nil), "vkGetSwapchainImages"); err != nil {
		sc.Destroy(context)
		return nil, err
	}
	sc.Images = make([]vk.Image, count)
	if err := check(vk.GetSwapchainImages(device.LogicalDevice, sc.Handle, &count, sc.Images), "vkGetSwapchainImages"); err != nil {
		sc.Destroy(context)
		return nil, err
	}

	sc.Views = make([]vk.ImageView, 0, count)
	for _, image := range sc.Images {
		view := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   sc.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		var handle vk.ImageView
		if err := check(vk.CreateImageView(device.LogicalDevice, &view, context.Allocator, &handle), "vkCreateImageView"); err != nil {
			sc.Destroy(context)
			return nil, err
		}
		sc.Views = append(sc.Views, handle)
	}

	aspect := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	if hasStencil(device.DepthFormat) {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	depth, err := ImageCreate(context, sc.Extent.Width, sc.Extent.Height, device.DepthFormat,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit), aspect)
	if err != nil {
		sc.Destroy(context)
		return nil, err
	}
	sc.DepthAttachment = depth

	core.LogInfo("Swapchain created: %dx%d, %d images.", sc.Extent.Width, sc.Extent.Height, len(sc.Images))
	return sc, nil
}

// RegenerateFramebuffers builds one framebuffer per swapchain image, each
// sharing the depth attachment.
func (vs *VulkanSwapchain) RegenerateFramebuffers(context *VulkanContext, renderpass *VulkanRenderpass) error {
	vs.destroyFramebuffers(context)
	for _, view := range vs.Views {
		fb, err := FramebufferCreate(context, renderpass, vs.Extent.Width, vs.Extent.Height,
			[]vk.ImageView{view, vs.DepthAttachment.View})
		if err != nil {
			return err
		}
		vs.Framebuffers = append(vs.Framebuffers, fb)
	}
	return nil
}

func (vs *VulkanSwapchain) destroyFramebuffers(context *VulkanContext) {
	for _, fb := range vs.Framebuffers {
		fb.Destroy(context)
	}
	vs.Framebuffers = nil
}

// AcquireNextImageIndex returns core.ErrSwapchainBooting when the swapchain no
// longer matches the surface and has to be rebuilt before rendering.
func (vs *VulkanSwapchain) AcquireNextImageIndex(context *VulkanContext, timeoutNs uint64, imageAvailable vk.Semaphore) (uint32, error) {
	var index uint32
	result := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNs, imageAvailable, vk.NullFence, &index)
	switch result {
	case vk.Success, vk.Suboptimal:
		return index, nil
	case vk.ErrorOutOfDate:
		return 0, core.ErrSwapchainBooting
	}
	err := fmt.Errorf("vkAcquireNextImage: %s", ResultString(result))
	core.LogError(err.Error())
	return 0, err
}

// Present hands the image back to the swapchain. An out of date or
// suboptimal result reports core.ErrSwapchainBooting.
func (vs *VulkanSwapchain) Present(context *VulkanContext, renderComplete vk.Semaphore, imageIndex uint32) error {
	info := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderComplete},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	result := vk.QueuePresent(context.Device.PresentQueue, &info)
	switch result {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return core.ErrSwapchainBooting
	}
	err := fmt.Errorf("vkQueuePresent: %s", ResultString(result))
	core.LogError(err.Error())
	return err
}

func (vs *VulkanSwapchain) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	vs.destroyFramebuffers(context)
	if vs.DepthAttachment != nil {
		vs.DepthAttachment.Destroy(context)
		vs.DepthAttachment = nil
	}
	// The images belong to the swapchain, only the views are ours.
	for _, view := range vs.Views {
		vk.DestroyImageView(device, view, context.Allocator)
	}
	vs.Views = nil
	vs.Images = nil
	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(device, vs.Handle, context.Allocator)
		vs.Handle = vk.NullSwapchain
	}
}
