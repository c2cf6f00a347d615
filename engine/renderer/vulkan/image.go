package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-quad/engine/core"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Format vk.Format
}

// ImageCreate creates a 2D image with its own device memory and, when
// aspect is non-zero, a view over the whole image.
func ImageCreate(context *VulkanContext, width, height uint32, format vk.Format, usage vk.ImageUsageFlags, aspect vk.ImageAspectFlags) (*VulkanImage, error) {
	img := &VulkanImage{Width: width, Height: height, Format: format}
	device := context.Device.LogicalDevice

	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if err := check(vk.CreateImage(device, &info, context.Allocator, &img.Handle), "vkCreateImage"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, img.Handle, &reqs)
	reqs.Deref()

	index, err := context.findMemoryIndex(reqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		img.Destroy(context)
		return nil, fmt.Errorf("image memory: %w", err)
	}
	alloc := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}
	if err := check(vk.AllocateMemory(device, &alloc, context.Allocator, &img.Memory), "vkAllocateMemory"); err != nil {
		core.LogError(err.Error())
		img.Destroy(context)
		return nil, err
	}
	if err := check(vk.BindImageMemory(device, img.Handle, img.Memory, 0), "vkBindImageMemory"); err != nil {
		img.Destroy(context)
		return nil, err
	}

	if aspect != 0 {
		if err := img.createView(context, aspect); err != nil {
			img.Destroy(context)
			return nil, err
		}
	}
	return img, nil
}

func (img *VulkanImage) createView(context *VulkanContext, aspect vk.ImageAspectFlags) error {
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   img.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	if err := check(vk.CreateImageView(context.Device.LogicalDevice, &info, context.Allocator, &img.View), "vkCreateImageView"); err != nil {
		core.LogError(err.Error())
		return err
	}
	return nil
}

// TransitionLayout records a barrier moving the image between the layouts
// used by a texture upload.
func (img *VulkanImage) TransitionLayout(cmd *VulkanCommandBuffer, from, to vk.ImageLayout) error {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var src, dst vk.PipelineStageFlags
	switch {
	case from == vk.ImageLayoutUndefined && to == vk.ImageLayoutTransferDstOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		src = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dst = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case from == vk.ImageLayoutTransferDstOptimal && to == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		src = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dst = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	default:
		return fmt.Errorf("unsupported layout transition %d -> %d", from, to)
	}

	vk.CmdPipelineBarrier(cmd.Handle, src, dst, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	return nil
}

// CopyFromBuffer records a copy of tightly packed pixels into the image.
// The image must be in the transfer destination layout.
func (img *VulkanImage) CopyFromBuffer(cmd *VulkanCommandBuffer, buffer vk.Buffer) {
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: img.Width, Height: img.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cmd.Handle, buffer, img.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func (img *VulkanImage) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if img.View != vk.NullImageView {
		vk.DestroyImageView(device, img.View, context.Allocator)
		img.View = vk.NullImageView
	}
	if img.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, img.Memory, context.Allocator)
		img.Memory = vk.NullDeviceMemory
	}
	if img.Handle != vk.NullImage {
		vk.DestroyImage(device, img.Handle, context.Allocator)
		img.Handle = vk.NullImage
	}
}
