package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-quad/engine/core"
)

// VulkanBuffer is host visible, coherent memory that stays mapped for its
// whole life, so updates are plain copies.
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
	Usage  vk.BufferUsageFlags
	mapped unsafe.Pointer
}

func BufferCreate(context *VulkanContext, size uint64, usage vk.BufferUsageFlags) (*VulkanBuffer, error) {
	buf := &VulkanBuffer{Size: size, Usage: usage}
	device := context.Device.LogicalDevice

	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	if err := check(vk.CreateBuffer(device, &info, context.Allocator, &buf.Handle), "vkCreateBuffer"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, buf.Handle, &reqs)
	reqs.Deref()

	flags := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	index, err := context.findMemoryIndex(reqs.MemoryTypeBits, flags)
	if err != nil {
		buf.Destroy(context)
		return nil, fmt.Errorf("buffer memory: %w", err)
	}
	alloc := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}
	if err := check(vk.AllocateMemory(device, &alloc, context.Allocator, &buf.Memory), "vkAllocateMemory"); err != nil {
		core.LogError(err.Error())
		buf.Destroy(context)
		return nil, err
	}
	if err := check(vk.BindBufferMemory(device, buf.Handle, buf.Memory, 0), "vkBindBufferMemory"); err != nil {
		buf.Destroy(context)
		return nil, err
	}
	if err := check(vk.MapMemory(device, buf.Memory, 0, vk.DeviceSize(size), 0, &buf.mapped), "vkMapMemory"); err != nil {
		buf.Destroy(context)
		return nil, err
	}
	return buf, nil
}

// Write copies data to the start of the buffer.
func (vb *VulkanBuffer) Write(data []byte) error {
	if uint64(len(data)) > vb.Size {
		return fmt.Errorf("write of %d bytes into a %d byte buffer: %w", len(data), vb.Size, core.ErrInvalidHandle)
	}
	if len(data) == 0 {
		return nil
	}
	vk.Memcopy(vb.mapped, data)
	return nil
}

func (vb *VulkanBuffer) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if vb.mapped != nil {
		vk.UnmapMemory(device, vb.Memory)
		vb.mapped = nil
	}
	if vb.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, vb.Memory, context.Allocator)
		vb.Memory = vk.NullDeviceMemory
	}
	if vb.Handle != vk.NullBuffer {
		vk.DestroyBuffer(device, vb.Handle, context.Allocator)
		vb.Handle = vk.NullBuffer
	}
}
