package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// VulkanContext holds the device level objects shared by the backend parts.
type VulkanContext struct {
	// The framebuffer's current size.
	FramebufferWidth  uint32
	FramebufferHeight uint32
	// Bumped on every resize. When it does not match the generation the
	// swapchain was built with, the swapchain is recreated.
	FramebufferSizeGeneration     uint64
	FramebufferSizeLastGeneration uint64

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugCallback vk.DebugReportCallback

	Device *VulkanDevice

	Swapchain      *VulkanSwapchain
	MainRenderpass *VulkanRenderpass

	// One frame in flight: a single command buffer, fence and semaphore pair.
	GraphicsCommandBuffer   *VulkanCommandBuffer
	ImageAvailableSemaphore vk.Semaphore
	QueueCompleteSemaphore  vk.Semaphore
	InFlightFence           *VulkanFence

	ImageIndex          uint32
	RecreatingSwapchain bool
}

// findMemoryIndex returns the first memory type allowed by typeFilter that
// has all the requested property flags.
func (vc *VulkanContext) findMemoryIndex(typeFilter uint32, flags vk.MemoryPropertyFlags) (uint32, error) {
	var props vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &props)
	props.Deref()

	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		props.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && props.MemoryTypes[i].PropertyFlags&flags == flags {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no memory type for filter %#x with flags %#x", typeFilter, uint32(flags))
}
