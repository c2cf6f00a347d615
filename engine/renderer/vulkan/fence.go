package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-quad/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

// NewFence creates a fence, optionally already signaled so the first wait
// of the frame loop returns at once.
func NewFence(context *VulkanContext, signaled bool) (*VulkanFence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var handle vk.Fence
	if err := check(vk.CreateFence(context.Device.LogicalDevice, &info, context.Allocator, &handle), "vkCreateFence"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return &VulkanFence{Handle: handle, IsSignaled: signaled}, nil
}

func (vf *VulkanFence) Destroy(context *VulkanContext) {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(context.Device.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

// Wait blocks until the fence is signaled or the timeout expires.
func (vf *VulkanFence) Wait(context *VulkanContext, timeoutNs uint64) error {
	if vf.IsSignaled {
		return nil
	}
	result := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("fence wait timed out")
	default:
		core.LogError("fence wait failed: %s", ResultString(result))
	}
	return fmt.Errorf("vkWaitForFences: %s", ResultString(result))
}

func (vf *VulkanFence) Reset(context *VulkanContext) error {
	if !vf.IsSignaled {
		return nil
	}
	if err := check(vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}), "vkResetFences"); err != nil {
		core.LogError(err.Error())
		return err
	}
	vf.IsSignaled = false
	return nil
}
