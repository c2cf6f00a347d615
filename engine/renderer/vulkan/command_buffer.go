package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-quad/engine/core"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_NOT_ALLOCATED VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_READY
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	State  VulkanCommandBufferState
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool, primary bool) (*VulkanCommandBuffer, error) {
	level := vk.CommandBufferLevelSecondary
	if primary {
		level = vk.CommandBufferLevelPrimary
	}

	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	if err := check(vk.AllocateCommandBuffers(context.Device.LogicalDevice, &info, handles), "vkAllocateCommandBuffers"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return &VulkanCommandBuffer{Handle: handles[0], State: COMMAND_BUFFER_STATE_READY}, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	if v.State == COMMAND_BUFFER_STATE_NOT_ALLOCATED {
		return
	}
	vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(singleUse, renderpassContinue, simultaneousUse bool) error {
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if singleUse {
		info.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if renderpassContinue {
		info.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if simultaneousUse {
		info.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if err := check(vk.BeginCommandBuffer(v.Handle, &info), "vkBeginCommandBuffer"); err != nil {
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if err := check(vk.EndCommandBuffer(v.Handle), "vkEndCommandBuffer"); err != nil {
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

// Reset returns the buffer to the ready state so it can be recorded again.
func (v *VulkanCommandBuffer) Reset() error {
	if err := check(vk.ResetCommandBuffer(v.Handle, 0), "vkResetCommandBuffer"); err != nil {
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

// AllocateAndBeginSingleUse allocates a primary command buffer and starts
// recording a one-time submission.
func AllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context, pool, true)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true, false, false); err != nil {
		cb.Free(context, pool)
		return nil, err
	}
	return cb, nil
}

// EndSingleUse submits the buffer, waits for the queue to drain and frees it.
func (v *VulkanCommandBuffer) EndSingleUse(context *VulkanContext, pool vk.CommandPool, queue vk.Queue) error {
	defer v.Free(context, pool)

	if err := v.End(); err != nil {
		return err
	}

	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}
	if err := check(vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submit}, vk.NullFence), "vkQueueSubmit"); err != nil {
		core.LogError(err.Error())
		return err
	}
	if err := check(vk.QueueWaitIdle(queue), "vkQueueWaitIdle"); err != nil {
		core.LogError(err.Error())
		return err
	}
	return nil
}
