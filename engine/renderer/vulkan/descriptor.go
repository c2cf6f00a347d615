package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/renderer"
)

// maxDrawsPerFrame bounds the descriptor sets handed out between two Clears.
const maxDrawsPerFrame = 64

func descriptorType(kind renderer.BindingKind) vk.DescriptorType {
	if kind == renderer.BindingTexture {
		return vk.DescriptorTypeCombinedImageSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func shaderStage(stage renderer.ShaderStage) vk.ShaderStageFlags {
	if stage == renderer.ShaderStagePixel {
		return vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	}
	return vk.ShaderStageFlags(vk.ShaderStageVertexBit)
}

func layoutBindings(bindings []renderer.ResourceBinding) []vk.DescriptorSetLayoutBinding {
	out := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		out[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  descriptorType(b.Kind),
			DescriptorCount: 1,
			StageFlags:      shaderStage(b.Stage),
		}
	}
	return out
}

// poolSizes sizes a pool for sets sets of the given layout.
func poolSizes(bindings []renderer.ResourceBinding, sets uint32) []vk.DescriptorPoolSize {
	counts := map[vk.DescriptorType]uint32{}
	var order []vk.DescriptorType
	for _, b := range bindings {
		t := descriptorType(b.Kind)
		if _, ok := counts[t]; !ok {
			order = append(order, t)
		}
		counts[t] += sets
	}
	out := make([]vk.DescriptorPoolSize, len(order))
	for i, t := range order {
		out[i] = vk.DescriptorPoolSize{Type: t, DescriptorCount: counts[t]}
	}
	return out
}

func createDescriptorSetLayout(context *VulkanContext, bindings []renderer.ResourceBinding) (vk.DescriptorSetLayout, error) {
	lb := layoutBindings(bindings)
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(lb)),
		PBindings:    lb,
	}
	var layout vk.DescriptorSetLayout
	if err := check(vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &info, context.Allocator, &layout), "vkCreateDescriptorSetLayout"); err != nil {
		core.LogError(err.Error())
		return vk.NullDescriptorSetLayout, err
	}
	return layout, nil
}

// VulkanDescriptorPool hands out one set per draw. It is reset at the start
// of every frame, after the previous frame's fence was waited on.
type VulkanDescriptorPool struct {
	Handle vk.DescriptorPool
	used   uint32
}

func DescriptorPoolCreate(context *VulkanContext, bindings []renderer.ResourceBinding) (*VulkanDescriptorPool, error) {
	sizes := poolSizes(bindings, maxDrawsPerFrame)
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxDrawsPerFrame,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	pool := &VulkanDescriptorPool{}
	if err := check(vk.CreateDescriptorPool(context.Device.LogicalDevice, &info, context.Allocator, &pool.Handle), "vkCreateDescriptorPool"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return pool, nil
}

func (dp *VulkanDescriptorPool) Reset(context *VulkanContext) error {
	dp.used = 0
	return check(vk.ResetDescriptorPool(context.Device.LogicalDevice, dp.Handle, 0), "vkResetDescriptorPool")
}

func (dp *VulkanDescriptorPool) Allocate(context *VulkanContext, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	if dp.used >= maxDrawsPerFrame {
		return vk.NullDescriptorSet, check(vk.ErrorOutOfPoolMemory, "vkAllocateDescriptorSets")
	}
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     dp.Handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	var set vk.DescriptorSet
	if err := check(vk.AllocateDescriptorSets(context.Device.LogicalDevice, &info, &set), "vkAllocateDescriptorSets"); err != nil {
		return vk.NullDescriptorSet, err
	}
	dp.used++
	return set, nil
}

func (dp *VulkanDescriptorPool) Destroy(context *VulkanContext) {
	if dp.Handle != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(context.Device.LogicalDevice, dp.Handle, context.Allocator)
		dp.Handle = vk.NullDescriptorPool
	}
}

// descriptorResources is what a draw has bound per binding number.
type descriptorResources struct {
	buffers  map[uint32]*VulkanBuffer
	textures map[uint32]*VulkanImage
	samplers map[uint32]vk.Sampler
}

// writes builds the descriptor writes for a set. It reports the first
// binding that has nothing bound.
func (r descriptorResources) writes(set vk.DescriptorSet, bindings []renderer.ResourceBinding) ([]vk.WriteDescriptorSet, *renderer.ResourceBinding) {
	out := make([]vk.WriteDescriptorSet, 0, len(bindings))
	for i, b := range bindings {
		w := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      b.Binding,
			DescriptorCount: 1,
			DescriptorType:  descriptorType(b.Kind),
		}
		switch b.Kind {
		case renderer.BindingTexture:
			img, sampler := r.textures[b.Binding], r.samplers[b.Binding]
			if img == nil || sampler == vk.NullSampler {
				return nil, &bindings[i]
			}
			w.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     sampler,
				ImageView:   img.View,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}}
		default:
			buf := r.buffers[b.Binding]
			if buf == nil {
				return nil, &bindings[i]
			}
			w.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: buf.Handle,
				Range:  vk.DeviceSize(buf.Size),
			}}
		}
		out = append(out, w)
	}
	return out, nil
}
