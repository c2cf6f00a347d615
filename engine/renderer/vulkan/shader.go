package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/renderer"
)

const spirvMagic = 0x07230203

// validateSPIRV checks the header word of a SPIR-V module.
func validateSPIRV(code []uint32) error {
	if len(code) < 5 {
		return fmt.Errorf("spir-v module of %d words is too short: %w", len(code), core.ErrShaderCompile)
	}
	if code[0] != spirvMagic {
		return fmt.Errorf("bad spir-v magic %#08x: %w", code[0], core.ErrShaderCompile)
	}
	return nil
}

// VulkanShaderProgram is the vertex and pixel module pair plus the layout
// every pipeline variant built from it shares.
type VulkanShaderProgram struct {
	Name           string
	Vertex         vk.ShaderModule
	Pixel          vk.ShaderModule
	Attributes     []renderer.VertexAttribute
	Stride         uint32
	Bindings       []renderer.ResourceBinding
	SetLayout      vk.DescriptorSetLayout
	PipelineLayout vk.PipelineLayout
	Descriptors    *VulkanDescriptorPool
}

func createShaderModule(context *VulkanContext, code []uint32) (vk.ShaderModule, error) {
	if err := validateSPIRV(code); err != nil {
		return vk.NullShaderModule, err
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if err := check(vk.CreateShaderModule(context.Device.LogicalDevice, &info, context.Allocator, &module), "vkCreateShaderModule"); err != nil {
		return vk.NullShaderModule, fmt.Errorf("%w: %w", core.ErrShaderCompile, err)
	}
	return module, nil
}

func ShaderProgramCreate(context *VulkanContext, desc renderer.ShaderProgramDesc) (*VulkanShaderProgram, error) {
	p := &VulkanShaderProgram{
		Name:       desc.Name,
		Attributes: desc.Attributes,
		Stride:     desc.Stride,
		Bindings:   desc.Bindings,
	}

	var err error
	if p.Vertex, err = createShaderModule(context, desc.VertexCode); err != nil {
		return nil, fmt.Errorf("vertex shader: %w", err)
	}
	if p.Pixel, err = createShaderModule(context, desc.PixelCode); err != nil {
		p.Destroy(context)
		return nil, fmt.Errorf("pixel shader: %w", err)
	}
	if p.SetLayout, err = createDescriptorSetLayout(context, desc.Bindings); err != nil {
		p.Destroy(context)
		return nil, err
	}
	if p.Descriptors, err = DescriptorPoolCreate(context, desc.Bindings); err != nil {
		p.Destroy(context)
		return nil, err
	}

	info := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{p.SetLayout},
	}
	if err := check(vk.CreatePipelineLayout(context.Device.LogicalDevice, &info, context.Allocator, &p.PipelineLayout), "vkCreatePipelineLayout"); err != nil {
		p.Destroy(context)
		return nil, err
	}
	return p, nil
}

func (p *VulkanShaderProgram) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if p.Descriptors != nil {
		p.Descriptors.Destroy(context)
		p.Descriptors = nil
	}
	if p.PipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(device, p.PipelineLayout, context.Allocator)
		p.PipelineLayout = vk.NullPipelineLayout
	}
	if p.SetLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(device, p.SetLayout, context.Allocator)
		p.SetLayout = vk.NullDescriptorSetLayout
	}
	for _, m := range []*vk.ShaderModule{&p.Vertex, &p.Pixel} {
		if *m != vk.NullShaderModule {
			vk.DestroyShaderModule(device, *m, context.Allocator)
			*m = vk.NullShaderModule
		}
	}
}
