package vulkan

import (
	"fmt"
	"sort"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-quad/engine/core"
)

const portabilitySubsetExtensionName = "VK_KHR_portability_subset"

type VulkanDevice struct {
	PhysicalDevice   vk.PhysicalDevice
	LogicalDevice    vk.Device
	SwapchainSupport VulkanSwapchainSupportInfo

	// -1 until a family was found.
	GraphicsQueueIndex int32
	PresentQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format

	SamplerAnisotropy bool
	FillModeNonSolid  bool
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// deviceTypeRank orders the candidates: discrete, integrated, virtual, CPU
// and finally anything else.
func deviceTypeRank(t vk.PhysicalDeviceType) int {
	switch t {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return 0
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return 1
	case vk.PhysicalDeviceTypeVirtualGpu:
		return 2
	case vk.PhysicalDeviceTypeCpu:
		return 3
	}
	return 4
}

func deviceTypeName(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	}
	return "unknown"
}

// pickQueueFamilies returns the graphics and present family indices, -1 when
// missing. A family that can do both wins over two separate ones.
func pickQueueFamilies(graphics, present []bool) (int32, int32) {
	g, p := int32(-1), int32(-1)
	for i := range graphics {
		if graphics[i] && present[i] {
			return int32(i), int32(i)
		}
		if graphics[i] && g < 0 {
			g = int32(i)
		}
		if present[i] && p < 0 {
			p = int32(i)
		}
	}
	return g, p
}

type deviceCandidate struct {
	handle     vk.PhysicalDevice
	properties vk.PhysicalDeviceProperties
	features   vk.PhysicalDeviceFeatures
	graphics   int32
	present    int32
	support    VulkanSwapchainSupportInfo
}

func (c deviceCandidate) name() string {
	return cString(c.properties.DeviceName[:])
}

// DeviceCreate picks the best physical device, then creates the logical
// device, its queues and the graphics command pool.
func DeviceCreate(context *VulkanContext) error {
	candidate, err := selectPhysicalDevice(context)
	if err != nil {
		return err
	}

	d := &VulkanDevice{
		PhysicalDevice:     candidate.handle,
		SwapchainSupport:   candidate.support,
		GraphicsQueueIndex: candidate.graphics,
		PresentQueueIndex:  candidate.present,
		Properties:         candidate.properties,
		Features:           candidate.features,
		SamplerAnisotropy:  candidate.features.SamplerAnisotropy == vk.True,
		FillModeNonSolid:   candidate.features.FillModeNonSolid == vk.True,
	}
	vk.GetPhysicalDeviceMemoryProperties(d.PhysicalDevice, &d.Memory)
	d.Memory.Deref()
	context.Device = d

	core.LogInfo("Selected device: '%s' (%s).", candidate.name(), deviceTypeName(candidate.properties.DeviceType))
	core.LogDebug("Vulkan API version: %d.%d.%d",
		vk.Version(d.Properties.ApiVersion).Major(),
		vk.Version(d.Properties.ApiVersion).Minor(),
		vk.Version(d.Properties.ApiVersion).Patch())

	families := []uint32{uint32(d.GraphicsQueueIndex)}
	if d.PresentQueueIndex != d.GraphicsQueueIndex {
		families = append(families, uint32(d.PresentQueueIndex))
	}
	queueInfos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, family := range families {
		queueInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	features := vk.PhysicalDeviceFeatures{}
	if d.SamplerAnisotropy {
		features.SamplerAnisotropy = vk.True
	}
	if d.FillModeNonSolid {
		features.FillModeNonSolid = vk.True
	}

	extensions := []string{vk.KhrSwapchainExtensionName}
	available, err := deviceExtensions(d.PhysicalDevice)
	if err != nil {
		return err
	}
	if containsName(available, portabilitySubsetExtensionName) {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtensionName)
		extensions = append(extensions, portabilitySubsetExtensionName)
	}

	info := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}
	if err := check(vk.CreateDevice(d.PhysicalDevice, &info, context.Allocator, &d.LogicalDevice), "vkCreateDevice"); err != nil {
		core.LogError(err.Error())
		return fmt.Errorf("%w: %w", core.ErrCreationFailed, err)
	}
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(d.LogicalDevice, uint32(d.GraphicsQueueIndex), 0, &d.GraphicsQueue)
	vk.GetDeviceQueue(d.LogicalDevice, uint32(d.PresentQueueIndex), 0, &d.PresentQueue)

	pool := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(d.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if err := check(vk.CreateCommandPool(d.LogicalDevice, &pool, context.Allocator, &d.GraphicsCommandPool), "vkCreateCommandPool"); err != nil {
		core.LogError(err.Error())
		return err
	}

	if err := d.detectDepthFormat(); err != nil {
		return err
	}
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	d := context.Device
	if d == nil {
		return
	}
	if d.GraphicsCommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(d.LogicalDevice, d.GraphicsCommandPool, context.Allocator)
		d.GraphicsCommandPool = vk.NullCommandPool
	}
	if d.LogicalDevice != nil {
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(d.LogicalDevice, context.Allocator)
		d.LogicalDevice = nil
	}
	d.GraphicsQueue = nil
	d.PresentQueue = nil
	d.PhysicalDevice = nil
	d.GraphicsQueueIndex = -1
	d.PresentQueueIndex = -1
	context.Device = nil
}

func selectPhysicalDevice(context *VulkanContext) (*deviceCandidate, error) {
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(context.Instance, &count, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("no devices which support Vulkan were found: %w", core.ErrCreationFailed)
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(context.Instance, &count, devices), "vkEnumeratePhysicalDevices"); err != nil {
		return nil, err
	}

	var candidates []*deviceCandidate
	for _, device := range devices {
		if c := inspectDevice(device, context.Surface); c != nil {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no physical device meets the requirements: %w", core.ErrCreationFailed)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return deviceTypeRank(candidates[i].properties.DeviceType) < deviceTypeRank(candidates[j].properties.DeviceType)
	})
	return candidates[0], nil
}

// inspectDevice returns nil when the device cannot render to the surface.
func inspectDevice(device vk.PhysicalDevice, surface vk.Surface) *deviceCandidate {
	c := &deviceCandidate{handle: device}
	vk.GetPhysicalDeviceProperties(device, &c.properties)
	c.properties.Deref()
	vk.GetPhysicalDeviceFeatures(device, &c.features)
	c.features.Deref()

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, families)

	graphics := make([]bool, familyCount)
	present := make([]bool, familyCount)
	for i := range families {
		families[i].Deref()
		graphics[i] = families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
		var supported vk.Bool32
		if vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supported) == vk.Success {
			present[i] = supported == vk.True
		}
	}
	c.graphics, c.present = pickQueueFamilies(graphics, present)
	if c.graphics < 0 || c.present < 0 {
		core.LogInfo("Device '%s' has no graphics or present queue, skipping.", c.name())
		return nil
	}

	extensions, err := deviceExtensions(device)
	if err != nil || !containsName(extensions, vk.KhrSwapchainExtensionName) {
		core.LogInfo("Device '%s' has no swapchain support, skipping.", c.name())
		return nil
	}

	support, err := DeviceQuerySwapchainSupport(device, surface)
	if err != nil || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		core.LogInfo("Device '%s' cannot present to the surface, skipping.", c.name())
		return nil
	}
	c.support = support
	return c
}

func deviceExtensions(device vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := check(vk.EnumerateDeviceExtensionProperties(device, "", &count, nil), "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, count)
	if count > 0 {
		if err := check(vk.EnumerateDeviceExtensionProperties(device, "", &count, props), "vkEnumerateDeviceExtensionProperties"); err != nil {
			return nil, err
		}
	}
	names := make([]string, len(props))
	for i := range props {
		props[i].Deref()
		names[i] = cString(props[i].ExtensionName[:])
	}
	return names, nil
}

func DeviceQuerySwapchainSupport(device vk.PhysicalDevice, surface vk.Surface) (VulkanSwapchainSupportInfo, error) {
	var info VulkanSwapchainSupportInfo
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(device, surface, &info.Capabilities), "vkGetPhysicalDeviceSurfaceCapabilities"); err != nil {
		return info, err
	}
	info.Capabilities.Deref()
	info.Capabilities.CurrentExtent.Deref()
	info.Capabilities.MinImageExtent.Deref()
	info.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, nil), "vkGetPhysicalDeviceSurfaceFormats"); err != nil {
		return info, err
	}
	if formatCount > 0 {
		info.Formats = make([]vk.SurfaceFormat, formatCount)
		if err := check(vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, info.Formats), "vkGetPhysicalDeviceSurfaceFormats"); err != nil {
			return info, err
		}
		for i := range info.Formats {
			info.Formats[i].Deref()
		}
	}

	var modeCount uint32
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &modeCount, nil), "vkGetPhysicalDeviceSurfacePresentModes"); err != nil {
		return info, err
	}
	if modeCount > 0 {
		info.PresentModes = make([]vk.PresentMode, modeCount)
		if err := check(vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &modeCount, info.PresentModes), "vkGetPhysicalDeviceSurfacePresentModes"); err != nil {
			return info, err
		}
	}
	return info, nil
}

// depthFormats are tried in order, the packed 24 bit depth with 8 bit
// stencil first.
var depthFormats = []vk.Format{
	vk.FormatD24UnormS8Uint,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD32Sfloat,
}

func (d *VulkanDevice) detectDepthFormat() error {
	want := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, format := range depthFormats {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.PhysicalDevice, format, &props)
		props.Deref()
		if props.OptimalTilingFeatures&want == want {
			d.DepthFormat = format
			return nil
		}
	}
	d.DepthFormat = vk.FormatUndefined
	return fmt.Errorf("no supported depth format: %w", core.ErrCreationFailed)
}

// hasStencil reports whether the depth format carries a stencil aspect.
func hasStencil(format vk.Format) bool {
	return format == vk.FormatD24UnormS8Uint || format == vk.FormatD32SfloatS8Uint
}
