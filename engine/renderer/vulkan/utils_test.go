package vulkan

import (
	"errors"
	stdmath "math"
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/renderer"
)

func TestResultString(t *testing.T) {
	tests := []struct {
		result vk.Result
		want   string
	}{
		{vk.Success, "VK_SUCCESS"},
		{vk.ErrorOutOfDate, "VK_ERROR_OUT_OF_DATE_KHR"},
		{vk.Result(12345), "VkResult(12345)"},
	}
	for _, tt := range tests {
		if got := ResultString(tt.result); got != tt.want {
			t.Errorf("ResultString(%d) = %q, want %q", tt.result, got, tt.want)
		}
	}
	if !ResultIsSuccess(vk.Suboptimal) || ResultIsSuccess(vk.ErrorDeviceLost) {
		t.Error("ResultIsSuccess misclassifies results")
	}
	if err := check(vk.ErrorDeviceLost, "vkQueueSubmit"); err == nil || err.Error() != "vkQueueSubmit: VK_ERROR_DEVICE_LOST" {
		t.Errorf("check = %v", err)
	}
}

func TestSafeString(t *testing.T) {
	tests := map[string]string{
		"":                   "\x00",
		"VK_KHR_surface":     "VK_KHR_surface\x00",
		"VK_KHR_surface\x00": "VK_KHR_surface\x00",
		validationLayerName:  validationLayerName + "\x00",
	}
	for in, want := range tests {
		if got := safeString(in); got != want {
			t.Errorf("safeString(%q) = %q, want %q", in, got, want)
		}
	}

	name := [16]byte{}
	copy(name[:], "VK_KHR_swap")
	if got := cString(name[:]); got != "VK_KHR_swap" {
		t.Errorf("cString = %q", got)
	}
}

func TestValidateSPIRV(t *testing.T) {
	tests := []struct {
		name string
		code []uint32
		ok   bool
	}{
		{"valid header", []uint32{spirvMagic, 0x00010000, 0, 8, 0}, true},
		{"empty", nil, false},
		{"truncated", []uint32{spirvMagic}, false},
		{"wrong magic", []uint32{0x03022307, 0x00010000, 0, 8, 0}, false},
	}
	for _, tt := range tests {
		err := validateSPIRV(tt.code)
		if tt.ok && err != nil {
			t.Errorf("%s: unexpected error %s", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, core.ErrShaderCompile) {
			t.Errorf("%s: err = %v, want ErrShaderCompile", tt.name, err)
		}
	}
}

func TestChooseSurfaceFormat(t *testing.T) {
	srgb := vk.ColorSpaceSrgbNonlinear
	tests := []struct {
		name    string
		formats []vk.SurfaceFormat
		want    vk.Format
	}{
		{"rgba preferred", []vk.SurfaceFormat{{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: srgb}, {Format: vk.FormatR8g8b8a8Unorm, ColorSpace: srgb}}, vk.FormatR8g8b8a8Unorm},
		{"bgra fallback", []vk.SurfaceFormat{{Format: vk.FormatA2b10g10r10UnormPack32, ColorSpace: srgb}, {Format: vk.FormatB8g8r8a8Unorm, ColorSpace: srgb}}, vk.FormatB8g8r8a8Unorm},
		{"first listed", []vk.SurfaceFormat{{Format: vk.FormatR16g16b16a16Sfloat, ColorSpace: srgb}}, vk.FormatR16g16b16a16Sfloat},
	}
	for _, tt := range tests {
		if got := chooseSurfaceFormat(tt.formats); got.Format != tt.want {
			t.Errorf("%s: format = %d, want %d", tt.name, got.Format, tt.want)
		}
	}
}

func TestChoosePresentMode(t *testing.T) {
	tests := []struct {
		modes []vk.PresentMode
		want  vk.PresentMode
	}{
		{[]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox, vk.PresentModeImmediate}, vk.PresentModeImmediate},
		{[]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}, vk.PresentModeMailbox},
		{[]vk.PresentMode{vk.PresentModeFifo}, vk.PresentModeFifo},
	}
	for _, tt := range tests {
		if got := choosePresentMode(tt.modes); got != tt.want {
			t.Errorf("choosePresentMode(%v) = %d, want %d", tt.modes, got, tt.want)
		}
	}
}

func TestChooseExtentAndImageCount(t *testing.T) {
	caps := vk.SurfaceCapabilities{
		MinImageCount:  2,
		MaxImageCount:  3,
		CurrentExtent:  vk.Extent2D{Width: stdmath.MaxUint32, Height: stdmath.MaxUint32},
		MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: vk.Extent2D{Width: 800, Height: 600},
	}
	if got := chooseExtent(caps, 960, 540); got.Width != 800 || got.Height != 540 {
		t.Errorf("clamped extent = %+v", got)
	}
	caps.CurrentExtent = vk.Extent2D{Width: 640, Height: 360}
	if got := chooseExtent(caps, 960, 540); got.Width != 640 || got.Height != 360 {
		t.Errorf("surface extent = %+v", got)
	}

	counts := []struct{ requested, want uint32 }{{1, 2}, {3, 3}, {8, 3}}
	for _, c := range counts {
		if got := chooseImageCount(caps, c.requested); got != c.want {
			t.Errorf("chooseImageCount(%d) = %d, want %d", c.requested, got, c.want)
		}
	}
	caps.MaxImageCount = 0
	if got := chooseImageCount(caps, 8); got != 8 {
		t.Errorf("unbounded image count = %d", got)
	}
}

func TestPickQueueFamilies(t *testing.T) {
	tests := []struct {
		name              string
		graphics, present []bool
		g, p              int32
	}{
		{"shared family wins", []bool{true, true}, []bool{false, true}, 1, 1},
		{"separate families", []bool{true, false}, []bool{false, true}, 0, 1},
		{"family zero is valid", []bool{true}, []bool{true}, 0, 0},
		{"no present", []bool{true}, []bool{false}, 0, -1},
	}
	for _, tt := range tests {
		g, p := pickQueueFamilies(tt.graphics, tt.present)
		if g != tt.g || p != tt.p {
			t.Errorf("%s: got (%d, %d), want (%d, %d)", tt.name, g, p, tt.g, tt.p)
		}
	}
}

func TestDeviceTypeRank(t *testing.T) {
	order := []vk.PhysicalDeviceType{
		vk.PhysicalDeviceTypeDiscreteGpu,
		vk.PhysicalDeviceTypeIntegratedGpu,
		vk.PhysicalDeviceTypeVirtualGpu,
		vk.PhysicalDeviceTypeCpu,
		vk.PhysicalDeviceTypeOther,
	}
	for i := 1; i < len(order); i++ {
		if deviceTypeRank(order[i-1]) >= deviceTypeRank(order[i]) {
			t.Errorf("%s does not rank above %s", deviceTypeName(order[i-1]), deviceTypeName(order[i]))
		}
	}
}

func TestScaleViewport(t *testing.T) {
	vp := renderer.Viewport{Width: 1920, Height: 1080, MinDepth: 0, MaxDepth: 1}
	got := scaleViewport(vp, 1920, 1080, 960, 540)
	if got.Width != 960 || got.Height != 540 || got.X != 0 || got.MaxDepth != 1 {
		t.Errorf("viewport = %+v", got)
	}
}

func TestStateTranslation(t *testing.T) {
	if cullMode(renderer.CullModeBack) != vk.CullModeFlags(vk.CullModeBackBit) ||
		cullMode(renderer.CullModeNone) != vk.CullModeFlags(vk.CullModeNone) {
		t.Error("cull modes")
	}
	if polygonMode(renderer.FillModeWireframe) != vk.PolygonModeLine || polygonMode(renderer.FillModeSolid) != vk.PolygonModeFill {
		t.Error("fill modes")
	}
	if compareOp(renderer.CompareLessEqual) != vk.CompareOpLessOrEqual || compareOp(renderer.CompareAlways) != vk.CompareOpAlways {
		t.Error("compare functions")
	}

	alpha := renderer.BlendStates[renderer.BlendModeAlphaBlend]
	if blendFactor(alpha.SrcColor) != vk.BlendFactorSrcAlpha || blendFactor(alpha.DstColor) != vk.BlendFactorOneMinusSrcAlpha {
		t.Error("alpha blend factors")
	}
	if blendOp(renderer.BlendStates[renderer.BlendModeSubtract].ColorOp) != vk.BlendOpReverseSubtract {
		t.Error("subtract blend op")
	}
	all := vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit)
	if colorWriteMask(renderer.ColorWriteAll) != all || colorWriteMask(renderer.ColorWriteNone) != 0 {
		t.Error("color write masks")
	}
	if primitiveTopology(renderer.TopologyTriangleStrip) != vk.PrimitiveTopologyTriangleStrip {
		t.Error("strip topology")
	}
	if attributeFormat(3) != vk.FormatR32g32b32Sfloat || attributeFormat(2) != vk.FormatR32g32Sfloat {
		t.Error("attribute formats")
	}
}

func TestDescriptorLayout(t *testing.T) {
	lb := layoutBindings(renderer.Bindings)
	if len(lb) != len(renderer.Bindings) {
		t.Fatalf("bindings = %d", len(lb))
	}
	for i, b := range lb {
		if b.Binding != uint32(i) {
			t.Errorf("binding %d has number %d", i, b.Binding)
		}
	}
	if lb[4].DescriptorType != vk.DescriptorTypeCombinedImageSampler || lb[4].StageFlags != vk.ShaderStageFlags(vk.ShaderStageFragmentBit) {
		t.Errorf("texture binding = %+v", lb[4])
	}
	if lb[3].DescriptorType != vk.DescriptorTypeUniformBuffer || lb[3].StageFlags != vk.ShaderStageFlags(vk.ShaderStageFragmentBit) {
		t.Errorf("material binding = %+v", lb[3])
	}

	sizes := poolSizes(renderer.Bindings, 10)
	if len(sizes) != 2 || sizes[0].DescriptorCount != 40 || sizes[1].DescriptorCount != 10 {
		t.Errorf("pool sizes = %+v", sizes)
	}
}
