package vulkan

import (
	"errors"
	"fmt"
	stdmath "math"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/renderer"
)

const validationLayerName = "VK_LAYER_KHRONOS_validation"

// SurfaceProvider is the window the backend presents to.
type SurfaceProvider interface {
	GetRequiredExtensionNames() []string
	// CreateWindowSurface returns the VkSurfaceKHR for the instance.
	CreateWindowSurface(instance interface{}) (uintptr, error)
}

var _ renderer.Backend = (*VulkanRenderer)(nil)

// VulkanRenderer implements renderer.Backend on top of Vulkan. It keeps one
// frame in flight and is only used from the main thread.
type VulkanRenderer struct {
	surface     SurfaceProvider
	context     *VulkanContext
	config      renderer.BackendConfig
	initialized bool

	FrameNumber uint64

	objects   core.Identifiers
	programs  map[renderer.Handle]*VulkanShaderProgram
	pipelines map[pipelineKey]*VulkanPipeline

	// Bound state, consumed by Draw.
	program      renderer.Handle
	rasterizer   renderer.Handle
	blend        renderer.Handle
	depth        renderer.Handle
	topology     renderer.Topology
	viewport     renderer.Viewport
	vertexBuffer *VulkanBuffer
	vertexStride uint32
	vertexOffset uint32
	resources    descriptorResources

	frameStarted bool
}

func New(surface SurfaceProvider) *VulkanRenderer {
	return &VulkanRenderer{
		surface: surface,
		context: &VulkanContext{},
	}
}

func (vr *VulkanRenderer) Name() string {
	return "vulkan"
}

func (vr *VulkanRenderer) Initialize(cfg renderer.BackendConfig) error {
	if vr.initialized {
		return fmt.Errorf("vulkan backend already initialized")
	}
	if cfg.ResolutionWidth == 0 || cfg.ResolutionHeight == 0 {
		return fmt.Errorf("vulkan backend: resolution %dx%d: %w", cfg.ResolutionWidth, cfg.ResolutionHeight, core.ErrCreationFailed)
	}
	vr.config = cfg
	vr.context.FramebufferWidth = cfg.FramebufferWidth
	vr.context.FramebufferHeight = cfg.FramebufferHeight
	vr.programs = make(map[renderer.Handle]*VulkanShaderProgram)
	vr.pipelines = make(map[pipelineKey]*VulkanPipeline)
	vr.resetBindings()

	if err := vr.initialize(); err != nil {
		core.LogError("vulkan backend initialization failed: %s", err)
		vr.destroy()
		if !errors.Is(err, core.ErrCreationFailed) {
			err = fmt.Errorf("%w: %w", core.ErrCreationFailed, err)
		}
		return err
	}
	vr.initialized = true
	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) initialize() error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return fmt.Errorf("vk.Init: %w", err)
	}

	if err := vr.createInstance(); err != nil {
		return err
	}

	surface, err := vr.surface.CreateWindowSurface(vr.context.Instance)
	if err != nil {
		return fmt.Errorf("create window surface: %w", err)
	}
	vr.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(vr.context); err != nil {
		return err
	}

	sc, err := SwapchainCreate(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight, vr.config.BackBufferCount)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc

	rp, err := RenderpassCreate(vr.context, sc.ImageFormat.Format, vr.context.Device.DepthFormat)
	if err != nil {
		return err
	}
	vr.context.MainRenderpass = rp

	if err := sc.RegenerateFramebuffers(vr.context, rp); err != nil {
		return err
	}
	vr.context.FramebufferSizeLastGeneration = vr.context.FramebufferSizeGeneration

	return vr.createSyncObjects()
}

func (vr *VulkanRenderer) createInstance() error {
	app := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString(vr.config.ApplicationName),
		PEngineName:        safeString("Anima Quad"),
	}
	info := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: app,
	}

	extensions := append([]string{}, vr.surface.GetRequiredExtensionNames()...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions, "VK_KHR_portability_enumeration", "VK_KHR_get_physical_device_properties2")
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		info.Flags |= 1
	}

	var layers []string
	if vr.config.Validation {
		available, err := instanceLayers()
		if err != nil {
			return err
		}
		if containsName(available, validationLayerName) {
			layers = append(layers, validationLayerName)
			extensions = append(extensions, vk.ExtDebugReportExtensionName)
		} else {
			core.LogWarn("validation requested but '%s' is not installed", validationLayerName)
		}
	}
	for _, e := range extensions {
		core.LogDebug("Required extension: %s", e)
	}

	info.EnabledExtensionCount = uint32(len(extensions))
	info.PpEnabledExtensionNames = safeStrings(extensions)
	info.EnabledLayerCount = uint32(len(layers))
	info.PpEnabledLayerNames = safeStrings(layers)

	if err := check(vk.CreateInstance(&info, vr.context.Allocator, &vr.context.Instance), "vkCreateInstance"); err != nil {
		return err
	}
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		return err
	}
	core.LogInfo("Vulkan instance created.")

	if len(layers) > 0 {
		debug := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: debugReport,
		}
		if err := check(vk.CreateDebugReportCallback(vr.context.Instance, &debug, nil, &vr.context.debugCallback), "vkCreateDebugReportCallback"); err != nil {
			return err
		}
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func instanceLayers() ([]string, error) {
	var count uint32
	if err := check(vk.EnumerateInstanceLayerProperties(&count, nil), "vkEnumerateInstanceLayerProperties"); err != nil {
		return nil, err
	}
	props := make([]vk.LayerProperties, count)
	if count > 0 {
		if err := check(vk.EnumerateInstanceLayerProperties(&count, props), "vkEnumerateInstanceLayerProperties"); err != nil {
			return nil, err
		}
	}
	names := make([]string, len(props))
	for i := range props {
		props[i].Deref()
		names[i] = cString(props[i].LayerName[:])
	}
	return names, nil
}

func (vr *VulkanRenderer) createSyncObjects() error {
	ctx := vr.context
	cmd, err := NewVulkanCommandBuffer(ctx, ctx.Device.GraphicsCommandPool, true)
	if err != nil {
		return err
	}
	ctx.GraphicsCommandBuffer = cmd

	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	if err := check(vk.CreateSemaphore(ctx.Device.LogicalDevice, &info, ctx.Allocator, &ctx.ImageAvailableSemaphore), "vkCreateSemaphore"); err != nil {
		return err
	}
	if err := check(vk.CreateSemaphore(ctx.Device.LogicalDevice, &info, ctx.Allocator, &ctx.QueueCompleteSemaphore), "vkCreateSemaphore"); err != nil {
		return err
	}

	// Signaled, so the first frame does not wait forever.
	fence, err := NewFence(ctx, true)
	if err != nil {
		return err
	}
	ctx.InFlightFence = fence
	return nil
}

func (vr *VulkanRenderer) Shutdown() error {
	if !vr.initialized {
		return nil
	}
	if live := vr.objects.Live(); live > 0 {
		core.LogWarn("vulkan backend shut down with %d live objects, destroying them", live)
	}
	vr.destroy()
	vr.initialized = false
	core.LogInfo("Vulkan renderer shut down.")
	return nil
}

// destroy tears down whatever was created, in reverse order. It also runs
// after a partial initialization.
func (vr *VulkanRenderer) destroy() {
	ctx := vr.context
	if ctx.Device != nil && ctx.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(ctx.Device.LogicalDevice)

		vr.destroyObjects()
		vr.destroyPipelines(func(pipelineKey) bool { return true })

		if ctx.InFlightFence != nil {
			ctx.InFlightFence.Destroy(ctx)
			ctx.InFlightFence = nil
		}
		for _, s := range []*vk.Semaphore{&ctx.ImageAvailableSemaphore, &ctx.QueueCompleteSemaphore} {
			if *s != vk.NullSemaphore {
				vk.DestroySemaphore(ctx.Device.LogicalDevice, *s, ctx.Allocator)
				*s = vk.NullSemaphore
			}
		}
		if ctx.GraphicsCommandBuffer != nil {
			ctx.GraphicsCommandBuffer.Free(ctx, ctx.Device.GraphicsCommandPool)
			ctx.GraphicsCommandBuffer = nil
		}
		if ctx.Swapchain != nil {
			ctx.Swapchain.Destroy(ctx)
			ctx.Swapchain = nil
		}
		if ctx.MainRenderpass != nil {
			ctx.MainRenderpass.Destroy(ctx)
			ctx.MainRenderpass = nil
		}
	}
	DeviceDestroy(ctx)

	if ctx.Surface != vk.NullSurface {
		vk.DestroySurface(ctx.Instance, ctx.Surface, ctx.Allocator)
		ctx.Surface = vk.NullSurface
	}
	if ctx.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(ctx.Instance, ctx.debugCallback, ctx.Allocator)
		ctx.debugCallback = vk.NullDebugReportCallback
	}
	if ctx.Instance != nil {
		vk.DestroyInstance(ctx.Instance, ctx.Allocator)
		ctx.Instance = nil
	}
	vr.frameStarted = false
}

func (vr *VulkanRenderer) Resized(width, height uint32) {
	vr.context.FramebufferWidth = width
	vr.context.FramebufferHeight = height
	vr.context.FramebufferSizeGeneration++
	core.LogDebug("Vulkan renderer resized: %dx%d, generation %d", width, height, vr.context.FramebufferSizeGeneration)
}

func (vr *VulkanRenderer) SupportsAnisotropy() bool {
	return vr.context.Device != nil && vr.context.Device.SamplerAnisotropy
}

// recreateSwapchain rebuilds the swapchain for the current framebuffer size.
// A zero sized (minimized) window keeps the old one until it is restored.
func (vr *VulkanRenderer) recreateSwapchain() error {
	ctx := vr.context
	if ctx.RecreatingSwapchain {
		return nil
	}
	if ctx.FramebufferWidth == 0 || ctx.FramebufferHeight == 0 {
		core.LogDebug("framebuffer has a zero dimension, waiting before recreating the swapchain")
		return nil
	}
	ctx.RecreatingSwapchain = true
	defer func() { ctx.RecreatingSwapchain = false }()

	vk.DeviceWaitIdle(ctx.Device.LogicalDevice)
	if ctx.Swapchain != nil {
		ctx.Swapchain.Destroy(ctx)
	}

	sc, err := SwapchainCreate(ctx, ctx.FramebufferWidth, ctx.FramebufferHeight, vr.config.BackBufferCount)
	if err != nil {
		ctx.Swapchain = nil
		return err
	}
	ctx.Swapchain = sc
	if err := sc.RegenerateFramebuffers(ctx, ctx.MainRenderpass); err != nil {
		return err
	}
	ctx.FramebufferSizeLastGeneration = ctx.FramebufferSizeGeneration
	core.LogDebug("Swapchain recreated.")
	return nil
}

// Clear waits for the previous frame, acquires the next image and begins the
// render pass that clears it.
func (vr *VulkanRenderer) Clear(color renderer.Color, depth float32) error {
	if !vr.initialized {
		return core.ErrPipelineNotInitialized
	}
	ctx := vr.context
	if vr.frameStarted {
		return fmt.Errorf("clear: frame %d was not presented", vr.FrameNumber)
	}
	if ctx.RecreatingSwapchain || ctx.Swapchain == nil {
		if err := vr.recreateSwapchain(); err != nil {
			return err
		}
		return core.ErrSwapchainBooting
	}
	if ctx.FramebufferSizeGeneration != ctx.FramebufferSizeLastGeneration {
		if err := vr.recreateSwapchain(); err != nil {
			return err
		}
		return core.ErrSwapchainBooting
	}

	if err := ctx.InFlightFence.Wait(ctx, stdmath.MaxUint64); err != nil {
		return err
	}

	index, err := ctx.Swapchain.AcquireNextImageIndex(ctx, stdmath.MaxUint64, ctx.ImageAvailableSemaphore)
	if errors.Is(err, core.ErrSwapchainBooting) {
		if err := vr.recreateSwapchain(); err != nil {
			return err
		}
		return core.ErrSwapchainBooting
	}
	if err != nil {
		return err
	}
	ctx.ImageIndex = index

	if err := ctx.InFlightFence.Reset(ctx); err != nil {
		return err
	}
	for _, p := range vr.programs {
		if err := p.Descriptors.Reset(ctx); err != nil {
			return err
		}
	}

	cmd := ctx.GraphicsCommandBuffer
	if err := cmd.Reset(); err != nil {
		return err
	}
	if err := cmd.Begin(true, false, false); err != nil {
		return err
	}

	rp := ctx.MainRenderpass
	rp.W = float32(ctx.Swapchain.Extent.Width)
	rp.H = float32(ctx.Swapchain.Extent.Height)
	rp.Color = color
	rp.Depth = depth
	rp.Begin(cmd, ctx.Swapchain.Framebuffers[index].Handle)

	vr.frameStarted = true
	return nil
}

// scaleViewport maps a viewport in render resolution units onto the
// framebuffer.
func scaleViewport(vp renderer.Viewport, resW, resH, fbW, fbH uint32) vk.Viewport {
	sx := float32(fbW) / float32(resW)
	sy := float32(fbH) / float32(resH)
	return vk.Viewport{
		X:        vp.X * sx,
		Y:        vp.Y * sy,
		Width:    vp.Width * sx,
		Height:   vp.Height * sy,
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}
}

func (vr *VulkanRenderer) Draw(vertexCount, firstVertex uint32) error {
	if !vr.frameStarted {
		return fmt.Errorf("draw outside of a frame")
	}
	if vr.vertexBuffer == nil {
		return fmt.Errorf("draw without a vertex buffer: %w", core.ErrInvalidHandle)
	}
	if uint64(vr.vertexOffset)+uint64(firstVertex+vertexCount)*uint64(vr.vertexStride) > vr.vertexBuffer.Size {
		return fmt.Errorf("draw of %d vertices from %d overruns the vertex buffer", vertexCount, firstVertex)
	}
	pipeline, program, err := vr.currentPipeline()
	if err != nil {
		return err
	}

	ctx := vr.context
	cmd := ctx.GraphicsCommandBuffer
	pipeline.Bind(cmd)

	extent := ctx.Swapchain.Extent
	vp := scaleViewport(vr.viewport, vr.config.ResolutionWidth, vr.config.ResolutionHeight, extent.Width, extent.Height)
	vk.CmdSetViewport(cmd.Handle, 0, 1, []vk.Viewport{vp})
	vk.CmdSetScissor(cmd.Handle, 0, 1, []vk.Rect2D{{Extent: extent}})

	set, err := program.Descriptors.Allocate(ctx, program.SetLayout)
	if err != nil {
		return err
	}
	writes, missing := vr.resources.writes(set, program.Bindings)
	if missing != nil {
		return fmt.Errorf("draw: %s binding %d has nothing bound: %w", missing.Stage, missing.Binding, core.ErrInvalidHandle)
	}
	vk.UpdateDescriptorSets(ctx.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	vk.CmdBindDescriptorSets(cmd.Handle, vk.PipelineBindPointGraphics, program.PipelineLayout, 0, 1, []vk.DescriptorSet{set}, 0, nil)

	vk.CmdBindVertexBuffers(cmd.Handle, 0, 1, []vk.Buffer{vr.vertexBuffer.Handle}, []vk.DeviceSize{vk.DeviceSize(vr.vertexOffset)})
	vk.CmdDraw(cmd.Handle, vertexCount, 1, firstVertex, 0)
	return nil
}

// Present ends the frame, submits it and queues the image for display
// without waiting on vertical sync.
func (vr *VulkanRenderer) Present() error {
	if !vr.frameStarted {
		return fmt.Errorf("present without a frame")
	}
	vr.frameStarted = false
	ctx := vr.context
	cmd := ctx.GraphicsCommandBuffer

	ctx.MainRenderpass.End(cmd)
	if err := cmd.End(); err != nil {
		return err
	}

	submit := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{ctx.ImageAvailableSemaphore},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{ctx.QueueCompleteSemaphore},
	}
	if err := check(vk.QueueSubmit(ctx.Device.GraphicsQueue, 1, []vk.SubmitInfo{submit}, ctx.InFlightFence.Handle), "vkQueueSubmit"); err != nil {
		core.LogError(err.Error())
		return err
	}
	cmd.UpdateSubmitted()

	err := ctx.Swapchain.Present(ctx, ctx.QueueCompleteSemaphore, ctx.ImageIndex)
	if errors.Is(err, core.ErrSwapchainBooting) {
		err = vr.recreateSwapchain()
	}
	if err != nil {
		return err
	}
	vr.FrameNumber++
	return nil
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("vulkan [%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("vulkan [%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("vulkan [%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
