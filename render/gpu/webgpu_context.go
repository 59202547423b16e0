package gpu

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/rycgar/openlayers/common"
	"github.com/rycgar/openlayers/render/style"
)

// uniformSlotSize is the packed size of one uniform in the shared uniform
// buffer. Every uniform occupies one 16-byte slot so std140-style alignment
// holds regardless of component count.
const uniformSlotSize = 16

// webgpuContext is the WebGPU implementation of the Context interface. It
// owns one surface and the device/queue created for it.
type webgpuContext struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface
	device   *wgpu.Device
	queue    *wgpu.Queue

	surfaceFormat *wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	clearColor    wgpu.Color

	// Uniform schema shared by all programs compiled on this context.
	// Names are kept sorted so the packed buffer layout is deterministic.
	uniformNames   []string
	uniformSources map[string]style.UniformSource
	uniformOffsets map[string]uint64
	uniformData    []byte

	// Frame state for batched rendering across multiple draw calls.
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	current         *webgpuProgram
	attributeLayout []AttributeDescriptor
	programCount    int

	released bool
}

// WebGPUContext extends Context with the surface and frame management the
// example viewer drives directly. The vector style renderer itself only ever
// sees the embedded Context.
type WebGPUContext interface {
	Context

	// ConfigureSurface (re)configures the surface for a new size in pixels.
	// Must be called once before the first frame and again on every resize.
	//
	// Parameters:
	//   - width: the new surface width in pixels
	//   - height: the new surface height in pixels
	ConfigureSurface(width, height int)

	// BeginFrame acquires the swapchain texture and begins the render pass.
	// Must be paired with EndFrame after all draws within a single frame.
	//
	// Returns:
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() error

	// EndFrame ends the render pass and submits the command buffer to the
	// GPU. Call Present afterwards to display the frame.
	EndFrame()

	// Present presents the surface to the display and releases the
	// swapchain texture. Must be called once per frame after EndFrame.
	Present()

	// Device returns the underlying WebGPU device.
	//
	// Returns:
	//   - *wgpu.Device: the device
	Device() *wgpu.Device

	// Queue returns the underlying WebGPU queue.
	//
	// Returns:
	//   - *wgpu.Queue: the queue
	Queue() *wgpu.Queue
}

var _ WebGPUContext = &webgpuContext{}

// ContextOption is a functional option used to configure a WebGPUContext
// during construction.
type ContextOption func(*webgpuContext)

// WithClearColor sets the render pass clear color.
//
// Parameters:
//   - r: red component in [0, 1]
//   - g: green component in [0, 1]
//   - b: blue component in [0, 1]
//   - a: alpha component in [0, 1]
//
// Returns:
//   - ContextOption: a function that sets the clear color
func WithClearColor(r, g, b, a float64) ContextOption {
	return func(c *webgpuContext) {
		c.clearColor = wgpu.Color{R: r, G: g, B: b, A: a}
	}
}

// WithVSync selects the FIFO present mode when enabled, immediate otherwise.
//
// Parameters:
//   - enabled: true to cap presentation to the display refresh rate
//
// Returns:
//   - ContextOption: a function that sets the present mode
func WithVSync(enabled bool) ContextOption {
	return func(c *webgpuContext) {
		if enabled {
			c.presentMode = wgpu.PresentModeFifo
		} else {
			c.presentMode = wgpu.PresentModeImmediate
		}
	}
}

// NewWebGPUContext creates a WebGPU-backed Context for the given surface
// descriptor. The descriptor is platform-specific and is typically obtained
// from window.Window.SurfaceDescriptor(). Panics if no adapter or device can
// be acquired, matching the fatal-configuration-error contract.
//
// Parameters:
//   - surfaceDescriptor: the platform-specific surface descriptor
//   - options: variadic list of ContextOption functions
//
// Returns:
//   - WebGPUContext: the configured context
func NewWebGPUContext(surfaceDescriptor *wgpu.SurfaceDescriptor, options ...ContextOption) WebGPUContext {
	runtime.LockOSThread()

	c := &webgpuContext{
		mu:             &sync.Mutex{},
		instance:       wgpu.CreateInstance(nil),
		presentMode:    wgpu.PresentModeFifo,
		clearColor:     wgpu.Color{R: 1, G: 1, B: 1, A: 1},
		uniformSources: make(map[string]style.UniformSource),
		uniformOffsets: make(map[string]uint64),
		uniformData:    make([]byte, uniformSlotSize),
	}
	for _, opt := range options {
		opt(c)
	}

	c.surface = c.instance.CreateSurface(surfaceDescriptor)

	adapter, err := c.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: c.surface,
	})
	if err != nil {
		panic(fmt.Sprintf("gpu: failed to request adapter: %v", err))
	}
	c.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Vector Layer Device",
	})
	if err != nil {
		panic(fmt.Sprintf("gpu: failed to request device: %v", err))
	}
	c.device = device
	c.queue = device.GetQueue()

	return c
}

func (c *webgpuContext) ConfigureSurface(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	capabilities := c.surface.GetCapabilities(c.adapter)
	c.surfaceFormat = &capabilities.Formats[0]

	c.surface.Configure(c.adapter, c.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *c.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: c.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

func (c *webgpuContext) RegisterUniforms(uniforms map[string]style.UniformSource) {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(uniforms))
	for name := range uniforms {
		names = append(names, name)
	}
	sort.Strings(names)

	c.uniformNames = names
	c.uniformSources = uniforms
	c.uniformOffsets = make(map[string]uint64, len(names))
	for i, name := range names {
		c.uniformOffsets[name] = uint64(i) * uniformSlotSize
	}
	size := len(names) * uniformSlotSize
	if size < uniformSlotSize {
		size = uniformSlotSize
	}
	c.uniformData = make([]byte, size)
}

func (c *webgpuContext) CompileProgram(vertexSrc, fragmentSrc string) (Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.surfaceFormat == nil {
		return nil, fmt.Errorf("surface not configured — call ConfigureSurface before compiling programs")
	}

	c.programCount++
	key := fmt.Sprintf("vector_program_%d", c.programCount)

	vs, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: key + " vertex",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: vertexSrc,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile vertex shader: %w", err)
	}
	fs, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: key + " fragment",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: fragmentSrc,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile fragment shader: %w", err)
	}

	attributes, stride, err := parseVertexLayout(vertexSrc)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vertex layout: %w", err)
	}

	// One uniform buffer at @group(0) @binding(0) holds the whole registered
	// schema. The layout carries the binding even for shaders that never
	// declare it; extra layout entries are valid in WebGPU.
	bgl, err := c.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: key + " uniforms",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: uint64(len(c.uniformData)),
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create uniform layout: %w", err)
	}

	pipelineLayout, err := c.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            key,
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline layout: %w", err)
	}

	pipeline, err := c.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  key + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: parseEntryPoint(vertexSrc, true),
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: stride,
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes:  attributes,
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: parseEntryPoint(fragmentSrc, false),
			Targets: []wgpu.ColorTargetState{
				{
					Format:    *c.surfaceFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{
							SrcFactor: wgpu.BlendFactorSrcAlpha,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
							Operation: wgpu.BlendOperationAdd,
						},
						Alpha: wgpu.BlendComponent{
							SrcFactor: wgpu.BlendFactorOne,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
							Operation: wgpu.BlendOperationAdd,
						},
					},
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create render pipeline: %w", err)
	}

	uniformBuffer, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: key + " Uniform Buffer",
		Size:  uint64(len(c.uniformData)),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create uniform buffer: %w", err)
	}

	bindGroup, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  key + " Bind Group",
		Layout: bgl,
		Entries: []wgpu.BindGroupEntry{
			{
				Binding: 0,
				Buffer:  uniformBuffer,
				Offset:  0,
				Size:    wgpu.WholeSize,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group: %w", err)
	}

	return &webgpuProgram{
		key:           key,
		pipeline:      pipeline,
		stride:        stride,
		uniformBuffer: uniformBuffer,
		bindGroup:     bindGroup,
	}, nil
}

func (c *webgpuContext) SetUniform(name string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	offset, ok := c.uniformOffsets[name]
	if !ok {
		return
	}
	c.stageUniformLocked(offset, value)
	if c.current != nil {
		c.queue.WriteBuffer(c.current.uniformBuffer, offset, c.uniformData[offset:offset+uniformSlotSize])
	}
}

// stageUniformLocked copies a uniform value into its packed slot, truncating
// anything past the slot size. Caller must hold c.mu.
func (c *webgpuContext) stageUniformLocked(offset uint64, value []float32) {
	raw := common.SliceToBytes(value)
	if len(raw) > uniformSlotSize {
		raw = raw[:uniformSlotSize]
	}
	copy(c.uniformData[offset:], raw)
}

func (c *webgpuContext) UseProgram(p Program, frameState FrameState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prog, ok := p.(*webgpuProgram)
	if !ok {
		return
	}
	c.current = prog

	// Refresh every registered uniform from its source so dynamic values
	// track external state frame to frame. Registered names with a nil
	// source are fed from the frame state when they match a reserved name.
	for _, name := range c.uniformNames {
		offset := c.uniformOffsets[name]
		if src := c.uniformSources[name]; src != nil {
			c.stageUniformLocked(offset, src())
			continue
		}
		switch name {
		case "time":
			c.stageUniformLocked(offset, []float32{float32(frameState.Time)})
		case "size":
			c.stageUniformLocked(offset, []float32{float32(frameState.Size[0]), float32(frameState.Size[1])})
		case "center":
			c.stageUniformLocked(offset, []float32{float32(frameState.ViewState.Center[0]), float32(frameState.ViewState.Center[1])})
		case "resolution":
			c.stageUniformLocked(offset, []float32{float32(frameState.ViewState.Resolution)})
		case "rotation":
			c.stageUniformLocked(offset, []float32{float32(frameState.ViewState.Rotation)})
		}
	}
	c.queue.WriteBuffer(prog.uniformBuffer, 0, c.uniformData)

	if c.framePass != nil {
		c.framePass.SetPipeline(prog.pipeline)
		c.framePass.SetBindGroup(0, prog.bindGroup, nil)
	}
}

func (c *webgpuContext) BindBuffer(b Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.framePass == nil {
		return
	}
	buf, ok := b.(*webgpuBuffer)
	if !ok {
		return
	}
	switch buf.target {
	case TargetArrayBuffer:
		c.framePass.SetVertexBuffer(0, buf.buffer, 0, wgpu.WholeSize)
	case TargetElementArrayBuffer:
		c.framePass.SetIndexBuffer(buf.buffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	}
}

func (c *webgpuContext) SetAttributeLayout(attributes []AttributeDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// WebGPU bakes the vertex layout into the pipeline at compile time, so
	// binding here is bookkeeping only. Matching the compiled layout is a
	// caller contract and is not cross-checked.
	c.attributeLayout = attributes
}

func (c *webgpuContext) Draw(offset, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.framePass == nil {
		return
	}
	c.framePass.DrawIndexed(uint32(count), 1, uint32(offset), 0, 0)
}

func (c *webgpuContext) UploadBuffer(data []byte, target BufferTarget, usage BufferUsage) (Buffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return nil, fmt.Errorf("context has been released")
	}

	var flags wgpu.BufferUsage
	var label string
	switch target {
	case TargetElementArrayBuffer:
		flags = wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
		label = "Index Buffer"
	default:
		flags = wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
		label = "Vertex Buffer"
	}

	buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: flags,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", label, err)
	}
	c.queue.WriteBuffer(buf, 0, data)

	return &webgpuBuffer{
		buffer: buf,
		target: target,
		usage:  usage,
		length: len(data),
	}, nil
}

func (c *webgpuContext) BeginFrame() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}

	surfaceTexture, err := c.surface.GetCurrentTexture()
	if err != nil {
		return err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	encoder, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: c.clearColor,
			},
		},
	})

	c.frameEncoder = encoder
	c.framePass = pass
	c.frameSurface = surfaceTexture
	c.frameView = view

	return nil
}

func (c *webgpuContext) EndFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.framePass == nil {
		return
	}
	c.framePass.End()

	commandBuffer, err := c.frameEncoder.Finish(nil)
	if err == nil {
		c.queue.Submit(commandBuffer)
		commandBuffer.Release()
	}
	c.frameEncoder.Release()
	c.frameEncoder = nil
	c.framePass = nil
	c.current = nil
}

func (c *webgpuContext) Present() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frameSurface == nil {
		return
	}

	c.surface.Present()

	if c.frameView != nil {
		c.frameView.Release()
		c.frameView = nil
	}
	c.frameSurface.Release()
	c.frameSurface = nil
}

func (c *webgpuContext) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.released && c.device != nil
}

func (c *webgpuContext) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return
	}
	c.released = true

	if c.framePass != nil {
		c.framePass.End()
		c.framePass = nil
	}
	if c.frameEncoder != nil {
		c.frameEncoder.Release()
		c.frameEncoder = nil
	}
	if c.frameView != nil {
		c.frameView.Release()
		c.frameView = nil
	}
	if c.frameSurface != nil {
		c.frameSurface.Release()
		c.frameSurface = nil
	}
}

func (c *webgpuContext) Device() *wgpu.Device {
	return c.device
}

func (c *webgpuContext) Queue() *wgpu.Queue {
	return c.queue
}

// webgpuProgram is the Program implementation backed by a render pipeline and
// its per-program uniform resources.
type webgpuProgram struct {
	key           string
	pipeline      *wgpu.RenderPipeline
	stride        uint64
	uniformBuffer *wgpu.Buffer
	bindGroup     *wgpu.BindGroup
}

func (p *webgpuProgram) Key() string {
	return p.key
}

func (p *webgpuProgram) Handle() any {
	return p.pipeline
}

// webgpuBuffer is the Buffer implementation backed by a wgpu buffer.
type webgpuBuffer struct {
	buffer *wgpu.Buffer
	target BufferTarget
	usage  BufferUsage
	length int
}

func (b *webgpuBuffer) Handle() any {
	return b.buffer
}

func (b *webgpuBuffer) Target() BufferTarget {
	return b.target
}

func (b *webgpuBuffer) ByteLength() int {
	return b.length
}
