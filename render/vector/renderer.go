// package vector implements the vector layer style renderer: it turns a
// style input and a mixed geometry batch into GPU buffers through an
// asynchronous tessellation channel, and sequences the per-kind draws.
package vector

import (
	"fmt"

	"github.com/rycgar/openlayers/common"
	"github.com/rycgar/openlayers/render/geometry"
	"github.com/rycgar/openlayers/render/gpu"
	"github.com/rycgar/openlayers/render/style"
	"github.com/rycgar/openlayers/render/worker"
)

// StyleRenderer renders one style over mixed geometry batches. A renderer
// owns one compiled program per enabled geometry kind: fill for polygons,
// stroke for line strings, symbol for points. Kinds whose shader program is
// absent are disabled for the renderer's whole lifetime.
type StyleRenderer interface {
	// GenerateBuffers asynchronously tessellates a batch and uploads the
	// results to the GPU. The returned channel yields exactly one
	// BuffersResult on success or failure, and never yields at all if the
	// graphics context is released before tessellation completes.
	//
	// Parameters:
	//   - batch: the mixed geometry batch to tessellate
	//   - transform: the world-to-instruction coordinate transform
	//
	// Returns:
	//   - <-chan BuffersResult: a single-value result channel
	GenerateBuffers(batch *geometry.MixedBatch, transform common.Transform) <-chan BuffersResult

	// Render draws previously generated buffers in fixed kind order: fill,
	// then stroke, then symbol. For each enabled kind with a non-nil buffer
	// pair it binds the program and buffers, configures the attribute
	// layout, invokes preRender, then draws. Buffer pairs must have been
	// generated by this renderer; compatibility is not cross-checked.
	//
	// Parameters:
	//   - bufs: the buffers to draw
	//   - frameState: the current frame state
	//   - preRender: called after binding and before each kind's draw; may
	//     be nil. Use it to set per-frame uniforms.
	Render(bufs *Buffers, frameState gpu.FrameState, preRender func())

	// PolygonLayout returns the polygon vertex attribute layout, or nil if
	// the fill kind is disabled.
	//
	// Returns:
	//   - []gpu.AttributeDescriptor: built-ins then customs, in order
	PolygonLayout() []gpu.AttributeDescriptor

	// LineStringLayout returns the line string vertex attribute layout, or
	// nil if the stroke kind is disabled.
	//
	// Returns:
	//   - []gpu.AttributeDescriptor: built-ins then customs, in order
	LineStringLayout() []gpu.AttributeDescriptor

	// PointLayout returns the point vertex attribute layout, or nil if the
	// symbol kind is disabled.
	//
	// Returns:
	//   - []gpu.AttributeDescriptor: built-ins then customs, in order
	PointLayout() []gpu.AttributeDescriptor
}

type styleRenderer struct {
	ctx     gpu.Context
	channel worker.Channel
	shaders style.StyleShaders

	fillProgram   gpu.Program
	strokeProgram gpu.Program
	symbolProgram gpu.Program

	polygonLayout    []gpu.AttributeDescriptor
	lineStringLayout []gpu.AttributeDescriptor
	pointLayout      []gpu.AttributeDescriptor

	customSize int
}

var _ StyleRenderer = &styleRenderer{}

// RendererOption is a functional option used to configure a StyleRenderer
// during construction.
type RendererOption func(*rendererConfig)

type rendererConfig struct {
	compiler style.Compiler
}

// WithCompiler supplies the style compiler used to turn literal style inputs
// into shader programs. Required when the input is a style.Literal.
//
// Parameters:
//   - compiler: the literal style compiler
//
// Returns:
//   - RendererOption: a function that sets the compiler
func WithCompiler(compiler style.Compiler) RendererOption {
	return func(cfg *rendererConfig) {
		cfg.compiler = compiler
	}
}

// NewStyleRenderer creates a StyleRenderer for one style input. Shader
// programs are compiled and uniforms registered once, at construction.
// Panics if ctx or channel is nil.
//
// Parameters:
//   - input: the style input, explicit shaders or a literal description
//   - ctx: the graphics context to compile and draw through
//   - channel: the tessellation request/response transport
//   - options: variadic list of RendererOption functions
//
// Returns:
//   - StyleRenderer: the configured renderer
//   - error: an error if the style cannot be compiled
func NewStyleRenderer(input style.Input, ctx gpu.Context, channel worker.Channel, options ...RendererOption) (StyleRenderer, error) {
	if ctx == nil {
		panic("vector: NewStyleRenderer requires a graphics context")
	}
	if channel == nil {
		panic("vector: NewStyleRenderer requires a tessellation channel")
	}

	cfg := &rendererConfig{}
	for _, opt := range options {
		opt(cfg)
	}

	var shaders style.StyleShaders
	switch in := input.(type) {
	case style.ExplicitShaders:
		shaders = in.Shaders
	case style.Literal:
		if cfg.compiler == nil {
			return nil, fmt.Errorf("literal style input requires a compiler, use WithCompiler")
		}
		compiled, err := cfg.compiler.Compile(&in)
		if err != nil {
			return nil, fmt.Errorf("failed to compile literal style: %w", err)
		}
		shaders = *compiled
	default:
		return nil, fmt.Errorf("unsupported style input %T", input)
	}

	r := &styleRenderer{
		ctx:        ctx,
		channel:    channel,
		shaders:    shaders,
		customSize: shaders.TotalAttributesSize(),
	}

	ctx.RegisterUniforms(shaders.Uniforms)

	var err error
	if shaders.Fill != nil {
		if r.fillProgram, err = ctx.CompileProgram(shaders.Fill.Vertex, shaders.Fill.Fragment); err != nil {
			return nil, fmt.Errorf("failed to compile fill program: %w", err)
		}
		r.polygonLayout = attributeLayout(polygonBuiltins(), shaders.Attributes)
	}
	if shaders.Stroke != nil {
		if r.strokeProgram, err = ctx.CompileProgram(shaders.Stroke.Vertex, shaders.Stroke.Fragment); err != nil {
			return nil, fmt.Errorf("failed to compile stroke program: %w", err)
		}
		r.lineStringLayout = attributeLayout(lineStringBuiltins(), shaders.Attributes)
	}
	if shaders.Symbol != nil {
		if r.symbolProgram, err = ctx.CompileProgram(shaders.Symbol.Vertex, shaders.Symbol.Fragment); err != nil {
			return nil, fmt.Errorf("failed to compile symbol program: %w", err)
		}
		r.pointLayout = attributeLayout(pointBuiltins(), shaders.Attributes)
	}

	return r, nil
}

// pendingKind tracks one in-flight tessellation request for a generation.
type pendingKind struct {
	id     uint64
	respCh <-chan worker.Response
	assign func(*Buffers, *BufferPair)
}

func (r *styleRenderer) GenerateBuffers(batch *geometry.MixedBatch, transform common.Transform) <-chan BuffersResult {
	out := make(chan BuffersResult, 1)

	invert, err := transform.Invert()
	if err != nil {
		out <- BuffersResult{Err: fmt.Errorf("failed to invert batch transform: %w", err)}
		return out
	}

	// Disabled kinds and empty sub-batches never hit the channel; they
	// contribute nil buffer pairs without blocking the generation.
	pending := make([]pendingKind, 0, 3)
	if r.fillProgram != nil {
		instructions := GeneratePolygonInstructions(batch.Polygons, transform, r.shaders.Attributes)
		if len(instructions) > 0 {
			pending = append(pending, r.request(worker.OpPolygon, instructions, transform,
				func(b *Buffers, p *BufferPair) { b.Polygon = p }))
		}
	}
	if r.strokeProgram != nil {
		instructions := GenerateLineStringInstructions(batch.LineStrings, transform, r.shaders.Attributes)
		if len(instructions) > 0 {
			pending = append(pending, r.request(worker.OpLineString, instructions, transform,
				func(b *Buffers, p *BufferPair) { b.LineString = p }))
		}
	}
	if r.symbolProgram != nil {
		instructions := GeneratePointInstructions(batch.Points, transform, r.shaders.Attributes)
		if len(instructions) > 0 {
			pending = append(pending, r.request(worker.OpPoint, instructions, transform,
				func(b *Buffers, p *BufferPair) { b.Point = p }))
		}
	}

	go r.collect(out, pending, invert)
	return out
}

// request allocates a request ID, registers the response handle, and sends
// the instructions down the channel. Ownership of instructions transfers to
// the channel here.
func (r *styleRenderer) request(op worker.Opcode, instructions []float64, transform common.Transform, assign func(*Buffers, *BufferPair)) pendingKind {
	id := worker.NextRequestID()
	respCh := r.channel.Expect(id)
	r.channel.Send(worker.Request{
		ID:                   id,
		Op:                   op,
		Instructions:         instructions,
		Transform:            transform,
		CustomAttributesSize: r.customSize,
	})
	return pendingKind{id: id, respCh: respCh, assign: assign}
}

// collect awaits every pending kind, materializes each response, and yields
// the single generation result. If the graphics context is released while
// responses are outstanding the collector returns without yielding, so the
// result channel stays pending forever.
func (r *styleRenderer) collect(out chan<- BuffersResult, pending []pendingKind, invert common.Transform) {
	bufs := &Buffers{InvertTransform: invert}
	for i, p := range pending {
		resp := <-p.respCh
		if !r.ctx.Alive() {
			return
		}
		if resp.Err != nil {
			r.forgetRemaining(pending[i+1:])
			out <- BuffersResult{Err: fmt.Errorf("tessellation failed: %w", resp.Err)}
			return
		}
		pair, err := materialize(r.ctx, resp)
		if err != nil {
			r.forgetRemaining(pending[i+1:])
			out <- BuffersResult{Err: err}
			return
		}
		p.assign(bufs, pair)
	}
	out <- BuffersResult{Buffers: bufs}
}

func (r *styleRenderer) forgetRemaining(pending []pendingKind) {
	for _, p := range pending {
		r.channel.Forget(p.id)
	}
}

func (r *styleRenderer) Render(bufs *Buffers, frameState gpu.FrameState, preRender func()) {
	if bufs == nil {
		return
	}
	r.renderKind(r.fillProgram, bufs.Polygon, r.polygonLayout, frameState, preRender)
	r.renderKind(r.strokeProgram, bufs.LineString, r.lineStringLayout, frameState, preRender)
	r.renderKind(r.symbolProgram, bufs.Point, r.pointLayout, frameState, preRender)
}

// renderKind draws one geometry kind: program and buffers bound first, the
// attribute layout configured, then preRender so callers can set uniforms
// that must land before the draw.
func (r *styleRenderer) renderKind(program gpu.Program, pair *BufferPair, layout []gpu.AttributeDescriptor, frameState gpu.FrameState, preRender func()) {
	if program == nil || pair == nil || pair.IndexCount == 0 {
		return
	}
	r.ctx.UseProgram(program, frameState)
	r.ctx.BindBuffer(pair.Vertex)
	r.ctx.BindBuffer(pair.Index)
	r.ctx.SetAttributeLayout(layout)
	if preRender != nil {
		preRender()
	}
	r.ctx.Draw(0, pair.IndexCount)
}

func (r *styleRenderer) PolygonLayout() []gpu.AttributeDescriptor {
	return r.polygonLayout
}

func (r *styleRenderer) LineStringLayout() []gpu.AttributeDescriptor {
	return r.lineStringLayout
}

func (r *styleRenderer) PointLayout() []gpu.AttributeDescriptor {
	return r.pointLayout
}
