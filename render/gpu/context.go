// package gpu defines the graphics-context helper the vector style renderer
// draws through, plus a WebGPU-backed implementation. The Context interface is
// the renderer's only window onto the GPU: program compilation, buffer upload,
// attribute binding, and draw invocation all go through it.
package gpu

import "github.com/rycgar/openlayers/render/style"

// AttributeType identifies the numeric type of a vertex attribute.
type AttributeType int

const (
	// AttributeTypeFloat32 is a 32-bit float attribute component. All vertex
	// data produced by the buffer-generation workers uses this type.
	AttributeTypeFloat32 AttributeType = iota
)

// AttributeDescriptor describes one vertex attribute in an interleaved vertex
// buffer: its shader-visible name, component count, and numeric type.
type AttributeDescriptor struct {
	Name string
	Size int
	Type AttributeType
}

// BufferTarget identifies what a GPU buffer binds as.
type BufferTarget int

const (
	// TargetArrayBuffer is a vertex data buffer.
	TargetArrayBuffer BufferTarget = iota

	// TargetElementArrayBuffer is an index data buffer.
	TargetElementArrayBuffer
)

// BufferUsage is the upload usage hint for a GPU buffer.
type BufferUsage int

const (
	// UsageStaticDraw hints that the buffer contents never change.
	UsageStaticDraw BufferUsage = iota

	// UsageDynamicDraw hints that the buffer is regenerated (re-uploaded
	// whole, not mutated in place) whenever geometry or style changes.
	UsageDynamicDraw
)

// ViewState is the map view portion of a frame state.
type ViewState struct {
	// Center is the view center in world coordinates.
	Center [2]float64
	// Resolution is the view resolution in world units per pixel.
	Resolution float64
	// Rotation is the view rotation in radians.
	Rotation float64
}

// FrameState carries the per-frame values shaders may consume as uniforms.
type FrameState struct {
	// Time is the frame timestamp in seconds.
	Time float64
	// Size is the rendered surface size in pixels.
	Size [2]int
	// ViewState is the current map view.
	ViewState ViewState
}

// Program is an opaque handle to a compiled and linked shader program.
type Program interface {
	// Key returns the program's debug label.
	//
	// Returns:
	//   - string: the label assigned at compilation
	Key() string

	// Handle returns the underlying backend object. The caller is
	// responsible for type asserting it to the backend's pipeline type.
	//
	// Returns:
	//   - any: the backend program object
	Handle() any
}

// Buffer is an opaque handle to a GPU-resident buffer.
type Buffer interface {
	// Handle returns the underlying backend buffer object.
	//
	// Returns:
	//   - any: the backend buffer object
	Handle() any

	// Target returns what the buffer binds as.
	//
	// Returns:
	//   - BufferTarget: vertex or index target
	Target() BufferTarget

	// ByteLength returns the buffer's size in bytes.
	//
	// Returns:
	//   - int: the uploaded data length
	ByteLength() int
}

// Context is the graphics-context helper consumed by the vector style
// renderer. One Context owns one rendering surface; every program the
// renderer compiles and every buffer it uploads belongs to that surface.
// Implementations must be safe for concurrent use: buffer uploads arrive from
// buffer-generation collector goroutines while draws run on the render thread.
type Context interface {
	// CompileProgram compiles and links a vertex/fragment shader pair.
	//
	// Parameters:
	//   - vertexSrc: the vertex shader source
	//   - fragmentSrc: the fragment shader source
	//
	// Returns:
	//   - Program: the linked program handle
	//   - error: an error if compilation or linking fails
	CompileProgram(vertexSrc, fragmentSrc string) (Program, error)

	// RegisterUniforms declares the uniform schema shared by all programs
	// compiled on this context. Sources are re-evaluated on every UseProgram
	// call, so dynamic uniforms pick up external state each frame. A nil
	// source reserves the slot for frame-state values: the names "time",
	// "size", "center", "resolution", and "rotation" are filled from the
	// FrameState passed to UseProgram.
	//
	// Parameters:
	//   - uniforms: uniform value sources keyed by name
	RegisterUniforms(uniforms map[string]style.UniformSource)

	// SetUniform stages an explicit value for a registered uniform. The
	// write takes effect before the next Draw on the current program.
	// Unregistered names are ignored.
	//
	// Parameters:
	//   - name: the registered uniform name
	//   - value: the uniform components
	SetUniform(name string, value []float32)

	// UseProgram makes the given program current for subsequent buffer
	// binds, attribute configuration, and draws, and refreshes registered
	// uniforms from their sources and the frame state.
	//
	// Parameters:
	//   - p: the program to bind
	//   - frameState: the current frame state
	UseProgram(p Program, frameState FrameState)

	// BindBuffer binds a buffer to its target for the current program.
	//
	// Parameters:
	//   - b: the buffer to bind
	BindBuffer(b Buffer)

	// SetAttributeLayout configures the interleaved vertex attribute layout
	// for the current program. The descriptors must match the vertex shader
	// input layout the program was compiled from; this is a caller contract
	// and is not cross-checked.
	//
	// Parameters:
	//   - attributes: the attribute descriptors in buffer order
	SetAttributeLayout(attributes []AttributeDescriptor)

	// Draw issues an indexed draw over [offset, offset+count) of the bound
	// index buffer.
	//
	// Parameters:
	//   - offset: the first index to draw
	//   - count: the number of indices to draw
	Draw(offset, count int)

	// UploadBuffer creates a GPU buffer and uploads the given bytes.
	//
	// Parameters:
	//   - data: the raw buffer contents
	//   - target: what the buffer binds as
	//   - usage: the upload usage hint
	//
	// Returns:
	//   - Buffer: the created buffer handle
	//   - error: an error if buffer creation fails
	UploadBuffer(data []byte, target BufferTarget, usage BufferUsage) (Buffer, error)

	// Alive reports whether the underlying rendering context still exists.
	// Buffer-generation responses that land after Alive turns false are
	// dropped by their consumers.
	//
	// Returns:
	//   - bool: true until Release is called
	Alive() bool

	// Release tears down the context. Alive reports false forever after.
	Release()
}
