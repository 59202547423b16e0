// package style defines the declarative style inputs accepted by the vector
// style renderer: either explicit shader programs or a literal style
// description compiled into shaders by an external Compiler.
package style

import (
	"github.com/rycgar/openlayers/common"
	"github.com/rycgar/openlayers/render/geometry"
)

// ShaderProgram is a vertex/fragment WGSL source pair.
type ShaderProgram struct {
	Vertex   string
	Fragment string
}

// UniformSource produces the current value for a uniform. Fixed-value
// uniforms wrap their value with Value; dynamic uniforms read whatever
// external state they need when invoked.
type UniformSource func() []float32

// Value wraps a fixed uniform value as a UniformSource.
//
// Parameters:
//   - v: the uniform's components
//
// Returns:
//   - UniformSource: a source that always yields v
func Value(v ...float32) UniformSource {
	return func() []float32 { return v }
}

// CustomAttribute declares a user-supplied per-feature vertex attribute.
// The callback is evaluated once per feature during render-instruction
// generation and its result is interleaved into the vertex stream.
type CustomAttribute struct {
	// Name is the attribute name as referenced by the custom shaders.
	Name string
	// Size is the number of components (1 to 4). Zero means 1.
	Size int
	// Callback computes the attribute value(s) for a feature. The returned
	// slice must have Size elements.
	Callback func(f *geometry.Feature) []float64
}

// ComponentCount returns the attribute's component count, defaulting to 1.
//
// Returns:
//   - int: the declared size, or 1 when unset
func (a CustomAttribute) ComponentCount() int {
	return common.Coalesce(a.Size, 1)
}

// StyleShaders is the normalized style shape the renderer works from. Any of
// Fill, Stroke, Symbol may be nil, which disables the corresponding geometry
// kind entirely. Immutable once handed to a renderer.
type StyleShaders struct {
	Fill   *ShaderProgram
	Stroke *ShaderProgram
	Symbol *ShaderProgram

	// Attributes lists the custom per-feature attributes in declaration
	// order. The order is part of the vertex layout contract with the
	// supplied shaders.
	Attributes []CustomAttribute

	// Uniforms maps uniform names to their value sources.
	Uniforms map[string]UniformSource
}

// TotalAttributesSize returns the summed component count of all custom
// attributes, i.e. the number of trailing values appended per vertex.
//
// Returns:
//   - int: total custom attribute components per vertex
func (s *StyleShaders) TotalAttributesSize() int {
	total := 0
	for _, a := range s.Attributes {
		total += a.ComponentCount()
	}
	return total
}

// Input is the style input accepted by the renderer constructor. It is a
// closed sum with two variants: ExplicitShaders (the caller supplies WGSL
// directly) and Literal (a declarative description compiled via a Compiler).
type Input interface {
	isStyleInput()
}

// ExplicitShaders is the Input variant carrying ready-made shader programs.
type ExplicitShaders struct {
	Shaders StyleShaders
}

func (ExplicitShaders) isStyleInput() {}

// Literal is the Input variant carrying a declarative style description.
// The renderer compiles it through its configured Compiler; the literal
// grammar itself is owned by the compiler.
type Literal struct {
	// FillColor is the polygon fill RGBA, or nil for no fill program.
	FillColor []float32
	// StrokeColor is the line stroke RGBA, or nil for no stroke program.
	StrokeColor []float32
	// StrokeWidth is the stroke width in pixels.
	StrokeWidth float32
	// SymbolColor is the point symbol RGBA, or nil for no symbol program.
	SymbolColor []float32
	// SymbolSize is the point symbol size in pixels.
	SymbolSize float32

	// Attributes and Uniforms are the custom schemas forwarded to the
	// compiled StyleShaders.
	Attributes []CustomAttribute
	Uniforms   map[string]UniformSource
}

func (Literal) isStyleInput() {}

// Compiler turns a literal style description into shader programs plus the
// custom attribute and uniform schemas. Implementations live outside this
// module.
type Compiler interface {
	// Compile builds the StyleShaders for a literal style description.
	//
	// Parameters:
	//   - literal: the declarative style to compile
	//
	// Returns:
	//   - *StyleShaders: the compiled shader programs and schemas
	//   - error: an error if the literal style is malformed
	Compile(literal *Literal) (*StyleShaders, error)
}
