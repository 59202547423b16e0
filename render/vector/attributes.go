package vector

import (
	"github.com/rycgar/openlayers/render/gpu"
	"github.com/rycgar/openlayers/render/style"
)

// Built-in vertex attribute names. These are a stable contract with custom
// shaders: the tessellation workers always emit them, in this order, ahead of
// any custom attributes.
const (
	// AttributePosition is the vertex position for polygons and points.
	AttributePosition = "position"

	// AttributePerVertexIndex is the quad corner index (0..3) for points.
	AttributePerVertexIndex = "perVertexIndex"

	// AttributeSegmentStart is the segment start position for line strings.
	AttributeSegmentStart = "segmentStart"

	// AttributeSegmentEnd is the segment end position for line strings.
	AttributeSegmentEnd = "segmentEnd"

	// AttributePackedParameters carries per-vertex packed values (currently
	// the quad corner index) for line strings.
	AttributePackedParameters = "packedParameters"
)

// polygonBuiltins returns the built-in attribute descriptors for polygon
// vertex buffers.
func polygonBuiltins() []gpu.AttributeDescriptor {
	return []gpu.AttributeDescriptor{
		{Name: AttributePosition, Size: 2, Type: gpu.AttributeTypeFloat32},
	}
}

// lineStringBuiltins returns the built-in attribute descriptors for line
// string vertex buffers.
func lineStringBuiltins() []gpu.AttributeDescriptor {
	return []gpu.AttributeDescriptor{
		{Name: AttributeSegmentStart, Size: 2, Type: gpu.AttributeTypeFloat32},
		{Name: AttributeSegmentEnd, Size: 2, Type: gpu.AttributeTypeFloat32},
		{Name: AttributePackedParameters, Size: 1, Type: gpu.AttributeTypeFloat32},
	}
}

// pointBuiltins returns the built-in attribute descriptors for point vertex
// buffers.
func pointBuiltins() []gpu.AttributeDescriptor {
	return []gpu.AttributeDescriptor{
		{Name: AttributePosition, Size: 2, Type: gpu.AttributeTypeFloat32},
		{Name: AttributePerVertexIndex, Size: 1, Type: gpu.AttributeTypeFloat32},
	}
}

// attributeLayout appends the custom attribute descriptors, in declaration
// order, to a kind's built-ins.
func attributeLayout(builtins []gpu.AttributeDescriptor, customs []style.CustomAttribute) []gpu.AttributeDescriptor {
	layout := make([]gpu.AttributeDescriptor, 0, len(builtins)+len(customs))
	layout = append(layout, builtins...)
	for _, a := range customs {
		layout = append(layout, gpu.AttributeDescriptor{
			Name: a.Name,
			Size: a.ComponentCount(),
			Type: gpu.AttributeTypeFloat32,
		})
	}
	return layout
}

// layoutStride returns the total component count of a layout, i.e. the number
// of float32 values per interleaved vertex.
func layoutStride(layout []gpu.AttributeDescriptor) int {
	stride := 0
	for _, d := range layout {
		stride += d.Size
	}
	return stride
}
