package vector

import (
	"fmt"

	"github.com/rycgar/openlayers/common"
	"github.com/rycgar/openlayers/render/gpu"
	"github.com/rycgar/openlayers/render/worker"
)

// BufferPair is the materialized GPU state for one geometry kind: an index
// buffer, the interleaved vertex buffer it indexes into, and the index count
// to draw.
type BufferPair struct {
	Index      gpu.Buffer
	Vertex     gpu.Buffer
	IndexCount int
}

// Buffers is one complete buffer generation result for a batch. A nil kind
// pointer means the style disables that kind; consumers skip it without
// drawing.
type Buffers struct {
	Polygon    *BufferPair
	LineString *BufferPair
	Point      *BufferPair

	// InvertTransform is the inverse of the transform the buffers were
	// generated under, letting consumers map instruction coordinates back to
	// world coordinates.
	InvertTransform common.Transform
}

// BuffersResult is the single value a GenerateBuffers channel yields.
type BuffersResult struct {
	Buffers *Buffers
	Err     error
}

// materialize uploads one tessellation response to the GPU, vertex buffer
// first, then index buffer. Both buffers are dynamic: regeneration replaces
// them wholesale rather than mutating in place.
func materialize(ctx gpu.Context, resp worker.Response) (*BufferPair, error) {
	vertexBuffer, err := ctx.UploadBuffer(common.SliceToBytes(resp.Vertices), gpu.TargetArrayBuffer, gpu.UsageDynamicDraw)
	if err != nil {
		return nil, fmt.Errorf("failed to upload vertex buffer: %w", err)
	}
	indexBuffer, err := ctx.UploadBuffer(common.SliceToBytes(resp.Indices), gpu.TargetElementArrayBuffer, gpu.UsageDynamicDraw)
	if err != nil {
		return nil, fmt.Errorf("failed to upload index buffer: %w", err)
	}
	return &BufferPair{
		Index:      indexBuffer,
		Vertex:     vertexBuffer,
		IndexCount: len(resp.Indices),
	}, nil
}
