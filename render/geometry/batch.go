// package geometry defines the mixed geometry batch consumed by the vector
// style renderer. Batching of raw source features into the three sub-batches
// happens upstream; this package only describes the shapes the renderer reads.
package geometry

// Feature carries the per-feature data that custom attribute callbacks
// evaluate against.
type Feature struct {
	// ID is the feature's unique identifier within its source layer.
	ID uint64
	// Properties holds the feature's attribute values keyed by name.
	Properties map[string]any
}

// PolygonFeature is one polygon in a batch. Rings are flat [x0, y0, x1, y1, ...]
// coordinate slices; the first ring is the outer ring, any following rings are
// interior rings (holes).
type PolygonFeature struct {
	Feature *Feature
	Rings   [][]float64
}

// LineStringFeature is one line string in a batch, with flat [x0, y0, ...]
// coordinates.
type LineStringFeature struct {
	Feature     *Feature
	Coordinates []float64
}

// PointFeature is one point in a batch.
type PointFeature struct {
	Feature *Feature
	X, Y    float64
}

// MixedBatch groups a layer's features into the three independently renderable
// sub-batches. Any sub-batch may be empty.
type MixedBatch struct {
	Polygons    []PolygonFeature
	LineStrings []LineStringFeature
	Points      []PointFeature
}

// VertexCount returns the total number of coordinates in a line string feature.
//
// Returns:
//   - int: the number of x,y pairs in the feature's coordinates
func (f LineStringFeature) VertexCount() int {
	return len(f.Coordinates) / 2
}
