package vector

import (
	"github.com/rycgar/openlayers/common"
	"github.com/rycgar/openlayers/render/geometry"
	"github.com/rycgar/openlayers/render/style"
)

// Render-instruction generation: each geometry kind flattens into a plain
// []float64 the tessellation workers consume without touching feature
// objects. Custom attribute callbacks are evaluated exactly once per feature
// here; their values are repeated per instruction vertex.

// evaluateCustoms runs every custom attribute callback for one feature and
// returns the concatenated values.
func evaluateCustoms(customs []style.CustomAttribute, f *geometry.Feature) []float64 {
	if len(customs) == 0 {
		return nil
	}
	values := make([]float64, 0, len(customs))
	for _, a := range customs {
		got := a.Callback(f)
		n := a.ComponentCount()
		for c := 0; c < n; c++ {
			if c < len(got) {
				values = append(values, got[c])
			} else {
				values = append(values, 0)
			}
		}
	}
	return values
}

// GeneratePolygonInstructions flattens a polygon sub-batch into render
// instructions. Per feature: ring count, each ring's vertex count, then every
// ring vertex as transformed x, y followed by the feature's custom attribute
// values.
//
// Parameters:
//   - polygons: the polygon sub-batch
//   - transform: the world-to-instruction coordinate transform
//   - customs: the custom attribute declarations, in layout order
//
// Returns:
//   - []float64: the flat instruction array, empty for an empty sub-batch
func GeneratePolygonInstructions(polygons []geometry.PolygonFeature, transform common.Transform, customs []style.CustomAttribute) []float64 {
	instructions := make([]float64, 0, len(polygons)*16)
	for _, p := range polygons {
		values := evaluateCustoms(customs, p.Feature)
		instructions = append(instructions, float64(len(p.Rings)))
		for _, ring := range p.Rings {
			instructions = append(instructions, float64(len(ring)/2))
		}
		for _, ring := range p.Rings {
			for v := 0; v+1 < len(ring); v += 2 {
				x, y := transform.Apply(ring[v], ring[v+1])
				instructions = append(instructions, x, y)
				instructions = append(instructions, values...)
			}
		}
	}
	return instructions
}

// GenerateLineStringInstructions flattens a line string sub-batch into render
// instructions. Per feature: vertex count, then every vertex as transformed
// x, y followed by the feature's custom attribute values.
//
// Parameters:
//   - lineStrings: the line string sub-batch
//   - transform: the world-to-instruction coordinate transform
//   - customs: the custom attribute declarations, in layout order
//
// Returns:
//   - []float64: the flat instruction array, empty for an empty sub-batch
func GenerateLineStringInstructions(lineStrings []geometry.LineStringFeature, transform common.Transform, customs []style.CustomAttribute) []float64 {
	instructions := make([]float64, 0, len(lineStrings)*16)
	for _, l := range lineStrings {
		values := evaluateCustoms(customs, l.Feature)
		instructions = append(instructions, float64(l.VertexCount()))
		for v := 0; v+1 < len(l.Coordinates); v += 2 {
			x, y := transform.Apply(l.Coordinates[v], l.Coordinates[v+1])
			instructions = append(instructions, x, y)
			instructions = append(instructions, values...)
		}
	}
	return instructions
}

// GeneratePointInstructions flattens a point sub-batch into render
// instructions. Per feature: transformed x, y followed by the feature's
// custom attribute values.
//
// Parameters:
//   - points: the point sub-batch
//   - transform: the world-to-instruction coordinate transform
//   - customs: the custom attribute declarations, in layout order
//
// Returns:
//   - []float64: the flat instruction array, empty for an empty sub-batch
func GeneratePointInstructions(points []geometry.PointFeature, transform common.Transform, customs []style.CustomAttribute) []float64 {
	record := 2
	for _, a := range customs {
		record += a.ComponentCount()
	}
	instructions := make([]float64, 0, len(points)*record)
	for _, p := range points {
		values := evaluateCustoms(customs, p.Feature)
		x, y := transform.Apply(p.X, p.Y)
		instructions = append(instructions, x, y)
		instructions = append(instructions, values...)
	}
	return instructions
}
