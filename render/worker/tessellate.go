package worker

import "fmt"

// execute runs the tessellation routine for one request and packages the
// result as a Response carrying the request's ID.
func execute(req Request) Response {
	var (
		vertices []float32
		indices  []uint32
		err      error
	)
	switch req.Op {
	case OpPolygon:
		vertices, indices, err = tessellatePolygons(req.Instructions, req.CustomAttributesSize)
	case OpLineString:
		vertices, indices, err = tessellateLineStrings(req.Instructions, req.CustomAttributesSize)
	case OpPoint:
		vertices, indices, err = tessellatePoints(req.Instructions, req.CustomAttributesSize)
	default:
		err = fmt.Errorf("unknown tessellation opcode %d", req.Op)
	}
	return Response{
		ID:       req.ID,
		Vertices: vertices,
		Indices:  indices,
		Err:      err,
	}
}

// tessellatePolygons triangulates polygon render instructions. Per polygon
// the instructions carry the ring count, each ring's vertex count, then every
// ring vertex as [x, y, custom...]. Output vertex records are [x, y,
// custom...] for the outer ring only; interior rings are consumed but not
// bridged into the triangulation.
// TODO: bridge interior rings into the outer ring so holes actually punch out.
func tessellatePolygons(instructions []float64, customSize int) ([]float32, []uint32, error) {
	record := 2 + customSize
	vertices := make([]float32, 0, len(instructions))
	indices := make([]uint32, 0, len(instructions))

	i := 0
	for i < len(instructions) {
		ringCount := int(instructions[i])
		i++
		if ringCount < 1 || i+ringCount > len(instructions) {
			return nil, nil, fmt.Errorf("malformed polygon instructions at offset %d: ring count %d", i-1, ringCount)
		}
		ringSizes := make([]int, ringCount)
		total := 0
		for r := 0; r < ringCount; r++ {
			ringSizes[r] = int(instructions[i])
			total += ringSizes[r]
			i++
		}
		if i+total*record > len(instructions) {
			return nil, nil, fmt.Errorf("malformed polygon instructions at offset %d: %d vertices exceed input", i, total)
		}

		outer := ringSizes[0]
		base := uint32(len(vertices) / record)
		xs := make([]float64, outer)
		ys := make([]float64, outer)
		for v := 0; v < outer; v++ {
			off := i + v*record
			xs[v] = instructions[off]
			ys[v] = instructions[off+1]
			vertices = append(vertices, float32(instructions[off]), float32(instructions[off+1]))
			for c := 0; c < customSize; c++ {
				vertices = append(vertices, float32(instructions[off+2+c]))
			}
		}
		for _, tri := range earClip(xs, ys) {
			indices = append(indices, base+tri[0], base+tri[1], base+tri[2])
		}
		i += total * record
	}
	return vertices, indices, nil
}

// earClip triangulates a simple polygon ring by ear clipping, returning
// triangles as index triples into the ring. The ring is normalized to
// counter-clockwise winding first. Degenerate rings with fewer than three
// vertices yield no triangles.
func earClip(xs, ys []float64) [][3]uint32 {
	n := len(xs)
	if n < 3 {
		return nil
	}

	order := make([]uint32, n)
	for i := range order {
		order[i] = uint32(i)
	}
	if signedArea(xs, ys) < 0 {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}

	triangles := make([][3]uint32, 0, n-2)
	for len(order) > 3 {
		clipped := false
		for i := 0; i < len(order); i++ {
			prev := order[(i+len(order)-1)%len(order)]
			curr := order[i]
			next := order[(i+1)%len(order)]
			if !isEar(xs, ys, order, prev, curr, next) {
				continue
			}
			triangles = append(triangles, [3]uint32{prev, curr, next})
			order = append(order[:i], order[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			// Degenerate ring (collinear runs, self-touching). Clip the
			// first corner anyway so tessellation always terminates.
			triangles = append(triangles, [3]uint32{order[0], order[1], order[2]})
			order = append(order[:1], order[2:]...)
		}
	}
	triangles = append(triangles, [3]uint32{order[0], order[1], order[2]})
	return triangles
}

// isEar reports whether curr is a convex vertex whose prev/curr/next triangle
// contains no other ring vertex.
func isEar(xs, ys []float64, order []uint32, prev, curr, next uint32) bool {
	ax, ay := xs[prev], ys[prev]
	bx, by := xs[curr], ys[curr]
	cx, cy := xs[next], ys[next]

	if cross(ax, ay, bx, by, cx, cy) <= 0 {
		return false
	}
	for _, o := range order {
		if o == prev || o == curr || o == next {
			continue
		}
		if pointInTriangle(xs[o], ys[o], ax, ay, bx, by, cx, cy) {
			return false
		}
	}
	return true
}

// signedArea returns twice the signed area of the ring; positive for
// counter-clockwise winding.
func signedArea(xs, ys []float64) float64 {
	area := 0.0
	n := len(xs)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += xs[i]*ys[j] - xs[j]*ys[i]
	}
	return area
}

// cross returns the z component of (b-a) x (c-a).
func cross(ax, ay, bx, by, cx, cy float64) float64 {
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}

// pointInTriangle reports whether (px, py) lies strictly inside triangle abc.
func pointInTriangle(px, py, ax, ay, bx, by, cx, cy float64) bool {
	d1 := cross(ax, ay, bx, by, px, py)
	d2 := cross(bx, by, cx, cy, px, py)
	d3 := cross(cx, cy, ax, ay, px, py)
	return d1 > 0 && d2 > 0 && d3 > 0
}

// tessellateLineStrings expands line string render instructions into one quad
// per segment. Per line string the instructions carry the vertex count, then
// every vertex as [x, y, custom...]. Output vertex records are [segmentStartX,
// segmentStartY, segmentEndX, segmentEndY, packedParameters, custom...] with
// the corner index 0..3 packed into packedParameters; custom values come from
// the segment's start vertex.
func tessellateLineStrings(instructions []float64, customSize int) ([]float32, []uint32, error) {
	record := 2 + customSize
	outRecord := 5 + customSize
	vertices := make([]float32, 0, len(instructions)*2)
	indices := make([]uint32, 0, len(instructions))

	i := 0
	for i < len(instructions) {
		vertexCount := int(instructions[i])
		i++
		if vertexCount < 2 || i+vertexCount*record > len(instructions) {
			return nil, nil, fmt.Errorf("malformed line string instructions at offset %d: vertex count %d", i-1, vertexCount)
		}
		for s := 0; s < vertexCount-1; s++ {
			start := i + s*record
			end := start + record
			sx, sy := float32(instructions[start]), float32(instructions[start+1])
			ex, ey := float32(instructions[end]), float32(instructions[end+1])

			base := uint32(len(vertices) / outRecord)
			for corner := 0; corner < 4; corner++ {
				vertices = append(vertices, sx, sy, ex, ey, float32(corner))
				for c := 0; c < customSize; c++ {
					vertices = append(vertices, float32(instructions[start+2+c]))
				}
			}
			indices = append(indices,
				base, base+1, base+2,
				base+1, base+3, base+2,
			)
		}
		i += vertexCount * record
	}
	return vertices, indices, nil
}

// tessellatePoints expands point render instructions into one quad per point.
// Per point the instructions carry [x, y, custom...]. Output vertex records
// are [x, y, perVertexIndex, custom...] with the corner index 0..3.
func tessellatePoints(instructions []float64, customSize int) ([]float32, []uint32, error) {
	record := 2 + customSize
	outRecord := 3 + customSize
	if len(instructions)%record != 0 {
		return nil, nil, fmt.Errorf("malformed point instructions: length %d is not a multiple of %d", len(instructions), record)
	}
	count := len(instructions) / record
	vertices := make([]float32, 0, count*4*outRecord)
	indices := make([]uint32, 0, count*6)

	for p := 0; p < count; p++ {
		off := p * record
		x, y := float32(instructions[off]), float32(instructions[off+1])
		base := uint32(p * 4)
		for corner := 0; corner < 4; corner++ {
			vertices = append(vertices, x, y, float32(corner))
			for c := 0; c < customSize; c++ {
				vertices = append(vertices, float32(instructions[off+2+c]))
			}
		}
		indices = append(indices,
			base, base+1, base+2,
			base, base+2, base+3,
		)
	}
	return vertices, indices, nil
}
