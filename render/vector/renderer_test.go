package vector

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rycgar/openlayers/common"
	"github.com/rycgar/openlayers/render/geometry"
	"github.com/rycgar/openlayers/render/gpu"
	"github.com/rycgar/openlayers/render/style"
	"github.com/rycgar/openlayers/render/worker"
)

func fillOnlyInput(attributes ...style.CustomAttribute) style.ExplicitShaders {
	return style.ExplicitShaders{
		Shaders: style.StyleShaders{
			Fill:       &style.ShaderProgram{Vertex: "fill_vs", Fragment: "fill_fs"},
			Attributes: attributes,
		},
	}
}

func allKindsInput() style.ExplicitShaders {
	return style.ExplicitShaders{
		Shaders: style.StyleShaders{
			Fill:   &style.ShaderProgram{Vertex: "fill_vs", Fragment: "fill_fs"},
			Stroke: &style.ShaderProgram{Vertex: "stroke_vs", Fragment: "stroke_fs"},
			Symbol: &style.ShaderProgram{Vertex: "symbol_vs", Fragment: "symbol_fs"},
		},
	}
}

func triangleBatch(weight float64) *geometry.MixedBatch {
	return &geometry.MixedBatch{
		Polygons: []geometry.PolygonFeature{
			{
				Feature: &geometry.Feature{ID: 1, Properties: map[string]any{"weight": weight}},
				Rings:   [][]float64{{0, 0, 10, 0, 0, 10}},
			},
		},
		LineStrings: []geometry.LineStringFeature{
			{Feature: &geometry.Feature{ID: 2}, Coordinates: []float64{0, 0, 5, 5}},
		},
		Points: []geometry.PointFeature{
			{Feature: &geometry.Feature{ID: 3}, X: 1, Y: 1},
		},
	}
}

func weightAttribute() style.CustomAttribute {
	return style.CustomAttribute{
		Name: "weight",
		Size: 1,
		Callback: func(f *geometry.Feature) []float64 {
			return []float64{f.Properties["weight"].(float64)}
		},
	}
}

func TestNewStyleRendererPanicsOnNilCollaborators(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil context")
		}
	}()
	NewStyleRenderer(fillOnlyInput(), nil, newFakeChannel())
}

func TestNewStyleRendererLiteralRequiresCompiler(t *testing.T) {
	_, err := NewStyleRenderer(style.Literal{FillColor: []float32{1, 0, 0, 1}}, newFakeContext(), newFakeChannel())
	if err == nil {
		t.Fatal("expected error for literal input without a compiler")
	}
}

type fixedCompiler struct {
	shaders *style.StyleShaders
	err     error
}

func (c fixedCompiler) Compile(literal *style.Literal) (*style.StyleShaders, error) {
	return c.shaders, c.err
}

func TestNewStyleRendererCompilesLiteral(t *testing.T) {
	input := style.Literal{FillColor: []float32{1, 0, 0, 1}}
	compiled := fillOnlyInput().Shaders

	r, err := NewStyleRenderer(input, newFakeContext(), newFakeChannel(),
		WithCompiler(fixedCompiler{shaders: &compiled}))
	if err != nil {
		t.Fatalf("NewStyleRenderer returned error: %v", err)
	}
	if r.PolygonLayout() == nil {
		t.Fatal("fill kind not enabled after literal compilation")
	}
	if r.LineStringLayout() != nil || r.PointLayout() != nil {
		t.Fatal("disabled kinds must have nil layouts")
	}
}

func TestNewStyleRendererCompilerFailure(t *testing.T) {
	_, err := NewStyleRenderer(style.Literal{}, newFakeContext(), newFakeChannel(),
		WithCompiler(fixedCompiler{err: fmt.Errorf("bad literal")}))
	if err == nil || !strings.Contains(err.Error(), "bad literal") {
		t.Fatalf("expected wrapped compiler error, got %v", err)
	}
}

func TestAttributeLayouts(t *testing.T) {
	input := style.ExplicitShaders{
		Shaders: style.StyleShaders{
			Fill:       &style.ShaderProgram{Vertex: "v", Fragment: "f"},
			Stroke:     &style.ShaderProgram{Vertex: "v", Fragment: "f"},
			Symbol:     &style.ShaderProgram{Vertex: "v", Fragment: "f"},
			Attributes: []style.CustomAttribute{{Name: "weight", Size: 2}},
		},
	}
	r, err := NewStyleRenderer(input, newFakeContext(), newFakeChannel())
	if err != nil {
		t.Fatalf("NewStyleRenderer returned error: %v", err)
	}

	checks := []struct {
		kind   string
		layout []gpu.AttributeDescriptor
		names  []string
		sizes  []int
	}{
		{"polygon", r.PolygonLayout(), []string{"position", "weight"}, []int{2, 2}},
		{"lineString", r.LineStringLayout(), []string{"segmentStart", "segmentEnd", "packedParameters", "weight"}, []int{2, 2, 1, 2}},
		{"point", r.PointLayout(), []string{"position", "perVertexIndex", "weight"}, []int{2, 1, 2}},
	}
	for _, c := range checks {
		if len(c.layout) != len(c.names) {
			t.Fatalf("%s layout has %d attributes, want %d", c.kind, len(c.layout), len(c.names))
		}
		wantStride := 0
		for i, d := range c.layout {
			if d.Name != c.names[i] || d.Size != c.sizes[i] {
				t.Errorf("%s layout[%d] = {%s %d}, want {%s %d}", c.kind, i, d.Name, d.Size, c.names[i], c.sizes[i])
			}
			wantStride += c.sizes[i]
		}
		if got := layoutStride(c.layout); got != wantStride {
			t.Errorf("%s stride = %d, want %d", c.kind, got, wantStride)
		}
	}
}

func TestGenerateBuffersFillOnly(t *testing.T) {
	ctx := newFakeContext()
	r, err := NewStyleRenderer(fillOnlyInput(weightAttribute()), ctx, worker.NewTessellationPool())
	if err != nil {
		t.Fatalf("NewStyleRenderer returned error: %v", err)
	}

	result := awaitResult(t, r.GenerateBuffers(triangleBatch(5), common.IdentityTransform()))
	if result.Err != nil {
		t.Fatalf("generation failed: %v", result.Err)
	}
	bufs := result.Buffers

	// Line strings and points are present in the batch but the style has no
	// stroke or symbol program, so those kinds stay nil.
	if bufs.LineString != nil || bufs.Point != nil {
		t.Fatal("disabled kinds produced buffers")
	}
	if bufs.Polygon == nil {
		t.Fatal("fill kind produced no buffers")
	}
	if bufs.Polygon.IndexCount != 3 {
		t.Fatalf("index count = %d, want 3", bufs.Polygon.IndexCount)
	}
	if bufs.Polygon.Vertex.Target() != gpu.TargetArrayBuffer {
		t.Error("pair vertex buffer has wrong target")
	}
	if bufs.Polygon.Index.Target() != gpu.TargetElementArrayBuffer {
		t.Error("pair index buffer has wrong target")
	}

	// Every vertex record is [x, y, weight] with the custom value trailing.
	values := bytesToFloat32(bufs.Polygon.Vertex.(*fakeBuffer).data)
	if len(values) != 3*3 {
		t.Fatalf("got %d vertex values, want 9", len(values))
	}
	for v := 0; v < 3; v++ {
		if values[v*3+2] != 5 {
			t.Errorf("vertex %d weight = %v, want 5", v, values[v*3+2])
		}
	}
}

func TestGenerateBuffersInvertTransform(t *testing.T) {
	ctx := newFakeContext()
	r, err := NewStyleRenderer(fillOnlyInput(), ctx, worker.NewTessellationPool())
	if err != nil {
		t.Fatalf("NewStyleRenderer returned error: %v", err)
	}

	transform := common.TranslateTransform(-1, -1).Compose(common.ScaleTransform(0.02, 0.02))
	result := awaitResult(t, r.GenerateBuffers(triangleBatch(0), transform))
	if result.Err != nil {
		t.Fatalf("generation failed: %v", result.Err)
	}

	wx, wy := 10.0, 10.0
	ix, iy := transform.Apply(wx, wy)
	rx, ry := result.Buffers.InvertTransform.Apply(ix, iy)
	if ax, ay := rx-wx, ry-wy; ax*ax+ay*ay > 1e-18 {
		t.Fatalf("invert transform round trip of (%v, %v) = (%v, %v)", wx, wy, rx, ry)
	}
}

func TestGenerateBuffersSingularTransform(t *testing.T) {
	r, err := NewStyleRenderer(fillOnlyInput(), newFakeContext(), newFakeChannel())
	if err != nil {
		t.Fatalf("NewStyleRenderer returned error: %v", err)
	}
	result := awaitResult(t, r.GenerateBuffers(triangleBatch(0), common.ScaleTransform(0, 0)))
	if result.Err == nil {
		t.Fatal("expected error for singular transform")
	}
}

func TestGenerateBuffersStaleContextNeverResolves(t *testing.T) {
	ctx := newFakeContext()
	ch := newFakeChannel()
	r, err := NewStyleRenderer(fillOnlyInput(), ctx, ch)
	if err != nil {
		t.Fatalf("NewStyleRenderer returned error: %v", err)
	}

	out := r.GenerateBuffers(triangleBatch(0), common.IdentityTransform())
	sent := ch.sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d requests, want 1", len(sent))
	}

	// The context dies before the response lands. The response must be
	// swallowed and the result channel must stay pending.
	ctx.Release()
	ch.respond(worker.Response{ID: sent[0].ID, Vertices: []float32{0}, Indices: []uint32{0}})

	select {
	case result := <-out:
		t.Fatalf("stale generation resolved: %+v", result)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestGenerateBuffersResponseError(t *testing.T) {
	ch := newFakeChannel()
	r, err := NewStyleRenderer(fillOnlyInput(), newFakeContext(), ch)
	if err != nil {
		t.Fatalf("NewStyleRenderer returned error: %v", err)
	}

	out := r.GenerateBuffers(triangleBatch(0), common.IdentityTransform())
	sent := ch.sent()
	ch.respond(worker.Response{ID: sent[0].ID, Err: fmt.Errorf("broken instructions")})

	result := awaitResult(t, out)
	if result.Err == nil || !strings.Contains(result.Err.Error(), "broken instructions") {
		t.Fatalf("expected wrapped tessellation error, got %v", result.Err)
	}
}

func TestGenerateBuffersIgnoresUnmatchedResponses(t *testing.T) {
	ch := newFakeChannel()
	r, err := NewStyleRenderer(fillOnlyInput(), newFakeContext(), ch)
	if err != nil {
		t.Fatalf("NewStyleRenderer returned error: %v", err)
	}

	out := r.GenerateBuffers(triangleBatch(0), common.IdentityTransform())
	sent := ch.sent()

	// A response carrying a foreign ID must not complete the generation.
	ch.respond(worker.Response{ID: sent[0].ID + 1000, Vertices: []float32{9}, Indices: []uint32{9}})
	select {
	case result := <-out:
		t.Fatalf("foreign response completed the generation: %+v", result)
	case <-time.After(50 * time.Millisecond):
	}

	ch.respond(worker.Response{ID: sent[0].ID, Vertices: []float32{1, 2}, Indices: []uint32{0}})
	result := awaitResult(t, out)
	if result.Err != nil {
		t.Fatalf("generation failed: %v", result.Err)
	}
	if result.Buffers.Polygon.IndexCount != 1 {
		t.Fatalf("index count = %d, want 1", result.Buffers.Polygon.IndexCount)
	}
}

func TestRequestIDsDistinctAcrossRendererInstances(t *testing.T) {
	ch := newFakeChannel()
	ctx := newFakeContext()

	r1, err := NewStyleRenderer(fillOnlyInput(), ctx, ch)
	if err != nil {
		t.Fatalf("NewStyleRenderer returned error: %v", err)
	}
	r2, err := NewStyleRenderer(fillOnlyInput(), ctx, ch)
	if err != nil {
		t.Fatalf("NewStyleRenderer returned error: %v", err)
	}

	r1.GenerateBuffers(triangleBatch(0), common.IdentityTransform())
	r2.GenerateBuffers(triangleBatch(0), common.IdentityTransform())

	sent := ch.sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d requests, want 2", len(sent))
	}
	if sent[0].ID == sent[1].ID {
		t.Fatalf("two renderer instances issued the same request ID %d", sent[0].ID)
	}
}

func TestConcurrentGenerationsNoCrossTalk(t *testing.T) {
	ctx := newFakeContext()
	r, err := NewStyleRenderer(fillOnlyInput(weightAttribute()), ctx, worker.NewTessellationPool())
	if err != nil {
		t.Fatalf("NewStyleRenderer returned error: %v", err)
	}

	weights := []float64{10, 20, 30}
	outs := make([]<-chan BuffersResult, len(weights))
	for i, w := range weights {
		outs[i] = r.GenerateBuffers(triangleBatch(w), common.IdentityTransform())
	}

	for i, out := range outs {
		result := awaitResult(t, out)
		if result.Err != nil {
			t.Fatalf("generation %d failed: %v", i, result.Err)
		}
		values := bytesToFloat32(result.Buffers.Polygon.Vertex.(*fakeBuffer).data)
		if got := values[2]; got != float32(weights[i]) {
			t.Errorf("generation %d received weight %v, want %v", i, got, weights[i])
		}
	}
}

func TestRenderKindOrderAndPreRender(t *testing.T) {
	ctx := newFakeContext()
	r, err := NewStyleRenderer(allKindsInput(), ctx, newFakeChannel())
	if err != nil {
		t.Fatalf("NewStyleRenderer returned error: %v", err)
	}

	pair := func(count int) *BufferPair {
		return &BufferPair{
			Index:      &fakeBuffer{target: gpu.TargetElementArrayBuffer},
			Vertex:     &fakeBuffer{target: gpu.TargetArrayBuffer},
			IndexCount: count,
		}
	}
	bufs := &Buffers{
		Polygon:    pair(6),
		LineString: pair(12),
		Point:      pair(18),
	}

	ctx.resetEvents()
	r.Render(bufs, gpu.FrameState{}, func() { ctx.record("preRender") })

	want := []string{
		"use:program_1", "bindVertex", "bindIndex", "layout", "preRender", "draw:0:6",
		"use:program_2", "bindVertex", "bindIndex", "layout", "preRender", "draw:0:12",
		"use:program_3", "bindVertex", "bindIndex", "layout", "preRender", "draw:0:18",
	}
	got := ctx.recorded()
	if len(got) != len(want) {
		t.Fatalf("recorded %d events, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestRenderSkipsNilAndEmptyPairs(t *testing.T) {
	ctx := newFakeContext()
	r, err := NewStyleRenderer(allKindsInput(), ctx, newFakeChannel())
	if err != nil {
		t.Fatalf("NewStyleRenderer returned error: %v", err)
	}

	bufs := &Buffers{
		LineString: &BufferPair{
			Index:      &fakeBuffer{target: gpu.TargetElementArrayBuffer},
			Vertex:     &fakeBuffer{target: gpu.TargetArrayBuffer},
			IndexCount: 0,
		},
	}
	ctx.resetEvents()
	r.Render(bufs, gpu.FrameState{}, nil)

	if events := ctx.recorded(); len(events) != 0 {
		t.Fatalf("expected no draw activity, got %v", events)
	}
}

func awaitResult(t *testing.T, out <-chan BuffersResult) BuffersResult {
	t.Helper()
	select {
	case result := <-out:
		return result
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a generation result")
		return BuffersResult{}
	}
}
