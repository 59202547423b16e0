package vector

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/rycgar/openlayers/render/gpu"
	"github.com/rycgar/openlayers/render/style"
	"github.com/rycgar/openlayers/render/worker"
)

// fakeProgram records the shader pair it was compiled from.
type fakeProgram struct {
	key string
}

func (p *fakeProgram) Key() string { return p.key }
func (p *fakeProgram) Handle() any { return nil }

// fakeBuffer keeps the uploaded bytes for inspection.
type fakeBuffer struct {
	data   []byte
	target gpu.BufferTarget
}

func (b *fakeBuffer) Handle() any              { return b.data }
func (b *fakeBuffer) Target() gpu.BufferTarget { return b.target }
func (b *fakeBuffer) ByteLength() int          { return len(b.data) }

// fakeContext is an in-memory gpu.Context that records every call in order.
// Safe for concurrent use, as buffer uploads arrive from collector goroutines.
type fakeContext struct {
	mu       sync.Mutex
	alive    bool
	events   []string
	uploads  []*fakeBuffer
	uniforms map[string]style.UniformSource
	programs int
}

var _ gpu.Context = &fakeContext{}

func newFakeContext() *fakeContext {
	return &fakeContext{alive: true}
}

func (c *fakeContext) record(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *fakeContext) recorded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	copy(out, c.events)
	return out
}

func (c *fakeContext) resetEvents() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

func (c *fakeContext) CompileProgram(vertexSrc, fragmentSrc string) (gpu.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.programs++
	key := fmt.Sprintf("program_%d", c.programs)
	c.events = append(c.events, "compile:"+vertexSrc)
	return &fakeProgram{key: key}, nil
}

func (c *fakeContext) RegisterUniforms(uniforms map[string]style.UniformSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uniforms = uniforms
}

func (c *fakeContext) SetUniform(name string, value []float32) {
	c.record("setUniform:" + name)
}

func (c *fakeContext) UseProgram(p gpu.Program, frameState gpu.FrameState) {
	c.record("use:" + p.Key())
}

func (c *fakeContext) BindBuffer(b gpu.Buffer) {
	if b.Target() == gpu.TargetElementArrayBuffer {
		c.record("bindIndex")
	} else {
		c.record("bindVertex")
	}
}

func (c *fakeContext) SetAttributeLayout(attributes []gpu.AttributeDescriptor) {
	c.record("layout")
}

func (c *fakeContext) Draw(offset, count int) {
	c.record(fmt.Sprintf("draw:%d:%d", offset, count))
}

func (c *fakeContext) UploadBuffer(data []byte, target gpu.BufferTarget, usage gpu.BufferUsage) (gpu.Buffer, error) {
	buf := &fakeBuffer{data: data, target: target}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploads = append(c.uploads, buf)
	return buf, nil
}

func (c *fakeContext) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *fakeContext) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = false
}

// fakeChannel captures requests and only responds when the test says so.
type fakeChannel struct {
	mu         sync.Mutex
	correlator *worker.Correlator
	requests   []worker.Request
}

var _ worker.Channel = &fakeChannel{}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{correlator: worker.NewCorrelator()}
}

func (f *fakeChannel) Send(req worker.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

func (f *fakeChannel) Expect(id uint64) <-chan worker.Response {
	return f.correlator.Expect(id)
}

func (f *fakeChannel) Forget(id uint64) {
	f.correlator.Forget(id)
}

func (f *fakeChannel) respond(resp worker.Response) {
	f.correlator.Dispatch(resp)
}

func (f *fakeChannel) sent() []worker.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]worker.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// bytesToFloat32 decodes an uploaded vertex buffer back into float32 values.
func bytesToFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.NativeEndian.Uint32(data[i*4:]))
	}
	return out
}
