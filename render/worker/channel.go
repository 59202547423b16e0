// package worker implements the buffer-generation side of the vector style
// renderer: render instructions go in, typed vertex/index arrays come out,
// asynchronously, with request/response correlation by unique ID.
package worker

import (
	"sync"
	"sync/atomic"

	"github.com/rycgar/openlayers/common"
)

// Opcode selects the tessellation routine a request runs.
type Opcode int

const (
	// OpPolygon triangulates polygon render instructions.
	OpPolygon Opcode = iota

	// OpLineString expands line string render instructions into segment quads.
	OpLineString

	// OpPoint expands point render instructions into symbol quads.
	OpPoint
)

// Request is one buffer-generation message. The sender transfers ownership of
// Instructions with the request and must not read or write the slice
// afterwards.
type Request struct {
	// ID correlates the eventual Response with this request. Obtain it from
	// NextRequestID.
	ID uint64

	// Op selects the tessellation routine.
	Op Opcode

	// Instructions is the flat render-instruction array for one geometry
	// kind, as produced by the vector package generators.
	Instructions []float64

	// Transform is the world-to-instruction transform the instructions were
	// generated under. Echoed back untouched so consumers can associate
	// buffers with the frame they were built for.
	Transform common.Transform

	// CustomAttributesSize is the number of trailing custom attribute values
	// per instruction vertex.
	CustomAttributesSize int
}

// Response is the reply to one Request. Exactly one Response is produced per
// Request, carrying the same ID.
type Response struct {
	ID       uint64
	Vertices []float32
	Indices  []uint32
	Err      error
}

// Channel is the request/response transport between the renderer and the
// buffer-generation workers. Implementations must deliver exactly one
// Response per sent Request, and must be safe for concurrent use.
type Channel interface {
	// Send submits a request for asynchronous processing. Ownership of
	// req.Instructions transfers to the channel.
	//
	// Parameters:
	//   - req: the request to process
	Send(req Request)

	// Expect registers interest in the response for the given request ID,
	// before or after the matching Send. The returned channel yields the
	// Response exactly once and is never closed without a value.
	//
	// Parameters:
	//   - id: the request ID to wait for
	//
	// Returns:
	//   - <-chan Response: a single-value response channel
	Expect(id uint64) <-chan Response

	// Forget abandons a pending request. A response arriving for a
	// forgotten ID is dropped silently.
	//
	// Parameters:
	//   - id: the request ID to abandon
	Forget(id uint64)
}

// requestIDs is the process-wide request ID counter. Package level so IDs
// stay unique across every renderer and channel instance; a response can
// never be claimed by a request it does not answer.
var requestIDs atomic.Uint64

// NextRequestID returns the next globally unique request ID.
//
// Returns:
//   - uint64: a monotonically increasing ID, unique process-wide
func NextRequestID() uint64 {
	return requestIDs.Add(1)
}

// Correlator matches responses to pending requests by ID. Each dispatched
// response wakes exactly one waiter; responses for unknown or forgotten IDs
// are dropped. Zero value is not usable, construct with NewCorrelator.
type Correlator struct {
	mu      *sync.Mutex
	pending map[uint64]chan Response
}

// NewCorrelator creates an empty Correlator.
//
// Returns:
//   - *Correlator: the new correlator
func NewCorrelator() *Correlator {
	return &Correlator{
		mu:      &sync.Mutex{},
		pending: make(map[uint64]chan Response),
	}
}

// Expect registers a waiter for the given ID and returns its response
// channel. The channel is buffered so Dispatch never blocks on a slow
// consumer.
//
// Parameters:
//   - id: the request ID to wait for
//
// Returns:
//   - <-chan Response: a single-value response channel
func (c *Correlator) Expect(id uint64) <-chan Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.pending[id]
	if !ok {
		ch = make(chan Response, 1)
		c.pending[id] = ch
	}
	return ch
}

// Forget removes the waiter for the given ID, if any.
//
// Parameters:
//   - id: the request ID to abandon
func (c *Correlator) Forget(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// Dispatch routes a response to its registered waiter and unregisters it.
// Responses with no waiter are dropped.
//
// Parameters:
//   - resp: the response to deliver
func (c *Correlator) Dispatch(resp Response) {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if ok {
		ch <- resp
	}
}
