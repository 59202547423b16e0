package worker

import (
	"runtime"
	"time"

	workertools "github.com/Carmen-Shannon/automation/tools/worker"
)

// defaultQueueSize is the task queue depth of the tessellation pool.
const defaultQueueSize = 256

// TessellationPool is the in-process Channel implementation. Requests are
// tessellated on a dynamic worker pool that grows under load and sheds idle
// workers after a short timeout.
type TessellationPool interface {
	Channel
}

type tessellationPool struct {
	pool       workertools.DynamicWorkerPool
	correlator *Correlator
}

var _ TessellationPool = &tessellationPool{}

// PoolOption is a functional option used to configure a TessellationPool
// during construction.
type PoolOption func(*poolConfig)

type poolConfig struct {
	workers     int
	queueSize   int
	idleTimeout time.Duration
}

// WithWorkers sets the maximum worker count. Values below 1 are ignored.
//
// Parameters:
//   - n: the maximum number of concurrent tessellation workers
//
// Returns:
//   - PoolOption: a function that sets the worker count
func WithWorkers(n int) PoolOption {
	return func(cfg *poolConfig) {
		if n >= 1 {
			cfg.workers = n
		}
	}
}

// WithQueueSize sets the pending task queue depth. Values below 1 are ignored.
//
// Parameters:
//   - n: the queue depth
//
// Returns:
//   - PoolOption: a function that sets the queue size
func WithQueueSize(n int) PoolOption {
	return func(cfg *poolConfig) {
		if n >= 1 {
			cfg.queueSize = n
		}
	}
}

// NewTessellationPool creates a TessellationPool. By default it scales to one
// worker fewer than the CPU count, keeping a core free for the render thread.
//
// Parameters:
//   - options: variadic list of PoolOption functions
//
// Returns:
//   - TessellationPool: the configured pool
func NewTessellationPool(options ...PoolOption) TessellationPool {
	cfg := &poolConfig{
		workers:     max(runtime.NumCPU()-1, 1),
		queueSize:   defaultQueueSize,
		idleTimeout: 1 * time.Second,
	}
	for _, opt := range options {
		opt(cfg)
	}

	return &tessellationPool{
		pool:       workertools.NewDynamicWorkerPool(cfg.workers, cfg.queueSize, cfg.idleTimeout),
		correlator: NewCorrelator(),
	}
}

func (t *tessellationPool) Send(req Request) {
	t.pool.SubmitTask(workertools.Task{
		ID: int(req.ID),
		Do: func() (any, error) {
			t.correlator.Dispatch(execute(req))
			return nil, nil
		},
	})
}

func (t *tessellationPool) Expect(id uint64) <-chan Response {
	return t.correlator.Expect(id)
}

func (t *tessellationPool) Forget(id uint64) {
	t.correlator.Forget(id)
}
