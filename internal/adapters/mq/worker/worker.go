// Package worker applies queued commands to the store. Commands are sharded by
// assembly so that one assembly's commands are applied by a single worker in
// the order they were queued, while different assemblies proceed in parallel.
package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/asamblea/internal/adapters/mq/queue"
	"github.com/okian/asamblea/pkg/logger"
	"github.com/okian/asamblea/pkg/metrics"
)

const (
	defaultShardBuffer  = 64
	poolShutdownTimeout = 30 * time.Second
)

// Applier performs one command.
type Applier interface {
	Apply(ctx context.Context, c queue.Command) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(ctx context.Context, c queue.Command) error

// Apply calls f.
func (f ApplierFunc) Apply(ctx context.Context, c queue.Command) error { return f(ctx, c) }

// Queue defines how the pool receives commands.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Command
}

// Worker applies the commands of one shard.
type Worker struct {
	name    string
	in      chan queue.Command
	applier Applier
	active  *atomic.Int64
	done    chan struct{}
	logger  logger.Logger
}

func newWorker(name string, applier Applier, active *atomic.Int64, log logger.Logger, buffer int) *Worker {
	return &Worker{
		name:    name,
		in:      make(chan queue.Command, buffer),
		applier: applier,
		active:  active,
		done:    make(chan struct{}),
		logger:  log.Named(name),
	}
}

// run applies commands until its input is closed.
func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	for c := range w.in {
		if err := w.process(ctx, c); err != nil {
			w.logger.Error(ctx, "error applying command",
				logger.String("command_id", c.ID),
				logger.String("kind", string(c.Kind)),
				logger.String("assembly_id", c.AssemblyID),
				logger.Error(err))
		}
	}
}

func (w *Worker) process(ctx context.Context, c queue.Command) error { //nolint:gocritic // hugeParam: value semantics through the channel
	start := time.Now()
	if !c.EnqueuedAt.IsZero() {
		metrics.RecordQueueProcessingLatency(float64(start.Sub(c.EnqueuedAt).Microseconds()) / 1000)
	}
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.applier.Apply(ctx, c); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", string(c.Kind))
		return fmt.Errorf("apply %s %s: %w", c.Kind, c.ID, err)
	}
	return nil
}

// Pool dispatches commands from a queue to a fixed set of shard workers.
type Pool struct {
	workers []*Worker
	queue   Queue
	active  atomic.Int64

	processed atomic.Int64

	startOnce  sync.Once
	dispatched chan struct{}
	logger     logger.Logger
}

// NewPool creates a pool of workerCount shard workers. A count below one
// defaults to the number of CPUs.
func NewPool(workerCount int, q Queue, applier Applier, opts ...Option) *Pool {
	o := poolOptions{logger: logger.Nop(), shardBuffer: defaultShardBuffer}
	for _, opt := range opts {
		opt(&o)
	}
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers:    make([]*Worker, workerCount),
		queue:      q,
		dispatched: make(chan struct{}),
		logger:     o.logger.Named("worker-pool"),
	}
	counted := ApplierFunc(func(ctx context.Context, c queue.Command) error {
		err := applier.Apply(ctx, c)
		p.processed.Add(1)
		return err
	})
	for i := range p.workers {
		p.workers[i] = newWorker("worker-"+strconv.Itoa(i), counted, &p.active, o.logger, o.shardBuffer)
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)

	return p
}

// Size returns the number of shard workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns how many commands have been applied, successfully or not.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// ShardFor returns the worker index that owns assemblyID.
func ShardFor(assemblyID string, shards int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(assemblyID))
	return int(h.Sum32() % uint32(shards))
}

// Start launches the workers and the dispatcher. Calling it again has no effect.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for _, w := range p.workers {
			go w.run(ctx)
		}
		go p.dispatch(ctx)
	})
}

func (p *Pool) dispatch(ctx context.Context) {
	defer func() {
		for _, w := range p.workers {
			close(w.in)
		}
		close(p.dispatched)
	}()
	for c := range p.queue.Dequeue(ctx) {
		w := p.workers[ShardFor(c.AssemblyID, len(p.workers))]
		select {
		case w.in <- c:
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown closes the queue when it can be closed, lets the workers drain what
// was already accepted and waits for them until ctx or the pool timeout expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	select {
	case <-p.dispatched:
	case <-shutdownCtx.Done():
		return fmt.Errorf("dispatcher shutdown timed out: %w", shutdownCtx.Err())
	}
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker %d shutdown timed out: %w", i, shutdownCtx.Err())
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return nil
}
