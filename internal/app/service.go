// Package service wires the store, the command pipeline and the report
// builders into the operations the HTTP API and the CLI need.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/okian/asamblea/internal/adapters/mq/queue"
	workerpool "github.com/okian/asamblea/internal/adapters/mq/worker"
	"github.com/okian/asamblea/internal/adapters/repository"
	"github.com/okian/asamblea/internal/domain/dedupe"
	"github.com/okian/asamblea/internal/domain/versioned"
	"github.com/okian/asamblea/pkg/logger"
	"github.com/okian/asamblea/pkg/metrics"
)

const stopTimeout = 30 * time.Second

// Service implements the API dependencies for participation tracking.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	ownsStore  bool
	deduper    dedupe.Deduper
	queue      queue.Queue
	workerPool *workerpool.Pool
	reports    *versioned.Cache[Report]
	pending    tracker

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	collation   language.Tag
	pageHeight  float64

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of shard workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued commands.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many submission ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the backing store. The caller keeps ownership and closes it.
// Without it the service runs on a private in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithCollationLanguage sets the BCP 47 language used to sort rosters and
// people exports. Unparseable tags keep the default.
func WithCollationLanguage(tag string) Option {
	return func(s *Service) {
		if t, err := language.Parse(tag); err == nil {
			s.collation = t
		}
	}
}

// WithPageHeight sets the report page height in points.
func WithPageHeight(points float64) Option {
	return func(s *Service) {
		if points > 0 {
			s.pageHeight = points
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   10000,
		dedupeSize:  50000,
		collation:   language.Spanish,
		reports:     versioned.NewCache[Report](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates the pipeline and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting participation service...")

	if s.store == nil || s.ownsStore {
		s.store = repository.NewMemoryStore()
		s.ownsStore = true
		s.logger.Info(ctx, "using in-memory store")
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.queue = q
	s.workerPool = workerpool.NewPool(s.workerCount, q, workerpool.ApplierFunc(s.Apply),
		workerpool.WithLogger(s.logger))
	// workers outlive the caller's context; Stop drains them
	s.workerPool.Start(context.WithoutCancel(ctx))

	if list, err := s.store.ListAssemblies(ctx); err == nil {
		metrics.UpdateAssembliesTotal(len(list))
	}

	s.started = true
	s.logger.Info(ctx, "participation service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("collation", s.collation.String()),
	)
	return nil
}

// Stop drains accepted commands and shuts the workers down.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	// workers read the store while draining, so release the lock first
	s.started = false
	pool, store, owns := s.workerPool, s.store, s.ownsStore
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping participation service...")
	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "worker pool shutdown", logger.Error(err))
	}
	if owns {
		if err := store.Close(); err != nil {
			s.logger.Error(ctx, "closing store", logger.Error(err))
		}
	}
	s.logger.Info(ctx, "participation service stopped")
}

// running returns the store and queue when the service has been started.
func (s *Service) running() (repository.Store, queue.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.store, s.queue, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	out := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"collation":   s.collation.String(),
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		out["queueLength"] = queueLen
		out["pending"] = s.pending.count()
		out["processed"] = s.workerPool.Processed()
		out["dedupeEntries"] = s.deduper.Size()
		out["cachedReports"] = s.reports.Len()
		if list, err := s.store.ListAssemblies(ctx); err == nil {
			out["assemblies"] = len(list)
			metrics.UpdateAssembliesTotal(len(list))
		}
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return out
}
