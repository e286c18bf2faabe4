package worker

import (
	"github.com/okian/asamblea/pkg/logger"
)

// Option configures a Pool.
type Option func(*poolOptions)

type poolOptions struct {
	logger      logger.Logger
	shardBuffer int
}

// WithLogger sets the logger used by the pool and its workers.
func WithLogger(l logger.Logger) Option {
	return func(o *poolOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithShardBuffer sets how many commands may wait in front of each worker.
func WithShardBuffer(n int) Option {
	return func(o *poolOptions) {
		if n > 0 {
			o.shardBuffer = n
		}
	}
}
