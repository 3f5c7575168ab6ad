package isod

import (
	"runtime"

	"github.com/sirupsen/logrus"
)

// Option configures an Execute invocation.
type Option func(*options)

type options struct {
	logger      *logrus.Entry
	progress    ProgressFunc
	parallelism int
}

func newOptions(opts ...Option) *options {
	cfg := &options{
		logger:      logrus.NewEntry(logrus.StandardLogger()),
		parallelism: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.parallelism <= 0 {
		cfg.parallelism = 1
	}
	return cfg
}

// WithLogger overrides the logrus entry Execute logs phase transitions
// and per-task decisions to.
func WithLogger(logger *logrus.Entry) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithProgress registers a callback invoked as each task starts and
// finishes. It is the engine's sole concession to progress display,
// which otherwise belongs entirely to the caller (see spec.md §1).
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithParallelism bounds how many tasks may execute concurrently. n <= 0
// is ignored, leaving the runtime.GOMAXPROCS(0) default in place.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}
