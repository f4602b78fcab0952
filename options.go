package sharkfs

// DefaultMaxOpenFiles is the default capacity of the descriptor table.
// It is intentionally larger than the base directory capacity: the
// same file may be open through several descriptors at once.
const DefaultMaxOpenFiles = 32

type options struct {
	logger       *Logger
	metrics      MetricsCollector
	maxOpenFiles int
}

// Option configures Format and Mount behavior.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithMaxOpenFiles configures the capacity of the descriptor table.
// Values below 1 keep the default.
func WithMaxOpenFiles(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.maxOpenFiles = n
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:       NoopLogger(),
		metrics:      NoopMetricsCollector{},
		maxOpenFiles: DefaultMaxOpenFiles,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
