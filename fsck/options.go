package fsck

import (
	"log/slog"
	"os"
)

type options struct {
	logger  *slog.Logger
	verbose bool
}

// Option configures a check run.
type Option func(*options)

// WithLogger routes per-finding and per-block log output to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithVerbose additionally logs every block as it is classified, at
// debug level.
func WithVerbose() Option {
	return func(o *options) {
		o.verbose = true
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.Level(1000), // unreachable level
		})),
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}
