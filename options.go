package gridtree

type options struct {
	name             string
	offHeap          bool
	degree           int
	arenaChunkSize   int
	logger           *Logger
	metricsCollector MetricsCollector
}

// Option configures Index construction.
type Option func(*options)

// WithName tags the index with a name used in logs.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithOffHeap selects the off-heap storage variant: rows are serialized into
// refcounted arena memory outside the GC heap. The variant is fixed at
// construction and cannot change at runtime.
func WithOffHeap() Option {
	return func(o *options) {
		o.offHeap = true
	}
}

// WithDegree sets the tree branching factor. If degree <= 0, the variant
// default is used.
func WithDegree(degree int) Option {
	return func(o *options) {
		o.degree = degree
	}
}

// WithArenaChunkSize sets the off-heap arena chunk size in bytes. Only
// meaningful together with WithOffHeap.
func WithArenaChunkSize(size int) Option {
	return func(o *options) {
		o.arenaChunkSize = size
	}
}

// WithLogger sets the logger. If nil, logging is disabled.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithMetricsCollector sets the metrics collector. If nil,
// NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}
