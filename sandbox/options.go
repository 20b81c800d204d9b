package sandbox

import "time"

const (
	// DefaultTimeout is the wall-clock budget for one execution.
	DefaultTimeout = 5 * time.Second
	// DefaultMemoryLimit is the resident-memory ceiling for the worker.
	DefaultMemoryLimit = 100 << 20
	// DefaultSampleInterval is how often the monitor samples worker RSS.
	DefaultSampleInterval = 100 * time.Millisecond
)

type config struct {
	timeout        time.Duration
	memoryLimit    int64
	sampleInterval time.Duration
	workerPath     string
	workerArgs     []string
}

func defaultConfig() config {
	return config{
		timeout:        DefaultTimeout,
		memoryLimit:    DefaultMemoryLimit,
		sampleInterval: DefaultSampleInterval,
	}
}

// Option configures a Runner.
type Option func(*config)

// WithTimeout sets the wall-clock deadline for each execution.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMemoryLimit sets the resident-memory ceiling in bytes. Zero disables
// the ceiling (the monitor still reports peak usage).
func WithMemoryLimit(bytes int64) Option {
	return func(c *config) {
		c.memoryLimit = bytes
	}
}

// WithSampleInterval sets how often the resource monitor samples the
// worker's resident memory.
func WithSampleInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.sampleInterval = d
		}
	}
}

// WithWorkerCommand overrides the worker executable. By default the Runner
// re-executes the current binary, which dispatches into WorkerMain via the
// worker environment variable.
func WithWorkerCommand(path string, args ...string) Option {
	return func(c *config) {
		c.workerPath = path
		c.workerArgs = args
	}
}
