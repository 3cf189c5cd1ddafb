package job

// Options configures per-kind submission defaults — max attempts and
// acquire priority — applied by the ingestion API when a caller submits
// a job without overriding them.
type Options struct {
	// MaxAttempts is the maximum number of attempts before a job moves
	// to dead.
	MaxAttempts int

	// Priority determines acquire ordering. Higher values are
	// processed first.
	Priority int
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 3,
		Priority:    0,
	}
}

// Option is a functional option for configuring submission defaults.
type Option func(*Options)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		o.MaxAttempts = n
	}
}

// WithPriority sets the job priority. Higher values are processed first.
func WithPriority(p int) Option {
	return func(o *Options) {
		o.Priority = p
	}
}
