package dedupe

// DefaultMaxSize is the number of keys a Tracker keeps by default.
const DefaultMaxSize = 10000

type options struct {
	maxSize int
}

// Option applies a configuration option to a Tracker.
type Option func(*options)

// WithMaxSize sets the maximum number of keys to keep in memory.
// A value <= 0 disables tracking: every key is reported as new.
func WithMaxSize(maxSize int) Option {
	return func(o *options) {
		o.maxSize = maxSize
	}
}
