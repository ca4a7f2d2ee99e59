package terrain

// Option configures a Renderer during creation.
//
// Example:
//
//	// Development build: contract violations panic.
//	r := terrain.New(backend, terrain.WithStrict(true))
type Option func(*options)

type options struct {
	strict       bool
	maxChunks    int
	stagingBytes int
}

func defaultOptions() options {
	return options{
		maxChunks: MaxChunks,
	}
}

// WithStrict selects development behavior for contract violations: calls
// made in the wrong frame state panic instead of being ignored.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithMaxChunks lowers the per-category chunk cap. Values outside
// (0, MaxChunks] are ignored.
func WithMaxChunks(n int) Option {
	return func(o *options) {
		if n > 0 && n <= MaxChunks {
			o.maxChunks = n
		}
	}
}

// WithInitialStaging sets the initial staging capacity of every category in
// bytes. The region still grows on demand.
func WithInitialStaging(bytes int) Option {
	return func(o *options) {
		if bytes > 0 {
			o.stagingBytes = bytes
		}
	}
}
