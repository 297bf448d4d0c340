package talk

// options holds the tunables shared by Connect and NewServer.
type options struct {
	runner   Runner
	maxConns int
}

func defaultOptions() options {
	return options{runner: goRunner{}}
}

// Option customizes a Conn or a Server.
type Option func(*options)

// WithRunner replaces the default goroutine-per-loop execution strategy.
// A nil Runner is ignored.
func WithRunner(r Runner) Option {
	return func(o *options) {
		if r != nil {
			o.runner = r
		}
	}
}

// WithMaxConns caps how many inbound connections a Server keeps open at
// once; further peers wait in the listen backlog until a slot frees up.
// Zero or negative means unlimited. Connect ignores this option.
func WithMaxConns(n int) Option {
	return func(o *options) {
		o.maxConns = n
	}
}
