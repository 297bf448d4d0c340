package talk

// Runner selects the execution context for a connection's read loop and a
// server's accept loop. Implementations must actually run every task handed
// to Go, each on its own goroutine (or equivalent); the delivery guarantees
// of Conn and Server hold under any Runner that does so.
type Runner interface {
	// Go schedules task and returns without waiting for it to finish.
	Go(task func())
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(task func())

// Go calls f(task).
func (f RunnerFunc) Go(task func()) { f(task) }

// goRunner is the default strategy: one goroutine per loop.
type goRunner struct{}

func (goRunner) Go(task func()) { go task() }
