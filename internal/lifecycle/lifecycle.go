// Package lifecycle holds the process-wide draining flag. The health
// endpoint reports shutting-down (503) while the flag is set so load
// balancers stop routing new traffic during shutdown.
package lifecycle

import "sync/atomic"

var shuttingDown atomic.Bool

// SetShuttingDown flips the draining flag. Set on SIGTERM/SIGINT before
// closing the listener.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}
