//go:build unix

package app

import (
	"os"
	"syscall"
)

// SIGHUP follows the usual daemon convention; SIGUSR1 is kept for existing
// deployment scripts.
var platformSignals = signalSet{
	reload:   []os.Signal{syscall.SIGHUP, syscall.SIGUSR1},
	shutdown: []os.Signal{os.Interrupt, syscall.SIGTERM},
}
