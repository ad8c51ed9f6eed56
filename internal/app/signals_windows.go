//go:build windows

package app

import (
	"os"
	"syscall"
)

var platformSignals = signalSet{
	shutdown: []os.Signal{os.Interrupt, syscall.SIGTERM},
}
