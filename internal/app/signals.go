package app

import (
	"os"
	"os/signal"
)

// signalSet lists the OS signals that trigger a tool reload and a shutdown.
// Platforms without a reload signal leave reload empty, which leaves only
// the periodic trigger.
type signalSet struct {
	reload   []os.Signal
	shutdown []os.Signal
}

// subscribe registers for the set's signals. An empty list registers
// nothing, since signal.Notify with no signals relays all of them.
func (s signalSet) subscribe() (reload, shutdown <-chan os.Signal, stop func()) {
	reloadCh := make(chan os.Signal, 1)
	shutdownCh := make(chan os.Signal, 1)

	if len(s.reload) > 0 {
		signal.Notify(reloadCh, s.reload...)
	}
	if len(s.shutdown) > 0 {
		signal.Notify(shutdownCh, s.shutdown...)
	}

	return reloadCh, shutdownCh, func() {
		signal.Stop(reloadCh)
		signal.Stop(shutdownCh)
	}
}
