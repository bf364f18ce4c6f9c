//go:build !windows

package terminal

import (
	"os"
	"syscall"
)

// InterruptSignals are the signals that start a graceful shutdown.
var InterruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
