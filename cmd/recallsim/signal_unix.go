//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals lists the signals that cancel a running batch.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
