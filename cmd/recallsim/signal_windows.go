//go:build windows

package main

import "os"

// shutdownSignals lists the signals that cancel a running batch.
// Windows only delivers os.Interrupt.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
