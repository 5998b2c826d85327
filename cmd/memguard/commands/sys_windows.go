//go:build windows

package commands

import "os"

var shutdownSignals = []os.Signal{os.Interrupt}

func checkRoot() {}
