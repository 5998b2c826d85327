// Package main is the entry point for the memguard daemon
package main

import (
	"os"
	"runtime"
	"runtime/debug"

	"memguard/cmd/memguard/commands"
)

func main() {
	// The guard itself must stay small: collect garbage aggressively
	debug.SetGCPercent(50)

	// Soft memory limit so the guard never becomes a violator of its own ceiling
	debug.SetMemoryLimit(64 * 1024 * 1024) // 64 MB

	// Single loop of control, a couple of threads are enough for exec and syscalls
	runtime.GOMAXPROCS(2)

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
