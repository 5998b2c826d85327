//go:build !windows

package commands

import (
	"os"

	"golang.org/x/sys/unix"
)

var shutdownSignals = []os.Signal{unix.SIGINT, unix.SIGTERM}

// checkRoot warns when not running as root: other users' processes can then
// neither be inspected fully nor signalled
func checkRoot() {
	if unix.Geteuid() != 0 {
		logger.Warn("memguard is not running as root, processes of other users may be missed or survive")
	}
}
