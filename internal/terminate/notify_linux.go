//go:build linux

package terminate

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Notify opens /proc/<pid>/fd/2 without creating or truncating it and writes message
func (StderrNotifier) Notify(pid int32, message string) error {
	path := fmt.Sprintf("/proc/%d/fd/2", pid)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|unix.O_NOCTTY, 0)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(message)
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}
