package terminate

import (
	"errors"
	"fmt"

	"memguard/internal/units"
)

// ErrNotSupported is returned by notifiers on platforms that cannot write to
// another process's stderr
var ErrNotSupported = errors.New("writing to another process's stderr is not supported on this platform")

// Notifier writes a message into the standard error stream of another process
type Notifier interface {
	Notify(pid int32, message string) error
}

// StderrNotifier writes through the OS handle of the target's stderr
type StderrNotifier struct{}

// NewStderrNotifier creates the platform notifier
func NewStderrNotifier() *StderrNotifier {
	return &StderrNotifier{}
}

// Message builds the red diagnostic line shown in the killed process's terminal
func Message(memory, ceiling uint64) string {
	return fmt.Sprintf("\n\x1b[31mProcess killed by memguard: Memory usage %s exceeds limit %s\x1b[0m\n",
		units.FormatBytes(memory), units.FormatBytes(ceiling))
}
