//go:build !linux

package terminate

// Notify is a no-op outside Linux
func (StderrNotifier) Notify(int32, string) error {
	return ErrNotSupported
}
