package constants

import "time"

// Guard defaults
const (
	DefaultMaxMemory   = "16GB"
	DefaultInterval    = 1 // seconds
	DefaultCouplePort  = 8000
	DefaultGracePeriod = 100 * time.Millisecond
)

// External lookup utilities used to find the coupled process
const (
	PortLookupCommand = "lsof"
	UserLookupCommand = "ps"
)

// Reason strings attached to termination results
const (
	ReasonMemoryExceeded = "Memory limit exceeded"
	ReasonCoupled        = "Coupled process (port %d)"
)

// Log level constants
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Common error messages
const (
	ErrUnknownValue = "Unknown"
)
