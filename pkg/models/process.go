package models

// ProcessRecord is one entry of a process snapshot. Records are rebuilt on every
// refresh and never mutated.
type ProcessRecord struct {
	PID         int32  `json:"pid"`
	OwnerUID    string `json:"owner_uid,omitempty"` // empty when the owner could not be resolved
	Name        string `json:"name"`
	MemoryBytes uint64 `json:"resident_memory_bytes"`
}

// HasOwner reports whether the owning user of the process is known
func (r ProcessRecord) HasOwner() bool {
	return r.OwnerUID != ""
}
