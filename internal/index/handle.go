package index

import "sync/atomic"

// Handle is the serving path's one indirection to the current index
// snapshot. Reads are lock-free; a rebuild swaps in a new snapshot
// atomically, so in-flight searches continue against the old snapshot or
// the new one, never a half-built one.
type Handle struct {
	current atomic.Pointer[Snapshot]
}

// NewHandle creates a handle serving the given snapshot.
func NewHandle(snap *Snapshot) *Handle {
	h := &Handle{}
	if snap != nil {
		h.current.Store(snap)
	}
	return h
}

// Snapshot returns the currently served snapshot, or nil when none is
// loaded yet.
func (h *Handle) Snapshot() *Snapshot {
	return h.current.Load()
}

// Swap atomically replaces the served snapshot and returns the previous
// one.
func (h *Handle) Swap(snap *Snapshot) *Snapshot {
	return h.current.Swap(snap)
}
