package binding

import "sync/atomic"

// IdentityCounter hands out object IDs for debugging and mirror tracking.
// Each device owns one; there is no process-wide counter.
//
// Thread Safety: IdentityCounter is safe for concurrent use.
type IdentityCounter struct {
	next atomic.Uint64
}

// Next returns the next ID. IDs start at 1.
func (c *IdentityCounter) Next() uint64 {
	return c.next.Add(1)
}
