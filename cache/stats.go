package cache

import "fmt"

// Stats is a snapshot of cache counters.
type Stats struct {
	Len           int
	Capacity      int // per shard
	TotalCapacity int
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	Failures      uint64 // creation functions that returned an error
	HitRate       float64
}

// String formats the snapshot for logs and the CLI.
func (s Stats) String() string {
	return fmt.Sprintf("len=%d/%d hits=%d misses=%d evictions=%d failures=%d hit-rate=%.2f",
		s.Len, s.TotalCapacity, s.Hits, s.Misses, s.Evictions, s.Failures, s.HitRate)
}
