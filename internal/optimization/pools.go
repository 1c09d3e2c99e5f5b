// Package optimization provides allocation-reuse utilities for the
// hot collation path.
package optimization

import (
	"sync"
	"sync/atomic"
)

// BoolSlicePool pools boolean scratch slices up to a fixed capacity.
// The collator burns one attendable-flag buffer per row; pooling keeps
// the per-batch allocation count flat.
type BoolSlicePool struct {
	pool sync.Pool
	size int
	gets uint64
	puts uint64
	news uint64
}

// NewBoolSlicePool creates a pool of slices with the given capacity.
func NewBoolSlicePool(size int) *BoolSlicePool {
	bp := &BoolSlicePool{size: size}
	bp.pool.New = func() interface{} {
		atomic.AddUint64(&bp.news, 1)
		return make([]bool, size)
	}
	return bp
}

// Get retrieves a zeroed slice of length n from the pool. Requests
// beyond the pool's capacity fall back to a fresh allocation.
func (bp *BoolSlicePool) Get(n int) []bool {
	atomic.AddUint64(&bp.gets, 1)
	if n > bp.size {
		return make([]bool, n)
	}
	buf := bp.pool.Get().([]bool)[:n]
	for i := range buf {
		buf[i] = false
	}
	return buf
}

// Put returns a slice to the pool.
func (bp *BoolSlicePool) Put(buf []bool) {
	if cap(buf) >= bp.size {
		bp.pool.Put(buf[:bp.size])
		atomic.AddUint64(&bp.puts, 1)
	}
}

// Stats returns pool statistics.
func (bp *BoolSlicePool) Stats() (gets, puts, news uint64) {
	return atomic.LoadUint64(&bp.gets),
		atomic.LoadUint64(&bp.puts),
		atomic.LoadUint64(&bp.news)
}
