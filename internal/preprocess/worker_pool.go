package preprocess

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/V-Enzo/flashT5/internal/models"
)

// PoolConfig holds configuration for the preprocessing worker pool.
type PoolConfig struct {
	// NumWorkers is the number of worker goroutines.
	// Defaults to runtime.NumCPU() if not set.
	NumWorkers int

	// ChunkSize is the number of records per work chunk.
	// Defaults to 1000 if not set.
	ChunkSize int

	// BaseSeed seeds the randomized choices. Each chunk draws from a
	// stream derived as BaseSeed XOR chunk index, so the output is
	// identical for any worker count or scheduling order.
	BaseSeed int64
}

// DefaultPoolConfig returns a sensible default configuration.
func DefaultPoolConfig(seed int64) *PoolConfig {
	return &PoolConfig{
		NumWorkers: runtime.NumCPU(),
		ChunkSize:  1000,
		BaseSeed:   seed,
	}
}

// Pool fans flow preprocessing out over disjoint record chunks.
// Results are concatenated by input order, never completion order.
type Pool struct {
	cfg *PoolConfig
	pre *Preprocessor

	// Statistics
	recordsProcessed uint64
	chunksProcessed  uint64
}

// NewPool creates a worker pool around a preprocessor.
func NewPool(pre *Preprocessor, cfg *PoolConfig) *Pool {
	if cfg == nil {
		cfg = DefaultPoolConfig(0)
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = runtime.NumCPU()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	return &Pool{cfg: cfg, pre: pre}
}

// chunk is a contiguous shard of the input records.
type chunk struct {
	index int
	start int
	end   int
}

// Run preprocesses all records and returns the flow records in input
// order. The first chunk error cancels the remaining work.
func (p *Pool) Run(ctx context.Context, records []models.RawRecord) ([]models.FlowRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}

	out := make([]models.FlowRecord, len(records))

	chunks := make(chan chunk)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for w := 0; w < p.cfg.NumWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range chunks {
				rng := rand.New(rand.NewSource(p.cfg.BaseSeed ^ int64(c.index)))
				recs, err := p.pre.ProcessChunk(rng, records[c.start:c.end])
				if err != nil {
					fail(fmt.Errorf("preprocess: chunk %d: %w", c.index, err))
					return
				}
				copy(out[c.start:c.end], recs)
				atomic.AddUint64(&p.recordsProcessed, uint64(c.end-c.start))
				atomic.AddUint64(&p.chunksProcessed, 1)
			}
		}()
	}

	index := 0
feed:
	for start := 0; start < len(records); start += p.cfg.ChunkSize {
		end := start + p.cfg.ChunkSize
		if end > len(records) {
			end = len(records)
		}
		select {
		case chunks <- chunk{index: index, start: start, end: end}:
			index++
		case <-ctx.Done():
			break feed
		}
	}
	close(chunks)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns current pool statistics.
func (p *Pool) Stats() (records, chunks uint64) {
	return atomic.LoadUint64(&p.recordsProcessed),
		atomic.LoadUint64(&p.chunksProcessed)
}
