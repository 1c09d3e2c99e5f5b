package dataset

import (
	"context"

	"github.com/V-Enzo/flashT5/internal/collate"
	"github.com/V-Enzo/flashT5/internal/models"
)

// Result is one loader emission: a collated batch or the error that
// stopped the epoch.
type Result struct {
	Batch *models.Batch
	Err   error
}

// Loader draws fixed-size batches over a flow record dataset and runs
// the collator on each. Batches are emitted in dataset order over an
// unbuffered channel, so the consuming training loop observes strict
// FIFO semantics and the epoch's shuffling contract is preserved.
type Loader struct {
	records   []models.FlowRecord
	batchSize int
	collator  *collate.Collator
}

// NewLoader creates a loader over records.
func NewLoader(records []models.FlowRecord, batchSize int, collator *collate.Collator) *Loader {
	return &Loader{
		records:   records,
		batchSize: batchSize,
		collator:  collator,
	}
}

// Len returns the number of records.
func (l *Loader) Len() int {
	return len(l.records)
}

// Steps returns the number of batches per epoch, counting a trailing
// partial batch.
func (l *Loader) Steps() int {
	return (len(l.records) + l.batchSize - 1) / l.batchSize
}

// Records exposes the underlying records, e.g. for reshuffling between
// epochs.
func (l *Loader) Records() []models.FlowRecord {
	return l.records
}

// Batches starts one epoch. The channel closes after the final batch
// or after the Result carrying a collation error.
func (l *Loader) Batches(ctx context.Context) <-chan Result {
	out := make(chan Result)
	go func() {
		defer close(out)
		for start := 0; start < len(l.records); start += l.batchSize {
			end := start + l.batchSize
			if end > len(l.records) {
				end = len(l.records)
			}
			batch, err := l.collator.Collate(l.records[start:end])
			select {
			case out <- Result{Batch: batch, Err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}
