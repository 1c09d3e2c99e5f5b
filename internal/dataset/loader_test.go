package dataset

import (
	"context"
	"math/rand"
	"testing"

	"github.com/V-Enzo/flashT5/internal/collate"
	"github.com/V-Enzo/flashT5/internal/config"
	"github.com/V-Enzo/flashT5/internal/models"
)

func loaderTestConfig() *config.Config {
	return &config.Config{
		MaxLength:           32,
		OptimalLength:       48,
		MaxLabelsLength:     32,
		NoiseDensity:        0.15,
		MeanNoiseSpanLength: 3,
		MinMaskSpanLength:   5,
		NMLLabelGap:         4,
	}
}

// loaderFlow builds a minimal single-packet flow whose first token
// identifies the record.
func loaderFlow(cfg *config.Config, tag int) models.FlowRecord {
	ids := make([]int, cfg.OptimalLength)
	for i := range ids {
		ids[i] = models.IgnoreID
	}
	row := []int{200 + tag, 201, 202, models.HeadID, 203, 204, 205, models.PktID}
	copy(ids, row)
	return models.FlowRecord{
		InputIDs:  ids,
		POPOrder:  []int{models.IgnoreID},
		NMLLabels: []int{models.IgnoreID, models.IgnoreID, models.IgnoreID, models.IgnoreID},
	}
}

func TestLoader_FIFOAndSteps(t *testing.T) {
	cfg := loaderTestConfig()
	records := make([]models.FlowRecord, 7)
	for i := range records {
		records[i] = loaderFlow(cfg, i)
	}

	l := NewLoader(records, 3, collate.NewCollator(cfg, rand.New(rand.NewSource(1))))
	if l.Len() != 7 {
		t.Fatalf("len = %d", l.Len())
	}
	if l.Steps() != 3 {
		t.Fatalf("steps = %d, want 3 (two full batches plus remainder)", l.Steps())
	}

	wantSizes := []int{3, 3, 1}
	next := 0
	step := 0
	for res := range l.Batches(context.Background()) {
		if res.Err != nil {
			t.Fatalf("step %d: %v", step, res.Err)
		}
		if res.Batch.Size() != wantSizes[step] {
			t.Fatalf("step %d size = %d, want %d", step, res.Batch.Size(), wantSizes[step])
		}
		// First input token identifies the record; order must be FIFO.
		for i := 0; i < res.Batch.Size(); i++ {
			if got := res.Batch.InputIDs[i][0]; got != 200+next {
				t.Fatalf("step %d row %d starts with %d, want %d", step, i, got, 200+next)
			}
			next++
		}
		step++
	}
	if step != 3 {
		t.Fatalf("epoch emitted %d batches, want 3", step)
	}
}

func TestLoader_StopsOnError(t *testing.T) {
	cfg := loaderTestConfig()
	records := []models.FlowRecord{
		loaderFlow(cfg, 0),
		{InputIDs: []int{200}}, // wrong pre-mask length
		loaderFlow(cfg, 2),
	}

	l := NewLoader(records, 1, collate.NewCollator(cfg, rand.New(rand.NewSource(1))))
	var results []Result
	for res := range l.Batches(context.Background()) {
		results = append(results, res)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (one batch, one error)", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("first batch failed: %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Fatal("bad record did not surface an error")
	}
}

func TestLoader_ContextCancel(t *testing.T) {
	cfg := loaderTestConfig()
	records := make([]models.FlowRecord, 10)
	for i := range records {
		records[i] = loaderFlow(cfg, i)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoader(records, 1, collate.NewCollator(cfg, rand.New(rand.NewSource(1))))
	ch := l.Batches(ctx)

	if res := <-ch; res.Err != nil {
		t.Fatalf("first batch: %v", res.Err)
	}
	cancel()

	// The epoch must terminate; draining cannot block forever.
	for range ch {
	}
}
