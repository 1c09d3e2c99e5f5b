// Package train orchestrates the pre-training loop: it draws collated
// batches in loader order and hands them to the model boundary. Model
// numerics, optimizer schedules, and checkpoint formats live behind
// the Model interface and are not this package's concern.
package train

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/V-Enzo/flashT5/internal/config"
	"github.com/V-Enzo/flashT5/internal/dataset"
	"github.com/V-Enzo/flashT5/internal/logging"
	"github.com/V-Enzo/flashT5/internal/metrics"
	"github.com/V-Enzo/flashT5/internal/models"
)

// StepStats reports one training step's outcome.
type StepStats struct {
	Loss     float64
	MSPLoss  float64
	POPLoss  float64
	NMLLoss  float64
	TokensPS float64
}

// Model is the trainer's view of the downstream network. Step consumes
// one batch and returns its statistics; the trainer never inspects the
// model beyond that.
type Model interface {
	Step(ctx context.Context, batch *models.Batch) (StepStats, error)
}

// Trainer runs epochs over a dataset loader.
type Trainer struct {
	cfg    *config.Config
	model  Model
	loader *dataset.Loader
	log    *logging.Logger

	// RunID identifies this training run in logs and metadata.
	RunID string

	// LogEvery controls step-level log frequency.
	LogEvery int
}

// NewTrainer creates a trainer.
func NewTrainer(cfg *config.Config, model Model, loader *dataset.Loader) *Trainer {
	return &Trainer{
		cfg:      cfg,
		model:    model,
		loader:   loader,
		log:      logging.TrainLogger(),
		RunID:    uuid.NewString(),
		LogEvery: 50,
	}
}

// Run executes the given number of epochs. Records are reshuffled with
// a per-epoch derived seed before each epoch; batches are consumed
// strictly in the order the loader yields them.
func (t *Trainer) Run(ctx context.Context, epochs int) error {
	t.log.Info("training run starting",
		"run_id", t.RunID,
		"epochs", epochs,
		"records", t.loader.Len(),
		"steps_per_epoch", t.loader.Steps(),
		"batch_size", t.cfg.BatchSize)

	for epoch := 0; epoch < epochs; epoch++ {
		if err := t.runEpoch(ctx, epoch); err != nil {
			return fmt.Errorf("train: epoch %d: %w", epoch, err)
		}
	}

	t.log.Info("training run complete", "run_id", t.RunID)
	return nil
}

func (t *Trainer) runEpoch(ctx context.Context, epoch int) error {
	epochStart := time.Now()

	rng := rand.New(rand.NewSource(t.cfg.Seed + int64(epoch)))
	dataset.Shuffle(rng, t.loader.Records())

	step := 0
	var lossSum float64
	for res := range t.loader.Batches(ctx) {
		if res.Err != nil {
			return res.Err
		}
		stats, err := t.model.Step(ctx, res.Batch)
		if err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
		metrics.TrainingSteps.Inc()
		lossSum += stats.Loss
		step++

		if t.LogEvery > 0 && step%t.LogEvery == 0 {
			t.log.Info("step",
				"epoch", epoch,
				"step", step,
				"loss", stats.Loss,
				"msp_loss", stats.MSPLoss,
				"pop_loss", stats.POPLoss,
				"nml_loss", stats.NMLLoss)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if step == 0 {
		return fmt.Errorf("no batches drawn")
	}

	t.log.Info("epoch complete",
		"epoch", epoch,
		"steps", step,
		"mean_loss", lossSum/float64(step),
		logging.Duration("elapsed", time.Since(epochStart)))
	return nil
}
