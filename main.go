// Command flasht5 runs the pre-training data pipeline: pcap ingest,
// offline flow preprocessing, and the training loop that consumes
// collated batches.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/V-Enzo/flashT5/internal/collate"
	"github.com/V-Enzo/flashT5/internal/config"
	"github.com/V-Enzo/flashT5/internal/dataset"
	"github.com/V-Enzo/flashT5/internal/ingest"
	"github.com/V-Enzo/flashT5/internal/logging"
	"github.com/V-Enzo/flashT5/internal/metrics"
	"github.com/V-Enzo/flashT5/internal/models"
	"github.com/V-Enzo/flashT5/internal/preprocess"
	"github.com/V-Enzo/flashT5/internal/tokenizer"
	"github.com/V-Enzo/flashT5/internal/train"
)

func main() {
	logging.Init(nil)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "ingest":
		err = runIngest(os.Args[2:])
	case "preprocess":
		err = runPreprocess(ctx, os.Args[2:])
	case "train":
		err = runTrain(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logging.Error("command failed", "command", os.Args[1], logging.Err(err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: flasht5 <command> [flags]

commands:
  ingest      convert pcap captures to the JSONL flow dataset
  preprocess  tokenize, truncate and label flows into the dataset cache
  train       run the pre-training loop over the cached dataset`)
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	pcapPath := fs.String("pcap", "", "input pcap file")
	outPath := fs.String("out", "", "output JSONL file")
	packets := fs.Int("packets", 10, "packets kept per flow")
	payloadLimit := fs.Int("payload-limit", 256, "payload bytes rendered per packet")
	bpf := fs.String("bpf", "", "optional BPF filter")
	fs.Parse(args)

	if *pcapPath == "" || *outPath == "" {
		return fmt.Errorf("ingest: -pcap and -out are required")
	}

	out, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("ingest: create %s: %w", *outPath, err)
	}
	defer out.Close()

	in := ingest.NewIngester(&ingest.Config{
		PacketsPerFlow:   *packets,
		PayloadByteLimit: *payloadLimit,
		BPFFilter:        *bpf,
	})
	flows, err := in.IngestFile(*pcapPath, out)
	if err != nil {
		return err
	}
	logging.IngestLogger().Info("ingest complete", "flows", flows, "out", *outPath)
	return nil
}

func runPreprocess(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("preprocess", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	dataPath := fs.String("data", "", "input JSONL file or directory (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dataPath != "" {
		cfg.DataPath = *dataPath
	}
	if cfg.DataPath == "" {
		return fmt.Errorf("preprocess: no data path configured")
	}

	_, err = buildDataset(ctx, cfg)
	return err
}

func runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	epochs := fs.Int("epochs", 1, "number of epochs")
	metricsAddr := fs.String("metrics-addr", "", "optional /metrics listen address")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if cfg.DataPath == "" {
		return fmt.Errorf("train: no data path configured")
	}
	checkLengthBudget(cfg)

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logging.Error("metrics server stopped", logging.Err(err))
			}
		}()
	}

	logging.LogRuntimeInfo(logging.TrainLogger())

	records, err := buildDataset(ctx, cfg)
	if err != nil {
		return err
	}

	collator := collate.NewCollator(cfg, rand.New(rand.NewSource(cfg.Seed)))
	loader := dataset.NewLoader(records, cfg.BatchSize, collator)

	// The real network binds in through the Model interface; the dry
	// run model exercises the full data path.
	trainer := train.NewTrainer(cfg, train.DryRunModel{}, loader)
	return trainer.Run(ctx, *epochs)
}

// checkLengthBudget compares the configured pre-mask and label budgets
// against the lengths the masking parameters actually produce. A
// mismatch is survivable (the compactor still hard-errors on real
// overflow) but usually means a copy-pasted config, so it is logged
// loudly up front.
func checkLengthBudget(cfg *config.Config) {
	tokens, targets := collate.ComputeInputAndTargetLengths(cfg.MaxLength, cfg.NoiseDensity, cfg.MeanNoiseSpanLength)
	log := logging.TrainLogger()
	if cfg.OptimalLength != tokens {
		log.Warn("optimal_length disagrees with masking parameters",
			"optimal_length", cfg.OptimalLength, "derived", tokens)
	}
	if cfg.MaxLabelsLength < targets {
		log.Warn("max_labels_length below derived target length",
			"max_labels_length", cfg.MaxLabelsLength, "derived", targets)
	}
}

// buildDataset loads the preprocessed dataset from cache, running the
// offline preprocessing pass on a cache miss.
func buildDataset(ctx context.Context, cfg *config.Config) ([]models.FlowRecord, error) {
	log := logging.PreprocessLogger()
	cache := preprocess.NewCache(cfg.CacheDir)
	key := cache.Key(cfg, cfg.DataPath)

	if records, ok, err := cache.Load(key); err != nil {
		return nil, err
	} else if ok {
		log.Info("dataset cache hit", "key", key, "records", len(records))
		return records, nil
	}

	raw, err := dataset.LoadRaw(cfg.DataPath)
	if err != nil {
		return nil, err
	}

	// Class label indices depend on first-seen order, so the mapping
	// is built in this single sequential pass, never inside the
	// parallel preprocessing step.
	labels := dataset.NewLabelMap()
	for i := range raw {
		if raw[i].Label != "" {
			labels.Add(raw[i].Label)
		}
	}
	log.Info("dataset loaded", "records", len(raw), "classes", labels.Len())

	pre := preprocess.NewPreprocessor(cfg, tokenizer.NewDefault())
	pool := preprocess.NewPool(pre, &preprocess.PoolConfig{
		NumWorkers: cfg.NumWorkers,
		BaseSeed:   cfg.Seed,
	})
	records, err := pool.Run(ctx, raw)
	if err != nil {
		return nil, err
	}

	if err := cache.Save(key, records); err != nil {
		return nil, err
	}
	log.Info("dataset cached", "key", key, "records", len(records))
	return records, nil
}
