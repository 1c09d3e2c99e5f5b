// Package dataset provides dataset loading, deterministic shuffling,
// and the batch loader feeding the training loop.
package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/V-Enzo/flashT5/internal/logging"
	"github.com/V-Enzo/flashT5/internal/metrics"
	"github.com/V-Enzo/flashT5/internal/models"
)

// LoadRaw reads raw JSONL records from a file, or from every *.json
// and *.jsonl file under a directory. Directory entries are read in
// sorted name order so the pre-shuffle dataset order is deterministic.
func LoadRaw(path string) ([]models.RawRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: stat %s: %w", path, err)
	}

	files := []string{path}
	if info.IsDir() {
		files = files[:0]
		for _, pattern := range []string{"*.json", "*.jsonl"} {
			matches, err := filepath.Glob(filepath.Join(path, pattern))
			if err != nil {
				return nil, fmt.Errorf("dataset: glob %s: %w", path, err)
			}
			files = append(files, matches...)
		}
		sort.Strings(files)
		if len(files) == 0 {
			return nil, fmt.Errorf("dataset: no json files under %s", path)
		}
	}

	log := logging.DatasetLogger()
	var records []models.RawRecord
	for _, file := range files {
		recs, err := loadRawFile(file)
		if err != nil {
			return nil, err
		}
		log.Info("loaded dataset file", "path", file, "records", len(recs))
		records = append(records, recs...)
	}
	metrics.DatasetRecords.Set(int64(len(records)))
	return records, nil
}

func loadRawFile(path string) ([]models.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	var records []models.RawRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec models.RawRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("dataset: %s line %d: %w", path, line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	return records, nil
}

// Shuffle permutes records in place using the supplied generator.
func Shuffle(rng *rand.Rand, records []models.FlowRecord) {
	rng.Shuffle(len(records), func(i, j int) {
		records[i], records[j] = records[j], records[i]
	})
}
