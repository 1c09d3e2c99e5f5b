package preprocess

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/V-Enzo/flashT5/internal/config"
	"github.com/V-Enzo/flashT5/internal/models"
)

// Cache stores preprocessed flow records on disk, keyed by the
// preprocessing parameters so a changed configuration never reuses a
// stale dataset.
type Cache struct {
	dir string
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Key derives the cache file name from every parameter that shapes the
// preprocessing output, plus the input dataset path.
func (c *Cache) Key(cfg *config.Config, dataPath string) string {
	params := fmt.Sprintf("%s|%d|%d|%g|%d|%d|%d",
		dataPath, cfg.OptimalLength, cfg.PacketsPerFlow, cfg.POPPercent,
		cfg.POPSwitchGap, cfg.NMLLabelGap, cfg.Seed)
	sum := blake3.Sum256([]byte(params))
	return fmt.Sprintf("flows_%x.jsonl", sum[:16])
}

// Load reads cached flow records. The second return value reports
// whether the cache entry exists.
func (c *Cache) Load(key string) ([]models.FlowRecord, bool, error) {
	path := filepath.Join(c.dir, key)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("preprocess: open cache %s: %w", path, err)
	}
	defer f.Close()

	var records []models.FlowRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)
	line := 0
	for scanner.Scan() {
		line++
		var rec models.FlowRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, false, fmt.Errorf("preprocess: cache %s line %d: %w", path, line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("preprocess: read cache %s: %w", path, err)
	}
	return records, true, nil
}

// Save writes flow records to the cache atomically: a temp file is
// renamed into place so readers never observe a partial dataset.
func (c *Cache) Save(key string, records []models.FlowRecord) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("preprocess: create cache dir: %w", err)
	}

	path := filepath.Join(c.dir, key)
	tmp, err := os.CreateTemp(c.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("preprocess: create cache temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			tmp.Close()
			return fmt.Errorf("preprocess: encode cache record %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("preprocess: flush cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("preprocess: close cache temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("preprocess: publish cache: %w", err)
	}
	return nil
}
