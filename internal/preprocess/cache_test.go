package preprocess

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/V-Enzo/flashT5/internal/config"
	"github.com/V-Enzo/flashT5/internal/models"
)

func TestCache_RoundTrip(t *testing.T) {
	cache := NewCache(t.TempDir())
	cfg := preprocessTestConfig()
	key := cache.Key(cfg, "data/train.jsonl")

	if _, ok, err := cache.Load(key); err != nil || ok {
		t.Fatalf("fresh cache: (exists=%t, err=%v)", ok, err)
	}

	records := []models.FlowRecord{
		{
			InputIDs:  []int{200, models.HeadID, 201, models.PktID, models.IgnoreID},
			POPOrder:  []int{models.IgnoreID, models.IgnoreID},
			NMLLabels: []int{0, 0, 1, 3},
		},
		{
			InputIDs:  []int{202, models.HeadID, models.PktID, models.IgnoreID, models.IgnoreID},
			POPOrder:  []int{1, 0},
			NMLLabels: []int{2, 2, 2, 2},
		},
	}
	if err := cache.Save(key, records); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := cache.Load(key)
	if err != nil || !ok {
		t.Fatalf("load: (exists=%t, err=%v)", ok, err)
	}
	if !reflect.DeepEqual(got, records) {
		t.Fatalf("round trip mismatch:\ngot  %v\nwant %v", got, records)
	}
}

// Any preprocessing parameter change must produce a different key, so a
// stale dataset is never reused.
func TestCache_KeySensitivity(t *testing.T) {
	cache := NewCache(t.TempDir())
	base := preprocessTestConfig()

	mutations := map[string]func(*config.Config){
		"optimal_length": func(c *config.Config) { c.OptimalLength++ },
		"packets":        func(c *config.Config) { c.PacketsPerFlow++ },
		"pop_percent":    func(c *config.Config) { c.POPPercent += 0.1 },
		"pop_switch_gap": func(c *config.Config) { c.POPSwitchGap++ },
		"nml_label_gap":  func(c *config.Config) { c.NMLLabelGap++ },
		"seed":           func(c *config.Config) { c.Seed++ },
	}

	baseKey := cache.Key(base, "a.jsonl")
	if cache.Key(base, "b.jsonl") == baseKey {
		t.Error("key ignores the data path")
	}
	for name, mutate := range mutations {
		cfg := *base
		mutate(&cfg)
		if cache.Key(&cfg, "a.jsonl") == baseKey {
			t.Errorf("key ignores %s", name)
		}
	}
}

func TestCache_SaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir)
	key := cache.Key(preprocessTestConfig(), "x.jsonl")

	if err := cache.Save(key, []models.FlowRecord{{InputIDs: []int{200}}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != key {
			t.Errorf("leftover file %s in cache dir", e.Name())
		}
	}
	if _, err := os.Stat(filepath.Join(dir, key)); err != nil {
		t.Fatalf("cache entry missing: %v", err)
	}
}

func TestCache_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir)
	key := cache.Key(preprocessTestConfig(), "x.jsonl")

	if err := os.WriteFile(filepath.Join(dir, key), []byte("not json\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := cache.Load(key); err == nil {
		t.Fatal("corrupt cache entry loaded without error")
	}
}
