package dataset

import (
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/V-Enzo/flashT5/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadRaw_File(t *testing.T) {
	path := writeFile(t, t.TempDir(), "train.jsonl",
		`{"text":"aa <head> bb <pkt>","network_model_layer":"0,0,0,0"}
`+"\n"+`{"text":"cc <head> dd <pkt>","network_model_layer":"0,0,0,1","label":"dns"}
`)

	records, err := LoadRaw(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Text != "aa <head> bb <pkt>" {
		t.Errorf("record 0 text = %q", records[0].Text)
	}
	if records[1].Label != "dns" {
		t.Errorf("record 1 label = %q", records[1].Label)
	}
}

func TestLoadRaw_Directory(t *testing.T) {
	dir := t.TempDir()
	// Written out of name order; loading must still be sorted.
	writeFile(t, dir, "b.jsonl", `{"text":"b1","network_model_layer":"0"}`+"\n")
	writeFile(t, dir, "a.json", `{"text":"a1","network_model_layer":"0"}`+"\n")
	writeFile(t, dir, "ignored.txt", "not a dataset file\n")

	records, err := LoadRaw(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"a1", "b1"}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d", len(records), len(want))
	}
	for i, text := range want {
		if records[i].Text != text {
			t.Errorf("record %d text = %q, want %q", i, records[i].Text, text)
		}
	}
}

func TestLoadRaw_Errors(t *testing.T) {
	if _, err := LoadRaw(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("missing path accepted")
	}
	if _, err := LoadRaw(t.TempDir()); err == nil {
		t.Error("empty directory accepted")
	}
	bad := writeFile(t, t.TempDir(), "bad.jsonl", "{broken\n")
	if _, err := LoadRaw(bad); err == nil {
		t.Error("malformed json accepted")
	}
}

func TestShuffle_Deterministic(t *testing.T) {
	build := func() []models.FlowRecord {
		records := make([]models.FlowRecord, 20)
		for i := range records {
			records[i] = models.FlowRecord{InputIDs: []int{200 + i}}
		}
		return records
	}

	a, b := build(), build()
	Shuffle(rand.New(rand.NewSource(42)), a)
	Shuffle(rand.New(rand.NewSource(42)), b)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed produced different orders")
	}

	c := build()
	Shuffle(rand.New(rand.NewSource(43)), c)
	if reflect.DeepEqual(a, c) {
		t.Fatal("different seeds produced the same 20-element order")
	}

	seen := map[int]bool{}
	for _, rec := range a {
		seen[rec.InputIDs[0]] = true
	}
	if len(seen) != 20 {
		t.Fatalf("shuffle lost records: %d distinct", len(seen))
	}
}

func TestLabelMap(t *testing.T) {
	m := NewLabelMap()

	if idx := m.Add("http"); idx != 0 {
		t.Fatalf("first label index = %d", idx)
	}
	if idx := m.Add("dns"); idx != 1 {
		t.Fatalf("second label index = %d", idx)
	}
	if idx := m.Add("http"); idx != 0 {
		t.Fatalf("repeat add changed index to %d", idx)
	}

	if idx := m.Index("dns"); idx != 1 {
		t.Errorf("index(dns) = %d", idx)
	}
	if idx := m.Index("tls"); idx != -1 {
		t.Errorf("index of unseen label = %d, want -1", idx)
	}
	if name, ok := m.Name(1); !ok || name != "dns" {
		t.Errorf("name(1) = (%q, %t)", name, ok)
	}
	if _, ok := m.Name(5); ok {
		t.Error("out-of-range index resolved")
	}
	if m.Len() != 2 {
		t.Errorf("len = %d", m.Len())
	}
	if got := m.Names(); !reflect.DeepEqual(got, []string{"http", "dns"}) {
		t.Errorf("names = %v", got)
	}
}
