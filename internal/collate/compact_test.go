package collate

import (
	"errors"
	"testing"

	"github.com/V-Enzo/flashT5/internal/models"
)

func TestCompact_InputRow(t *testing.T) {
	// [10 11 12 13 14] + IgnoreID tail, noise on {1,2} and {4}.
	seq := []int{10, 11, 12, 13, 14, -100, -100, -100}
	mask := []bool{false, true, true, false, true, false, false, false}

	got, err := Compact(seq, SentinelIDs(mask), 10, false)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	want := []int{10, 106, 13, 105, models.EOSID, 0, 0, 0, 0, 0}
	assertRow(t, got, want)
}

func TestCompact_LabelRow(t *testing.T) {
	// Complement of the input mask: the IgnoreID tail joins the clean
	// region, so the final clean span's boundary sentinel (104) lands
	// after token 14 and is the element removed by the label drop.
	seq := []int{10, 11, 12, 13, 14, -100, -100, -100}
	mask := []bool{false, true, true, false, true, false, false, false}

	got, err := Compact(seq, SentinelIDs(Complement(mask)), 10, true)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	want := []int{106, 11, 12, 105, 14, models.EOSID, -100, -100, -100, -100}
	assertRow(t, got, want)
}

func TestCompact_InputLabelPartition(t *testing.T) {
	seq := []int{200, 201, 202, 203, 204, 205, 206, -100, -100}
	mask := []bool{false, false, true, true, false, true, false, false, false}

	input, err := Compact(seq, SentinelIDs(mask), 12, false)
	if err != nil {
		t.Fatalf("input compact: %v", err)
	}
	labels, err := Compact(seq, SentinelIDs(Complement(mask)), 12, true)
	if err != nil {
		t.Fatalf("label compact: %v", err)
	}

	// Every original token appears in exactly one of the two rows.
	seen := map[int]int{}
	for _, row := range [][]int{input, labels} {
		for _, tok := range row {
			if tok >= 200 {
				seen[tok]++
			}
		}
	}
	for _, tok := range seq[:7] {
		if seen[tok] != 1 {
			t.Errorf("token %d appears %d times across input+labels, want 1", tok, seen[tok])
		}
	}
}

func TestCompact_LengthBudget(t *testing.T) {
	seq := []int{10, 11, 12, 13}
	mask := []bool{false, false, false, false}

	if _, err := Compact(seq, SentinelIDs(mask), 4, false); !errors.Is(err, ErrLengthBudget) {
		t.Fatalf("err = %v, want ErrLengthBudget", err)
	}
	if _, err := Compact(seq, SentinelIDs(mask), 5, false); err != nil {
		t.Fatalf("exact fit rejected: %v", err)
	}
}

func TestCompact_EmptySequence(t *testing.T) {
	got, err := Compact(nil, nil, 3, false)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	assertRow(t, got, []int{models.EOSID, 0, 0})
}

func assertRow(t *testing.T, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d (row %v)", len(got), len(want), got)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("position %d = %d, want %d (row %v)", i, got[i], want[i], got)
		}
	}
}
