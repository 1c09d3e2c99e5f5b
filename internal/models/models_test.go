package models

import "testing"

func TestIsStructural(t *testing.T) {
	structural := map[int]bool{
		PadID:        false,
		EOSID:        false,
		UnkID:        false,
		HeadID:       true,
		PktID:        true,
		SentinelBase: false,
		200:          false,
	}
	for id, want := range structural {
		if got := IsStructural(id); got != want {
			t.Errorf("IsStructural(%d) = %t, want %t", id, got, want)
		}
	}
}

func TestFlowRecord_RealLen(t *testing.T) {
	rec := FlowRecord{InputIDs: []int{200, HeadID, 201, PktID, IgnoreID, IgnoreID}}
	if got := rec.RealLen(); got != 4 {
		t.Fatalf("real len = %d, want 4", got)
	}

	empty := FlowRecord{InputIDs: []int{IgnoreID, IgnoreID}}
	if got := empty.RealLen(); got != 0 {
		t.Fatalf("real len of all-padding = %d", got)
	}
}

func TestFlowRecord_Supervision(t *testing.T) {
	unsup := FlowRecord{
		POPOrder:  []int{IgnoreID, IgnoreID},
		NMLLabels: []int{IgnoreID, IgnoreID, IgnoreID, IgnoreID},
	}
	if unsup.HasPOP() || unsup.HasNML() {
		t.Fatal("all-IgnoreID labels reported as supervision")
	}

	sup := FlowRecord{
		POPOrder:  []int{1, 0, IgnoreID},
		NMLLabels: []int{0, 0, 0, 0, IgnoreID},
	}
	if !sup.HasPOP() || !sup.HasNML() {
		t.Fatal("supervision not detected")
	}
}

func TestBatchSize(t *testing.T) {
	b := Batch{InputIDs: [][]int{{1}, {2}, {3}}}
	if b.Size() != 3 {
		t.Fatalf("size = %d", b.Size())
	}
}
