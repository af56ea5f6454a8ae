package internaldefs

import "testing"

func TestCounterNamesUnique(t *testing.T) {
	seen := map[string]bool{AuditDroppedName: true}
	ids := map[uint16]bool{}
	for _, def := range CounterDefs {
		if seen[def.Name] {
			t.Fatalf("duplicate metric name %q", def.Name)
		}
		seen[def.Name] = true
		if ids[uint16(def.ID)] {
			t.Fatalf("duplicate metric id for %q", def.Name)
		}
		ids[uint16(def.ID)] = true
	}
}

func TestBoundsMatchSuffixes(t *testing.T) {
	if len(HistogramBounds)+1 != len(HistogramBoundSuffix) {
		t.Fatalf("bounds %d, suffixes %d", len(HistogramBounds), len(HistogramBoundSuffix))
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}
