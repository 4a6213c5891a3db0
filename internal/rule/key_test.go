package rule

import "testing"

func TestCompositeKeyNormalisesOrder(t *testing.T) {
	a := CompositeKey([]int64{1, 2, 10}, 2, []int64{3, 4}, 1)
	b := CompositeKey([]int64{10, 1, 2}, 2, []int64{4, 3}, 1)
	if a != b {
		t.Fatalf("permuted sets produced different keys: %q vs %q", a, b)
	}
	if a != "1,2,10|2->3,4|1" {
		t.Fatalf("unexpected key shape %q", a)
	}
	// numeric sort, not lexicographic: 10 sorts after 2
	if c := CompositeKey([]int64{10, 2}, 1, []int64{3}, 1); c != "2,10|1->3|1" {
		t.Fatalf("expected numeric ordering, got %q", c)
	}
}

func TestCompositeKeyDistinguishesQuantities(t *testing.T) {
	a := CompositeKey([]int64{1}, 1, []int64{2}, 1)
	b := CompositeKey([]int64{1}, 2, []int64{2}, 1)
	c := CompositeKey([]int64{1}, 1, []int64{2}, 2)
	if a == b || a == c || b == c {
		t.Fatalf("quantity changes must change the key: %q %q %q", a, b, c)
	}
}

func TestMergeOverlayWins(t *testing.T) {
	existing := Details{Threshold: intp(100), Discount: f64p(10), Active: boolp(true)}
	overlay := Details{Threshold: intp(200)}

	merged := Merge(overlay, existing)
	if *merged.Threshold != 200 {
		t.Fatalf("overlay threshold lost: %d", *merged.Threshold)
	}
	if merged.Discount == nil || *merged.Discount != 10 {
		t.Fatal("existing discount not carried over")
	}
	if merged.Active == nil || !*merged.Active {
		t.Fatal("existing active flag not carried over")
	}
	// inputs untouched
	if *existing.Threshold != 100 || *overlay.Threshold != 200 {
		t.Fatal("merge mutated its inputs")
	}
}
