package rule

import "sort"

// thresholdEntry is one active cart-wise rule in the ordered threshold index.
type thresholdEntry struct {
	Threshold int
	Percent   float64
	RuleID    int64
}

// productEntry is one active product-wise rule in the product index.
type productEntry struct {
	Percent float64
	RuleID  int64
}

// IndexSet holds the per-family lookup structures used for uniqueness and
// conflict checks. Only active rules are ever indexed. The set is owned by
// the Store and mutated exclusively under its lock.
type IndexSet struct {
	// thresholds is kept sorted ascending by Threshold.
	thresholds []thresholdEntry
	products   map[int64]productEntry
	bxgy       map[string]int64
}

// NewIndexSet constructs an empty index set.
func NewIndexSet() *IndexSet {
	return &IndexSet{
		products: make(map[int64]productEntry),
		bxgy:     make(map[string]int64),
	}
}

// thresholdPos returns the insertion position for t and whether an entry with
// exactly that threshold exists.
func (ix *IndexSet) thresholdPos(t int) (int, bool) {
	pos := sort.Search(len(ix.thresholds), func(i int) bool {
		return ix.thresholds[i].Threshold >= t
	})
	return pos, pos < len(ix.thresholds) && ix.thresholds[pos].Threshold == t
}

// ThresholdAt returns the entry indexed for exactly threshold t.
func (ix *IndexSet) ThresholdAt(t int) (thresholdEntry, bool) {
	pos, ok := ix.thresholdPos(t)
	if !ok {
		return thresholdEntry{}, false
	}
	return ix.thresholds[pos], true
}

// LowerThreshold returns the entry with the greatest threshold strictly below t.
func (ix *IndexSet) LowerThreshold(t int) (thresholdEntry, bool) {
	pos, _ := ix.thresholdPos(t)
	if pos == 0 {
		return thresholdEntry{}, false
	}
	return ix.thresholds[pos-1], true
}

// HigherThreshold returns the entry with the smallest threshold strictly above t.
func (ix *IndexSet) HigherThreshold(t int) (thresholdEntry, bool) {
	pos, ok := ix.thresholdPos(t)
	if ok {
		pos++
	}
	if pos >= len(ix.thresholds) {
		return thresholdEntry{}, false
	}
	return ix.thresholds[pos], true
}

// FloorThreshold returns the entry with the greatest threshold not exceeding t.
func (ix *IndexSet) FloorThreshold(t int) (thresholdEntry, bool) {
	pos, ok := ix.thresholdPos(t)
	if ok {
		return ix.thresholds[pos], true
	}
	if pos == 0 {
		return thresholdEntry{}, false
	}
	return ix.thresholds[pos-1], true
}

func (ix *IndexSet) insertThreshold(e thresholdEntry) {
	pos, ok := ix.thresholdPos(e.Threshold)
	if ok {
		ix.thresholds[pos] = e
		return
	}
	ix.thresholds = append(ix.thresholds, thresholdEntry{})
	copy(ix.thresholds[pos+1:], ix.thresholds[pos:])
	ix.thresholds[pos] = e
}

func (ix *IndexSet) removeThreshold(t int) {
	pos, ok := ix.thresholdPos(t)
	if !ok {
		return
	}
	ix.thresholds = append(ix.thresholds[:pos], ix.thresholds[pos+1:]...)
}

// ProductEntry returns the active product-wise entry for a product id.
func (ix *IndexSet) ProductEntry(productID int64) (productEntry, bool) {
	e, ok := ix.products[productID]
	return e, ok
}

// BxGyRuleIDs returns the ids of all indexed BxGy rules in ascending order.
func (ix *IndexSet) BxGyRuleIDs() []int64 {
	ids := make([]int64, 0, len(ix.bxgy))
	for _, id := range ix.bxgy {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
