package rule

import (
	"slices"
	"strconv"
	"strings"
)

// CompositeKey derives the deterministic uniqueness key for a BxGy rule.
// Product id sets are sorted numerically so that {1,2,10} and {1,10,2}
// normalise to the same key regardless of input order.
//
// Shape: "<sortedBuyIds>|<buyQty>-><sortedGetIds>|<getQty>".
func CompositeKey(buyProducts []int64, buyQuantity int, getProducts []int64, getQuantity int) string {
	var sb strings.Builder
	writeSorted(&sb, buyProducts)
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(buyQuantity))
	sb.WriteString("->")
	writeSorted(&sb, getProducts)
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(getQuantity))
	return sb.String()
}

func writeSorted(sb *strings.Builder, ids []int64) {
	sorted := append([]int64(nil), ids...)
	slices.Sort(sorted)
	for i, id := range sorted {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatInt(id, 10))
	}
}

func keyFor(d Details) string {
	buyQty, getQty := 0, 0
	if d.BuyQuantity != nil {
		buyQty = *d.BuyQuantity
	}
	if d.GetQuantity != nil {
		getQty = *d.GetQuantity
	}
	return CompositeKey(d.BuyProducts, buyQty, d.GetProducts, getQty)
}
