package rule

import (
	"sort"

	"github.com/promolabs/promo-api/internal/cart"
)

// Applicable is one evaluation result: a rule that would grant a discount on
// the submitted cart.
type Applicable struct {
	RuleID   int64   `json:"ruleId"`
	Family   Family  `json:"family"`
	Discount float64 `json:"discount"`
}

// Application is the outcome of applying a single rule to a cart.
type Application struct {
	Items         []cart.Item `json:"items"`
	TotalPrice    float64     `json:"totalPrice"`
	TotalDiscount float64     `json:"totalDiscount"`
	FinalPrice    float64     `json:"finalPrice"`
}

// Engine computes discounts against the rules held by a Store. It only ever
// reads; evaluation never mutates rule state.
type Engine struct {
	S *Store
}

// Evaluate returns every rule that grants a discount on the cart, sorted by
// discount descending. Ties keep emission order: product-wise results first
// (cart item order), then the single best cart-wise match, then BxGy rules by
// ascending id.
func (e Engine) Evaluate(c *cart.Cart) ([]Applicable, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	e.S.mu.RLock()
	defer e.S.mu.RUnlock()

	results := make([]Applicable, 0)
	for _, it := range c.Items {
		entry, ok := e.S.ix.ProductEntry(it.ProductID)
		if !ok {
			continue
		}
		discount := it.Price * float64(it.Quantity) * entry.Percent / 100
		results = append(results, Applicable{RuleID: entry.RuleID, Family: FamilyProductWise, Discount: discount})
	}

	totalPrice := c.TotalPrice()
	if entry, ok := e.S.ix.FloorThreshold(int(totalPrice)); ok {
		results = append(results, Applicable{
			RuleID:   entry.RuleID,
			Family:   FamilyCartWise,
			Discount: totalPrice * entry.Percent / 100,
		})
	}

	for _, id := range e.S.ix.BxGyRuleIDs() {
		r, ok := e.S.rules[id]
		if !ok {
			continue
		}
		discount := bxgyDiscount(r.Details, c.Items, nil)
		if discount <= 0 {
			continue
		}
		results = append(results, Applicable{RuleID: id, Family: FamilyBxGy, Discount: discount})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Discount > results[j].Discount })
	return results, nil
}

// Apply prices the cart under the named rule, attributing per-item discounts
// where the family supports it.
func (e Engine) Apply(ruleID int64, c *cart.Cart) (Application, error) {
	if err := c.Validate(); err != nil {
		return Application{}, err
	}

	e.S.mu.RLock()
	defer e.S.mu.RUnlock()

	r, ok := e.S.rules[ruleID]
	if !ok {
		return Application{}, ErrNotFound
	}
	if !r.Details.IsActive() {
		return Application{}, ErrInactive
	}

	items := make([]cart.Item, len(c.Items))
	for i, it := range c.Items {
		it.TotalDiscount = 0
		items[i] = it
	}
	totalPrice := c.TotalPrice()

	var totalDiscount float64
	switch r.Family {
	case FamilyCartWise:
		// Cart-level discount, not attributed to individual items.
		totalDiscount = totalPrice * *r.Details.Discount / 100
	case FamilyProductWise:
		for i := range items {
			if items[i].ProductID != *r.Details.ProductID {
				continue
			}
			d := items[i].Price * float64(items[i].Quantity) * *r.Details.Discount / 100
			items[i].TotalDiscount = d
			totalDiscount += d
		}
	case FamilyBxGy:
		totalDiscount = bxgyDiscount(r.Details, items, items)
	}

	return Application{
		Items:         items,
		TotalPrice:    totalPrice,
		TotalDiscount: totalDiscount,
		FinalPrice:    totalPrice - totalDiscount,
	}, nil
}

// bxgyDiscount runs the shared BxGy computation over items. When attribute is
// non-nil, each freed unit's price is added to the matching item's discount in
// that slice. Free units are assigned to the most expensive eligible units
// first, maximising the discount.
func bxgyDiscount(d Details, items []cart.Item, attribute []cart.Item) float64 {
	if d.BuyQuantity == nil || d.GetQuantity == nil || d.RepetitionLimit == nil {
		return 0
	}
	buySet := make(map[int64]struct{}, len(d.BuyProducts))
	for _, id := range d.BuyProducts {
		buySet[id] = struct{}{}
	}
	getSet := make(map[int64]struct{}, len(d.GetProducts))
	for _, id := range d.GetProducts {
		getSet[id] = struct{}{}
	}

	totalBuyQty := 0
	for _, it := range items {
		if _, ok := buySet[it.ProductID]; ok {
			totalBuyQty += it.Quantity
		}
	}
	applicableSets := totalBuyQty / *d.BuyQuantity
	if applicableSets > *d.RepetitionLimit {
		applicableSets = *d.RepetitionLimit
	}
	if applicableSets <= 0 {
		return 0
	}
	totalFreeUnits := applicableSets * *d.GetQuantity

	// One entry per unit, not per line, so partial lines can be freed.
	type unit struct {
		price   float64
		itemIdx int
	}
	units := make([]unit, 0)
	for i, it := range items {
		if _, ok := getSet[it.ProductID]; !ok {
			continue
		}
		for q := 0; q < it.Quantity; q++ {
			units = append(units, unit{price: it.Price, itemIdx: i})
		}
	}
	sort.SliceStable(units, func(i, j int) bool { return units[i].price > units[j].price })

	if totalFreeUnits > len(units) {
		totalFreeUnits = len(units)
	}
	var discount float64
	for _, u := range units[:totalFreeUnits] {
		discount += u.price
		if attribute != nil {
			attribute[u.itemIdx].TotalDiscount += u.price
		}
	}
	return discount
}
