package rule

import (
	"fmt"
	"time"
)

// Family selects the validation and pricing behaviour of a rule. The set is
// closed; dispatch is by tag, never by open-ended interfaces.
type Family string

const (
	// FamilyCartWise discounts the whole cart once a spend threshold is met.
	FamilyCartWise Family = "cart_wise"
	// FamilyProductWise discounts every unit of a single product.
	FamilyProductWise Family = "product_wise"
	// FamilyBxGy grants free units of "get" products per bought "buy" units.
	FamilyBxGy Family = "bxgy"
)

// ParseFamily validates a wire-level family tag.
func ParseFamily(s string) (Family, error) {
	switch Family(s) {
	case FamilyCartWise, FamilyProductWise, FamilyBxGy:
		return Family(s), nil
	}
	return "", fmt.Errorf("unknown rule family %q", s)
}

// Details is the family-specific payload. Every field is a pointer (or slice)
// so a sparse update overlay can distinguish "unset" from a zero value.
type Details struct {
	// Common.
	Active     *bool      `json:"isActive,omitempty"`
	StartDate  *time.Time `json:"startDate,omitempty"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`

	// Cart-wise.
	Threshold *int     `json:"threshold,omitempty"`
	Discount  *float64 `json:"discount,omitempty"`

	// Product-wise. Discount above is shared with cart-wise.
	ProductID *int64 `json:"productId,omitempty"`

	// BxGy.
	BuyProducts     []int64 `json:"buyProducts,omitempty"`
	BuyQuantity     *int    `json:"buyQuantity,omitempty"`
	GetProducts     []int64 `json:"getProducts,omitempty"`
	GetQuantity     *int    `json:"getQuantity,omitempty"`
	RepetitionLimit *int    `json:"repetitionLimit,omitempty"`
}

// IsActive reports the effective active flag; unset means active.
func (d *Details) IsActive() bool {
	return d == nil || d.Active == nil || *d.Active
}

// EffectiveStart returns the start date, defaulting to now.
func (d *Details) EffectiveStart(now time.Time) time.Time {
	if d != nil && d.StartDate != nil {
		return *d.StartDate
	}
	return now
}

// EffectiveExpiry returns the expiry date, defaulting to start plus validity.
func (d *Details) EffectiveExpiry(now time.Time, validity time.Duration) time.Time {
	if d != nil && d.ExpiryDate != nil {
		return *d.ExpiryDate
	}
	return d.EffectiveStart(now).Add(validity)
}

// Merge overlays update fields onto the existing payload. Fields the overlay
// sets win; everything the overlay leaves unset is carried over from the
// existing rule. The receiver is not mutated.
func Merge(overlay, existing Details) Details {
	out := overlay
	if out.Active == nil {
		out.Active = existing.Active
	}
	if out.StartDate == nil {
		out.StartDate = existing.StartDate
	}
	if out.ExpiryDate == nil {
		out.ExpiryDate = existing.ExpiryDate
	}
	if out.Threshold == nil {
		out.Threshold = existing.Threshold
	}
	if out.Discount == nil {
		out.Discount = existing.Discount
	}
	if out.ProductID == nil {
		out.ProductID = existing.ProductID
	}
	if out.BuyProducts == nil {
		out.BuyProducts = existing.BuyProducts
	}
	if out.BuyQuantity == nil {
		out.BuyQuantity = existing.BuyQuantity
	}
	if out.GetProducts == nil {
		out.GetProducts = existing.GetProducts
	}
	if out.GetQuantity == nil {
		out.GetQuantity = existing.GetQuantity
	}
	if out.RepetitionLimit == nil {
		out.RepetitionLimit = existing.RepetitionLimit
	}
	return out
}

// Rule is a stored promotion rule. The id is assigned by the store on
// creation and never changes; the family is likewise immutable.
type Rule struct {
	ID      int64   `json:"ruleId"`
	Family  Family  `json:"family"`
	Details Details `json:"details"`
}
