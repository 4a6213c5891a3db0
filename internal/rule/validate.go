package rule

// familyValidator enforces the invariants of one rule family against the
// shared index set. Implementations index the rule on successful validation
// (when it is active) and guarantee the index is unchanged on failure.
type familyValidator interface {
	// validateForCreate checks r's payload and cross-rule invariants, then
	// indexes r when it is active.
	validateForCreate(r *Rule) error
	// validateForUpdate provisionally removes the existing rule's own index
	// entry, validates the candidate against the remainder, and either indexes
	// the candidate or restores the original entry before returning the error.
	validateForUpdate(existing, candidate *Rule) error
	// deindex removes the rule's index entry if present.
	deindex(r *Rule)
}

func validatorFor(f Family, ix *IndexSet) familyValidator {
	switch f {
	case FamilyCartWise:
		return cartWiseValidator{ix: ix}
	case FamilyProductWise:
		return productWiseValidator{ix: ix}
	case FamilyBxGy:
		return bxgyValidator{ix: ix}
	}
	return nil
}

type cartWiseValidator struct {
	ix *IndexSet
}

// check validates the payload and, for active rules, the cross-rule
// invariants against the index. Inactive rules never conflict because they
// are never indexed.
func (v cartWiseValidator) check(d Details) error {
	if d.Threshold == nil || *d.Threshold <= 0 || d.Discount == nil || *d.Discount < 0 || *d.Discount > 100 {
		return validationf("invalid cart-wise rule: cart threshold must be greater than 0 and discount percentage must be between 0 and 100")
	}
	if !d.IsActive() {
		return nil
	}
	threshold, percent := *d.Threshold, *d.Discount
	if _, ok := v.ix.ThresholdAt(threshold); ok {
		return validationf("cart-wise rule already exists for cart threshold %d", threshold)
	}
	// Monotonicity: spending more must never earn a smaller (or equal) cut.
	if lower, ok := v.ix.LowerThreshold(threshold); ok && lower.Percent >= percent {
		return validationf("invalid cart-wise rule: lower cart threshold %d has higher or equal discount %.2f%% than new discount %.2f%%",
			lower.Threshold, lower.Percent, percent)
	}
	if higher, ok := v.ix.HigherThreshold(threshold); ok && higher.Percent <= percent {
		return validationf("invalid cart-wise rule: higher cart threshold %d has lower or equal discount %.2f%% than new discount %.2f%%",
			higher.Threshold, higher.Percent, percent)
	}
	return nil
}

func (v cartWiseValidator) validateForCreate(r *Rule) error {
	if err := v.check(r.Details); err != nil {
		return err
	}
	if r.Details.IsActive() {
		v.ix.insertThreshold(thresholdEntry{Threshold: *r.Details.Threshold, Percent: *r.Details.Discount, RuleID: r.ID})
	}
	return nil
}

func (v cartWiseValidator) validateForUpdate(existing, candidate *Rule) error {
	v.deindex(existing)
	if err := v.check(candidate.Details); err != nil {
		if existing.Details.IsActive() {
			v.ix.insertThreshold(thresholdEntry{Threshold: *existing.Details.Threshold, Percent: *existing.Details.Discount, RuleID: existing.ID})
		}
		return err
	}
	if candidate.Details.IsActive() {
		v.ix.insertThreshold(thresholdEntry{Threshold: *candidate.Details.Threshold, Percent: *candidate.Details.Discount, RuleID: candidate.ID})
	}
	return nil
}

func (v cartWiseValidator) deindex(r *Rule) {
	if r.Details.Threshold == nil {
		return
	}
	if e, ok := v.ix.ThresholdAt(*r.Details.Threshold); ok && e.RuleID == r.ID {
		v.ix.removeThreshold(*r.Details.Threshold)
	}
}

type productWiseValidator struct {
	ix *IndexSet
}

func (v productWiseValidator) check(d Details) error {
	if d.ProductID == nil {
		return validationf("product-wise rule must have a valid productId")
	}
	if d.Discount == nil || *d.Discount <= 0 {
		return validationf("product-wise rule must have a valid discount (> 0)")
	}
	if !d.IsActive() {
		return nil
	}
	if _, ok := v.ix.ProductEntry(*d.ProductID); ok {
		return validationf("active product-wise rule already exists for productId %d", *d.ProductID)
	}
	return nil
}

func (v productWiseValidator) validateForCreate(r *Rule) error {
	if err := v.check(r.Details); err != nil {
		return err
	}
	if r.Details.IsActive() {
		v.ix.products[*r.Details.ProductID] = productEntry{Percent: *r.Details.Discount, RuleID: r.ID}
	}
	return nil
}

func (v productWiseValidator) validateForUpdate(existing, candidate *Rule) error {
	v.deindex(existing)
	if err := v.check(candidate.Details); err != nil {
		if existing.Details.IsActive() {
			v.ix.products[*existing.Details.ProductID] = productEntry{Percent: *existing.Details.Discount, RuleID: existing.ID}
		}
		return err
	}
	if candidate.Details.IsActive() {
		v.ix.products[*candidate.Details.ProductID] = productEntry{Percent: *candidate.Details.Discount, RuleID: candidate.ID}
	}
	return nil
}

func (v productWiseValidator) deindex(r *Rule) {
	if r.Details.ProductID == nil {
		return
	}
	if e, ok := v.ix.ProductEntry(*r.Details.ProductID); ok && e.RuleID == r.ID {
		delete(v.ix.products, *r.Details.ProductID)
	}
}

type bxgyValidator struct {
	ix *IndexSet
}

func (v bxgyValidator) check(d Details) error {
	if len(d.BuyProducts) == 0 {
		return validationf("bxgy rule must contain at least one buy product")
	}
	if len(d.GetProducts) == 0 {
		return validationf("bxgy rule must contain at least one get product")
	}
	if d.BuyQuantity == nil || *d.BuyQuantity <= 0 {
		return validationf("bxgy rule must have a valid buyQuantity (> 0)")
	}
	if d.GetQuantity == nil || *d.GetQuantity <= 0 {
		return validationf("bxgy rule must have a valid getQuantity (> 0)")
	}
	if d.RepetitionLimit == nil || *d.RepetitionLimit < 1 {
		return validationf("bxgy rule must have a repetitionLimit of at least 1")
	}
	if !d.IsActive() {
		return nil
	}
	if _, ok := v.ix.bxgy[keyFor(d)]; ok {
		return validationf("bxgy rule already exists with the same buy/get products and quantities")
	}
	return nil
}

func (v bxgyValidator) validateForCreate(r *Rule) error {
	if err := v.check(r.Details); err != nil {
		return err
	}
	if r.Details.IsActive() {
		v.ix.bxgy[keyFor(r.Details)] = r.ID
	}
	return nil
}

func (v bxgyValidator) validateForUpdate(existing, candidate *Rule) error {
	v.deindex(existing)
	if err := v.check(candidate.Details); err != nil {
		if existing.Details.IsActive() {
			v.ix.bxgy[keyFor(existing.Details)] = existing.ID
		}
		return err
	}
	if candidate.Details.IsActive() {
		v.ix.bxgy[keyFor(candidate.Details)] = candidate.ID
	}
	return nil
}

func (v bxgyValidator) deindex(r *Rule) {
	key := keyFor(r.Details)
	if id, ok := v.ix.bxgy[key]; ok && id == r.ID {
		delete(v.ix.bxgy, key)
	}
}
