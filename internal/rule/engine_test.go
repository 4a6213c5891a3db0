package rule

import (
	"errors"
	"testing"

	"github.com/promolabs/promo-api/internal/cart"
)

func TestEvaluateProductWise(t *testing.T) {
	s := newTestStore()
	r := mustCreate(t, s, FamilyProductWise, Details{ProductID: i64p(1), Discount: f64p(20)})
	e := Engine{S: s}

	results, err := e.Evaluate(&cart.Cart{Items: []cart.Item{
		{ProductID: 1, Price: 50, Quantity: 6},
		{ProductID: 9, Price: 30, Quantity: 1},
	}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one applicable rule, got %d", len(results))
	}
	if results[0].RuleID != r.ID || results[0].Discount != 60 {
		t.Fatalf("unexpected result %+v", results[0])
	}
}

func TestEvaluateCartWiseFloorLookup(t *testing.T) {
	s := newTestStore()
	mustCreate(t, s, FamilyCartWise, Details{Threshold: intp(100), Discount: f64p(10)})
	mustCreate(t, s, FamilyCartWise, Details{Threshold: intp(200), Discount: f64p(12)})
	e := Engine{S: s}

	// total 150: the 100 threshold applies, not 200
	results, err := e.Evaluate(&cart.Cart{Items: []cart.Item{{ProductID: 1, Price: 75, Quantity: 2}}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(results) != 1 || results[0].Discount != 15 {
		t.Fatalf("expected single 15 discount, got %+v", results)
	}

	// below every threshold: nothing applies
	none, err := e.Evaluate(&cart.Cart{Items: []cart.Item{{ProductID: 1, Price: 50, Quantity: 1}}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no applicable rules, got %+v", none)
	}
}

func TestEvaluateBxGyGreedyAssignment(t *testing.T) {
	s := newTestStore()
	r := mustCreate(t, s, FamilyBxGy, Details{
		BuyProducts: []int64{1, 2}, BuyQuantity: intp(3),
		GetProducts: []int64{3, 4}, GetQuantity: intp(2), RepetitionLimit: intp(3),
	})
	e := Engine{S: s}

	// 7 buy units fill 2 sets of 3, so 4 get units go free; the most
	// expensive eligible units are chosen first
	results, err := e.Evaluate(&cart.Cart{Items: []cart.Item{
		{ProductID: 2, Price: 50, Quantity: 7},
		{ProductID: 3, Price: 25, Quantity: 7},
		{ProductID: 4, Price: 25, Quantity: 3},
	}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	found := false
	for _, res := range results {
		if res.RuleID == r.ID {
			found = true
			if res.Discount != 100 {
				t.Fatalf("expected discount 100, got %v", res.Discount)
			}
		}
	}
	if !found {
		t.Fatal("bxgy rule missing from evaluation")
	}
}

func TestEvaluateBxGyPrefersExpensiveUnits(t *testing.T) {
	s := newTestStore()
	mustCreate(t, s, FamilyBxGy, Details{
		BuyProducts: []int64{1}, BuyQuantity: intp(2),
		GetProducts: []int64{2, 3}, GetQuantity: intp(1), RepetitionLimit: intp(1),
	})
	e := Engine{S: s}

	results, err := e.Evaluate(&cart.Cart{Items: []cart.Item{
		{ProductID: 1, Price: 10, Quantity: 2},
		{ProductID: 2, Price: 5, Quantity: 1},
		{ProductID: 3, Price: 40, Quantity: 1},
	}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(results) != 1 || results[0].Discount != 40 {
		t.Fatalf("expected the 40 unit freed, got %+v", results)
	}
}

func TestEvaluateBxGyRepetitionLimit(t *testing.T) {
	s := newTestStore()
	mustCreate(t, s, FamilyBxGy, Details{
		BuyProducts: []int64{1}, BuyQuantity: intp(1),
		GetProducts: []int64{2}, GetQuantity: intp(1), RepetitionLimit: intp(2),
	})
	e := Engine{S: s}

	// 10 buy units would fill 10 sets but the limit caps it at 2
	results, err := e.Evaluate(&cart.Cart{Items: []cart.Item{
		{ProductID: 1, Price: 10, Quantity: 10},
		{ProductID: 2, Price: 5, Quantity: 10},
	}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(results) != 1 || results[0].Discount != 10 {
		t.Fatalf("expected capped discount 10, got %+v", results)
	}
}

func TestEvaluateSortsByDiscountDescending(t *testing.T) {
	s := newTestStore()
	mustCreate(t, s, FamilyCartWise, Details{Threshold: intp(100), Discount: f64p(10)})
	mustCreate(t, s, FamilyProductWise, Details{ProductID: i64p(1), Discount: f64p(40)})
	e := Engine{S: s}

	results, err := e.Evaluate(&cart.Cart{Items: []cart.Item{{ProductID: 1, Price: 100, Quantity: 2}}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected two results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Discount < results[i].Discount {
			t.Fatalf("results not sorted: %+v", results)
		}
	}
	if results[0].Family != FamilyProductWise {
		t.Fatalf("expected product-wise first, got %+v", results[0])
	}
}

func TestEvaluateRejectsInvalidCart(t *testing.T) {
	e := Engine{S: newTestStore()}
	cases := []*cart.Cart{
		nil,
		{},
		{Items: []cart.Item{{ProductID: 1, Price: 0, Quantity: 1}}},
		{Items: []cart.Item{{ProductID: 1, Price: 10, Quantity: 0}}},
	}
	for i, c := range cases {
		if _, err := e.Evaluate(c); !errors.Is(err, cart.ErrInvalidCart) {
			t.Fatalf("case %d: expected ErrInvalidCart, got %v", i, err)
		}
	}
}

func TestApplyCartWise(t *testing.T) {
	s := newTestStore()
	r := mustCreate(t, s, FamilyCartWise, Details{Threshold: intp(100), Discount: f64p(10)})
	e := Engine{S: s}

	app, err := e.Apply(r.ID, &cart.Cart{Items: []cart.Item{{ProductID: 1, Price: 100, Quantity: 2}}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if app.TotalPrice != 200 || app.TotalDiscount != 20 || app.FinalPrice != 180 {
		t.Fatalf("unexpected application %+v", app)
	}
	// cart-level discount is not attributed to items
	if app.Items[0].TotalDiscount != 0 {
		t.Fatalf("cart-wise discount must not land on items: %+v", app.Items)
	}
}

func TestApplyBxGyAttributesItems(t *testing.T) {
	s := newTestStore()
	r := mustCreate(t, s, FamilyBxGy, Details{
		BuyProducts: []int64{1, 2}, BuyQuantity: intp(3),
		GetProducts: []int64{3, 4}, GetQuantity: intp(2), RepetitionLimit: intp(3),
	})
	e := Engine{S: s}

	app, err := e.Apply(r.ID, &cart.Cart{Items: []cart.Item{
		{ProductID: 2, Price: 50, Quantity: 7},
		{ProductID: 3, Price: 25, Quantity: 7},
		{ProductID: 4, Price: 25, Quantity: 3},
	}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if app.TotalDiscount != 100 {
		t.Fatalf("expected total discount 100, got %v", app.TotalDiscount)
	}
	var attributed float64
	for _, it := range app.Items {
		attributed += it.TotalDiscount
	}
	if attributed != app.TotalDiscount {
		t.Fatalf("per-item attribution %v does not sum to total %v", attributed, app.TotalDiscount)
	}
	if app.Items[0].TotalDiscount != 0 {
		t.Fatal("buy items must not receive discount")
	}
}

func TestApplyErrors(t *testing.T) {
	s := newTestStore()
	r := mustCreate(t, s, FamilyProductWise, Details{ProductID: i64p(1), Discount: f64p(10), Active: boolp(false)})
	e := Engine{S: s}
	c := &cart.Cart{Items: []cart.Item{{ProductID: 1, Price: 10, Quantity: 1}}}

	if _, err := e.Apply(99, c); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := e.Apply(r.ID, c); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
	if _, err := e.Apply(r.ID, &cart.Cart{}); !errors.Is(err, cart.ErrInvalidCart) {
		t.Fatalf("expected ErrInvalidCart, got %v", err)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := newTestStore()
	r := mustCreate(t, s, FamilyProductWise, Details{ProductID: i64p(1), Discount: f64p(50)})
	e := Engine{S: s}

	input := &cart.Cart{Items: []cart.Item{{ProductID: 1, Price: 10, Quantity: 2}}}
	app, err := e.Apply(r.ID, input)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if app.Items[0].TotalDiscount != 10 {
		t.Fatalf("expected item discount 10, got %v", app.Items[0].TotalDiscount)
	}
	if input.Items[0].TotalDiscount != 0 {
		t.Fatal("apply mutated the caller's cart")
	}
}
