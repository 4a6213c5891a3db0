package cart

import "errors"

// ErrInvalidCart is returned when a cart is missing, empty, or contains an
// item with a non-positive price or quantity.
var ErrInvalidCart = errors.New("invalid cart")

// Item is a single cart line. TotalDiscount is populated only while a rule is
// being applied; it is zero on input.
type Item struct {
	ProductID     int64   `json:"productId"`
	Price         float64 `json:"price"`
	Quantity      int     `json:"quantity"`
	TotalDiscount float64 `json:"totalDiscount"`
}

// Cart is an ordered sequence of items as submitted by the caller.
type Cart struct {
	Items []Item `json:"items"`
}

// Validate checks the structural preconditions every pricing operation relies
// on: at least one item, and strictly positive price and quantity per item.
func (c *Cart) Validate() error {
	if c == nil || len(c.Items) == 0 {
		return ErrInvalidCart
	}
	for _, it := range c.Items {
		if it.Price <= 0 || it.Quantity <= 0 {
			return ErrInvalidCart
		}
	}
	return nil
}

// TotalPrice sums price*quantity over all items.
func (c *Cart) TotalPrice() float64 {
	var total float64
	for _, it := range c.Items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}
