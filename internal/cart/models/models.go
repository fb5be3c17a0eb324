package models

import "github.com/shopspring/decimal"

// Line is one product-and-quantity entry in the cart, uniquely keyed by
// ProductID. UnitPriceGross is fixed when the line is first created
// (price-at-add-time policy) and never recomputed from later settings
// changes.
type Line struct {
	ProductID      string
	Name           string
	UnitPriceGross decimal.Decimal
	Image          string
	Category       string
	Quantity       int
}

// LineTotal is the gross amount this line contributes to the subtotal.
func (l Line) LineTotal() decimal.Decimal {
	return l.UnitPriceGross.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
