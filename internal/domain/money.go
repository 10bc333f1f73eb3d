package domain

import "github.com/shopspring/decimal"

// Amounts are expressed in crores with two decimal places.
var (
	bracketOne  = decimal.NewFromInt(1)
	bracketTwo  = decimal.NewFromInt(2)
	bracketFive = decimal.NewFromInt(5)

	incSmall  = decimal.RequireFromString("0.05")
	incMedium = decimal.RequireFromString("0.10")
	incLarge  = decimal.RequireFromString("0.20")
	incTop    = decimal.RequireFromString("0.25")
)

// BidIncrement returns the bracket increment that applies on top of current.
func BidIncrement(current decimal.Decimal) decimal.Decimal {
	switch {
	case current.LessThan(bracketOne):
		return incSmall
	case current.LessThan(bracketTwo):
		return incMedium
	case current.LessThan(bracketFive):
		return incLarge
	default:
		return incTop
	}
}

// NextBid returns the only acceptable amount for the next bid on a lot. The
// opening bid is the base price itself; every later bid adds the bracket
// increment of the current bid.
func NextBid(current, basePrice decimal.Decimal) decimal.Decimal {
	if current.IsZero() {
		return basePrice
	}
	return current.Add(BidIncrement(current))
}
