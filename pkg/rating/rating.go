// Package rating turns a listing price and a reference market price into a
// 1-10 deal rating.
package rating

import "math"

const (
	Min = 1
	Max = 10

	// MaxDiscount is the discount fraction from which a deal gets Max.
	MaxDiscount = 0.80
	bucketWidth = 0.10
)

// Score rates a listing against its market price. A listing at or above the
// market price scores Min, a discount of MaxDiscount or more scores Max, and
// the range in between is split into 10 point wide buckets scoring 2 to 9.
func Score(listingPrice, marketPrice float64) int {
	discount := Discount(listingPrice, marketPrice)
	if discount <= 0 {
		return Min
	}
	if discount >= MaxDiscount {
		return Max
	}

	score := 2 + int(math.Floor(discount/bucketWidth))
	if score > Max-1 {
		score = Max - 1
	}
	return score
}

// Discount returns the fraction of the market price saved by the listing,
// negative when the listing is more expensive.
func Discount(listingPrice, marketPrice float64) float64 {
	if marketPrice <= 0 {
		return 0
	}
	return (marketPrice - listingPrice) / marketPrice
}
