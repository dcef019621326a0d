package output

import (
	"math"
	"strings"

	"gpu-hunter/pkg/models"
)

// Filter narrows a result set. Zero values match everything.
type Filter struct {
	MinRating int
	MaxPrice  float64
	Source    string
	RatedOnly bool
}

func (f Filter) Match(r models.DealResult) bool {
	if f.Source != "" && !strings.EqualFold(f.Source, r.Source) {
		return false
	}
	if f.MaxPrice > 0 && r.ListingPrice > f.MaxPrice {
		return false
	}
	if f.MinRating > 0 || f.RatedOnly {
		if r.Rating == nil || *r.Rating < f.MinRating {
			return false
		}
	}
	return true
}

// Apply returns the matching results in their original order.
func (f Filter) Apply(results []models.DealResult) []models.DealResult {
	out := []models.DealResult{}
	for _, r := range results {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

type PriceRange struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
}

// Stats summarizes a result set.
type Stats struct {
	Total         int            `json:"total"`
	Rated         int            `json:"rated"`
	AverageRating float64        `json:"average_rating"`
	ByRating      map[int]int    `json:"by_rating"`
	BySource      map[string]int `json:"by_source"`
	ListingPrices PriceRange     `json:"listing_prices"`
}

func ComputeStats(results []models.DealResult) Stats {
	s := Stats{
		Total:    len(results),
		ByRating: map[int]int{},
		BySource: map[string]int{},
	}

	ratingSum := 0
	priced := 0
	priceSum := 0.0
	s.ListingPrices.Min = math.Inf(1)
	for _, r := range results {
		s.BySource[r.Source]++
		if r.Rating != nil {
			s.Rated++
			ratingSum += *r.Rating
			s.ByRating[*r.Rating]++
		}
		if r.ListingPrice > 0 {
			priced++
			priceSum += r.ListingPrice
			s.ListingPrices.Min = math.Min(s.ListingPrices.Min, r.ListingPrice)
			s.ListingPrices.Max = math.Max(s.ListingPrices.Max, r.ListingPrice)
		}
	}

	if s.Rated > 0 {
		s.AverageRating = round2(float64(ratingSum) / float64(s.Rated))
	}
	if priced > 0 {
		s.ListingPrices.Average = round2(priceSum / float64(priced))
	} else {
		s.ListingPrices.Min = 0
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
