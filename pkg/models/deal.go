package models

import (
	"fmt"
	"regexp"
	"strings"
)

var gpuModelRegex = regexp.MustCompile(`^\d{3,4}$`)

var gpuBrands = map[string]struct{}{
	"RTX": {},
	"GTX": {},
	"RX":  {},
}

// GpuToken is a normalized BRAND,MODEL identifier such as RTX,3070.
type GpuToken struct {
	Brand string
	Model string
}

// NewGpuToken normalizes a raw brand/model pair. GeForce and Quadro brands are
// folded into GTX; anything else outside RTX, GTX and RX is rejected, as is a
// model that is not a 3-4 digit number.
func NewGpuToken(brand, model string) (GpuToken, error) {
	brand = strings.ToUpper(strings.TrimSpace(brand))
	model = strings.ToUpper(strings.TrimSpace(model))

	switch {
	case strings.HasPrefix(brand, "GEFORCE"):
		brand = "GTX"
	case strings.HasPrefix(brand, "QUADRO"):
		brand = "GTX"
	}

	if _, ok := gpuBrands[brand]; !ok {
		return GpuToken{}, fmt.Errorf("invalid gpu brand %q", brand)
	}
	if !gpuModelRegex.MatchString(model) {
		return GpuToken{}, fmt.Errorf("invalid gpu model %q", model)
	}
	return GpuToken{Brand: brand, Model: model}, nil
}

func (t GpuToken) String() string {
	return t.Brand + "," + t.Model
}

// Keywords returns the tokens used to query the market dataset.
func (t GpuToken) Keywords() []string {
	return []string{t.Brand, t.Model}
}

func (t GpuToken) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *GpuToken) UnmarshalText(text []byte) error {
	brand, model, ok := strings.Cut(string(text), ",")
	if !ok {
		return fmt.Errorf("gpu token %q: missing comma", text)
	}
	parsed, err := NewGpuToken(brand, model)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarketCandidate is a reference-price record offered to the matcher.
type MarketCandidate struct {
	Title string `json:"title"`
	Price string `json:"price"`
	URL   string `json:"url"`
}

// DealResult is the outcome of running one listing through the pipeline.
// Rating, CurrentPrice and MatchedMarketItem are either all set or all nil.
type DealResult struct {
	Source            string           `json:"source"`
	Title             string           `json:"title"`
	URL               string           `json:"url"`
	ListingPrice      float64          `json:"listing_price"`
	CurrentPrice      *float64         `json:"current_price"`
	AIKeywords        []GpuToken       `json:"ai_keywords"`
	Rating            *int             `json:"rating"`
	MatchedMarketItem *MarketCandidate `json:"matched_market_item"`
	ImageURL          string           `json:"image_url,omitempty"`
	User              string           `json:"user,omitempty"`
	CreatedAt         string           `json:"created_at,omitempty"`
	Description       string           `json:"description,omitempty"`
}

// Rated reports whether a market match was found and scored.
func (d DealResult) Rated() bool {
	return d.Rating != nil
}
