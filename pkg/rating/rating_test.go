package rating

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScoreEndpoints(t *testing.T) {
	tests := []struct {
		name   string
		price  float64
		market float64
		want   int
	}{
		{"same price", 100, 100, Min},
		{"more expensive", 150, 100, Min},
		{"exactly 80 percent off", 20, 100, Max},
		{"almost free", 1, 100, Max},
		{"free", 0, 100, Max},
		{"no market price", 50, 0, Min},
		{"rx 570 deal", 37.0, 576.78, Max},
		{"tiny discount", 99, 100, 2},
		{"15 percent off", 85, 100, 3},
		{"just under 80 percent off", 20.5, 100, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Score(tt.price, tt.market))
		})
	}
}

func TestScoreMonotonic(t *testing.T) {
	for _, market := range []float64{50, 199.99, 576.78, 1500} {
		prev := Max
		for price := 0.0; price <= market*1.5; price += market / 200 {
			got := Score(price, market)
			require.GreaterOrEqual(t, got, Min)
			require.LessOrEqual(t, got, Max)
			require.LessOrEqual(t, got, prev, "score increased with price %.2f for market %.2f", price, market)
			prev = got
		}
	}

	for _, price := range []float64{10, 120, 400} {
		prev := Min
		for market := 1.0; market <= 3000; market += 7.5 {
			got := Score(price, market)
			require.GreaterOrEqual(t, got, prev, "score decreased with market %.2f for price %.2f", market, price)
			prev = got
		}
	}
}

func TestDiscount(t *testing.T) {
	require.InDelta(t, 0.9358, Discount(37.0, 576.78), 0.0001)
	require.InDelta(t, -0.5, Discount(150, 100), 0.0001)
	require.Equal(t, 0.0, Discount(10, 0))
}

func TestScoreFollowsDiscount(t *testing.T) {
	tests := []struct {
		listing float64
		want    int
	}{
		{0, Max},
		{20, Max},
		{70, 8},
		{130, 5},
		{199, 2},
		{200, Min},
		{250, Min},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Score(tt.listing, 200), "discount %.3f", Discount(tt.listing, 200))
	}
}
