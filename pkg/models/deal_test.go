package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewGpuToken(t *testing.T) {
	tests := []struct {
		brand, model string
		want         string
		wantErr      bool
	}{
		{"RTX", "3070", "RTX,3070", false},
		{" rtx ", " 3060 ", "RTX,3060", false},
		{"rx", "570", "RX,570", false},
		{"GeForce", "1080", "GTX,1080", false},
		{"GEFORCEGTX", "970", "GTX,970", false},
		{"Quadro", "4000", "GTX,4000", false},
		{"ARC", "770", "", true},
		{"RTX", "30", "", true},
		{"RTX", "30700", "", true},
		{"RTX", "3070TI", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.brand+"/"+tt.model, func(t *testing.T) {
			got, err := NewGpuToken(tt.brand, tt.model)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got.String())
		})
	}
}

func TestGpuTokenText(t *testing.T) {
	var tok GpuToken
	require.NoError(t, tok.UnmarshalText([]byte("rtx,3070")))
	require.Equal(t, GpuToken{Brand: "RTX", Model: "3070"}, tok)
	require.Equal(t, []string{"RTX", "3070"}, tok.Keywords())

	require.Error(t, tok.UnmarshalText([]byte("RTX 3070")))
	require.Error(t, tok.UnmarshalText([]byte("INTEL,770")))
}

func TestDealResultJSON(t *testing.T) {
	rating := 10
	current := 576.78
	rated := DealResult{
		Source:            SourceVinted,
		Title:             "RX 570",
		URL:               "https://www.vinted.fr/items/1",
		ListingPrice:      37,
		CurrentPrice:      &current,
		AIKeywords:        []GpuToken{{Brand: "RX", Model: "570"}},
		Rating:            &rating,
		MatchedMarketItem: &MarketCandidate{Title: "Asus RX 570", Price: "€576.78", URL: "https://example.com"},
	}

	data, err := json.Marshal(rated)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, []any{"RX,570"}, got["ai_keywords"])
	require.Equal(t, float64(10), got["rating"])
	require.Equal(t, 576.78, got["current_price"])
	require.True(t, rated.Rated())

	unrated := DealResult{Source: SourceLeboncoin, Title: "PC gamer", AIKeywords: []GpuToken{}}
	data, err = json.Marshal(unrated)
	require.NoError(t, err)

	got = nil
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, []any{}, got["ai_keywords"])
	for _, key := range []string{"rating", "current_price", "matched_market_item"} {
		v, ok := got[key]
		require.True(t, ok, key)
		require.Nil(t, v, key)
	}
	require.False(t, unrated.Rated())

	var back DealResult
	require.NoError(t, json.Unmarshal([]byte(`{"ai_keywords":["GTX,1080"]}`), &back))
	require.Equal(t, []GpuToken{{Brand: "GTX", Model: "1080"}}, back.AIKeywords)
}
