package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"gpu-hunter/pkg/models"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func sampleResults() []models.DealResult {
	return []models.DealResult{
		{
			Source:            models.SourceVinted,
			Title:             "RX 570 8Go",
			URL:               "https://www.vinted.fr/items/1",
			ListingPrice:      37,
			CurrentPrice:      floatPtr(576.78),
			AIKeywords:        []models.GpuToken{{Brand: "RX", Model: "570"}},
			Rating:            intPtr(10),
			MatchedMarketItem: &models.MarketCandidate{Title: "Asus RX 570", Price: "€576.78", URL: "https://pcpartpicker.com/asus"},
		},
		{
			Source:            models.SourceLeboncoin,
			Title:             "RTX 3070 <FE> & boîte",
			URL:               "https://www.leboncoin.fr/ad/2",
			ListingPrice:      300,
			CurrentPrice:      floatPtr(600),
			AIKeywords:        []models.GpuToken{{Brand: "RTX", Model: "3070"}},
			Rating:            intPtr(7),
			MatchedMarketItem: &models.MarketCandidate{Title: "MSI RTX 3070", Price: "€600.00"},
		},
		{
			Source:       models.SourceVinted,
			Title:        "Ecran 27 pouces",
			ListingPrice: 90,
			AIKeywords:   []models.GpuToken{},
		},
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", DefaultPath)

	require.NoError(t, WriteJSON(path, sampleResults()))

	got, err := ReadJSON(path)
	require.NoError(t, err)
	if diff := cmp.Diff(sampleResults(), got); diff != "" {
		t.Errorf("ReadJSON() mismatch (-want +got):\n%s", diff)
	}

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"ai_keywords": [
      "RX,570"
    ]`)
	require.Contains(t, string(raw), `<FE> & boîte`)
	require.Contains(t, string(raw), `"rating": null`)
}

func TestWriteJSONReplacesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte("old content"), 0o644))

	require.NoError(t, WriteJSON(path, nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[]\n", string(raw))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file left behind")
}

func TestWriteJSONFailureKeepsOldFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))

	bad := []models.DealResult{{Title: "nan", CurrentPrice: floatPtr(nan())}}
	require.Error(t, WriteJSON(path, bad))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[]", string(raw))
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestReadJSONMissingFile(t *testing.T) {
	_, err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mix.json")
	require.NoError(t, WriteRecords[models.MarketCandidate](path, nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[]\n", string(raw))

	records := []models.MarketCandidate{{Title: "RX 570", Price: "€189.90"}}
	require.NoError(t, WriteRecords(path, records))
	var back []models.MarketCandidate
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, records, back)
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deals.csv")
	require.NoError(t, WriteCSV(path, sampleResults()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, csvHeader, rows[0])
	require.Equal(t, []string{
		"vinted", "RX 570 8Go", "37.00", "576.78", "10", "RX,570",
		"Asus RX 570", "€576.78", "https://www.vinted.fr/items/1", "https://pcpartpicker.com/asus", "", "",
	}, rows[1])
	require.Equal(t, "", rows[3][3])
	require.Equal(t, "", rows[3][4])
}

func TestFilter(t *testing.T) {
	results := sampleResults()

	titles := func(rs []models.DealResult) []string {
		out := []string{}
		for _, r := range rs {
			out = append(out, r.Title)
		}
		return out
	}

	require.Len(t, Filter{}.Apply(results), 3)
	require.Equal(t, []string{"RX 570 8Go"}, titles(Filter{MinRating: 8}.Apply(results)))
	require.Equal(t, []string{"RX 570 8Go", "Ecran 27 pouces"}, titles(Filter{MaxPrice: 100}.Apply(results)))
	require.Equal(t, []string{"RTX 3070 <FE> & boîte"}, titles(Filter{Source: "LEBONCOIN"}.Apply(results)))
	require.Equal(t, []string{"RX 570 8Go", "RTX 3070 <FE> & boîte"}, titles(Filter{RatedOnly: true}.Apply(results)))
	require.Empty(t, Filter{Source: "ebay"}.Apply(results))
}

func TestComputeStats(t *testing.T) {
	s := ComputeStats(sampleResults())

	require.Equal(t, 3, s.Total)
	require.Equal(t, 2, s.Rated)
	require.Equal(t, 8.5, s.AverageRating)
	require.Equal(t, map[int]int{10: 1, 7: 1}, s.ByRating)
	require.Equal(t, map[string]int{"vinted": 2, "leboncoin": 1}, s.BySource)
	require.Equal(t, PriceRange{Min: 37, Max: 300, Average: 142.33}, s.ListingPrices)

	empty := ComputeStats(nil)
	require.Zero(t, empty.Total)
	require.Equal(t, PriceRange{}, empty.ListingPrices)
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	Report(&buf, sampleResults(), 1)

	out := buf.String()
	require.Contains(t, out, "RX 570 8Go")
	require.Contains(t, out, "10/10")
	require.NotContains(t, out, "RTX 3070 <FE>")
	require.Contains(t, out, "3 listings, 2 rated, average rating 8.50")
	require.Contains(t, out, "Listing prices: 37.00 € - 300.00 € (average 142.33 €)")
	require.True(t, strings.Contains(out, "7/10"), "breakdown lists every rating")
}
