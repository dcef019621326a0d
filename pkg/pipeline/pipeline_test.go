package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"gpu-hunter/pkg/market"
	"gpu-hunter/pkg/models"
	"gpu-hunter/pkg/sources"
)

type fakeSource struct {
	tag      string
	listings []models.Listing
	err      error
}

func (f fakeSource) Tag() string { return f.tag }

func (f fakeSource) Fetch(context.Context, string, int) ([]models.Listing, error) {
	return f.listings, f.err
}

type fakeExtractor map[string][]models.GpuToken

func (f fakeExtractor) Extract(_ context.Context, title string) []models.GpuToken {
	if tokens, ok := f[title]; ok {
		return tokens
	}
	return []models.GpuToken{}
}

type fakeMarket struct {
	byKeywords map[string][]models.MarketCandidate
	queries    []market.Query
}

func (f *fakeMarket) Candidates(q market.Query) []models.MarketCandidate {
	f.queries = append(f.queries, q)
	return f.byKeywords[strings.Join(q.Keywords, ",")]
}

// firstSelector always picks the first candidate.
type firstSelector struct {
	calls int
}

func (s *firstSelector) SelectBest(_ context.Context, _ models.Listing, candidates []models.MarketCandidate) (models.MarketCandidate, bool) {
	s.calls++
	if len(candidates) == 0 {
		return models.MarketCandidate{}, false
	}
	return candidates[0], true
}

func tok(brand, model string) models.GpuToken {
	return models.GpuToken{Brand: brand, Model: model}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestProcessRatesMatchedListing(t *testing.T) {
	listing := models.Listing{Source: models.SourceVinted, Title: "RX 570 8Go", URL: "https://www.vinted.fr/items/1", Price: 37}
	asus := models.MarketCandidate{Title: "Asus ROG Strix Radeon RX 570", Price: "€576.78", URL: "https://pcpartpicker.com/asus"}
	sapphire := models.MarketCandidate{Title: "Sapphire Pulse Radeon RX 570", Price: "€189.90", URL: "https://pcpartpicker.com/sapphire"}

	mkt := &fakeMarket{byKeywords: map[string][]models.MarketCandidate{"RX,570": {asus, sapphire}}}
	o := &Orchestrator{
		Market:    mkt,
		Extractor: fakeExtractor{"RX 570 8Go": {tok("RX", "570")}},
		Selector:  &firstSelector{},
	}

	got := o.Process(context.Background(), listing)

	want := models.DealResult{
		Source:            models.SourceVinted,
		Title:             "RX 570 8Go",
		URL:               "https://www.vinted.fr/items/1",
		ListingPrice:      37,
		CurrentPrice:      floatPtr(576.78),
		AIKeywords:        []models.GpuToken{tok("RX", "570")},
		Rating:            intPtr(10),
		MatchedMarketItem: &asus,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Process() mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, mkt.queries, 1)
	require.Equal(t, []string{market.GraphicCard}, mkt.queries[0].Components)
	require.Equal(t, []string{"RX", "570"}, mkt.queries[0].Keywords)
}

func TestProcessWithoutTokens(t *testing.T) {
	selector := &firstSelector{}
	o := &Orchestrator{
		Market:    &fakeMarket{},
		Extractor: fakeExtractor{},
		Selector:  selector,
	}

	got := o.Process(context.Background(), models.Listing{Source: models.SourceLeboncoin, Title: "PC gamer complet", Price: 800})

	require.NotNil(t, got.AIKeywords)
	require.Empty(t, got.AIKeywords)
	require.Nil(t, got.Rating)
	require.Nil(t, got.CurrentPrice)
	require.Nil(t, got.MatchedMarketItem)
	require.Zero(t, selector.calls)
}

func TestProcessKeepsBestToken(t *testing.T) {
	listing := models.Listing{Source: models.SourceVinted, Title: "RTX 3070 ou RTX 3060", Price: 300}
	rtx3070 := models.MarketCandidate{Title: "RTX 3070", Price: "€600.00"}
	rtx3060 := models.MarketCandidate{Title: "RTX 3060", Price: "€350.00"}

	o := &Orchestrator{
		Market: &fakeMarket{byKeywords: map[string][]models.MarketCandidate{
			"RTX,3060": {rtx3060},
			"RTX,3070": {rtx3070},
		}},
		Extractor: fakeExtractor{listing.Title: {tok("RTX", "3060"), tok("RTX", "3070")}},
		Selector:  &firstSelector{},
	}

	got := o.Process(context.Background(), listing)

	// 3060: (350-300)/350 = 14% -> 3; 3070: 50% -> 7.
	require.Equal(t, 7, *got.Rating)
	require.Equal(t, 600.0, *got.CurrentPrice)
	require.Equal(t, rtx3070, *got.MatchedMarketItem)
	require.Equal(t, []models.GpuToken{tok("RTX", "3060"), tok("RTX", "3070")}, got.AIKeywords)
}

func TestProcessFirstTokenWinsTies(t *testing.T) {
	listing := models.Listing{Title: "GTX 1080 / GTX 1070", Price: 500}
	o := &Orchestrator{
		Market: &fakeMarket{byKeywords: map[string][]models.MarketCandidate{
			"GTX,1080": {{Title: "GTX 1080", Price: "€400"}},
			"GTX,1070": {{Title: "GTX 1070", Price: "€300"}},
		}},
		Extractor: fakeExtractor{listing.Title: {tok("GTX", "1080"), tok("GTX", "1070")}},
		Selector:  &firstSelector{},
	}

	got := o.Process(context.Background(), listing)

	require.Equal(t, 1, *got.Rating)
	require.Equal(t, "GTX 1080", got.MatchedMarketItem.Title)
}

func TestProcessNoCandidatesSkipsSelector(t *testing.T) {
	selector := &firstSelector{}
	o := &Orchestrator{
		Market:    &fakeMarket{},
		Extractor: fakeExtractor{"RTX 4090": {tok("RTX", "4090")}},
		Selector:  selector,
	}

	got := o.Process(context.Background(), models.Listing{Title: "RTX 4090", Price: 1500})

	require.Nil(t, got.Rating)
	require.Equal(t, []models.GpuToken{tok("RTX", "4090")}, got.AIKeywords)
	require.Zero(t, selector.calls)
}

func TestProcessUnparseableMarketPrice(t *testing.T) {
	o := &Orchestrator{
		Market: &fakeMarket{byKeywords: map[string][]models.MarketCandidate{
			"RX,580": {{Title: "RX 580", Price: "N/A"}},
		}},
		Extractor: fakeExtractor{"RX 580": {tok("RX", "580")}},
		Selector:  &firstSelector{},
	}

	got := o.Process(context.Background(), models.Listing{Title: "RX 580", Price: 80})
	require.Nil(t, got.Rating)
	require.Nil(t, got.MatchedMarketItem)
}

func TestProcessPassesPriceBounds(t *testing.T) {
	mkt := &fakeMarket{}
	o := &Orchestrator{
		Market:     mkt,
		Extractor:  fakeExtractor{"RTX 3080": {tok("RTX", "3080")}},
		Selector:   &firstSelector{},
		Components: []string{"graphic_card", "gpu_extra"},
		MinPrice:   floatPtr(100),
		MaxPrice:   floatPtr(900),
	}

	o.Process(context.Background(), models.Listing{Title: "RTX 3080"})

	require.Len(t, mkt.queries, 1)
	require.Equal(t, []string{"graphic_card", "gpu_extra"}, mkt.queries[0].Components)
	require.Equal(t, 100.0, *mkt.queries[0].MinPrice)
	require.Equal(t, 900.0, *mkt.queries[0].MaxPrice)
}

func TestNewResultTruncatesDescription(t *testing.T) {
	created := time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC)
	long := strings.Repeat("é", 250)

	got := newResult(models.Listing{Title: "x", Description: long, CreatedAt: created})
	require.Equal(t, strings.Repeat("é", 200)+"...", got.Description)
	require.Equal(t, "2025-10-01T10:00:00Z", got.CreatedAt)

	got = newResult(models.Listing{Title: "x", Description: "short"})
	require.Equal(t, "short", got.Description)
	require.Empty(t, got.CreatedAt)
}

func TestRun(t *testing.T) {
	vinted := fakeSource{tag: models.SourceVinted, listings: []models.Listing{
		{Source: models.SourceVinted, Title: "GTX 970", Price: 210},
		{Source: models.SourceVinted, Title: "RX 570", Price: 37},
		{Source: models.SourceVinted, Title: "Ecran 27 pouces", Price: 90},
		{Source: models.SourceVinted, Title: "RTX 3070", Price: 10},
	}}
	leboncoin := fakeSource{tag: models.SourceLeboncoin, err: errors.New("datadome")}

	o := &Orchestrator{
		Sources: []sources.Source{vinted, leboncoin},
		Market: &fakeMarket{byKeywords: map[string][]models.MarketCandidate{
			"GTX,970": {{Title: "GTX 970", Price: "€250.00"}},
			"RX,570":  {{Title: "RX 570", Price: "€576.78"}},
		}},
		Extractor: fakeExtractor{
			"GTX 970": {tok("GTX", "970")},
			"RX 570":  {tok("RX", "570")},
		},
		Selector:     &firstSelector{},
		ProcessLimit: 3,
		Throttle:     NewThrottle(time.Millisecond),
	}

	results, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.Equal(t, "RX 570", results[0].Title)
	require.Equal(t, 10, *results[0].Rating)
	require.Equal(t, "GTX 970", results[1].Title)
	require.Equal(t, 3, *results[1].Rating)
	require.Equal(t, "Ecran 27 pouces", results[2].Title)
	require.Nil(t, results[2].Rating)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	src := fakeSource{tag: models.SourceVinted, listings: []models.Listing{
		{Title: "RX 570", Price: 37},
		{Title: "RX 580", Price: 50},
	}}
	o := &Orchestrator{
		Sources:   []sources.Source{src},
		Market:    &fakeMarket{},
		Extractor: cancellingExtractor{cancel: cancel},
		Selector:  &firstSelector{},
	}

	results, err := o.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	require.Equal(t, "RX 570", results[0].Title)
}

type cancellingExtractor struct {
	cancel context.CancelFunc
}

func (c cancellingExtractor) Extract(context.Context, string) []models.GpuToken {
	c.cancel()
	return []models.GpuToken{}
}

func TestSort(t *testing.T) {
	results := []models.DealResult{
		{Title: "unrated-a"},
		{Title: "five-a", Rating: intPtr(5)},
		{Title: "ten", Rating: intPtr(10)},
		{Title: "unrated-b"},
		{Title: "five-b", Rating: intPtr(5)},
	}

	Sort(results)

	var titles []string
	for _, r := range results {
		titles = append(titles, r.Title)
	}
	require.Equal(t, []string{"ten", "five-a", "five-b", "unrated-a", "unrated-b"}, titles)
	require.Equal(t, "5 listings processed, 3 rated", Summary(results))
}
