// Package pipeline runs listings through extraction, market lookup, matching
// and rating, one listing at a time.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"gpu-hunter/pkg/logger"
	"gpu-hunter/pkg/market"
	"gpu-hunter/pkg/models"
	"gpu-hunter/pkg/rating"
	"gpu-hunter/pkg/sources"
)

const (
	DefaultQuery        = "carte graphique"
	DefaultLimit        = 100
	DefaultProcessLimit = 10
	DefaultThrottle     = 500 * time.Millisecond

	descriptionLimit = 200
)

type Extractor interface {
	Extract(ctx context.Context, title string) []models.GpuToken
}

type Selector interface {
	SelectBest(ctx context.Context, listing models.Listing, candidates []models.MarketCandidate) (models.MarketCandidate, bool)
}

type Market interface {
	Candidates(q market.Query) []models.MarketCandidate
}

type Orchestrator struct {
	Sources   []sources.Source
	Market    Market
	Extractor Extractor
	Selector  Selector

	Query string
	// Limit is how many listings each source is asked for.
	Limit int
	// ProcessLimit caps how many of each source's listings are rated. 0 rates
	// all of them.
	ProcessLimit int

	Components []string
	MinPrice   *float64
	MaxPrice   *float64

	// Throttle paces listings. nil disables pacing.
	Throttle *rate.Limiter
}

// NewThrottle allows one listing per interval.
func NewThrottle(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Run fetches every source and rates its listings. When ctx is cancelled the
// results gathered so far are returned together with the context error.
func (o *Orchestrator) Run(ctx context.Context) ([]models.DealResult, error) {
	query := o.Query
	if query == "" {
		query = DefaultQuery
	}
	limit := o.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	fetched := sources.FetchAll(ctx, o.Sources, query, limit)

	results := []models.DealResult{}
	for _, src := range o.Sources {
		listings := fetched[src.Tag()]
		if o.ProcessLimit > 0 && len(listings) > o.ProcessLimit {
			listings = listings[:o.ProcessLimit]
		}

		for i, listing := range listings {
			if err := o.wait(ctx); err != nil {
				Sort(results)
				return results, err
			}
			log.Printf("[PIPELINE] %s %d/%d: %s (%.2f €)", src.Tag(), i+1, len(listings), listing.Title, listing.Price)
			results = append(results, o.Process(ctx, listing))
		}
	}

	if err := ctx.Err(); err != nil {
		Sort(results)
		return results, err
	}
	Sort(results)
	return results, nil
}

func (o *Orchestrator) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.Throttle == nil {
		return nil
	}
	if err := o.Throttle.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Process rates a single listing. It never fails: a listing whose GPU cannot
// be identified or priced comes back unrated.
func (o *Orchestrator) Process(ctx context.Context, listing models.Listing) models.DealResult {
	ctx, span := otel.Tracer("pipeline").Start(ctx, "process listing")
	defer span.End()
	span.SetAttributes(
		attribute.String("listing.source", listing.Source),
		attribute.String("listing.title", listing.Title),
	)

	result := newResult(listing)

	tokens := o.Extractor.Extract(ctx, listing.Title)
	if len(tokens) == 0 {
		logger.Dedup("[PIPELINE] no GPU identified in %q", listing.Title)
		return result
	}
	result.AIKeywords = tokens

	for _, token := range tokens {
		candidate, marketPrice, ok := o.price(ctx, listing, token)
		if !ok {
			continue
		}
		score := rating.Score(listing.Price, marketPrice)
		log.Printf("[PIPELINE] %s: %.2f € vs %.2f € -> %d/10", token, listing.Price, marketPrice, score)

		if result.Rating != nil && score <= *result.Rating {
			continue
		}
		matched := candidate
		result.Rating = &score
		result.CurrentPrice = &marketPrice
		result.MatchedMarketItem = &matched
	}

	if result.Rating != nil {
		span.SetAttributes(attribute.Int("deal.rating", *result.Rating))
	}
	return result
}

// price finds the market reference for one token.
func (o *Orchestrator) price(ctx context.Context, listing models.Listing, token models.GpuToken) (models.MarketCandidate, float64, bool) {
	candidates := o.Market.Candidates(market.Query{
		Components: o.components(),
		Keywords:   token.Keywords(),
		MinPrice:   o.MinPrice,
		MaxPrice:   o.MaxPrice,
	})
	if len(candidates) == 0 {
		logger.Dedup("[PIPELINE] %s: %v", token, models.ErrNoMarketCandidates)
		return models.MarketCandidate{}, 0, false
	}

	best, ok := o.Selector.SelectBest(ctx, listing, candidates)
	if !ok {
		return models.MarketCandidate{}, 0, false
	}

	marketPrice, ok := market.ParsePrice(best.Price)
	if !ok {
		log.Printf("[PIPELINE] %s: %v: unparseable market price %q", token, models.ErrMatchingFailed, best.Price)
		return models.MarketCandidate{}, 0, false
	}
	return best, marketPrice, true
}

func (o *Orchestrator) components() []string {
	if len(o.Components) == 0 {
		return []string{market.GraphicCard}
	}
	return o.Components
}

func newResult(listing models.Listing) models.DealResult {
	result := models.DealResult{
		Source:       listing.Source,
		Title:        listing.Title,
		URL:          listing.URL,
		ListingPrice: listing.Price,
		AIKeywords:   []models.GpuToken{},
		ImageURL:     listing.ImageURL,
		User:         listing.User,
		Description:  truncate(listing.Description, descriptionLimit),
	}
	if !listing.CreatedAt.IsZero() {
		result.CreatedAt = listing.CreatedAt.Format(time.RFC3339)
	}
	return result
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

// Sort orders results by rating, best first, with unrated results last.
// Equal ratings keep their processing order.
func Sort(results []models.DealResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return ratingOf(results[i]) > ratingOf(results[j])
	})
}

func ratingOf(d models.DealResult) int {
	if d.Rating == nil {
		return 0
	}
	return *d.Rating
}

// Summary is a one-line account of a run.
func Summary(results []models.DealResult) string {
	rated := 0
	for _, r := range results {
		if r.Rated() {
			rated++
		}
	}
	return fmt.Sprintf("%d listings processed, %d rated", len(results), rated)
}
