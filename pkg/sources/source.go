// Package sources fetches marketplace listings. Each marketplace lives in its
// own subpackage and implements Source.
package sources

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gpu-hunter/pkg/models"
)

type Source interface {
	// Tag is the value written to Listing.Source.
	Tag() string
	Fetch(ctx context.Context, query string, limit int) ([]models.Listing, error)
}

// Unavailable wraps a marketplace failure so callers can test it with
// errors.Is(err, models.ErrSourceUnavailable).
func Unavailable(tag string, err error) error {
	if errors.Is(err, models.ErrSourceUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", tag, models.ErrSourceUnavailable, err)
}

// FetchAll queries every source in order. A failing source contributes no
// listings; the error is logged and the others still run.
func FetchAll(ctx context.Context, srcs []Source, query string, limit int) map[string][]models.Listing {
	out := make(map[string][]models.Listing, len(srcs))
	for _, src := range srcs {
		if ctx.Err() != nil {
			break
		}
		listings, err := src.Fetch(ctx, query, limit)
		if err != nil {
			log.Printf("[%s] %v", strings.ToUpper(src.Tag()), Unavailable(src.Tag(), err))
			out[src.Tag()] = []models.Listing{}
			continue
		}
		log.Printf("[%s] fetched %d listings for %q", strings.ToUpper(src.Tag()), len(listings), query)
		out[src.Tag()] = listings
	}
	return out
}

// Dedupe keeps the first listing of every lower-cased, trimmed title, drops
// untitled ones and stops at limit (0 means no cap).
func Dedupe(listings []models.Listing, limit int) []models.Listing {
	seen := make(map[string]struct{}, len(listings))
	out := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		key := strings.ToLower(strings.TrimSpace(l.Title))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
