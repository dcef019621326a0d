// Package leboncoin reads search results out of the __NEXT_DATA__ payload that
// Leboncoin embeds in its search pages.
package leboncoin

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"gpu-hunter/pkg/httpx"
	"gpu-hunter/pkg/models"
	"gpu-hunter/pkg/sources"
)

const (
	BaseURL = "https://www.leboncoin.fr"

	// category 15 is "Informatique".
	category = "15"
	maxPages = 3
)

// gpuHints are the words an ad must mention to count as a graphics card.
var gpuHints = []string{"carte graphique", "graphics", "gpu", "rtx", "gtx", "radeon", "geforce"}

type Scraper struct {
	Collector *colly.Collector
	BaseURL   string
}

func NewScraper() *Scraper {
	c := colly.NewCollector(
		colly.AllowedDomains("www.leboncoin.fr", "127.0.0.1"), // localhost for testing
		colly.UserAgent(httpx.UserAgent),
	)
	c.SetRequestTimeout(30 * time.Second)
	return &Scraper{
		Collector: c,
		BaseURL:   BaseURL,
	}
}

func (s *Scraper) Tag() string {
	return models.SourceLeboncoin
}

func searchURL(base, query string, page int) string {
	params := url.Values{}
	params.Set("category", category)
	params.Set("text", query)
	params.Set("search_in_title_only", "true")
	params.Set("sort", "time")
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	return strings.TrimRight(base, "/") + "/recherche?" + params.Encode()
}

// Fetch walks the newest search pages until limit graphics card ads are
// collected.
func (s *Scraper) Fetch(ctx context.Context, query string, limit int) ([]models.Listing, error) {
	return collect(ctx, limit, func(page int) ([]ad, error) {
		return s.page(query, page)
	})
}

func (s *Scraper) page(query string, page int) ([]ad, error) {
	c := s.Collector.Clone()

	var (
		ads      []ad
		parseErr error
		found    bool
	)
	c.OnHTML("script#__NEXT_DATA__", func(e *colly.HTMLElement) {
		found = true
		ads, parseErr = parseNextData([]byte(e.Text))
	})

	target := searchURL(s.BaseURL, query, page)
	log.Printf("[LEBONCOIN] Navigating to %s", target)
	if err := c.Visit(target); err != nil {
		return nil, fmt.Errorf("search page %d: %w", page, err)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("search page %d: %w", page, parseErr)
	}
	if !found {
		return nil, fmt.Errorf("search page %d: no __NEXT_DATA__ payload (blocked?)", page)
	}
	return ads, nil
}

// collect pages through results with fetchPage and turns the graphics card
// ads into listings.
func collect(ctx context.Context, limit int, fetchPage func(page int) ([]ad, error)) ([]models.Listing, error) {
	if limit <= 0 {
		return []models.Listing{}, nil
	}

	var all []models.Listing
	for page := 1; page <= maxPages && len(all) < limit; page++ {
		if err := ctx.Err(); err != nil {
			return nil, sources.Unavailable(models.SourceLeboncoin, err)
		}
		ads, err := fetchPage(page)
		if err != nil {
			if page > 1 && len(all) > 0 {
				log.Printf("[LEBONCOIN] stopping at page %d: %v", page, err)
				break
			}
			return nil, sources.Unavailable(models.SourceLeboncoin, err)
		}
		if len(ads) == 0 {
			break
		}
		for _, a := range ads {
			if a.mentionsGPU() {
				all = append(all, a.listing())
			}
		}
		all = sources.Dedupe(all, 0)
	}

	return sources.Dedupe(all, limit), nil
}

type nextData struct {
	Props struct {
		PageProps struct {
			SearchData struct {
				Ads []ad `json:"ads"`
			} `json:"searchData"`
		} `json:"pageProps"`
	} `json:"props"`
}

type ad struct {
	ListID               json.Number `json:"list_id"`
	Subject              string      `json:"subject"`
	Body                 string      `json:"body"`
	URL                  string      `json:"url"`
	Price                []float64   `json:"price"`
	FirstPublicationDate string      `json:"first_publication_date"`
	Images               struct {
		URLs     []string `json:"urls"`
		ThumbURL string   `json:"thumb_url"`
	} `json:"images"`
	Owner struct {
		Name string `json:"name"`
	} `json:"owner"`
}

func parseNextData(raw []byte) ([]ad, error) {
	var data nextData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode __NEXT_DATA__: %w", err)
	}
	return data.Props.PageProps.SearchData.Ads, nil
}

func (a ad) mentionsGPU() bool {
	text := strings.ToLower(a.Subject + " " + a.Body)
	for _, hint := range gpuHints {
		if strings.Contains(text, hint) {
			return true
		}
	}
	return false
}

func (a ad) listing() models.Listing {
	l := models.Listing{
		Source:      models.SourceLeboncoin,
		ID:          a.ListID.String(),
		Title:       strings.TrimSpace(a.Subject),
		URL:         a.URL,
		Description: a.Body,
		User:        a.Owner.Name,
	}
	if len(a.Price) > 0 {
		l.Price = a.Price[0]
	}
	switch {
	case len(a.Images.URLs) > 0:
		l.ImageURL = a.Images.URLs[0]
	case a.Images.ThumbURL != "":
		l.ImageURL = a.Images.ThumbURL
	}
	if a.FirstPublicationDate != "" {
		loc, err := time.LoadLocation("Europe/Paris")
		if err != nil {
			loc = time.UTC
		}
		if ts, err := time.ParseInLocation(time.DateTime, a.FirstPublicationDate, loc); err == nil {
			l.CreatedAt = ts
		}
	}
	return l
}
