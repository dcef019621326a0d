// Package vinted searches the Vinted catalog API. The API only answers once
// the session carries the cookies handed out by the home page.
package vinted

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"gpu-hunter/pkg/httpx"
	"gpu-hunter/pkg/market"
	"gpu-hunter/pkg/models"
	"gpu-hunter/pkg/sources"
)

const (
	BaseURL    = "https://www.vinted.fr"
	maxPerPage = 96
	maxPages   = 5
)

type Client struct {
	HTTP    *resty.Client
	BaseURL string

	mu     sync.Mutex
	warmed bool
}

// New builds a client allowed rps catalog requests per second.
func New(baseURL string, rps float64) (*Client, error) {
	if baseURL == "" {
		baseURL = BaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("vinted: base url: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("User-Agent", httpx.UserAgent)
	client.SetHeader("Accept-Language", "fr-FR,fr;q=0.9,en;q=0.8")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsed.Hostname()))
	client.SetTimeout(30 * time.Second)

	if rps <= 0 {
		rps = 2
	}
	limiter := rate.NewLimiter(rate.Limit(rps), 2)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	httpx.Instrument(client, "VINTED")

	return &Client{HTTP: client, BaseURL: baseURL}, nil
}

func (c *Client) Tag() string {
	return models.SourceVinted
}

type catalogResponse struct {
	Items []catalogItem `json:"items"`
}

type catalogItem struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	URL         string      `json:"url"`
	Path        string      `json:"path"`
	Price       price       `json:"price"`
	Photo       *struct {
		URL string `json:"url"`
	} `json:"photo"`
	User *struct {
		Login string `json:"login"`
	} `json:"user"`
	CreatedAtTS string `json:"created_at_ts"`
}

// price accepts "150.0", 150 or {"amount": "150.0", "currency_code": "EUR"}.
type price float64

func (p *price) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 || string(data) == "null" {
		*p = 0
		return nil
	}

	switch data[0] {
	case '{':
		var obj struct {
			Amount json.RawMessage `json:"amount"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if len(obj.Amount) == 0 {
			*p = 0
			return nil
		}
		return p.UnmarshalJSON(obj.Amount)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*p = price(v)
			return nil
		}
		v, ok := market.ParsePrice(s)
		if !ok {
			log.Printf("[VINTED] unparseable price %q, using 0", s)
			*p = 0
			return nil
		}
		*p = price(v)
		return nil
	default:
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*p = price(v)
		return nil
	}
}

// warm fetches the home page once so the cookie jar holds a session.
func (c *Client) warm(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.warmed {
		return nil
	}

	res, err := c.HTTP.R().SetContext(ctx).Get("/")
	if err != nil {
		return fmt.Errorf("session warm-up: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("session warm-up: %s", res.Status())
	}
	c.warmed = true
	return nil
}

func (c *Client) forget() {
	c.mu.Lock()
	c.warmed = false
	c.mu.Unlock()
}

// Fetch returns up to limit listings for query, newest first.
func (c *Client) Fetch(ctx context.Context, query string, limit int) ([]models.Listing, error) {
	if limit <= 0 {
		return []models.Listing{}, nil
	}
	if err := c.warm(ctx); err != nil {
		return nil, sources.Unavailable(c.Tag(), err)
	}

	perPage := min(limit, maxPerPage)
	var all []models.Listing
	for page := 1; page <= maxPages && len(all) < limit; page++ {
		items, err := c.page(ctx, query, page, perPage)
		if err != nil {
			return nil, sources.Unavailable(c.Tag(), err)
		}
		if len(items) == 0 {
			break
		}
		for _, item := range items {
			all = append(all, c.listing(item))
		}
		if len(items) < perPage {
			break
		}
	}

	return sources.Dedupe(all, limit), nil
}

func (c *Client) page(ctx context.Context, query string, page, perPage int) ([]catalogItem, error) {
	var body catalogResponse
	request := func() (*resty.Response, error) {
		return c.HTTP.R().
			SetContext(ctx).
			SetHeader("Accept", "application/json").
			SetQueryParams(map[string]string{
				"search_text": query,
				"per_page":    strconv.Itoa(perPage),
				"page":        strconv.Itoa(page),
				"order":       "newest_first",
			}).
			SetResult(&body).
			Get("/api/v2/catalog/items")
	}

	res, err := request()
	if err != nil {
		return nil, fmt.Errorf("catalog page %d: %w", page, err)
	}
	if res.StatusCode() == http.StatusUnauthorized {
		log.Printf("[VINTED] session expired, warming up again")
		c.forget()
		if err := c.warm(ctx); err != nil {
			return nil, err
		}
		if res, err = request(); err != nil {
			return nil, fmt.Errorf("catalog page %d: %w", page, err)
		}
	}
	if res.IsError() {
		return nil, fmt.Errorf("catalog page %d: %s", page, res.Status())
	}
	return body.Items, nil
}

func (c *Client) listing(item catalogItem) models.Listing {
	l := models.Listing{
		Source:      models.SourceVinted,
		ID:          item.ID.String(),
		Title:       strings.TrimSpace(item.Title),
		URL:         item.URL,
		Price:       float64(item.Price),
		Description: item.Description,
	}
	if l.URL == "" && item.Path != "" {
		l.URL = strings.TrimRight(c.BaseURL, "/") + item.Path
	}
	if item.Photo != nil {
		l.ImageURL = item.Photo.URL
	}
	if item.User != nil {
		l.User = item.User.Login
	}
	if item.CreatedAtTS != "" {
		if ts, err := time.Parse(time.RFC3339, item.CreatedAtTS); err == nil {
			l.CreatedAt = ts
		}
	}
	return l
}
