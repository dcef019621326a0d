package leboncoin

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"gpu-hunter/pkg/httpx"
	"gpu-hunter/pkg/models"
)

// BrowserScraper renders the search page in headless Chrome. Slower than
// Scraper, but gets through when the plain collector is served a challenge.
type BrowserScraper struct {
	BaseURL string
	Timeout time.Duration
}

func NewBrowserScraper() *BrowserScraper {
	return &BrowserScraper{
		BaseURL: BaseURL,
		Timeout: 45 * time.Second,
	}
}

func (s *BrowserScraper) Tag() string {
	return models.SourceLeboncoin
}

func (s *BrowserScraper) Fetch(ctx context.Context, query string, limit int) ([]models.Listing, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(httpx.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	if chromeBin := os.Getenv("CHROME_BIN"); chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancel()

	return collect(ctx, limit, func(page int) ([]ad, error) {
		return s.page(browserCtx, query, page)
	})
}

func (s *BrowserScraper) page(ctx context.Context, query string, page int) ([]ad, error) {
	pageCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	target := searchURL(s.BaseURL, query, page)
	log.Printf("[LEBONCOIN] Rendering %s", target)

	var html string
	err := chromedp.Run(pageCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp execution failed: %w", err)
	}

	return adsFromHTML(html)
}

// adsFromHTML pulls the __NEXT_DATA__ script out of a rendered page.
func adsFromHTML(html string) ([]ad, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered page: %w", err)
	}

	script := doc.Find(`script#__NEXT_DATA__`).First()
	if script.Length() == 0 {
		title := strings.TrimSpace(doc.Find("title").First().Text())
		return nil, fmt.Errorf("no __NEXT_DATA__ payload in page %q (blocked?)", title)
	}
	return parseNextData([]byte(script.Text()))
}
