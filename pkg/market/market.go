// Package market reads the pre-scraped reference price catalog: one JSON file
// per component category, each holding an array of records.
package market

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gpu-hunter/pkg/models"
)

const GraphicCard = "graphic_card"

// Record is one row of the catalog as written by the price scraper.
type Record struct {
	Name      string `json:"name"`
	Price     string `json:"price"`
	URL       string `json:"url"`
	RawText   string `json:"raw_text"`
	ScrapedAt string `json:"scraped_at"`
	Source    string `json:"source"`
	Page      int    `json:"page"`
}

// Text is what keyword matching runs against.
func (r Record) Text() string {
	if r.RawText != "" {
		return r.RawText
	}
	return r.Name
}

func (r Record) Candidate() models.MarketCandidate {
	return models.MarketCandidate{
		Title: r.Text(),
		Price: r.Price,
		URL:   r.URL,
	}
}

// Dataset is a read-only view of the catalog directory. Category files are
// loaded on first use and kept for the life of the Dataset.
type Dataset struct {
	dir string

	mu     sync.Mutex
	loaded map[string][]Record
}

func Open(dir string) (*Dataset, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("market: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("market: %s is not a directory", dir)
	}
	return &Dataset{dir: dir, loaded: make(map[string][]Record)}, nil
}

// Categories lists the category files present in the dataset directory.
func (d *Dataset) Categories() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(d.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSuffix(filepath.Base(m), ".json"))
	}
	sort.Strings(out)
	return out, nil
}

// Records returns the records of one category. A missing file is an empty
// category.
func (d *Dataset) Records(category string) ([]Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if records, ok := d.loaded[category]; ok {
		return records, nil
	}

	path := filepath.Join(d.dir, category+".json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Printf("[MARKET] no dataset file for %q at %s", category, path)
		d.loaded[category] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("market: read %s: %w", path, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("market: decode %s: %w", path, err)
	}
	d.loaded[category] = records
	return records, nil
}

// Query selects records from the catalog.
type Query struct {
	Components []string
	Keywords   []string
	MinPrice   *float64
	MaxPrice   *float64
}

// Filter returns the records of the queried components whose text contains
// every keyword, case-insensitively, and whose price lies within the
// inclusive bounds. Components are visited in sorted order and records in
// file order, so the same dataset always yields the same output.
func (d *Dataset) Filter(q Query) ([]Record, error) {
	components := normalizeComponents(q.Components)
	keywords := normalizeKeywords(q.Keywords)
	bounded := q.MinPrice != nil || q.MaxPrice != nil

	out := []Record{}
	for _, component := range components {
		records, err := d.Records(component)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			if !containsAll(strings.ToLower(r.Text()), keywords) {
				continue
			}
			if bounded && !inRange(r.Price, q.MinPrice, q.MaxPrice) {
				continue
			}
			out = append(out, r)
		}
	}
	return out, nil
}

// Candidates is Filter shaped for the matcher. Unreadable category files
// are logged and skipped.
func (d *Dataset) Candidates(q Query) []models.MarketCandidate {
	records, err := d.Filter(q)
	if err != nil {
		log.Printf("[MARKET] filter %v: %v", q.Keywords, err)
		return []models.MarketCandidate{}
	}
	out := make([]models.MarketCandidate, len(records))
	for i, r := range records {
		out[i] = r.Candidate()
	}
	return out
}

func normalizeComponents(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

func containsAll(text string, keywords []string) bool {
	for _, k := range keywords {
		if !strings.Contains(text, k) {
			return false
		}
	}
	return true
}

func inRange(rawPrice string, min, max *float64) bool {
	price, ok := ParsePrice(rawPrice)
	if !ok {
		return false
	}
	if min != nil && price < *min {
		return false
	}
	if max != nil && price > *max {
		return false
	}
	return true
}
