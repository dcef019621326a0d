package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gpu-hunter/pkg/models"
)

var csvHeader = []string{
	"source", "title", "listing_price", "current_price", "rating", "ai_keywords",
	"matched_title", "matched_price", "url", "matched_url", "user", "created_at",
}

// WriteCSV exports results as a spreadsheet-friendly flat table.
func WriteCSV(path string, results []models.DealResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	for _, r := range results {
		if err := w.Write(csvRow(r)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	return f.Close()
}

func csvRow(r models.DealResult) []string {
	row := []string{
		r.Source,
		r.Title,
		formatPrice(r.ListingPrice),
		"",
		"",
		joinTokens(r.AIKeywords),
		"",
		"",
		r.URL,
		"",
		r.User,
		r.CreatedAt,
	}
	if r.CurrentPrice != nil {
		row[3] = formatPrice(*r.CurrentPrice)
	}
	if r.Rating != nil {
		row[4] = strconv.Itoa(*r.Rating)
	}
	if m := r.MatchedMarketItem; m != nil {
		row[6] = m.Title
		row[7] = m.Price
		row[9] = m.URL
	}
	return row
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func joinTokens(tokens []models.GpuToken) string {
	out := ""
	for i, t := range tokens {
		if i > 0 {
			out += " "
		}
		out += t.String()
	}
	return out
}
