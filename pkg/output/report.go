package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"gpu-hunter/pkg/models"
)

// Report prints the top rated deals followed by the rating breakdown and the
// listing price range.
func Report(w io.Writer, results []models.DealResult, top int) {
	stats := ComputeStats(results)

	deals := Filter{RatedOnly: true}.Apply(results)
	if top > 0 && len(deals) > top {
		deals = deals[:top]
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Top deals")
	t.AppendHeader(table.Row{"#", "Rating", "Source", "Title", "Price", "Market", "GPU"})
	for i, d := range deals {
		market := "-"
		if d.CurrentPrice != nil {
			market = fmt.Sprintf("%.2f €", *d.CurrentPrice)
		}
		t.AppendRow(table.Row{
			i + 1,
			fmt.Sprintf("%d/10", *d.Rating),
			d.Source,
			d.Title,
			fmt.Sprintf("%.2f €", d.ListingPrice),
			market,
			joinTokens(d.AIKeywords),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: 48},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()

	breakdown := table.NewWriter()
	breakdown.SetOutputMirror(w)
	breakdown.SetTitle("Ratings")
	breakdown.AppendHeader(table.Row{"Rating", "Listings"})
	ratings := make([]int, 0, len(stats.ByRating))
	for r := range stats.ByRating {
		ratings = append(ratings, r)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ratings)))
	for _, r := range ratings {
		breakdown.AppendRow(table.Row{fmt.Sprintf("%d/10", r), stats.ByRating[r]})
	}
	breakdown.AppendFooter(table.Row{"unrated", stats.Total - stats.Rated})
	breakdown.SetStyle(table.StyleRounded)
	breakdown.Render()

	fmt.Fprintf(w, "%d listings, %d rated, average rating %.2f\n", stats.Total, stats.Rated, stats.AverageRating)
	if stats.ListingPrices.Max > 0 {
		fmt.Fprintf(w, "Listing prices: %.2f € - %.2f € (average %.2f €)\n",
			stats.ListingPrices.Min, stats.ListingPrices.Max, stats.ListingPrices.Average)
	}
}
