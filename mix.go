package main

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"gpu-hunter/pkg/market"
	"gpu-hunter/pkg/output"
)

var mixFlags struct {
	components []string
	keywords   []string
	minPrice   float64
	maxPrice   float64
	outDir     string
}

func init() {
	f := mixCmd.Flags()
	f.StringSliceVarP(&mixFlags.components, "components", "c", nil, "Component categories to search, e.g. graphic_card,cpu.")
	f.StringSliceVarP(&mixFlags.keywords, "keywords", "k", nil, "Keywords every record must contain.")
	f.Float64Var(&mixFlags.minPrice, "min-price", 0, "Minimum price, inclusive.")
	f.Float64Var(&mixFlags.maxPrice, "max-price", 0, "Maximum price, inclusive.")
	f.StringVar(&mixFlags.outDir, "out-dir", ".", "Directory the result file is written to.")
	rootCmd.AddCommand(mixCmd)
}

var mixCmd = &cobra.Command{
	Use:   "mix --components <a,b> --keywords <x,y> [--min-price <n>] [--max-price <n>]",
	Short: "Filters the market dataset and writes the matching records to a timestamped file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataset, err := market.Open(cfg.Market.Dir)
		if err != nil {
			return err
		}

		q := market.Query{
			Components: mixFlags.components,
			Keywords:   mixFlags.keywords,
		}
		if len(q.Components) == 0 {
			q.Components = cfg.Market.Components
		}
		if cmd.Flags().Changed("min-price") {
			q.MinPrice = &mixFlags.minPrice
		}
		if cmd.Flags().Changed("max-price") {
			q.MaxPrice = &mixFlags.maxPrice
		}

		records, err := dataset.Filter(q)
		if err != nil {
			return err
		}

		path := filepath.Join(mixFlags.outDir, market.OutputFilename(q.Components, q.Keywords, time.Now()))
		if err := output.WriteRecords(path, records); err != nil {
			return err
		}
		log.Printf("[MARKET] %d records matched, written to %s", len(records), path)
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}
