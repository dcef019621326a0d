package main

import (
	"log"

	"github.com/spf13/cobra"

	"gpu-hunter/pkg/output"
)

var reportFlags struct {
	input     string
	top       int
	minRating int
	maxPrice  float64
	source    string
	csv       string
}

func init() {
	f := reportCmd.Flags()
	f.StringVarP(&reportFlags.input, "input", "i", "", "Results file to read, defaults to the configured output.")
	f.IntVar(&reportFlags.top, "top", 20, "Deals shown in the table, 0 shows all.")
	f.IntVar(&reportFlags.minRating, "min-rating", 0, "Only show deals rated at least this.")
	f.Float64Var(&reportFlags.maxPrice, "max-price", 0, "Only show listings at or below this price.")
	f.StringVar(&reportFlags.source, "source", "", "Only show listings from this marketplace.")
	f.StringVar(&reportFlags.csv, "csv", "", "Export the selected results as CSV to this file.")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report [--input <file.json>] [--min-rating <n>]",
	Short: "Prints a summary of a previous run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		input := reportFlags.input
		if input == "" {
			input = cfg.Output
		}

		results, err := output.ReadJSON(input)
		if err != nil {
			return err
		}

		selected := output.Filter{
			MinRating: reportFlags.minRating,
			MaxPrice:  reportFlags.maxPrice,
			Source:    reportFlags.source,
		}.Apply(results)

		if reportFlags.csv != "" {
			if err := output.WriteCSV(reportFlags.csv, selected); err != nil {
				return err
			}
			log.Printf("CSV export written to %s", reportFlags.csv)
		}

		output.Report(cmd.OutOrStdout(), selected, reportFlags.top)
		return nil
	},
}
