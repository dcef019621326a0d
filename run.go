package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"gpu-hunter/pkg/cache"
	"gpu-hunter/pkg/extract"
	"gpu-hunter/pkg/llm"
	"gpu-hunter/pkg/market"
	"gpu-hunter/pkg/match"
	"gpu-hunter/pkg/models"
	"gpu-hunter/pkg/output"
	"gpu-hunter/pkg/pipeline"
	"gpu-hunter/pkg/sources"
	"gpu-hunter/pkg/sources/leboncoin"
	"gpu-hunter/pkg/sources/vinted"
)

var runFlags struct {
	query        string
	limit        int
	processLimit int
	output       string
	csv          string
	sources      []string
	browser      bool
	noCache      bool
	minPrice     float64
	maxPrice     float64
	top          int
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.query, "query", "q", "", "Search text sent to the marketplaces.")
	f.IntVarP(&runFlags.limit, "limit", "n", 0, "Listings to fetch per marketplace.")
	f.IntVar(&runFlags.processLimit, "process-limit", 0, "Listings to rate per marketplace, 0 rates all of them.")
	f.StringVarP(&runFlags.output, "output", "o", "", "JSON file the results are written to.")
	f.StringVar(&runFlags.csv, "csv", "", "Also export the results as CSV to this file.")
	f.StringSliceVar(&runFlags.sources, "source", nil, "Marketplaces to search (vinted, leboncoin).")
	f.BoolVar(&runFlags.browser, "browser", false, "Render Leboncoin in headless Chrome.")
	f.BoolVar(&runFlags.noCache, "no-cache", false, "Do not reuse cached model answers.")
	f.Float64Var(&runFlags.minPrice, "min-price", 0, "Ignore market records cheaper than this.")
	f.Float64Var(&runFlags.maxPrice, "max-price", 0, "Ignore market records more expensive than this.")
	f.IntVar(&runFlags.top, "top", 10, "Deals shown in the summary table.")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--query <text>] [--limit <n>] [--output <file.json>]",
	Short: "Fetches listings, rates them against the market dataset and writes the results.",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyRunFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		orchestrator, closeFn, err := buildOrchestrator()
		if err != nil {
			return err
		}
		defer closeFn()

		results, runErr := orchestrator.Run(ctx)
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			return runErr
		}
		if runErr != nil {
			log.Printf("[PIPELINE] interrupted, keeping %d results gathered so far", len(results))
		}

		if err := output.WriteJSON(cfg.Output, results); err != nil {
			return err
		}
		log.Printf("[PIPELINE] %s, written to %s", pipeline.Summary(results), cfg.Output)

		if cfg.CSV != "" {
			if err := output.WriteCSV(cfg.CSV, results); err != nil {
				return err
			}
			log.Printf("[PIPELINE] CSV export written to %s", cfg.CSV)
		}

		output.Report(cmd.OutOrStdout(), results, runFlags.top)
		return nil
	},
}

func applyRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("query") {
		cfg.Query = runFlags.query
	}
	if f.Changed("limit") {
		cfg.Limit = runFlags.limit
	}
	if f.Changed("process-limit") {
		cfg.ProcessLimit = &runFlags.processLimit
	}
	if f.Changed("output") {
		cfg.Output = runFlags.output
	}
	if f.Changed("csv") {
		cfg.CSV = runFlags.csv
	}
	if f.Changed("browser") {
		cfg.Leboncoin.Browser = runFlags.browser
	}
	if f.Changed("no-cache") {
		cfg.Cache.Disabled = runFlags.noCache
	}
	if f.Changed("min-price") {
		cfg.Market.MinPrice = &runFlags.minPrice
	}
	if f.Changed("max-price") {
		cfg.Market.MaxPrice = &runFlags.maxPrice
	}
	if f.Changed("source") {
		vintedOn, leboncoinOn := false, false
		for _, s := range runFlags.sources {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case models.SourceVinted:
				vintedOn = true
			case models.SourceLeboncoin:
				leboncoinOn = true
			default:
				log.Printf("[CONFIG] unknown source %q ignored", s)
			}
		}
		cfg.Vinted.Enabled = &vintedOn
		cfg.Leboncoin.Enabled = &leboncoinOn
	}
}

// buildOrchestrator wires the configured sources, dataset and model clients.
// The returned function releases the answer cache.
func buildOrchestrator() (*pipeline.Orchestrator, func(), error) {
	dataset, err := market.Open(cfg.Market.Dir)
	if err != nil {
		return nil, nil, err
	}

	model, err := llm.NewOpenRouter(cfg.LLMOptions())
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {}
	extractor := extract.New(model, nil)
	if !cfg.Cache.Disabled {
		answers, err := cache.New(cfg.Cache.Path, cfg.CacheTTL())
		if err != nil {
			return nil, nil, fmt.Errorf("answer cache: %w", err)
		}
		log.Printf("Cache initialized at %s with TTL %d minutes", cfg.Cache.Path, cfg.Cache.TTLMinutes)
		extractor.Cache = answers
		closeFn = func() { answers.Close() }
	}
	extractor.Retry = cfg.RetryPolicy()

	selector := match.New(model)
	selector.Retry = cfg.RetryPolicy()

	srcs, err := buildSources()
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	if len(srcs) == 0 {
		closeFn()
		return nil, nil, errors.New("no marketplace enabled")
	}

	return &pipeline.Orchestrator{
		Sources:      srcs,
		Market:       dataset,
		Extractor:    extractor,
		Selector:     selector,
		Query:        cfg.Query,
		Limit:        cfg.Limit,
		ProcessLimit: cfg.ProcessLimitValue(),
		Components:   cfg.Market.Components,
		MinPrice:     cfg.Market.MinPrice,
		MaxPrice:     cfg.Market.MaxPrice,
		Throttle:     pipeline.NewThrottle(cfg.Throttle()),
	}, closeFn, nil
}

func buildSources() ([]sources.Source, error) {
	var srcs []sources.Source
	if cfg.VintedEnabled() {
		client, err := vinted.New(cfg.Vinted.BaseURL, cfg.Vinted.RPS)
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, client)
	}
	if cfg.LeboncoinEnabled() {
		if cfg.Leboncoin.Browser {
			scraper := leboncoin.NewBrowserScraper()
			if cfg.Leboncoin.BaseURL != "" {
				scraper.BaseURL = cfg.Leboncoin.BaseURL
			}
			srcs = append(srcs, scraper)
		} else {
			scraper := leboncoin.NewScraper()
			if cfg.Leboncoin.BaseURL != "" {
				scraper.BaseURL = cfg.Leboncoin.BaseURL
			}
			srcs = append(srcs, scraper)
		}
	}
	return srcs, nil
}
