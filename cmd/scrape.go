package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"skillscope/ingest-service/internal/ingest"
	"skillscope/ingest-service/internal/logger"
	"skillscope/ingest-service/internal/model"
)

func newScrapeCmd() *cobra.Command {
	var source, query, backend string

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape job listings from one source or all active sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), backend)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("query") {
				query = a.cfg.DefaultQuery
			}
			ctx := cmd.Context()
			if a.cfg.RunTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, a.cfg.RunTimeout)
				defer cancel()
			}
			return runScrape(ctx, cmd.OutOrStdout(), a, source, query)
		},
	}

	cmd.Flags().StringVar(&source, "source", ingest.SourceAll, `source to scrape: "all" or a configured source name`)
	cmd.Flags().StringVar(&query, "query", "", "search keywords for keyword-search sources (default from DEFAULT_QUERY)")
	cmd.Flags().StringVar(&backend, "store", storePostgres, "storage backend: postgres or memory")
	return cmd
}

func runScrape(ctx context.Context, out io.Writer, a *app, source, query string) error {
	coord := a.coordinator()

	if strings.EqualFold(source, ingest.SourceAll) {
		total, per, err := coord.RunAll(ctx, a.cfg.Sources, query)
		for _, s := range per {
			fmt.Fprintf(out, "%s: %d created, %d skipped\n", s.Source, s.Created, s.Skipped)
		}
		printSummary(out, total)
		if err != nil {
			a.log.Error("scrape finished with errors", logger.Error(err))
		}
		return err
	}

	sum, err := coord.Run(ctx, a.cfg.Sources, source, query)
	if errors.Is(err, ingest.ErrUnknownSource) {
		names := make([]string, 0, len(a.cfg.Sources))
		for _, s := range a.cfg.Sources {
			names = append(names, s.Name)
		}
		fmt.Fprintf(out, "Unknown source: %s (available: all, %s)\n", source, strings.Join(names, ", "))
		return nil
	}
	printSummary(out, sum)
	if err != nil {
		a.log.Error("scrape finished with errors", logger.Error(err))
	}
	return err
}

func printSummary(out io.Writer, s model.Summary) {
	fmt.Fprintf(out, "Scraping complete: %d jobs created, %d skipped\n", s.Created, s.Skipped)
	if s.Refreshed > 0 || s.Violations > 0 || s.FailedPages > 0 {
		fmt.Fprintf(out, "  refreshed=%d violations=%d failed_pages=%d\n", s.Refreshed, s.Violations, s.FailedPages)
	}
}
