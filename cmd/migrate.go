package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"skillscope/ingest-service/internal/config"
	"skillscope/ingest-service/internal/db"
	"skillscope/ingest-service/internal/logger"
	"skillscope/ingest-service/internal/model"
)

func newMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}
			log, err := logger.New(logger.Config{Level: cfg.LogLevel})
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return db.Migrate(cfg.DatabaseURL, down, log)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll every migration back")
	return cmd
}

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the configured sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return printSources(cmd.OutOrStdout(), cfg.Sources)
		},
	}
}

func printSources(out io.Writer, sources []model.Source) error {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Kind", "Active", "Every", "URLs"})
	for _, s := range sources {
		urls := append([]string(nil), s.CategoryURLs...)
		if s.SearchURL != "" {
			urls = append(urls, s.SearchURL)
		}
		t.AppendRow(table.Row{s.Name, s.Kind, s.Active, s.ScrapeFrequency, strings.Join(urls, " ")})
	}
	t.Render()
	return nil
}
