package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/prospero-intel/prospero/config"
	"github.com/prospero-intel/prospero/internal/app"
)

func runCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one full pipeline run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(*cfgPath)
			ctx := cmd.Context()
			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return runOnce(ctx, a)
		},
	}
}

func runOnce(ctx context.Context, a *app.App) error {
	sources, err := a.LoadSources(ctx)
	if err != nil {
		return err
	}
	watchlist, err := a.LoadWatchlist()
	if err != nil {
		return err
	}
	controller := a.Controller(watchlist)
	stats, err := controller.Run(ctx, sources)
	if err != nil {
		return err
	}
	a.Logger.Printf("run %s: %d headlines, %d relevant, %d events, %d opportunities, ~$%.2f",
		stats.RunID, stats.HeadlinesScraped, stats.RelevantHeadlines,
		stats.EventsSynthesized, stats.Opportunities, stats.CostEstimate)
	return nil
}
