package main

import (
	"context"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/spf13/cobra"

	"github.com/prospero-intel/prospero/config"
	"github.com/prospero-intel/prospero/internal/app"
	"github.com/prospero-intel/prospero/internal/server"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var serveAddr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, with scheduled pipeline runs when configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(*cfgPath)
			ctx := cmd.Context()
			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.SeedChatIndex(ctx, 500); err != nil {
				a.Logger.Printf("chat index seed failed: %v", err)
			}
			if cfg.Schedule.CronSpec != "" {
				go scheduleRuns(ctx, a, cfg.Schedule.CronSpec)
			}
			srv := &server.Server{
				Chat:    a.ChatOrchestrator(),
				Store:   a.Store,
				Metrics: a.Metrics,
				Logger:  a.Logger,
			}
			addr := serveAddr
			if addr == "" {
				addr = cfg.Server.Address
			}
			return srv.Run(addr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to server.address)")
	return serve
}

func scheduleRuns(ctx context.Context, a *app.App, spec string) {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		a.Logger.Printf("invalid cron spec %q, scheduler disabled: %v", spec, err)
		return
	}
	for {
		next := expr.Next(time.Now())
		if next.IsZero() {
			return
		}
		a.Logger.Printf("next scheduled run at %s", next.Format(time.RFC3339))
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}
		if err := runOnce(ctx, a); err != nil {
			a.Logger.Printf("scheduled run failed: %v", err)
		}
	}
}
