package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prospero-intel/prospero/config"
	"github.com/prospero-intel/prospero/internal/app"
)

func repairCMD(cfgPath *string) *cobra.Command {
	var selector string
	var candidates []string
	repair := &cobra.Command{
		Use:   "repair <html-file>",
		Short: "Propose replacement CSS selectors for a captured debug page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(*cfgPath)
			ctx := cmd.Context()
			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			html, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			proposals, err := a.Suite.RepairSelector(ctx, selector, string(html), candidates)
			if err != nil {
				return err
			}
			for _, p := range proposals {
				fmt.Printf("%.2f  %s\n      %s\n", p.Confidence, p.Selector, p.Rationale)
			}
			return nil
		},
	}
	repair.Flags().StringVar(&selector, "selector", "", "selector that stopped matching")
	repair.Flags().StringSliceVar(&candidates, "candidate", nil, "heuristic candidate selector (repeatable)")
	return repair
}
