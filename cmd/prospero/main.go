package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var cfgPath string

	root := &cobra.Command{Use: "prospero", Short: "Wealth-event news intelligence pipeline"}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path")

	root.AddCommand(runCMD(&cfgPath), chatCMD(&cfgPath), serveCMD(&cfgPath), migrateCMD(&cfgPath), repairCMD(&cfgPath))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
