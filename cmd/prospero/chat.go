package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prospero-intel/prospero/config"
	"github.com/prospero-intel/prospero/internal/app"
	"github.com/prospero-intel/prospero/provider"
)

func chatCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat over the synthesized event archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(*cfgPath)
			ctx := cmd.Context()
			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.SeedChatIndex(ctx, 500); err != nil {
				return err
			}
			return chatLoop(ctx, a)
		},
	}
}

func chatLoop(ctx context.Context, a *app.App) error {
	orch := a.ChatOrchestrator()
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var history []provider.Message

	fmt.Println("prospero chat (empty line to exit)")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return nil
		}
		history = append(history, provider.Message{Role: "user", Content: line})
		resp, err := orch.Chat(ctx, history)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			history = history[:len(history)-1]
			continue
		}
		fmt.Println(resp.Answer)
		if !resp.Thoughts.Grounded {
			fmt.Println("(answer withheld: could not be grounded in sources)")
		}
		history = append(history, provider.Message{Role: "assistant", Content: resp.Answer})
	}
}
