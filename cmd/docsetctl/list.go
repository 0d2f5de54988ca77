package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akolanti/DocsetAgent/internal/rag"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available docsets",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, svc rag.Service) error {
		docsets, err := svc.ListDocsets(ctx)
		if err != nil {
			return fmt.Errorf("listing docsets: %w", err)
		}
		if len(docsets) == 0 {
			cmd.Println("No docsets found.")
			return nil
		}
		for i, d := range docsets {
			cmd.Printf("%d: %s (ID: %s)\n", i+1, d.Name, d.ID)
		}
		return nil
	})
}
