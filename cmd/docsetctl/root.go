package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akolanti/DocsetAgent/internal/app"
	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/rag"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

var (
	configPath string
	cfg        config.Config
)

// openService is swapped in tests.
var openService = func(ctx context.Context, cfg config.Config) (rag.Service, error) {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return a.Rag, nil
}

var rootCmd = &cobra.Command{
	Use:   "docsetctl",
	Short: "Index docsets and ask questions about them",
	Long: `docsetctl indexes a docset into a vector store, loads its published report
into SQLite when there is one, and answers questions with an agent over both.

Logs go to stderr, answers to stdout.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		logger_i.InitWithWriter(cfg.Logging, cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config")
}

// withService opens the rag service for the length of fn.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc rag.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc, err := openService(ctx, cfg)
	if err != nil {
		return fmt.Errorf("starting services: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			cmd.PrintErrln("closing:", err)
		}
	}()
	return fn(ctx, svc)
}
