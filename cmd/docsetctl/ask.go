package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/domain/jobModel"
	"github.com/akolanti/DocsetAgent/internal/rag"
)

var askCmd = &cobra.Command{
	Use:   "ask [docset-id] [question]",
	Short: "Ask the docset agent a question",
	Long: `Builds the docset (reusing what is already indexed) and answers the
question with its agent.`,
	Args: cobra.ExactArgs(2),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	docsetID, question := args[0], args[1]
	return withService(cmd, func(ctx context.Context, svc rag.Service) error {
		if _, err := svc.Build(ctx, docsetID, docModel.Create); err != nil {
			return fmt.Errorf("building %s: %w", docsetID, err)
		}

		result := svc.Ask(ctx, jobModel.Job{
			Id:         "cli",
			JobType:    jobModel.JobTypeQuery,
			JobPayload: jobModel.JobPayload{DocsetID: docsetID, Question: question},
		}, nil)
		if result.Status == jobModel.JobStatusError {
			return errors.New(result.Error.Message)
		}
		cmd.Println(result.JobPayload.Answer)
		return nil
	})
}
