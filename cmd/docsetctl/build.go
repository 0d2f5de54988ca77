package main

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/domain/jobModel"
	"github.com/akolanti/DocsetAgent/internal/rag"
)

var buildRecreate bool

var buildCmd = &cobra.Command{
	Use:   "build [docset-id]",
	Short: "Index a docset and assemble its agent",
	Long: `Loads every document of the docset, summarizes documents and chunks,
indexes them and loads the docset report when one is published.

By default what was indexed before is kept and updated. --recreate drops
the docset's vectors and cached reports first.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildRecreate, "recreate", false, "drop existing vectors and reports first")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	mode := docModel.Create
	if buildRecreate {
		mode = docModel.Recreate
	}
	return withService(cmd, func(ctx context.Context, svc rag.Service) error {
		result := svc.BuildDocset(ctx, jobModel.Job{
			Id:         "cli",
			JobType:    jobModel.JobTypeBuildIndex,
			JobPayload: jobModel.JobPayload{DocsetID: args[0], Mode: mode.String()},
		})
		if result.Status == jobModel.JobStatusError {
			return errors.New(result.Error.Message)
		}

		p := result.JobPayload
		cmd.Printf("Indexed %s: %d documents, %d chunks\n", p.DocsetID, p.Documents, p.Chunks)
		cmd.Printf("Retrieval tool: %s\n", p.ToolName)
		if p.Report != "" {
			cmd.Printf("Report table: %s\n", p.Report)
		}
		cmd.Printf("Agent tools: %s\n", strings.Join(p.Tools, ", "))
		return nil
	})
}
