package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/compose"

	"github.com/akolanti/DocsetAgent/internal/metrics"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

const (
	VectorToolName = "vector_query_tool"
	SQLToolName    = "sql_query_tool"
)

// QueryEngine answers a natural language question.
type QueryEngine interface {
	Query(ctx context.Context, question string) (string, error)
}

type queryInput struct {
	Query string `json:"query" jsonschema:"description=The natural language question to answer"`
}

// NewQueryTool exposes engine as a tool taking a single "query" argument.
func NewQueryTool(name, description string, engine QueryEngine) (tool.InvokableTool, error) {
	return utils.InferTool(name, description, func(ctx context.Context, in *queryInput) (string, error) {
		if in == nil || strings.TrimSpace(in.Query) == "" {
			return "", errors.New("query is required")
		}
		return engine.Query(ctx, in.Query)
	})
}

// errorHandler turns tool failures into tool results so the model can try
// another tool. Cancellation and budget errors still stop the run.
func errorHandler(logger *logger_i.Logger) compose.ToolMiddleware {
	return compose.ToolMiddleware{
		Invokable: func(next compose.InvokableToolEndpoint) compose.InvokableToolEndpoint {
			return func(ctx context.Context, in *compose.ToolInput) (*compose.ToolOutput, error) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				start := time.Now()
				output, err := next(ctx, in)
				metrics.CaptureExecutionMetrics("tool_"+in.Name, time.Since(start))
				if err != nil {
					metrics.CaptureToolCall(in.Name, "error")
					if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return nil, err
					}
					logger.WithTrace(ctx).Warn("Tool call failed", "tool", in.Name, "error", err)
					return &compose.ToolOutput{Result: fmt.Sprintf("Error: %s", err.Error())}, nil
				}
				metrics.CaptureToolCall(in.Name, "ok")
				return output, nil
			}
		},
	}
}
