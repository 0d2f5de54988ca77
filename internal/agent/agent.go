// Package agent assembles the query engines of a docset into tools and runs
// a tool-calling agent over them.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/metrics"
	"github.com/akolanti/DocsetAgent/internal/prompts"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

// Turn is one earlier message of the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Agent struct {
	runner *adk.Runner
	tools  []string
	cfg    config.Agent
	logger *logger_i.Logger
}

// BuildAgent registers a tool per available engine. A nil engine is left
// out, so a docset without a report gets a vector-only agent.
func BuildAgent(ctx context.Context, cfg config.Agent, chatModel model.ToolCallingChatModel, vectorEngine, sqlEngine QueryEngine) (*Agent, error) {
	if chatModel == nil {
		return nil, errors.New("agent: no chat model")
	}
	if cfg.MaxIterations < 1 {
		return nil, errors.New("agent: max iterations must be at least 1")
	}
	logger := logger_i.NewLogger("agent")

	var (
		tools []tool.BaseTool
		names []string
	)
	if vectorEngine != nil {
		t, err := NewQueryTool(VectorToolName, prompts.VectorToolDescription, vectorEngine)
		if err != nil {
			return nil, fmt.Errorf("vector tool: %w", err)
		}
		tools = append(tools, t)
		names = append(names, VectorToolName)
	}
	if sqlEngine != nil {
		t, err := NewQueryTool(SQLToolName, prompts.SQLToolDescription, sqlEngine)
		if err != nil {
			return nil, fmt.Errorf("sql tool: %w", err)
		}
		tools = append(tools, t)
		names = append(names, SQLToolName)
	}
	if len(tools) == 0 {
		return nil, errors.New("agent: no query engine available")
	}

	chatAgent, err := adk.NewChatModelAgent(ctx, &adk.ChatModelAgentConfig{
		Name:        "docset_agent",
		Description: "Answers questions over a docset using its documents and reports.",
		Instruction: prompts.SystemMessageCore,
		Model:       &budgetModel{inner: chatModel},
		ToolsConfig: adk.ToolsConfig{
			ToolsNodeConfig: compose.ToolsNodeConfig{
				Tools:               tools,
				ToolCallMiddlewares: []compose.ToolMiddleware{errorHandler(logger)},
			},
		},
		// the run budget is enforced by budgetModel, this only has to be larger
		MaxIterations: cfg.MaxIterations + 2,
	})
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}

	logger.Info("Agent ready", "tools", strings.Join(names, ","))
	return &Agent{
		runner: adk.NewRunner(ctx, adk.RunnerConfig{Agent: chatAgent, EnableStreaming: false}),
		tools:  names,
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (a *Agent) Tools() []string {
	return append([]string(nil), a.tools...)
}

// Run answers query. Going over the iteration budget or the timeout is a
// *docModel.BudgetExceededError, never a partial answer.
func (a *Agent) Run(ctx context.Context, query string, history []Turn) (string, error) {
	logger := a.logger.WithTrace(ctx)
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("agent_run", time.Since(start)) }()

	runCtx := ctx
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}
	budget := &runBudget{max: a.cfg.MaxIterations}
	runCtx = withBudget(runCtx, budget)

	messages := make([]adk.Message, 0, len(history)+1)
	for _, t := range history {
		if t.Role == RoleAssistant {
			messages = append(messages, schema.AssistantMessage(t.Content, nil))
		} else {
			messages = append(messages, schema.UserMessage(t.Content))
		}
	}
	messages = append(messages, schema.UserMessage(query))

	iter := a.runner.Run(runCtx, messages)
	answer := ""
	for {
		event, ok := iter.Next()
		if !ok {
			break
		}
		if event.Err != nil {
			return "", a.fail(runCtx, budget, event.Err)
		}
		if event.Output == nil || event.Output.MessageOutput == nil {
			continue
		}
		msg, err := event.Output.MessageOutput.GetMessage()
		if err != nil {
			return "", a.fail(runCtx, budget, err)
		}
		if msg.Role == schema.Assistant && len(msg.ToolCalls) == 0 {
			answer = msg.Content
		}
		for _, tc := range msg.ToolCalls {
			logger.Debug("Agent calls tool", "tool", tc.Function.Name)
		}
	}

	if budget.exceeded() || runCtx.Err() != nil {
		return "", a.fail(runCtx, budget, runCtx.Err())
	}
	if strings.TrimSpace(answer) == "" {
		metrics.CaptureAgentRun("empty")
		return "", errors.New("agent finished without an answer")
	}
	metrics.CaptureAgentRun("ok")
	logger.Info("Agent answered", "modelCalls", budget.used(), "elapsed", time.Since(start))
	return answer, nil
}

func (a *Agent) fail(ctx context.Context, budget *runBudget, err error) error {
	switch {
	case budget.exceeded():
		metrics.CaptureAgentRun("iterations_exceeded")
		return &docModel.BudgetExceededError{Iterations: a.cfg.MaxIterations, Err: err}
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		metrics.CaptureAgentRun("timeout")
		return &docModel.BudgetExceededError{Timeout: a.cfg.Timeout, Err: ctx.Err()}
	case ctx.Err() != nil:
		metrics.CaptureAgentRun("cancelled")
		return ctx.Err()
	default:
		metrics.CaptureAgentRun("error")
		a.logger.WithTrace(ctx).Error("Agent run failed", "error", err)
		return fmt.Errorf("agent run: %w", err)
	}
}
