package agent

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

var errIterationBudget = errors.New("iteration budget exhausted")

// runBudget counts model calls of a single run.
type runBudget struct {
	max   int
	calls atomic.Int32
	over  atomic.Bool
}

// take reserves one model call and reports whether it fits the budget.
func (b *runBudget) take() bool {
	if int(b.calls.Add(1)) > b.max {
		b.over.Store(true)
		return false
	}
	return true
}

func (b *runBudget) exceeded() bool { return b != nil && b.over.Load() }

func (b *runBudget) used() int { return int(b.calls.Load()) }

type budgetKey struct{}

func withBudget(ctx context.Context, b *runBudget) context.Context {
	return context.WithValue(ctx, budgetKey{}, b)
}

func budgetFrom(ctx context.Context) *runBudget {
	b, _ := ctx.Value(budgetKey{}).(*runBudget)
	return b
}

// budgetModel refuses calls once the run budget carried by ctx is spent.
type budgetModel struct {
	inner model.ToolCallingChatModel
}

func (m *budgetModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	return m.inner.Generate(ctx, input, opts...)
}

func (m *budgetModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	return m.inner.Stream(ctx, input, opts...)
}

func (m *budgetModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	inner, err := m.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &budgetModel{inner: inner}, nil
}

func (m *budgetModel) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b := budgetFrom(ctx); b != nil && !b.take() {
		return errIterationBudget
	}
	return nil
}
