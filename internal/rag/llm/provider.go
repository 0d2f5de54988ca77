package llm

import (
	"context"
)

type Request struct {
	System      string
	User        string
	Temperature float32
}

// Provider is a chat-style completion over a single system + user exchange.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	Model() string
}

// Tiers pairs the large-context model with the cheaper small-context one.
type Tiers struct {
	Large Provider
	Small Provider
}
