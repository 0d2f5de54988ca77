package llm

import (
	"context"
	"time"

	"github.com/akolanti/DocsetAgent/internal/metrics"
	"golang.org/x/time/rate"
)

type limitedProvider struct {
	next    Provider
	limiter *rate.Limiter
}

// RateLimited waits on limiter before every call. One limiter should be
// shared by every provider that talks to the same service.
func RateLimited(next Provider, limiter *rate.Limiter) Provider {
	return &limitedProvider{next: next, limiter: limiter}
}

func (l *limitedProvider) Model() string { return l.next.Model() }

func (l *limitedProvider) Complete(ctx context.Context, req Request) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_"+l.next.Model(), time.Since(start)) }()
	return l.next.Complete(ctx, req)
}
