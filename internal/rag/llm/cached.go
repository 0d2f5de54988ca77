package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/akolanti/DocsetAgent/internal/metrics"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

// ResponseStore is the subset of the redis store the cache needs.
type ResponseStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	IsNil(err error) bool
}

type cachedProvider struct {
	next   Provider
	store  ResponseStore
	ttl    time.Duration
	logger *logger_i.Logger
}

// Cached memoizes completions in store. Identical requests against the same
// model return the stored text without calling the model.
func Cached(next Provider, store ResponseStore, ttl time.Duration) Provider {
	return &cachedProvider{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger_i.NewLogger("llm_cache"),
	}
}

func (c *cachedProvider) Model() string { return c.next.Model() }

func (c *cachedProvider) Complete(ctx context.Context, req Request) (string, error) {
	log := c.logger.WithTrace(ctx)
	key := cacheKey(c.next.Model(), req)

	val, err := c.store.Get(ctx, key)
	if err == nil {
		metrics.CaptureCacheLookup("llm", true)
		log.Debug("llm cache hit", "model", c.next.Model())
		return val, nil
	}
	if !c.store.IsNil(err) {
		log.Warn("llm cache lookup failed", "error", err)
	}
	metrics.CaptureCacheLookup("llm", false)

	out, err := c.next.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if err := c.store.Set(ctx, key, out, c.ttl); err != nil {
		log.Warn("llm cache write failed", "error", err)
	}
	return out, nil
}

func cacheKey(model string, req Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%.3f", model, req.System, req.User, req.Temperature)
	return "llm:" + hex.EncodeToString(h.Sum(nil))
}
