package redisStore

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
	Type   int
	logger *logger_i.Logger
}

// NewStore connects to one of the redis logical databases and pings it.
// The client is closed when ctx is done.
func NewStore(ctx context.Context, cfg config.Redis, dbType int) (*Store, error) {
	logger := logger_i.NewLogger(fmt.Sprintf("Redis Store %d", dbType))

	newClient := redis.NewClient(&redis.Options{
		Addr:                  cfg.Addr,
		Password:              cfg.Password,
		DB:                    dbType,
		ContextTimeoutEnabled: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := newClient.Ping(pingCtx).Err(); err != nil {
		logger.Error("Redis is offline", "error", err)
		_ = newClient.Close()
		return nil, fmt.Errorf("redis ping %s db %d: %w", cfg.Addr, dbType, err)
	}
	logger.Info("Redis store init successfully")

	s := &Store{client: newClient, Type: dbType, logger: logger}
	go s.closeOnDone(ctx)
	return s, nil
}

func (s *Store) closeOnDone(ctx context.Context) {
	<-ctx.Done()
	if err := s.client.Close(); err != nil {
		s.logger.Error("Error closing redis client", "error", err)
		return
	}
	s.logger.Info("Redis store closed successfully")
}

// NewTestStore wraps an existing client, used with miniredis in tests.
func NewTestStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		logger: logger_i.NewLogger("Redis Store test"),
	}
}
