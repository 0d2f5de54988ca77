package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/akolanti/DocsetAgent/internal/data/redisStore"
	"github.com/akolanti/DocsetAgent/internal/domain/jobModel"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

const chatKeyPrefix = "chat:"

var ErrUnknownChat = errors.New("invalid chat id")

// RedisMessageStore keeps a chat as a redis list of json exchanges. A new
// chat starts with one empty exchange so the key exists.
type RedisMessageStore struct {
	store  *redisStore.Store
	ttl    time.Duration
	limit  int64
	logger *logger_i.Logger
}

func NewRedisMessageStore(store *redisStore.Store, ttl time.Duration, limit int) *RedisMessageStore {
	return &RedisMessageStore{
		store:  store,
		ttl:    ttl,
		limit:  int64(limit),
		logger: logger_i.NewLogger("MessageStore"),
	}
}

func (s *RedisMessageStore) ValidateChatId(ctx context.Context, chatId string) bool {
	isFound, err := s.store.Exists(ctx, chatKeyPrefix+chatId)
	if err != nil {
		s.logger.WithTrace(ctx).Error("Failed to check if chatId exists", "chat Id", chatId, "err", err)
		return false
	}
	return isFound
}

func (s *RedisMessageStore) TrySaveChat(ctx context.Context, id string, exchange jobModel.JobPayload) error {
	if !s.ValidateChatId(ctx, id) {
		s.logger.WithTrace(ctx).Error("Failed Validation before saving", "chat Id", id)
		return ErrUnknownChat
	}
	return s.push(ctx, id, exchange)
}

func (s *RedisMessageStore) InitNewChat(ctx context.Context, id string) error {
	s.logger.WithTrace(ctx).Debug("Initializing new chat", "chat Id", id)
	if err := s.store.Del(ctx, chatKeyPrefix+id); err != nil {
		return err
	}
	return s.push(ctx, id, jobModel.JobPayload{})
}

func (s *RedisMessageStore) push(ctx context.Context, id string, exchange jobModel.JobPayload) error {
	log := s.logger.WithTrace(ctx).With("chat Id", id)
	data, err := json.Marshal(exchange)
	if err != nil {
		return err
	}
	key := chatKeyPrefix + id
	if err := s.store.ListPush(ctx, key, data); err != nil {
		log.Error("error saving chat", "error", err)
		return err
	}
	if s.ttl > 0 {
		if err := s.store.Expire(ctx, key, s.ttl); err != nil {
			log.Warn("could not refresh chat ttl", "error", err)
		}
	}
	return nil
}

func (s *RedisMessageStore) GetMessageHistory(ctx context.Context, chatId string) ([]jobModel.JobPayload, error) {
	log := s.logger.WithTrace(ctx).With("chat Id", chatId)

	raw, err := s.store.ListGetLast(ctx, chatKeyPrefix+chatId, s.limit)
	if err != nil {
		log.Error("Error getting history", "error", err)
		return nil, err
	}

	history := make([]jobModel.JobPayload, 0, len(raw))
	for _, r := range raw {
		var exchange jobModel.JobPayload
		if err := json.Unmarshal([]byte(r), &exchange); err != nil {
			log.Warn("Skipping unreadable history entry", "error", err)
			continue
		}
		history = append(history, exchange)
	}
	return history, nil
}
