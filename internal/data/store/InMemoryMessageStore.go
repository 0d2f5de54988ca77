package store

import (
	"context"
	"sync"

	"github.com/akolanti/DocsetAgent/internal/domain/jobModel"
)

type InMemoryMessageStore struct {
	chatLock *sync.RWMutex
	chatMap  map[string][]jobModel.JobPayload
	limit    int
}

// NewInMemoryMessageStore keeps every exchange but only hands back the
// newest limit of them.
func NewInMemoryMessageStore(limit int) *InMemoryMessageStore {
	return &InMemoryMessageStore{
		chatLock: new(sync.RWMutex),
		chatMap:  make(map[string][]jobModel.JobPayload),
		limit:    limit,
	}
}

func (store *InMemoryMessageStore) ValidateChatId(ctx context.Context, chatId string) bool {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	_, ok := store.chatMap[chatId]
	return ok
}

// TrySaveChat drops exchanges for chats that were never initialized.
func (store *InMemoryMessageStore) TrySaveChat(ctx context.Context, id string, exchange jobModel.JobPayload) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	if _, ok := store.chatMap[id]; !ok {
		return nil
	}
	store.chatMap[id] = append(store.chatMap[id], exchange)
	return nil
}

func (store *InMemoryMessageStore) InitNewChat(ctx context.Context, id string) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	store.chatMap[id] = make([]jobModel.JobPayload, 0)
	return nil
}

func (store *InMemoryMessageStore) GetMessageHistory(ctx context.Context, chatId string) ([]jobModel.JobPayload, error) {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	all := store.chatMap[chatId]
	if len(all) > store.limit {
		all = all[len(all)-store.limit:]
	}
	return append([]jobModel.JobPayload(nil), all...), nil
}
