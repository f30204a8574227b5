package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/chat"
	"github.com/kailas-cloud/storaged/internal/port"
)

var _ port.ChatPort = (*ChatStore)(nil)

type threadKey struct {
	tenant domain.Tenant
	id     string
}

// ChatStore is an in-memory ChatPort.
type ChatStore struct {
	mu      sync.RWMutex
	threads map[threadKey][]chat.Message
	now     func() time.Time
}

// NewChatStore creates an empty store.
func NewChatStore() *ChatStore {
	return &ChatStore{threads: make(map[threadKey][]chat.Message), now: time.Now}
}

func (s *ChatStore) Name() string { return Name }

func (s *ChatStore) Ping(context.Context) error { return nil }

func (s *ChatStore) Append(_ context.Context, tenant domain.Tenant, threadID string, msg chat.NewMessage) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := threadKey{tenant, threadID}
	log := s.threads[key]

	var prev time.Time
	if n := len(log); n > 0 {
		prev = log[n-1].Timestamp
	}
	m := chat.Message{
		ThreadID:  threadID,
		Seq:       int64(len(log) + 1),
		Role:      msg.Role,
		Content:   msg.Content,
		Timestamp: chat.NextTimestamp(s.now(), prev),
	}
	s.threads[key] = append(log, m)
	return m, nil
}

func (s *ChatStore) List(_ context.Context, tenant domain.Tenant, threadID string, q chat.ListQuery) (chat.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.threads[threadKey{tenant, threadID}]
	end := len(log)
	if q.Before > 0 && q.Before-1 < int64(end) {
		end = int(q.Before - 1)
	}

	rows := make([]chat.Message, 0, q.Limit+1)
	for i := end - 1; i >= 0 && len(rows) <= q.Limit; i-- {
		rows = append(rows, log[i])
	}
	return chat.PageOf(rows, q.Limit), nil
}
