// Package chat validates chat requests and guards every call into the
// mounted ChatPort.
package chat

import (
	"context"
	"time"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/chat"
	"github.com/kailas-cloud/storaged/internal/port"
	"github.com/kailas-cloud/storaged/internal/usecase/guard"
)

// Service decorates a ChatPort. It is itself a ChatPort.
type Service struct {
	inner        port.ChatPort
	guard        guard.Guard
	maxListLimit int
}

var _ port.ChatPort = (*Service)(nil)

// New wraps inner. maxListLimit bounds List page sizes.
func New(inner port.ChatPort, timeout time.Duration, maxListLimit int) *Service {
	if maxListLimit <= 0 {
		maxListLimit = 500
	}
	return &Service{
		inner:        inner,
		guard:        guard.New("chat", inner.Name(), timeout),
		maxListLimit: maxListLimit,
	}
}

func (s *Service) Name() string { return s.inner.Name() }

func (s *Service) Ping(ctx context.Context) error {
	return s.guard.Do(ctx, "ping", s.inner.Ping)
}

// Append stores msg at the end of the thread.
func (s *Service) Append(ctx context.Context, tenant domain.Tenant, threadID string, msg chat.NewMessage) (chat.Message, error) {
	if err := chat.ValidateThreadID(threadID); err != nil {
		return chat.Message{}, err
	}
	if err := msg.Validate(); err != nil {
		return chat.Message{}, err
	}
	return guard.Call(ctx, s.guard, "append", func(ctx context.Context) (chat.Message, error) {
		return s.inner.Append(ctx, tenant, threadID, msg)
	})
}

// List returns a newest-first page of the thread.
func (s *Service) List(ctx context.Context, tenant domain.Tenant, threadID string, q chat.ListQuery) (chat.Page, error) {
	if err := chat.ValidateThreadID(threadID); err != nil {
		return chat.Page{}, err
	}
	if err := q.Validate(s.maxListLimit); err != nil {
		return chat.Page{}, err
	}
	return guard.Call(ctx, s.guard, "list", func(ctx context.Context) (chat.Page, error) {
		return s.inner.List(ctx, tenant, threadID, q)
	})
}
