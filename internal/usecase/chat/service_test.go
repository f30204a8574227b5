package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/chat"
)

// --- Mocks ---

type mockPort struct {
	appendFn func(ctx context.Context, tenant domain.Tenant, threadID string, msg chat.NewMessage) (chat.Message, error)
	listFn   func(ctx context.Context, tenant domain.Tenant, threadID string, q chat.ListQuery) (chat.Page, error)
	pingErr  error
	calls    int
}

func (m *mockPort) Name() string                 { return "mock" }
func (m *mockPort) Ping(_ context.Context) error { return m.pingErr }

func (m *mockPort) Append(ctx context.Context, tenant domain.Tenant, threadID string, msg chat.NewMessage) (chat.Message, error) {
	m.calls++
	if m.appendFn != nil {
		return m.appendFn(ctx, tenant, threadID, msg)
	}
	return chat.Message{ThreadID: threadID, Seq: 1, Role: msg.Role, Content: msg.Content}, nil
}

func (m *mockPort) List(ctx context.Context, tenant domain.Tenant, threadID string, q chat.ListQuery) (chat.Page, error) {
	m.calls++
	if m.listFn != nil {
		return m.listFn(ctx, tenant, threadID, q)
	}
	return chat.Page{Messages: []chat.Message{}}, nil
}

// --- Tests ---

func TestAppend_Validates(t *testing.T) {
	tests := []struct {
		name   string
		thread string
		msg    chat.NewMessage
		field  string
	}{
		{"bad role", "th", chat.NewMessage{Role: "robot", Content: "hi"}, "message.role"},
		{"empty thread", "", chat.NewMessage{Role: chat.RoleUser}, "thread_id"},
		{"control chars", "a\x00b", chat.NewMessage{Role: chat.RoleUser}, "thread_id"},
		{"huge content", "th", chat.NewMessage{Role: chat.RoleUser, Content: strings.Repeat("x", chat.MaxContentBytes+1)}, "message.content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockPort{}
			_, err := New(m, time.Second, 10).Append(context.Background(), "t", tt.thread, tt.msg)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("expected validation error on %q, got %v", tt.field, err)
			}
			if m.calls != 0 {
				t.Error("invalid request reached the adapter")
			}
		})
	}
}

func TestAppend_ReturnsStoredMessage(t *testing.T) {
	m := &mockPort{appendFn: func(_ context.Context, tenant domain.Tenant, threadID string, msg chat.NewMessage) (chat.Message, error) {
		return chat.Message{ThreadID: threadID, Seq: 7, Role: msg.Role, Content: msg.Content}, nil
	}}

	got, err := New(m, time.Second, 10).Append(context.Background(), "t", "th", chat.NewMessage{Role: chat.RoleSystem, Content: ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Seq != 7 || got.Role != chat.RoleSystem {
		t.Errorf("unexpected message %+v", got)
	}
}

func TestList_ValidatesLimit(t *testing.T) {
	tests := []struct {
		name  string
		q     chat.ListQuery
		field string
	}{
		{"zero", chat.ListQuery{Limit: 0}, "limit"},
		{"above max", chat.ListQuery{Limit: 11}, "limit"},
		{"negative cursor", chat.ListQuery{Limit: 1, Before: -1}, "before"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockPort{}
			_, err := New(m, time.Second, 10).List(context.Background(), "t", "th", tt.q)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("expected validation error on %q, got %v", tt.field, err)
			}
		})
	}
}

func TestList_Timeout(t *testing.T) {
	m := &mockPort{listFn: func(ctx context.Context, _ domain.Tenant, _ string, _ chat.ListQuery) (chat.Page, error) {
		<-ctx.Done()
		return chat.Page{}, errors.New("read tcp: i/o timeout")
	}}

	_, err := New(m, 10*time.Millisecond, 10).List(context.Background(), "t", "th", chat.ListQuery{Limit: 1})
	if !domain.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestPing_Wrapped(t *testing.T) {
	m := &mockPort{pingErr: errors.New("refused")}
	err := New(m, time.Second, 10).Ping(context.Background())
	if !errors.Is(err, domain.ErrEngine) {
		t.Fatalf("expected engine error, got %v", err)
	}
}
