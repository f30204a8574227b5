package kv

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kailas-cloud/storaged/internal/adapter/porttest"
	"github.com/kailas-cloud/storaged/internal/db"
	"github.com/kailas-cloud/storaged/internal/db/redis"
	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/chat"
	"github.com/kailas-cloud/storaged/internal/domain/vector"
)

func newTestStore(t *testing.T) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := redis.NewStore(redis.Config{Addrs: []string{mr.Addr()}, Standalone: true})
	if err != nil {
		t.Fatalf("connecting to miniredis: %v", err)
	}
	t.Cleanup(store.Close)
	return store, mr
}

func TestVectorStore_Conformance(t *testing.T) {
	store, _ := newTestStore(t)
	porttest.RunVector(t, NewVectorStore(store, "test:"))
}

func TestChatStore_Conformance(t *testing.T) {
	store, _ := newTestStore(t)
	porttest.RunChat(t, NewChatStore(store, "test:"))
}

func TestVectorStore_KeysArePrefixedAndHashTagged(t *testing.T) {
	store, mr := newTestStore(t)
	s := NewVectorStore(store, "sd:")

	c, _ := vector.NewCollection("docs", 2, vector.Cosine)
	if err := s.EnsureCollection(context.Background(), "acme", c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one key, got %v", keys)
	}
	if !strings.HasPrefix(keys[0], "sd:vec:{") || !strings.HasSuffix(keys[0], "}:meta") {
		t.Errorf("unexpected key layout %q", keys[0])
	}
}

func TestChatStore_TenantCannotForgeKeys(t *testing.T) {
	store, _ := newTestStore(t)
	s := NewChatStore(store, "")
	ctx := context.Background()

	// Without encoding, "a:b" + "c" and "a" + "b:c" would collide.
	if _, err := s.Append(ctx, "a:b", "c", chat.NewMessage{Role: chat.RoleUser}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	page, err := s.List(ctx, "a", "b:c", chat.ListQuery{Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Messages) != 0 {
		t.Fatalf("keys collided across tenants: %+v", page.Messages)
	}
}

func TestChatStore_PayloadWithSeparators(t *testing.T) {
	store, _ := newTestStore(t)
	s := NewChatStore(store, "")
	ctx := context.Background()

	content := "1:2:3 {\"r\":\"x\"}"
	if _, err := s.Append(ctx, "t", "th", chat.NewMessage{Role: chat.RoleAssistant, Content: content}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	page, err := s.List(ctx, "t", "th", chat.ListQuery{Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Messages) != 1 || page.Messages[0].Content != content || page.Messages[0].Role != chat.RoleAssistant {
		t.Fatalf("unexpected page: %+v", page.Messages)
	}
}

func TestChatStore_FrozenClock(t *testing.T) {
	store, _ := newTestStore(t)
	s := NewChatStore(store, "")
	frozen := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	ctx := context.Background()
	var last time.Time
	for i := 0; i < 3; i++ {
		m, err := s.Append(ctx, "t", "th", chat.NewMessage{Role: chat.RoleUser})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := frozen.Add(time.Duration(i) * time.Microsecond)
		if !m.Timestamp.Equal(want) {
			t.Errorf("append %d: expected %v, got %v", i, want, m.Timestamp)
		}
		last = m.Timestamp
	}
	if last.IsZero() {
		t.Fatal("no timestamps assigned")
	}
}

func TestVectorStore_ServerDownIsRetryable(t *testing.T) {
	store, mr := newTestStore(t)
	s := NewVectorStore(store, "")
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := s.DescribeCollection(ctx, "t", "docs")
	if !errors.Is(err, domain.ErrEngine) {
		t.Fatalf("expected engine error, got %v", err)
	}
	if !domain.IsRetryable(err) {
		t.Errorf("expected retryable error, got %v", err)
	}
}

type fakeStore struct {
	Store
	evalFn func(ctx context.Context, script *db.Script, keys, args []string) ([]string, error)
}

func (f *fakeStore) EvalStrings(ctx context.Context, script *db.Script, keys, args []string) ([]string, error) {
	return f.evalFn(ctx, script, keys, args)
}

func TestVectorStore_EnsureConflictCarriesStoredSchema(t *testing.T) {
	s := NewVectorStore(&fakeStore{
		evalFn: func(context.Context, *db.Script, []string, []string) ([]string, error) {
			return nil, db.ParseScriptError("vector_ensure", "CONFLICT 8 dot")
		},
	}, "")

	c, _ := vector.NewCollection("docs", 3, vector.Cosine)
	err := s.EnsureCollection(context.Background(), "t", c)

	var sc *domain.SchemaConflictError
	if !errors.As(err, &sc) {
		t.Fatalf("expected schema conflict, got %v", err)
	}
	if sc.Existing != "dim=8 metric=dot" || sc.Requested != "dim=3 metric=cosine" {
		t.Errorf("unexpected conflict detail: %+v", sc)
	}
}
