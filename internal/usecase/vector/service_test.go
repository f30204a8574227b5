package vector

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/vector"
)

// --- Mocks ---

type mockPort struct {
	ensureFn   func(ctx context.Context, tenant domain.Tenant, c vector.Collection) error
	describeFn func(ctx context.Context, tenant domain.Tenant, name string) (vector.Collection, error)
	upsertFn   func(ctx context.Context, tenant domain.Tenant, name string, items []vector.Item) error
	queryFn    func(ctx context.Context, tenant domain.Tenant, name string, emb []float32, k int) ([]vector.Match, error)
	deleteFn   func(ctx context.Context, tenant domain.Tenant, name string, ids []string) error
	dropFn     func(ctx context.Context, tenant domain.Tenant, name string) error
	calls      int
}

func (m *mockPort) Name() string                 { return "mock" }
func (m *mockPort) Ping(_ context.Context) error { return nil }

func (m *mockPort) EnsureCollection(ctx context.Context, tenant domain.Tenant, c vector.Collection) error {
	m.calls++
	if m.ensureFn != nil {
		return m.ensureFn(ctx, tenant, c)
	}
	return nil
}

func (m *mockPort) DescribeCollection(ctx context.Context, tenant domain.Tenant, name string) (vector.Collection, error) {
	m.calls++
	if m.describeFn != nil {
		return m.describeFn(ctx, tenant, name)
	}
	return vector.Collection{}, nil
}

func (m *mockPort) Upsert(ctx context.Context, tenant domain.Tenant, name string, items []vector.Item) error {
	m.calls++
	if m.upsertFn != nil {
		return m.upsertFn(ctx, tenant, name, items)
	}
	return nil
}

func (m *mockPort) Query(ctx context.Context, tenant domain.Tenant, name string, emb []float32, k int) ([]vector.Match, error) {
	m.calls++
	if m.queryFn != nil {
		return m.queryFn(ctx, tenant, name, emb, k)
	}
	return []vector.Match{}, nil
}

func (m *mockPort) DeleteItems(ctx context.Context, tenant domain.Tenant, name string, ids []string) error {
	m.calls++
	if m.deleteFn != nil {
		return m.deleteFn(ctx, tenant, name, ids)
	}
	return nil
}

func (m *mockPort) DropCollection(ctx context.Context, tenant domain.Tenant, name string) error {
	m.calls++
	if m.dropFn != nil {
		return m.dropFn(ctx, tenant, name)
	}
	return nil
}

func newService(m *mockPort) *Service {
	return New(m, time.Second, Limits{MaxUpsertItems: 3, MaxK: 5})
}

func expectValidation(t *testing.T, err error, field string) {
	t.Helper()
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != field {
		t.Errorf("expected field %q, got %q", field, ve.Field)
	}
}

// --- Tests ---

func TestEnsureCollection_Validates(t *testing.T) {
	tests := []struct {
		name  string
		c     vector.Collection
		field string
	}{
		{"bad name", vector.Collection{Name: "no spaces", Dim: 3, Metric: vector.Cosine}, "collection"},
		{"zero dim", vector.Collection{Name: "docs", Dim: 0, Metric: vector.Cosine}, "dim"},
		{"huge dim", vector.Collection{Name: "docs", Dim: vector.MaxDim + 1, Metric: vector.Cosine}, "dim"},
		{"bad metric", vector.Collection{Name: "docs", Dim: 3, Metric: "l2"}, "metric"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockPort{}
			expectValidation(t, newService(m).EnsureCollection(context.Background(), "t", tt.c), tt.field)
			if m.calls != 0 {
				t.Error("invalid request reached the adapter")
			}
		})
	}
}

func TestEnsureCollection_PassesThrough(t *testing.T) {
	var got vector.Collection
	m := &mockPort{ensureFn: func(_ context.Context, tenant domain.Tenant, c vector.Collection) error {
		if tenant != "acme" {
			t.Errorf("expected tenant acme, got %q", tenant)
		}
		got = c
		return nil
	}}

	want := vector.Collection{Name: "docs", Dim: 3, Metric: vector.Dot}
	if err := newService(m).EnsureCollection(context.Background(), "acme", want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestUpsert_Validates(t *testing.T) {
	emb := []float32{1, 2, 3}
	tests := []struct {
		name  string
		items []vector.Item
		field string
	}{
		{"empty batch", nil, "items"},
		{"too many", []vector.Item{{ID: "a", Embedding: emb}, {ID: "b", Embedding: emb}, {ID: "c", Embedding: emb}, {ID: "d", Embedding: emb}}, "items"},
		{"empty embedding", []vector.Item{{ID: "a", Embedding: emb}, {ID: "b"}}, "items[1].embedding"},
		{"duplicate id", []vector.Item{{ID: "a", Embedding: emb}, {ID: "a", Embedding: emb}}, "items[1].id"},
		{"empty id", []vector.Item{{ID: "", Embedding: emb}}, "items[0].id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockPort{}
			expectValidation(t, newService(m).Upsert(context.Background(), "t", "docs", tt.items), tt.field)
			if m.calls != 0 {
				t.Error("invalid request reached the adapter")
			}
		})
	}
}

func TestQuery_Validates(t *testing.T) {
	tests := []struct {
		name  string
		emb   []float32
		k     int
		field string
	}{
		{"empty embedding", nil, 1, "embedding"},
		{"zero k", []float32{1}, 0, "k"},
		{"k above max", []float32{1}, 6, "k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockPort{}
			_, err := newService(m).Query(context.Background(), "t", "docs", tt.emb, tt.k)
			expectValidation(t, err, tt.field)
			if m.calls != 0 {
				t.Error("invalid request reached the adapter")
			}
		})
	}
}

func TestQuery_NotFoundPassesThrough(t *testing.T) {
	m := &mockPort{queryFn: func(context.Context, domain.Tenant, string, []float32, int) ([]vector.Match, error) {
		return nil, vector.NotFound("docs")
	}}

	_, err := newService(m).Query(context.Background(), "t", "docs", []float32{1}, 1)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQuery_EngineFailureWrapped(t *testing.T) {
	m := &mockPort{queryFn: func(context.Context, domain.Tenant, string, []float32, int) ([]vector.Match, error) {
		return nil, errors.New("connection reset")
	}}

	_, err := newService(m).Query(context.Background(), "t", "docs", []float32{1}, 1)
	var ee *domain.EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EngineError, got %v", err)
	}
	if ee.Backend != "mock" || ee.Op != "query" {
		t.Errorf("unexpected identity %s/%s", ee.Backend, ee.Op)
	}
}

func TestQuery_TimeoutRetryable(t *testing.T) {
	m := &mockPort{queryFn: func(ctx context.Context, _ domain.Tenant, _ string, _ []float32, _ int) ([]vector.Match, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	svc := New(m, 10*time.Millisecond, Limits{})

	_, err := svc.Query(context.Background(), "t", "docs", []float32{1}, 1)
	if !domain.IsRetryable(err) {
		t.Fatalf("expected retryable engine error, got %v", err)
	}
}

func TestDeleteItems(t *testing.T) {
	t.Run("empty ids is a no-op", func(t *testing.T) {
		m := &mockPort{}
		if err := newService(m).DeleteItems(context.Background(), "t", "docs", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.calls != 0 {
			t.Error("adapter should not be called")
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		m := &mockPort{}
		err := newService(m).DeleteItems(context.Background(), "t", "docs", []string{"a", strings.Repeat("x", 257)})
		expectValidation(t, err, "ids[1]")
	})

	t.Run("forwards ids", func(t *testing.T) {
		var got []string
		m := &mockPort{deleteFn: func(_ context.Context, _ domain.Tenant, _ string, ids []string) error {
			got = ids
			return nil
		}}
		if err := newService(m).DeleteItems(context.Background(), "t", "docs", []string{"a", "b"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 ids, got %v", got)
		}
	})
}

func TestDropCollection_ValidatesName(t *testing.T) {
	m := &mockPort{}
	expectValidation(t, newService(m).DropCollection(context.Background(), "t", ""), "collection")
}
