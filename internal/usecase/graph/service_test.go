package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/graph"
)

// --- Mocks ---

type mockPort struct {
	upsertFn    func(ctx context.Context, tenant domain.Tenant, e graph.Entity) error
	relateFn    func(ctx context.Context, tenant domain.Tenant, r graph.Relation) error
	neighborsFn func(ctx context.Context, tenant domain.Tenant, id string, q graph.NeighborQuery) ([]graph.Neighbor, error)
	deleted     bool
	calls       int
}

func (m *mockPort) Name() string                 { return "mock" }
func (m *mockPort) Ping(_ context.Context) error { return nil }

func (m *mockPort) UpsertEntity(ctx context.Context, tenant domain.Tenant, e graph.Entity) error {
	m.calls++
	if m.upsertFn != nil {
		return m.upsertFn(ctx, tenant, e)
	}
	return nil
}

func (m *mockPort) CreateRelation(ctx context.Context, tenant domain.Tenant, r graph.Relation) error {
	m.calls++
	if m.relateFn != nil {
		return m.relateFn(ctx, tenant, r)
	}
	return nil
}

func (m *mockPort) Neighbors(ctx context.Context, tenant domain.Tenant, id string, q graph.NeighborQuery) ([]graph.Neighbor, error) {
	m.calls++
	if m.neighborsFn != nil {
		return m.neighborsFn(ctx, tenant, id, q)
	}
	return []graph.Neighbor{}, nil
}

func (m *mockPort) DeleteEntity(_ context.Context, _ domain.Tenant, _ string) (bool, error) {
	m.calls++
	return m.deleted, nil
}

func (m *mockPort) DeleteRelation(_ context.Context, _ domain.Tenant, _, _, _ string) (bool, error) {
	m.calls++
	return m.deleted, nil
}

// --- Tests ---

func TestUpsertEntity_Validates(t *testing.T) {
	m := &mockPort{}
	svc := New(m, time.Second, 10)

	err := svc.UpsertEntity(context.Background(), "t", graph.Entity{ID: "a"})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "type" {
		t.Fatalf("expected validation error on type, got %v", err)
	}
	if m.calls != 0 {
		t.Error("invalid request reached the adapter")
	}
}

func TestCreateRelation_MissingEndpoint(t *testing.T) {
	m := &mockPort{relateFn: func(context.Context, domain.Tenant, graph.Relation) error {
		return graph.EntityNotFound("ghost")
	}}

	err := New(m, time.Second, 10).CreateRelation(context.Background(), "t",
		graph.Relation{SrcID: "ghost", DstID: "a", RelType: "r"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if errors.Is(err, domain.ErrEngine) {
		t.Error("not found must not be reported as engine failure")
	}
}

func TestNeighbors_Validates(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		q     graph.NeighborQuery
		field string
	}{
		{"empty id", "", graph.NeighborQuery{Limit: 1}, "id"},
		{"zero limit", "a", graph.NeighborQuery{}, "limit"},
		{"limit above max", "a", graph.NeighborQuery{Limit: 11}, "limit"},
		{"bad rel type", "a", graph.NeighborQuery{RelType: "x\ny", Limit: 1}, "rel_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockPort{}
			_, err := New(m, time.Second, 10).Neighbors(context.Background(), "t", tt.id, tt.q)
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

func TestNeighbors_ForwardsQuery(t *testing.T) {
	var got graph.NeighborQuery
	m := &mockPort{neighborsFn: func(_ context.Context, _ domain.Tenant, _ string, q graph.NeighborQuery) ([]graph.Neighbor, error) {
		got = q
		return []graph.Neighbor{}, nil
	}}

	want := graph.NeighborQuery{RelType: "knows", Limit: 5}
	if _, err := New(m, time.Second, 10).Neighbors(context.Background(), "t", "a", want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestDeletes(t *testing.T) {
	m := &mockPort{deleted: true}
	svc := New(m, time.Second, 10)

	ok, err := svc.DeleteEntity(context.Background(), "t", "a")
	if err != nil || !ok {
		t.Fatalf("DeleteEntity: %v %v", ok, err)
	}
	ok, err = svc.DeleteRelation(context.Background(), "t", "a", "b", "r")
	if err != nil || !ok {
		t.Fatalf("DeleteRelation: %v %v", ok, err)
	}

	_, err = svc.DeleteRelation(context.Background(), "t", "a", "b", "")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
