// Package graph validates graph requests and guards every call into the
// mounted GraphPort.
package graph

import (
	"context"
	"time"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/graph"
	"github.com/kailas-cloud/storaged/internal/port"
	"github.com/kailas-cloud/storaged/internal/usecase/guard"
)

// Service decorates a GraphPort. It is itself a GraphPort.
type Service struct {
	inner        port.GraphPort
	guard        guard.Guard
	maxNeighbors int
}

var _ port.GraphPort = (*Service)(nil)

// New wraps inner. maxNeighbors bounds Neighbors limits.
func New(inner port.GraphPort, timeout time.Duration, maxNeighbors int) *Service {
	if maxNeighbors <= 0 {
		maxNeighbors = 1000
	}
	return &Service{
		inner:        inner,
		guard:        guard.New("graph", inner.Name(), timeout),
		maxNeighbors: maxNeighbors,
	}
}

func (s *Service) Name() string { return s.inner.Name() }

func (s *Service) Ping(ctx context.Context) error {
	return s.guard.Do(ctx, "ping", s.inner.Ping)
}

func (s *Service) UpsertEntity(ctx context.Context, tenant domain.Tenant, e graph.Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return s.guard.Do(ctx, "upsert_entity", func(ctx context.Context) error {
		return s.inner.UpsertEntity(ctx, tenant, e)
	})
}

func (s *Service) CreateRelation(ctx context.Context, tenant domain.Tenant, r graph.Relation) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return s.guard.Do(ctx, "create_relation", func(ctx context.Context) error {
		return s.inner.CreateRelation(ctx, tenant, r)
	})
}

func (s *Service) Neighbors(ctx context.Context, tenant domain.Tenant, id string, q graph.NeighborQuery) ([]graph.Neighbor, error) {
	if err := domain.ValidateIdentifier("id", id, graph.MaxIDLength); err != nil {
		return nil, err
	}
	if err := q.Validate(s.maxNeighbors); err != nil {
		return nil, err
	}
	return guard.Call(ctx, s.guard, "neighbors", func(ctx context.Context) ([]graph.Neighbor, error) {
		return s.inner.Neighbors(ctx, tenant, id, q)
	})
}

func (s *Service) DeleteEntity(ctx context.Context, tenant domain.Tenant, id string) (bool, error) {
	if err := domain.ValidateIdentifier("id", id, graph.MaxIDLength); err != nil {
		return false, err
	}
	return guard.Call(ctx, s.guard, "delete_entity", func(ctx context.Context) (bool, error) {
		return s.inner.DeleteEntity(ctx, tenant, id)
	})
}

func (s *Service) DeleteRelation(ctx context.Context, tenant domain.Tenant, src, dst, relType string) (bool, error) {
	key := graph.Relation{SrcID: src, DstID: dst, RelType: relType}
	if err := key.Validate(); err != nil {
		return false, err
	}
	return guard.Call(ctx, s.guard, "delete_relation", func(ctx context.Context) (bool, error) {
		return s.inner.DeleteRelation(ctx, tenant, src, dst, relType)
	})
}
