// Package vector validates vector requests and guards every call into the
// mounted VectorPort.
package vector

import (
	"context"
	"strconv"
	"time"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/vector"
	"github.com/kailas-cloud/storaged/internal/port"
	"github.com/kailas-cloud/storaged/internal/usecase/guard"
)

// Limits bounds request sizes.
type Limits struct {
	MaxUpsertItems int
	MaxK           int
}

// Service decorates a VectorPort. It is itself a VectorPort.
type Service struct {
	inner  port.VectorPort
	guard  guard.Guard
	limits Limits
}

var _ port.VectorPort = (*Service)(nil)

// New wraps inner. Each engine call is bounded by timeout.
func New(inner port.VectorPort, timeout time.Duration, limits Limits) *Service {
	if limits.MaxUpsertItems <= 0 {
		limits.MaxUpsertItems = 1000
	}
	if limits.MaxK <= 0 {
		limits.MaxK = 1000
	}
	return &Service{
		inner:  inner,
		guard:  guard.New("vector", inner.Name(), timeout),
		limits: limits,
	}
}

// Name returns the backend name.
func (s *Service) Name() string { return s.inner.Name() }

// Ping probes the backend.
func (s *Service) Ping(ctx context.Context) error {
	return s.guard.Do(ctx, "ping", s.inner.Ping)
}

// EnsureCollection declares a collection.
func (s *Service) EnsureCollection(ctx context.Context, tenant domain.Tenant, c vector.Collection) error {
	c, err := vector.NewCollection(c.Name, c.Dim, c.Metric)
	if err != nil {
		return err
	}
	return s.guard.Do(ctx, "ensure_collection", func(ctx context.Context) error {
		return s.inner.EnsureCollection(ctx, tenant, c)
	})
}

// DescribeCollection returns a collection declaration.
func (s *Service) DescribeCollection(ctx context.Context, tenant domain.Tenant, name string) (vector.Collection, error) {
	if err := vector.ValidateName(name); err != nil {
		return vector.Collection{}, err
	}
	return guard.Call(ctx, s.guard, "describe_collection", func(ctx context.Context) (vector.Collection, error) {
		return s.inner.DescribeCollection(ctx, tenant, name)
	})
}

// Upsert validates the batch shape and writes it.
func (s *Service) Upsert(ctx context.Context, tenant domain.Tenant, name string, items []vector.Item) error {
	if err := vector.ValidateName(name); err != nil {
		return err
	}
	if err := vector.ValidateItems(items, 0, s.limits.MaxUpsertItems); err != nil {
		return err
	}
	return s.guard.Do(ctx, "upsert", func(ctx context.Context) error {
		return s.inner.Upsert(ctx, tenant, name, items)
	})
}

// Query ranks the collection against embedding.
func (s *Service) Query(ctx context.Context, tenant domain.Tenant, name string, embedding []float32, k int) ([]vector.Match, error) {
	if err := vector.ValidateName(name); err != nil {
		return nil, err
	}
	if err := vector.ValidateEmbedding("embedding", embedding, 0); err != nil {
		return nil, err
	}
	if k < 1 || k > s.limits.MaxK {
		return nil, domain.NewValidationError("k", "must be between 1 and %d, got %d", s.limits.MaxK, k)
	}
	return guard.Call(ctx, s.guard, "query", func(ctx context.Context) ([]vector.Match, error) {
		return s.inner.Query(ctx, tenant, name, embedding, k)
	})
}

// DeleteItems removes ids from a collection.
func (s *Service) DeleteItems(ctx context.Context, tenant domain.Tenant, name string, ids []string) error {
	if err := vector.ValidateName(name); err != nil {
		return err
	}
	if len(ids) > s.limits.MaxUpsertItems {
		return domain.NewValidationError("ids", "at most %d ids per request, got %d", s.limits.MaxUpsertItems, len(ids))
	}
	for i, id := range ids {
		if err := domain.ValidateIdentifier("ids["+strconv.Itoa(i)+"]", id, 256); err != nil {
			return err
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return s.guard.Do(ctx, "delete_items", func(ctx context.Context) error {
		return s.inner.DeleteItems(ctx, tenant, name, ids)
	})
}

// DropCollection removes a collection and its items.
func (s *Service) DropCollection(ctx context.Context, tenant domain.Tenant, name string) error {
	if err := vector.ValidateName(name); err != nil {
		return err
	}
	return s.guard.Do(ctx, "drop_collection", func(ctx context.Context) error {
		return s.inner.DropCollection(ctx, tenant, name)
	})
}
