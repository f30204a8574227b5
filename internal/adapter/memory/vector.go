// Package memory implements every port in process memory. It backs local
// development and tests; nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/vector"
	"github.com/kailas-cloud/storaged/internal/port"
)

// Name identifies the memory backend.
const Name = "memory"

var _ port.VectorPort = (*VectorStore)(nil)

type collectionKey struct {
	tenant domain.Tenant
	name   string
}

type collection struct {
	spec  vector.Collection
	items map[string]vector.Item
}

// VectorStore is an in-memory VectorPort with brute-force ranking.
type VectorStore struct {
	mu          sync.RWMutex
	collections map[collectionKey]*collection
}

// NewVectorStore creates an empty store.
func NewVectorStore() *VectorStore {
	return &VectorStore{collections: make(map[collectionKey]*collection)}
}

func (s *VectorStore) Name() string { return Name }

func (s *VectorStore) Ping(context.Context) error { return nil }

func (s *VectorStore) EnsureCollection(_ context.Context, tenant domain.Tenant, c vector.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := collectionKey{tenant, c.Name}
	if existing, ok := s.collections[key]; ok {
		if !existing.spec.SameSchema(c) {
			return existing.spec.Conflict(c)
		}
		return nil
	}
	s.collections[key] = &collection{spec: c, items: make(map[string]vector.Item)}
	return nil
}

func (s *VectorStore) DescribeCollection(_ context.Context, tenant domain.Tenant, name string) (vector.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collectionKey{tenant, name}]
	if !ok {
		return vector.Collection{}, vector.NotFound(name)
	}
	return c.spec, nil
}

func (s *VectorStore) Upsert(_ context.Context, tenant domain.Tenant, name string, items []vector.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collectionKey{tenant, name}]
	if !ok {
		return vector.NotFound(name)
	}
	if err := vector.CheckDim(items, c.spec.Dim); err != nil {
		return err
	}
	for _, it := range items {
		c.items[it.ID] = vector.Item{
			ID:        it.ID,
			Embedding: append([]float32(nil), it.Embedding...),
			Metadata:  it.Metadata,
		}
	}
	return nil
}

func (s *VectorStore) Query(_ context.Context, tenant domain.Tenant, name string, embedding []float32, k int) ([]vector.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collectionKey{tenant, name}]
	if !ok {
		return nil, vector.NotFound(name)
	}
	if err := vector.ValidateEmbedding("embedding", embedding, c.spec.Dim); err != nil {
		return nil, err
	}

	top := vector.NewTopK(c.spec.Metric, embedding, k)
	for _, it := range c.items {
		top.Add(it.ID, it.Embedding, it.Metadata)
	}
	return top.Result(), nil
}

func (s *VectorStore) DeleteItems(_ context.Context, tenant domain.Tenant, name string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[collectionKey{tenant, name}]; ok {
		for _, id := range ids {
			delete(c.items, id)
		}
	}
	return nil
}

func (s *VectorStore) DropCollection(_ context.Context, tenant domain.Tenant, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, collectionKey{tenant, name})
	return nil
}
