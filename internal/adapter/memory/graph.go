package memory

import (
	"context"
	"sync"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/graph"
	"github.com/kailas-cloud/storaged/internal/port"
)

var _ port.GraphPort = (*GraphStore)(nil)

type entityKey struct {
	tenant domain.Tenant
	id     string
}

type relationKey struct {
	tenant           domain.Tenant
	src, dst, relType string
}

// GraphStore is an in-memory GraphPort. Adjacency is indexed by entity so
// neighbor lookups and cascading deletes touch only the affected relations.
type GraphStore struct {
	mu        sync.RWMutex
	entities  map[entityKey]graph.Entity
	relations map[relationKey]graph.Relation
	adjacent  map[entityKey]map[relationKey]struct{}
}

// NewGraphStore creates an empty store.
func NewGraphStore() *GraphStore {
	return &GraphStore{
		entities:  make(map[entityKey]graph.Entity),
		relations: make(map[relationKey]graph.Relation),
		adjacent:  make(map[entityKey]map[relationKey]struct{}),
	}
}

func (s *GraphStore) Name() string { return Name }

func (s *GraphStore) Ping(context.Context) error { return nil }

func (s *GraphStore) UpsertEntity(_ context.Context, tenant domain.Tenant, e graph.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities[entityKey{tenant, e.ID}] = e
	return nil
}

func (s *GraphStore) CreateRelation(_ context.Context, tenant domain.Tenant, r graph.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, dst := entityKey{tenant, r.SrcID}, entityKey{tenant, r.DstID}
	if _, ok := s.entities[src]; !ok {
		return graph.EntityNotFound(r.SrcID)
	}
	if _, ok := s.entities[dst]; !ok {
		return graph.EntityNotFound(r.DstID)
	}

	key := relationKey{tenant, r.SrcID, r.DstID, r.RelType}
	s.relations[key] = r
	s.link(src, key)
	s.link(dst, key)
	return nil
}

func (s *GraphStore) link(e entityKey, r relationKey) {
	set, ok := s.adjacent[e]
	if !ok {
		set = make(map[relationKey]struct{})
		s.adjacent[e] = set
	}
	set[r] = struct{}{}
}

func (s *GraphStore) Neighbors(_ context.Context, tenant domain.Tenant, id string, q graph.NeighborQuery) ([]graph.Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []graph.Neighbor
	for key := range s.adjacent[entityKey{tenant, id}] {
		rel := s.relations[key]
		if !q.Matches(rel.RelType) {
			continue
		}
		dir := graph.DirectionFor(id, rel)
		other := rel.DstID
		if dir == graph.In {
			other = rel.SrcID
		}
		out = append(out, graph.Neighbor{
			Entity:    s.entities[entityKey{tenant, other}],
			Relation:  rel,
			Direction: dir,
		})
	}
	return graph.SortNeighbors(out, q.Limit), nil
}

func (s *GraphStore) DeleteEntity(_ context.Context, tenant domain.Tenant, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entityKey{tenant, id}
	if _, ok := s.entities[key]; !ok {
		return false, nil
	}
	for rk := range s.adjacent[key] {
		s.unlink(rk)
	}
	delete(s.adjacent, key)
	delete(s.entities, key)
	return true, nil
}

func (s *GraphStore) DeleteRelation(_ context.Context, tenant domain.Tenant, src, dst, relType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := relationKey{tenant, src, dst, relType}
	if _, ok := s.relations[key]; !ok {
		return false, nil
	}
	s.unlink(key)
	return true, nil
}

func (s *GraphStore) unlink(rk relationKey) {
	delete(s.relations, rk)
	for _, id := range []string{rk.src, rk.dst} {
		ek := entityKey{rk.tenant, id}
		if set, ok := s.adjacent[ek]; ok {
			delete(set, rk)
			if len(set) == 0 {
				delete(s.adjacent, ek)
			}
		}
	}
}
