// Package port declares the storage capabilities every engine adapter
// implements. Callers depend on these interfaces only.
//
// Every method takes the tenant explicitly and scopes all reads and writes
// to it. Errors belong to the domain taxonomy: *domain.ValidationError,
// domain.ErrNotFound, domain.ErrSchemaConflict or *domain.EngineError.
package port

import (
	"context"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/chat"
	"github.com/kailas-cloud/storaged/internal/domain/graph"
	"github.com/kailas-cloud/storaged/internal/domain/vector"
)

// Backend identifies the engine behind a port and probes its reachability.
type Backend interface {
	Name() string
	Ping(ctx context.Context) error
}

// VectorPort stores embeddings in dimensioned collections and ranks them by similarity.
type VectorPort interface {
	Backend

	// EnsureCollection declares a collection. Redeclaring with the same dim and
	// metric is a no-op; a different dim or metric fails with ErrSchemaConflict.
	EnsureCollection(ctx context.Context, tenant domain.Tenant, c vector.Collection) error
	// DescribeCollection returns the declaration or ErrNotFound.
	DescribeCollection(ctx context.Context, tenant domain.Tenant, name string) (vector.Collection, error)
	// Upsert writes all items or none. Any embedding whose length differs from
	// the collection dimension fails the whole call with a ValidationError.
	Upsert(ctx context.Context, tenant domain.Tenant, name string, items []vector.Item) error
	// Query returns at most k matches by descending score, ties by ascending id.
	Query(ctx context.Context, tenant domain.Tenant, name string, embedding []float32, k int) ([]vector.Match, error)
	// DeleteItems removes the given ids. Missing ids and collections are ignored.
	DeleteItems(ctx context.Context, tenant domain.Tenant, name string, ids []string) error
	// DropCollection removes the collection with all its items. Idempotent.
	DropCollection(ctx context.Context, tenant domain.Tenant, name string) error
}

// ChatPort stores append-only message threads.
type ChatPort interface {
	Backend

	// Append stores msg with the next sequence number and a timestamp strictly
	// greater than the previous message of the thread.
	Append(ctx context.Context, tenant domain.Tenant, threadID string, msg chat.NewMessage) (chat.Message, error)
	// List returns messages newest first.
	List(ctx context.Context, tenant domain.Tenant, threadID string, q chat.ListQuery) (chat.Page, error)
}

// GraphPort stores typed entities and directed relations.
type GraphPort interface {
	Backend

	// UpsertEntity creates or replaces an entity.
	UpsertEntity(ctx context.Context, tenant domain.Tenant, e graph.Entity) error
	// CreateRelation upserts a relation by its natural key. Fails with
	// ErrNotFound if either endpoint is missing; nothing is written then.
	CreateRelation(ctx context.Context, tenant domain.Tenant, r graph.Relation) error
	// Neighbors lists relations touching id in either direction.
	Neighbors(ctx context.Context, tenant domain.Tenant, id string, q graph.NeighborQuery) ([]graph.Neighbor, error)
	// DeleteEntity removes an entity and every relation touching it.
	DeleteEntity(ctx context.Context, tenant domain.Tenant, id string) (bool, error)
	// DeleteRelation removes one relation by its natural key.
	DeleteRelation(ctx context.Context, tenant domain.Tenant, src, dst, relType string) (bool, error)
}
