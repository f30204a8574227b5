// Package graph defines typed entities and directed relations.
package graph

import (
	"sort"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/value"
)

const (
	// MaxIDLength bounds entity identifiers in bytes.
	MaxIDLength = 256
	// MaxTypeLength bounds entity types and relation types in bytes.
	MaxTypeLength = 128
)

// Entity is a graph node, unique by ID within a tenant.
type Entity struct {
	ID    string
	Type  string
	Props value.Fields
}

// Validate checks id and type.
func (e Entity) Validate() error {
	if err := domain.ValidateIdentifier("id", e.ID, MaxIDLength); err != nil {
		return err
	}
	return domain.ValidateIdentifier("type", e.Type, MaxTypeLength)
}

// Relation is a directed typed edge. (SrcID, DstID, RelType) is its natural key.
type Relation struct {
	SrcID   string
	DstID   string
	RelType string
	Props   value.Fields
}

// Validate checks both endpoints and the relation type.
func (r Relation) Validate() error {
	if err := domain.ValidateIdentifier("src_id", r.SrcID, MaxIDLength); err != nil {
		return err
	}
	if err := domain.ValidateIdentifier("dst_id", r.DstID, MaxIDLength); err != nil {
		return err
	}
	return domain.ValidateIdentifier("rel_type", r.RelType, MaxTypeLength)
}

// EntityNotFound builds the error for a missing endpoint.
func EntityNotFound(id string) error {
	return domain.NewNotFound("entity", id)
}

// Direction tells whether a neighbor is reached by an outgoing or incoming relation.
type Direction string

const (
	Out Direction = "out"
	In  Direction = "in"
)

// Neighbor pairs an adjacent entity with the relation linking it.
type Neighbor struct {
	Entity    Entity
	Relation  Relation
	Direction Direction
}

// NeighborQuery filters a traversal. An empty RelType matches every type.
type NeighborQuery struct {
	RelType string
	Limit   int
}

// Validate checks the filter against the configured maximum.
func (q NeighborQuery) Validate(maxLimit int) error {
	if q.RelType != "" {
		if err := domain.ValidateIdentifier("rel_type", q.RelType, MaxTypeLength); err != nil {
			return err
		}
	}
	if q.Limit < 1 || q.Limit > maxLimit {
		return domain.NewValidationError("limit", "must be between 1 and %d, got %d", maxLimit, q.Limit)
	}
	return nil
}

// Matches reports whether rel passes the type filter.
func (q NeighborQuery) Matches(relType string) bool {
	return q.RelType == "" || q.RelType == relType
}

// DirectionFor returns how rel touches id. A self-loop counts as outgoing.
func DirectionFor(id string, rel Relation) Direction {
	if rel.SrcID == id {
		return Out
	}
	return In
}

// SortNeighbors orders by relation type, then outgoing before incoming,
// then neighbor id, and truncates to limit.
func SortNeighbors(ns []Neighbor, limit int) []Neighbor {
	sort.Slice(ns, func(i, j int) bool {
		a, b := ns[i], ns[j]
		if a.Relation.RelType != b.Relation.RelType {
			return a.Relation.RelType < b.Relation.RelType
		}
		if a.Direction != b.Direction {
			return a.Direction == Out
		}
		return a.Entity.ID < b.Entity.ID
	})
	if limit > 0 && len(ns) > limit {
		ns = ns[:limit]
	}
	if ns == nil {
		ns = []Neighbor{}
	}
	return ns
}
