package postgres

import (
	"context"

	pgdb "github.com/kailas-cloud/storaged/internal/db/postgres"
	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/graph"
	"github.com/kailas-cloud/storaged/internal/domain/value"
	"github.com/kailas-cloud/storaged/internal/port"
)

var _ port.GraphPort = (*GraphStore)(nil)

// GraphStore is a GraphPort on PostgreSQL. Foreign keys cascade entity
// deletes to their relations.
type GraphStore struct {
	Base
}

// NewGraphStore creates a new GraphStore.
func NewGraphStore(pool *pgdb.Pool) *GraphStore {
	return &GraphStore{Base: Base{Pool: pool}}
}

func (s *GraphStore) UpsertEntity(ctx context.Context, tenant domain.Tenant, e graph.Entity) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO graph_entities (tenant, id, type, props)
		VALUES ($1, $2, $3, $4::json)
		ON CONFLICT (tenant, id) DO UPDATE
		SET type = EXCLUDED.type, props = EXCLUDED.props, updated_at = now()`,
		string(tenant), e.ID, e.Type, string(e.Props.Encode()))
	return engineErr("upsert_entity", err)
}

func (s *GraphStore) CreateRelation(ctx context.Context, tenant domain.Tenant, r graph.Relation) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return engineErr("create_relation", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	var srcExists, dstExists bool
	err = tx.QueryRow(ctx,
		`SELECT
			EXISTS(SELECT 1 FROM graph_entities WHERE tenant = $1 AND id = $2),
			EXISTS(SELECT 1 FROM graph_entities WHERE tenant = $1 AND id = $3)`,
		string(tenant), r.SrcID, r.DstID).Scan(&srcExists, &dstExists)
	if err != nil {
		return engineErr("create_relation", err)
	}
	if !srcExists {
		return graph.EntityNotFound(r.SrcID)
	}
	if !dstExists {
		return graph.EntityNotFound(r.DstID)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO graph_relations (tenant, src_id, dst_id, rel_type, props)
		VALUES ($1, $2, $3, $4, $5::json)
		ON CONFLICT (tenant, src_id, dst_id, rel_type) DO UPDATE
		SET props = EXCLUDED.props, updated_at = now()`,
		string(tenant), r.SrcID, r.DstID, r.RelType, string(r.Props.Encode()))
	if isForeignKeyViolation(err) {
		// An endpoint was deleted after the existence check.
		return graph.EntityNotFound(r.SrcID + " or " + r.DstID)
	}
	if err != nil {
		return engineErr("create_relation", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return engineErr("create_relation", err)
	}
	return nil
}

func (s *GraphStore) Neighbors(ctx context.Context, tenant domain.Tenant, id string, q graph.NeighborQuery) ([]graph.Neighbor, error) {
	// Self-loops come back from the outgoing branch only.
	rows, err := s.Pool.Query(ctx,
		`SELECT n.src_id, n.dst_id, n.rel_type, n.props, n.dir_rank, e.id, e.type, e.props
		FROM (
			SELECT src_id, dst_id, rel_type, props, dst_id AS other, 0 AS dir_rank
			FROM graph_relations WHERE tenant = $1 AND src_id = $2
			UNION ALL
			SELECT src_id, dst_id, rel_type, props, src_id AS other, 1 AS dir_rank
			FROM graph_relations WHERE tenant = $1 AND dst_id = $2 AND src_id <> $2
		) n
		JOIN graph_entities e ON e.tenant = $1 AND e.id = n.other
		WHERE $3 = '' OR n.rel_type = $3
		ORDER BY n.rel_type COLLATE "C", n.dir_rank, e.id COLLATE "C"
		LIMIT $4`,
		string(tenant), id, q.RelType, q.Limit)
	if err != nil {
		return nil, engineErr("neighbors", err)
	}
	defer rows.Close()

	out := make([]graph.Neighbor, 0)
	for rows.Next() {
		var (
			n                  graph.Neighbor
			relProps, entProps []byte
			dirRank            int
		)
		err := rows.Scan(&n.Relation.SrcID, &n.Relation.DstID, &n.Relation.RelType, &relProps,
			&dirRank, &n.Entity.ID, &n.Entity.Type, &entProps)
		if err != nil {
			return nil, engineErr("neighbors", err)
		}
		if n.Relation.Props, err = value.Parse(relProps); err != nil {
			return nil, engineErr("neighbors", err)
		}
		if n.Entity.Props, err = value.Parse(entProps); err != nil {
			return nil, engineErr("neighbors", err)
		}
		n.Direction = graph.Out
		if dirRank == 1 {
			n.Direction = graph.In
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, engineErr("neighbors", err)
	}
	return out, nil
}

func (s *GraphStore) DeleteEntity(ctx context.Context, tenant domain.Tenant, id string) (bool, error) {
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM graph_entities WHERE tenant = $1 AND id = $2`,
		string(tenant), id)
	if err != nil {
		return false, engineErr("delete_entity", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *GraphStore) DeleteRelation(ctx context.Context, tenant domain.Tenant, src, dst, relType string) (bool, error) {
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM graph_relations WHERE tenant = $1 AND src_id = $2 AND dst_id = $3 AND rel_type = $4`,
		string(tenant), src, dst, relType)
	if err != nil {
		return false, engineErr("delete_relation", err)
	}
	return tag.RowsAffected() > 0, nil
}
