package sqlite

import (
	"context"
	"database/sql"

	sqlitedb "github.com/kailas-cloud/storaged/internal/db/sqlite"
	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/graph"
	"github.com/kailas-cloud/storaged/internal/domain/value"
	"github.com/kailas-cloud/storaged/internal/port"
)

var _ port.GraphPort = (*GraphStore)(nil)

// GraphStore is a GraphPort on SQLite. Foreign keys cascade entity deletes.
type GraphStore struct {
	Base
}

// NewGraphStore creates a new GraphStore.
func NewGraphStore(db *sql.DB) *GraphStore {
	return &GraphStore{Base: Base{DB: db}}
}

func (s *GraphStore) UpsertEntity(ctx context.Context, tenant domain.Tenant, e graph.Entity) error {
	// ON CONFLICT DO UPDATE keeps the row, so relations are not cascaded away.
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO graph_entities (tenant, id, type, props) VALUES (?, ?, ?, ?)
		ON CONFLICT (tenant, id) DO UPDATE SET type = excluded.type, props = excluded.props`,
		string(tenant), e.ID, e.Type, string(e.Props.Encode()))
	return engineErr("upsert_entity", err)
}

func (s *GraphStore) CreateRelation(ctx context.Context, tenant domain.Tenant, r graph.Relation) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO graph_relations (tenant, src_id, dst_id, rel_type, props) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (tenant, src_id, dst_id, rel_type) DO UPDATE SET props = excluded.props`,
			string(tenant), r.SrcID, r.DstID, r.RelType, string(r.Props.Encode()))
		if sqlitedb.IsConstraint(err) {
			return missingEndpoint(ctx, tx, tenant, r)
		}
		return err
	})
	return engineErr("create_relation", err)
}

// missingEndpoint names the endpoint whose absence failed the foreign key.
// The failed statement is rolled back on its own; tx stays usable.
func missingEndpoint(ctx context.Context, tx *sql.Tx, tenant domain.Tenant, r graph.Relation) error {
	var srcExists, dstExists bool
	err := tx.QueryRowContext(ctx,
		`SELECT
			EXISTS(SELECT 1 FROM graph_entities WHERE tenant = ?1 AND id = ?2),
			EXISTS(SELECT 1 FROM graph_entities WHERE tenant = ?1 AND id = ?3)`,
		string(tenant), r.SrcID, r.DstID).Scan(&srcExists, &dstExists)
	if err != nil {
		return err
	}
	if !srcExists {
		return graph.EntityNotFound(r.SrcID)
	}
	return graph.EntityNotFound(r.DstID)
}

func (s *GraphStore) Neighbors(ctx context.Context, tenant domain.Tenant, id string, q graph.NeighborQuery) ([]graph.Neighbor, error) {
	// SQLite compares TEXT with BINARY collation by default, i.e. bytewise.
	rows, err := s.DB.QueryContext(ctx,
		`SELECT n.src_id, n.dst_id, n.rel_type, n.props, n.dir_rank, e.id, e.type, e.props
		FROM (
			SELECT src_id, dst_id, rel_type, props, dst_id AS other, 0 AS dir_rank
			FROM graph_relations WHERE tenant = ?1 AND src_id = ?2
			UNION ALL
			SELECT src_id, dst_id, rel_type, props, src_id AS other, 1 AS dir_rank
			FROM graph_relations WHERE tenant = ?1 AND dst_id = ?2 AND src_id <> ?2
		) n
		JOIN graph_entities e ON e.tenant = ?1 AND e.id = n.other
		WHERE ?3 = '' OR n.rel_type = ?3
		ORDER BY n.rel_type, n.dir_rank, e.id
		LIMIT ?4`,
		string(tenant), id, q.RelType, q.Limit)
	if err != nil {
		return nil, engineErr("neighbors", err)
	}
	defer rows.Close()

	out := make([]graph.Neighbor, 0)
	for rows.Next() {
		var (
			n                  graph.Neighbor
			relProps, entProps string
			dirRank            int
		)
		err := rows.Scan(&n.Relation.SrcID, &n.Relation.DstID, &n.Relation.RelType, &relProps,
			&dirRank, &n.Entity.ID, &n.Entity.Type, &entProps)
		if err != nil {
			return nil, engineErr("neighbors", err)
		}
		if n.Relation.Props, err = value.Parse([]byte(relProps)); err != nil {
			return nil, engineErr("neighbors", err)
		}
		if n.Entity.Props, err = value.Parse([]byte(entProps)); err != nil {
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
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM graph_entities WHERE tenant = ? AND id = ?`, string(tenant), id)
	return affected("delete_entity", res, err)
}

func (s *GraphStore) DeleteRelation(ctx context.Context, tenant domain.Tenant, src, dst, relType string) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM graph_relations WHERE tenant = ? AND src_id = ? AND dst_id = ? AND rel_type = ?`,
		string(tenant), src, dst, relType)
	return affected("delete_relation", res, err)
}

func affected(op string, res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, engineErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, engineErr(op, err)
	}
	return n > 0, nil
}
