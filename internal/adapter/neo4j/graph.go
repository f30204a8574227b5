// Package neo4j implements the graph port on Neo4j. Entities are :Entity
// nodes keyed by (tenant, id); relations are :REL relationships whose
// rel_type property forms the natural key with both endpoints.
package neo4j

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/graph"
	"github.com/kailas-cloud/storaged/internal/domain/value"
	"github.com/kailas-cloud/storaged/internal/port"
)

// Name identifies the neo4j backend.
const Name = "neo4j"

var _ port.GraphPort = (*GraphStore)(nil)

// Config holds connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

var schema = []string{
	`CREATE CONSTRAINT storaged_entity_key IF NOT EXISTS
		FOR (e:Entity) REQUIRE (e.tenant, e.id) IS UNIQUE`,
}

// GraphStore is a GraphPort on Neo4j.
type GraphStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewGraphStore connects, verifies connectivity and applies the schema.
func NewGraphStore(ctx context.Context, cfg Config) (*GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx) //nolint:errcheck // connection never established.
		return nil, fmt.Errorf("verifying neo4j connectivity: %w", err)
	}

	s := &GraphStore{driver: driver, database: cfg.Database}
	for _, stmt := range schema {
		if err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return consume(ctx, tx, stmt, nil)
		}); err != nil {
			driver.Close(ctx) //nolint:errcheck // startup failure.
			return nil, fmt.Errorf("applying neo4j schema: %w", err)
		}
	}
	return s, nil
}

// Close releases the driver.
func (s *GraphStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *GraphStore) Name() string { return Name }

func (s *GraphStore) Ping(ctx context.Context) error {
	return engineErr("ping", s.driver.VerifyConnectivity(ctx))
}

func (s *GraphStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database, AccessMode: mode})
}

func (s *GraphStore) write(ctx context.Context, work neo4j.ManagedTransactionWork) error {
	_, err := s.writeResult(ctx, work)
	return err
}

func (s *GraphStore) writeResult(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx) //nolint:errcheck // session close errors carry no data.
	return session.ExecuteWrite(ctx, work)
}

func consume(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) (neo4j.ResultSummary, error) {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return res.Consume(ctx)
}

func (s *GraphStore) UpsertEntity(ctx context.Context, tenant domain.Tenant, e graph.Entity) error {
	err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return consume(ctx, tx,
			`MERGE (e:Entity {tenant: $tenant, id: $id})
			SET e.type = $type, e.props = $props`,
			map[string]any{
				"tenant": string(tenant),
				"id":     e.ID,
				"type":   e.Type,
				"props":  string(e.Props.Encode()),
			})
	})
	return engineErr("upsert_entity", err)
}

// CreateRelation matches both endpoints and merges the relation in one
// statement, so the endpoint nodes stay locked until commit. No row back
// means an endpoint is missing.
func (s *GraphStore) CreateRelation(ctx context.Context, tenant domain.Tenant, r graph.Relation) error {
	err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		params := map[string]any{
			"tenant":   string(tenant),
			"src":      r.SrcID,
			"dst":      r.DstID,
			"rel_type": r.RelType,
			"props":    string(r.Props.Encode()),
		}
		res, err := tx.Run(ctx,
			`MATCH (a:Entity {tenant: $tenant, id: $src}), (b:Entity {tenant: $tenant, id: $dst})
			MERGE (a)-[r:REL {rel_type: $rel_type}]->(b)
			SET r.props = $props
			RETURN count(r) AS n`,
			params)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		n, _, err := neo4j.GetRecordValue[int64](rec, "n")
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, nil
		}

		found, err := existingIDs(ctx, tx, tenant, r.SrcID, r.DstID)
		if err != nil {
			return nil, err
		}
		return nil, missingEndpoint(r, found)
	})
	return engineErr("create_relation", err)
}

func existingIDs(ctx context.Context, tx neo4j.ManagedTransaction, tenant domain.Tenant, ids ...string) ([]string, error) {
	res, err := tx.Run(ctx,
		`MATCH (e:Entity {tenant: $tenant}) WHERE e.id IN $ids RETURN e.id AS id`,
		map[string]any{"tenant": string(tenant), "ids": ids})
	if err != nil {
		return nil, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(records))
	for _, rec := range records {
		id, _, err := neo4j.GetRecordValue[string](rec, "id")
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// missingEndpoint reports the first endpoint of r absent from found. When
// both are present the source is reported: the merge saw it missing.
func missingEndpoint(r graph.Relation, found []string) error {
	if slices.Contains(found, r.SrcID) && !slices.Contains(found, r.DstID) {
		return graph.EntityNotFound(r.DstID)
	}
	return graph.EntityNotFound(r.SrcID)
}

func (s *GraphStore) Neighbors(ctx context.Context, tenant domain.Tenant, id string, q graph.NeighborQuery) ([]graph.Neighbor, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx) //nolint:errcheck // session close errors carry no data.

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// Ordering and the limit are applied in Go: Cypher compares strings
		// by UTF-16 code unit, not bytewise.
		res, err := tx.Run(ctx,
			`MATCH (n:Entity {tenant: $tenant, id: $id})-[r:REL]-(m:Entity)
			WHERE $rel_type = '' OR r.rel_type = $rel_type
			RETURN DISTINCT startNode(r).id AS src, endNode(r).id AS dst,
				r.rel_type AS rel_type, r.props AS rel_props,
				m.id AS entity_id, m.type AS entity_type, m.props AS entity_props`,
			map[string]any{"tenant": string(tenant), "id": id, "rel_type": q.RelType})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		ns := make([]graph.Neighbor, 0, len(records))
		for _, rec := range records {
			n, err := neighborFromRecord(rec)
			if err != nil {
				return nil, err
			}
			n.Direction = graph.DirectionFor(id, n.Relation)
			ns = append(ns, n)
		}
		return ns, nil
	})
	if err != nil {
		return nil, engineErr("neighbors", err)
	}
	return graph.SortNeighbors(out.([]graph.Neighbor), q.Limit), nil
}

func neighborFromRecord(rec *neo4j.Record) (graph.Neighbor, error) {
	var (
		n                  graph.Neighbor
		relProps, entProps string
	)
	fields := map[string]*string{
		"src":          &n.Relation.SrcID,
		"dst":          &n.Relation.DstID,
		"rel_type":     &n.Relation.RelType,
		"rel_props":    &relProps,
		"entity_id":    &n.Entity.ID,
		"entity_type":  &n.Entity.Type,
		"entity_props": &entProps,
	}
	for key, dst := range fields {
		v, _, err := neo4j.GetRecordValue[string](rec, key)
		if err != nil {
			return n, fmt.Errorf("reading %s: %w", key, err)
		}
		*dst = v
	}

	var err error
	if n.Relation.Props, err = value.Parse([]byte(relProps)); err != nil {
		return n, err
	}
	if n.Entity.Props, err = value.Parse([]byte(entProps)); err != nil {
		return n, err
	}
	return n, nil
}

func (s *GraphStore) DeleteEntity(ctx context.Context, tenant domain.Tenant, id string) (bool, error) {
	res, err := s.writeResult(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return consume(ctx, tx,
			`MATCH (e:Entity {tenant: $tenant, id: $id}) DETACH DELETE e`,
			map[string]any{"tenant": string(tenant), "id": id})
	})
	if err != nil {
		return false, engineErr("delete_entity", err)
	}
	return res.(neo4j.ResultSummary).Counters().NodesDeleted() > 0, nil
}

func (s *GraphStore) DeleteRelation(ctx context.Context, tenant domain.Tenant, src, dst, relType string) (bool, error) {
	res, err := s.writeResult(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return consume(ctx, tx,
			`MATCH (:Entity {tenant: $tenant, id: $src})-[r:REL {rel_type: $rel_type}]->(:Entity {tenant: $tenant, id: $dst})
			DELETE r`,
			map[string]any{"tenant": string(tenant), "src": src, "dst": dst, "rel_type": relType})
	})
	if err != nil {
		return false, engineErr("delete_relation", err)
	}
	return res.(neo4j.ResultSummary).Counters().RelationshipsDeleted() > 0, nil
}

func engineErr(op string, err error) error {
	if err == nil {
		return nil
	}
	retry := neo4j.IsRetryable(err) || neo4j.IsConnectivityError(err) || errors.Is(err, context.DeadlineExceeded)
	return domain.NewEngineError(Name, op, err, retry)
}
