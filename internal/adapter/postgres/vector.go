package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	pgdb "github.com/kailas-cloud/storaged/internal/db/postgres"
	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/value"
	"github.com/kailas-cloud/storaged/internal/domain/vector"
	"github.com/kailas-cloud/storaged/internal/port"
)

var _ port.VectorPort = (*VectorStore)(nil)

// ensureAttempts bounds retries when a concurrent declaration hides the
// winning row from this statement's snapshot.
const ensureAttempts = 3

// scoreExpr ranks by similarity. pgvector returns NaN cosine distance for
// zero-norm vectors; that scores 0.
var scoreExpr = map[vector.Metric]string{
	vector.Cosine: `CASE WHEN (embedding <=> $3::vector) = 'NaN'::float8 THEN 0
		ELSE 1 - (embedding <=> $3::vector) END`,
	vector.Dot: `-(embedding <#> $3::vector)`,
}

// VectorStore is a VectorPort backed by pgvector.
type VectorStore struct {
	Base
}

// NewVectorStore creates a new VectorStore.
func NewVectorStore(pool *pgdb.Pool) *VectorStore {
	return &VectorStore{Base: Base{Pool: pool}}
}

func (s *VectorStore) EnsureCollection(ctx context.Context, tenant domain.Tenant, c vector.Collection) error {
	const query = `WITH ins AS (
			INSERT INTO vector_collections (tenant, name, dim, metric)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (tenant, name) DO NOTHING
			RETURNING dim, metric
		)
		SELECT dim, metric FROM ins
		UNION ALL
		SELECT dim, metric FROM vector_collections WHERE tenant = $1 AND name = $2
		LIMIT 1`

	var (
		dim    int
		metric string
		err    error
	)
	for range ensureAttempts {
		err = s.Pool.QueryRow(ctx, query, string(tenant), c.Name, c.Dim, string(c.Metric)).Scan(&dim, &metric)
		if !errors.Is(err, pgx.ErrNoRows) {
			break
		}
	}
	if err != nil {
		return engineErr("ensure_collection", err)
	}

	existing := vector.Collection{Name: c.Name, Dim: dim, Metric: vector.Metric(metric)}
	if !existing.SameSchema(c) {
		return existing.Conflict(c)
	}
	return nil
}

func (s *VectorStore) DescribeCollection(ctx context.Context, tenant domain.Tenant, name string) (vector.Collection, error) {
	c, err := describe(ctx, s.Pool.QueryRow, tenant, name, "")
	if err != nil {
		return vector.Collection{}, engineErr("describe_collection", err)
	}
	return c, nil
}

type queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row

// describe loads a collection declaration. lock is appended to the query,
// e.g. "FOR SHARE" to pin the collection for the rest of a transaction.
func describe(ctx context.Context, queryRow queryRowFunc, tenant domain.Tenant, name, lock string) (vector.Collection, error) {
	var (
		dim    int
		metric string
	)
	err := queryRow(ctx,
		`SELECT dim, metric FROM vector_collections WHERE tenant = $1 AND name = $2 `+lock,
		string(tenant), name).Scan(&dim, &metric)
	if errors.Is(err, pgx.ErrNoRows) {
		return vector.Collection{}, vector.NotFound(name)
	}
	if err != nil {
		return vector.Collection{}, err
	}
	return vector.Collection{Name: name, Dim: dim, Metric: vector.Metric(metric)}, nil
}

func (s *VectorStore) Upsert(ctx context.Context, tenant domain.Tenant, name string, items []vector.Item) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return engineErr("upsert", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	c, err := describe(ctx, tx.QueryRow, tenant, name, "FOR SHARE")
	if err != nil {
		return engineErr("upsert", err)
	}
	if err := vector.CheckDim(items, c.Dim); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`INSERT INTO vector_items (tenant, collection, id, embedding, metadata)
			VALUES ($1, $2, $3, $4::vector, $5::json)
			ON CONFLICT (tenant, collection, id) DO UPDATE
			SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata, updated_at = now()`,
			string(tenant), name, it.ID, formatEmbedding(it.Embedding), string(it.Metadata.Encode()))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return engineErr("upsert", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return engineErr("upsert", err)
	}
	return nil
}

func (s *VectorStore) Query(ctx context.Context, tenant domain.Tenant, name string, embedding []float32, k int) ([]vector.Match, error) {
	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, engineErr("query", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only.

	c, err := describe(ctx, tx.QueryRow, tenant, name, "")
	if err != nil {
		return nil, engineErr("query", err)
	}
	if err := vector.ValidateEmbedding("embedding", embedding, c.Dim); err != nil {
		return nil, err
	}

	// Exact scan: an approximate index could drop items that tie at the cut.
	sql := `SELECT id, score, metadata FROM (
			SELECT id, metadata, ` + scoreExpr[c.Metric] + ` AS score
			FROM vector_items
			WHERE tenant = $1 AND collection = $2
		) scored
		ORDER BY score DESC, id COLLATE "C"
		LIMIT $4`

	rows, err := tx.Query(ctx, sql, string(tenant), name, formatEmbedding(embedding), k)
	if err != nil {
		return nil, engineErr("query", err)
	}
	defer rows.Close()

	matches := make([]vector.Match, 0, k)
	for rows.Next() {
		var (
			m  vector.Match
			md []byte
		)
		if err := rows.Scan(&m.ID, &m.Score, &md); err != nil {
			return nil, engineErr("query", err)
		}
		if m.Metadata, err = value.Parse(md); err != nil {
			return nil, engineErr("query", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, engineErr("query", err)
	}
	return matches, nil
}

func (s *VectorStore) DeleteItems(ctx context.Context, tenant domain.Tenant, name string, ids []string) error {
	_, err := s.Pool.Exec(ctx,
		`DELETE FROM vector_items WHERE tenant = $1 AND collection = $2 AND id = ANY($3)`,
		string(tenant), name, ids)
	return engineErr("delete_items", err)
}

func (s *VectorStore) DropCollection(ctx context.Context, tenant domain.Tenant, name string) error {
	_, err := s.Pool.Exec(ctx,
		`DELETE FROM vector_collections WHERE tenant = $1 AND name = $2`,
		string(tenant), name)
	return engineErr("drop_collection", err)
}
