package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/value"
	"github.com/kailas-cloud/storaged/internal/domain/vector"
	"github.com/kailas-cloud/storaged/internal/port"
)

var _ port.VectorPort = (*VectorStore)(nil)

// VectorStore is a VectorPort on SQLite. Embeddings are stored as
// little-endian float32 blobs.
type VectorStore struct {
	Base
}

// NewVectorStore creates a new VectorStore.
func NewVectorStore(db *sql.DB) *VectorStore {
	return &VectorStore{Base: Base{DB: db}}
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func describe(ctx context.Context, q queryRower, tenant domain.Tenant, name string) (vector.Collection, error) {
	var (
		dim    int
		metric string
	)
	err := q.QueryRowContext(ctx,
		`SELECT dim, metric FROM vector_collections WHERE tenant = ? AND name = ?`,
		string(tenant), name).Scan(&dim, &metric)
	if errors.Is(err, sql.ErrNoRows) {
		return vector.Collection{}, vector.NotFound(name)
	}
	if err != nil {
		return vector.Collection{}, err
	}
	return vector.Collection{Name: name, Dim: dim, Metric: vector.Metric(metric)}, nil
}

func (s *VectorStore) EnsureCollection(ctx context.Context, tenant domain.Tenant, c vector.Collection) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := describe(ctx, tx, tenant, c.Name)
		if err == nil {
			if !existing.SameSchema(c) {
				return existing.Conflict(c)
			}
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO vector_collections (tenant, name, dim, metric) VALUES (?, ?, ?, ?)`,
			string(tenant), c.Name, c.Dim, string(c.Metric))
		return err
	})
	return engineErr("ensure_collection", err)
}

func (s *VectorStore) DescribeCollection(ctx context.Context, tenant domain.Tenant, name string) (vector.Collection, error) {
	c, err := describe(ctx, s.DB, tenant, name)
	if err != nil {
		return vector.Collection{}, engineErr("describe_collection", err)
	}
	return c, nil
}

func (s *VectorStore) Upsert(ctx context.Context, tenant domain.Tenant, name string, items []vector.Item) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		c, err := describe(ctx, tx, tenant, name)
		if err != nil {
			return err
		}
		if err := vector.CheckDim(items, c.Dim); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO vector_items (tenant, collection, id, embedding, metadata)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (tenant, collection, id) DO UPDATE
			SET embedding = excluded.embedding, metadata = excluded.metadata`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, it := range items {
			_, err := stmt.ExecContext(ctx, string(tenant), name, it.ID,
				vector.EncodeBinary(it.Embedding), string(it.Metadata.Encode()))
			if err != nil {
				return err
			}
		}
		return nil
	})
	return engineErr("upsert", err)
}

func (s *VectorStore) Query(ctx context.Context, tenant domain.Tenant, name string, embedding []float32, k int) ([]vector.Match, error) {
	c, err := describe(ctx, s.DB, tenant, name)
	if err != nil {
		return nil, engineErr("query", err)
	}
	if err := vector.ValidateEmbedding("embedding", embedding, c.Dim); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, embedding, metadata FROM vector_items WHERE tenant = ? AND collection = ?`,
		string(tenant), name)
	if err != nil {
		return nil, engineErr("query", err)
	}
	defer rows.Close()

	top := vector.NewTopK(c.Metric, embedding, k)
	for rows.Next() {
		var (
			id       string
			blob     []byte
			metadata string
		)
		if err := rows.Scan(&id, &blob, &metadata); err != nil {
			return nil, engineErr("query", err)
		}
		emb, err := vector.DecodeBinary(blob)
		if err != nil {
			return nil, engineErr("query", err)
		}
		md, err := value.Parse([]byte(metadata))
		if err != nil {
			return nil, engineErr("query", err)
		}
		top.Add(id, emb, md)
	}
	if err := rows.Err(); err != nil {
		return nil, engineErr("query", err)
	}
	return top.Result(), nil
}

func (s *VectorStore) DeleteItems(ctx context.Context, tenant domain.Tenant, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+2)
	args = append(args, string(tenant), name)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	_, err := s.DB.ExecContext(ctx,
		`DELETE FROM vector_items WHERE tenant = ? AND collection = ? AND id IN (`+placeholders+`)`,
		args...)
	return engineErr("delete_items", err)
}

func (s *VectorStore) DropCollection(ctx context.Context, tenant domain.Tenant, name string) error {
	_, err := s.DB.ExecContext(ctx,
		`DELETE FROM vector_collections WHERE tenant = ? AND name = ?`,
		string(tenant), name)
	return engineErr("drop_collection", err)
}
