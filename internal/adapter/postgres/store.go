// Package postgres implements the vector, chat and graph ports on
// PostgreSQL. Similarity search uses pgvector distance operators.
//
// Every statement filters on the tenant column; multi-statement operations
// run in one transaction so callers never observe partial writes.
package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	pgdb "github.com/kailas-cloud/storaged/internal/db/postgres"
	"github.com/kailas-cloud/storaged/internal/domain"
)

// Name identifies the postgres backend.
const Name = "postgres"

// Base holds the pool shared by every postgres store. Embed it in each store.
type Base struct {
	Pool *pgdb.Pool
}

func (b *Base) Name() string { return Name }

func (b *Base) Ping(ctx context.Context) error {
	if err := b.Pool.Ping(ctx); err != nil {
		return engineErr("ping", err)
	}
	return nil
}

// beginTx starts a read-write transaction.
func (b *Base) beginTx(ctx context.Context) (pgx.Tx, error) {
	return b.Pool.Begin(ctx)
}

// beginReadTx starts a read-only transaction so multi-statement reads see one snapshot.
func (b *Base) beginReadTx(ctx context.Context) (pgx.Tx, error) {
	return b.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead})
}

// engineErr translates a pgx failure into the domain taxonomy.
func engineErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewEngineError(Name, op, err, retryable(err))
}

func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "57014", "53300":
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// formatEmbedding converts a float32 slice to the pgvector text format "[0.1,0.2,...]".
func formatEmbedding(embedding []float32) string {
	var b strings.Builder
	b.Grow(len(embedding)*8 + 2)
	b.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
