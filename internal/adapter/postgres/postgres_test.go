package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/kailas-cloud/storaged/internal/adapter/porttest"
	pgdb "github.com/kailas-cloud/storaged/internal/db/postgres"
	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/graph"
)

func testPool(t *testing.T) *pgdb.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgdb.NewPool(ctx, pgdb.Config{URL: url, StatementTimeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := pgdb.Migrate(ctx, pool, zap.NewNop()); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return pool
}

func TestVectorStore_Conformance(t *testing.T) {
	porttest.RunVector(t, NewVectorStore(testPool(t)))
}

func TestChatStore_Conformance(t *testing.T) {
	porttest.RunChat(t, NewChatStore(testPool(t)))
}

func TestGraphStore_Conformance(t *testing.T) {
	porttest.RunGraph(t, NewGraphStore(testPool(t)))
}

func TestFormatEmbedding(t *testing.T) {
	tests := []struct {
		in   []float32
		want string
	}{
		{[]float32{1, 0.5, -2}, "[1,0.5,-2]"},
		{[]float32{0.1}, "[0.1]"},
		{[]float32{1e-7}, "[1e-07]"},
	}
	for _, tt := range tests {
		if got := formatEmbedding(tt.in); got != tt.want {
			t.Errorf("formatEmbedding(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"deadline", context.DeadlineExceeded, true},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"statement timeout", &pgconn.PgError{Code: "57014"}, true},
		{"connection class", &pgconn.PgError{Code: "08006"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.err); got != tt.want {
				t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestEngineErr_PassesTaxonomyThrough(t *testing.T) {
	nf := graph.EntityNotFound("x")
	if got := engineErr("op", nf); got != nf {
		t.Errorf("expected taxonomy error unchanged, got %v", got)
	}

	err := engineErr("op", &pgconn.PgError{Code: "08006"})
	var ee *domain.EngineError
	if !errors.As(err, &ee) || ee.Backend != Name || !ee.Retryable {
		t.Errorf("expected retryable postgres engine error, got %#v", err)
	}
}
