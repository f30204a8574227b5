package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/storaged/internal/adapter/porttest"
	sqlitedb "github.com/kailas-cloud/storaged/internal/db/sqlite"
	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/chat"
	"github.com/kailas-cloud/storaged/internal/domain/graph"
	"github.com/kailas-cloud/storaged/internal/domain/value"
	"github.com/kailas-cloud/storaged/internal/domain/vector"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlitedb.Open(context.Background(), filepath.Join(t.TempDir(), "storaged.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestVectorStore_Conformance(t *testing.T) {
	porttest.RunVector(t, NewVectorStore(openTestDB(t)))
}

func TestChatStore_Conformance(t *testing.T) {
	porttest.RunChat(t, NewChatStore(openTestDB(t)))
}

func TestGraphStore_Conformance(t *testing.T) {
	porttest.RunGraph(t, NewGraphStore(openTestDB(t)))
}

func TestChatStore_ClockStepsBackwards(t *testing.T) {
	s := NewChatStore(openTestDB(t))
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Hour)}
	s.now = func() time.Time {
		next := clock[0]
		clock = clock[1:]
		return next
	}

	ctx := context.Background()
	first, err := s.Append(ctx, "t", "th", chat.NewMessage{Role: chat.RoleUser, Content: "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.Append(ctx, "t", "th", chat.NewMessage{Role: chat.RoleUser, Content: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := first.Timestamp.Add(time.Microsecond); !second.Timestamp.Equal(want) {
		t.Errorf("expected %v after clock step back, got %v", want, second.Timestamp)
	}
}

func TestVectorStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	db, err := sqlitedb.Open(ctx, path, zap.NewNop())
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	s := NewVectorStore(db)
	c, err := vector.NewCollection("docs", 4, vector.Dot)
	if err != nil {
		t.Fatalf("collection: %v", err)
	}
	if err := s.EnsureCollection(ctx, "t", c); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	db.Close()

	db, err = sqlitedb.Open(ctx, path, zap.NewNop())
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer db.Close()

	got, err := NewVectorStore(db).DescribeCollection(ctx, "t", c.Name)
	if err != nil {
		t.Fatalf("describe after reopen: %v", err)
	}
	if got != c {
		t.Errorf("expected %+v, got %+v", c, got)
	}
}

func TestGraphStore_CreateRelationNamesMissingEndpoint(t *testing.T) {
	ctx := context.Background()
	s := NewGraphStore(openTestDB(t))
	tenant := domain.Tenant("acme")

	if err := s.UpsertEntity(ctx, tenant, graph.Entity{ID: "a", Type: "node", Props: value.Fields{}}); err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}

	tests := []struct {
		name   string
		rel    graph.Relation
		wantID string
	}{
		{"missing dst", graph.Relation{SrcID: "a", DstID: "ghost", RelType: "r", Props: value.Fields{}}, "ghost"},
		{"missing src", graph.Relation{SrcID: "ghost", DstID: "a", RelType: "r", Props: value.Fields{}}, "ghost"},
		{"both missing", graph.Relation{SrcID: "x", DstID: "y", RelType: "r", Props: value.Fields{}}, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateRelation(ctx, tenant, tt.rel)
			var nf *domain.NotFoundError
			if !errors.As(err, &nf) {
				t.Fatalf("expected NotFoundError, got %v", err)
			}
			if nf.ID != tt.wantID {
				t.Errorf("expected missing %q, got %q", tt.wantID, nf.ID)
			}
		})
	}

	// The failed insert must not poison the connection for later writes.
	if err := s.UpsertEntity(ctx, tenant, graph.Entity{ID: "b", Type: "node", Props: value.Fields{}}); err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}
	if err := s.CreateRelation(ctx, tenant, graph.Relation{SrcID: "a", DstID: "b", RelType: "r", Props: value.Fields{}}); err != nil {
		t.Fatalf("CreateRelation: %v", err)
	}
}
