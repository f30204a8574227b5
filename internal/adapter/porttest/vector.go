package porttest

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/value"
	"github.com/kailas-cloud/storaged/internal/domain/vector"
	"github.com/kailas-cloud/storaged/internal/port"
)

// RunVector runs the VectorPort conformance suite against p.
func RunVector(t *testing.T, p port.VectorPort) {
	t.Helper()

	t.Run("EnsureIsIdempotent", func(t *testing.T) { vectorEnsureIdempotent(t, p) })
	t.Run("EnsureConflict", func(t *testing.T) { vectorEnsureConflict(t, p) })
	t.Run("DescribeMissing", func(t *testing.T) { vectorDescribeMissing(t, p) })
	t.Run("UpsertMissingCollection", func(t *testing.T) { vectorUpsertMissing(t, p) })
	t.Run("UpsertDimMismatchWritesNothing", func(t *testing.T) { vectorUpsertDimMismatch(t, p) })
	t.Run("QueryCosineRanking", func(t *testing.T) { vectorQueryCosine(t, p) })
	t.Run("QueryDotRanking", func(t *testing.T) { vectorQueryDot(t, p) })
	t.Run("QueryTiesByID", func(t *testing.T) { vectorQueryTies(t, p) })
	t.Run("QueryZeroNorm", func(t *testing.T) { vectorQueryZeroNorm(t, p) })
	t.Run("QueryMissingCollection", func(t *testing.T) { vectorQueryMissing(t, p) })
	t.Run("QueryDimMismatch", func(t *testing.T) { vectorQueryDimMismatch(t, p) })
	t.Run("QueryEmptyCollection", func(t *testing.T) { vectorQueryEmpty(t, p) })
	t.Run("UpsertOverwrites", func(t *testing.T) { vectorUpsertOverwrites(t, p) })
	t.Run("MetadataKeepsNumberLiterals", func(t *testing.T) { vectorMetadataLiterals(t, p) })
	t.Run("DeleteItems", func(t *testing.T) { vectorDeleteItems(t, p) })
	t.Run("DropCollection", func(t *testing.T) { vectorDrop(t, p) })
	t.Run("TenantIsolation", func(t *testing.T) { vectorTenantIsolation(t, p) })
}

func ensure(t *testing.T, p port.VectorPort, tenant domain.Tenant, name string, dim int, m vector.Metric) vector.Collection {
	t.Helper()
	c, err := vector.NewCollection(name, dim, m)
	mustOK(t, err)
	mustOK(t, p.EnsureCollection(testContext(t), tenant, c))
	return c
}

func item(id string, md value.Fields, emb ...float32) vector.Item {
	return vector.Item{ID: id, Embedding: emb, Metadata: md}
}

func ids(ms []vector.Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func expectIDs(t *testing.T, got []vector.Match, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("expected ids %v, got %v", want, g)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("expected ids %v, got %v", want, g)
		}
	}
}

func vectorEnsureIdempotent(t *testing.T, p port.VectorPort) {
	ctx := testContext(t)
	tenant := NewTenant()

	c := ensure(t, p, tenant, "docs", 3, vector.Cosine)
	mustOK(t, p.EnsureCollection(ctx, tenant, c))

	got, err := p.DescribeCollection(ctx, tenant, "docs")
	mustOK(t, err)
	if got != c {
		t.Errorf("expected %+v, got %+v", c, got)
	}
}

func vectorEnsureConflict(t *testing.T, p port.VectorPort) {
	ctx := testContext(t)
	tenant := NewTenant()
	ensure(t, p, tenant, "docs", 3, vector.Cosine)

	for _, req := range []vector.Collection{
		{Name: "docs", Dim: 4, Metric: vector.Cosine},
		{Name: "docs", Dim: 3, Metric: vector.Dot},
	} {
		err := p.EnsureCollection(ctx, tenant, req)
		expectErr(t, err, domain.ErrSchemaConflict)
	}

	got, err := p.DescribeCollection(ctx, tenant, "docs")
	mustOK(t, err)
	if got.Dim != 3 || got.Metric != vector.Cosine {
		t.Errorf("conflicting ensure changed schema: %+v", got)
	}
}

func vectorDescribeMissing(t *testing.T, p port.VectorPort) {
	_, err := p.DescribeCollection(testContext(t), NewTenant(), "nope")
	expectErr(t, err, domain.ErrNotFound)
}

func vectorUpsertMissing(t *testing.T, p port.VectorPort) {
	err := p.Upsert(testContext(t), NewTenant(), "nope", []vector.Item{item("a", nil, 1, 0)})
	expectErr(t, err, domain.ErrNotFound)
}

func vectorUpsertDimMismatch(t *testing.T, p port.VectorPort) {
	ctx := testContext(t)
	tenant := NewTenant()
	ensure(t, p, tenant, "docs", 2, vector.Cosine)

	err := p.Upsert(ctx, tenant, "docs", []vector.Item{
		item("good", nil, 1, 0),
		item("bad", nil, 1, 0, 0),
	})
	expectErr(t, err, domain.ErrValidation)
	var ve *domain.ValidationError
	if errors.As(err, &ve) && ve.Field != "items[1].embedding" {
		t.Errorf("expected field items[1].embedding, got %q", ve.Field)
	}

	got, err := p.Query(ctx, tenant, "docs", []float32{1, 0}, 10)
	mustOK(t, err)
	if len(got) != 0 {
		t.Fatalf("rejected batch was partially written: %v", ids(got))
	}
}

func vectorQueryCosine(t *testing.T, p port.VectorPort) {
	ctx := testContext(t)
	tenant := NewTenant()
	ensure(t, p, tenant, "docs", 2, vector.Cosine)

	mustOK(t, p.Upsert(ctx, tenant, "docs", []vector.Item{
		item("a", value.Fields{"n": value.Int(1)}, 1, 0),
		item("b", nil, 0, 1),
		item("c", nil, 1, 1),
		item("d", nil, -1, 0),
	}))

	got, err := p.Query(ctx, tenant, "docs", []float32{2, 0}, 3)
	mustOK(t, err)
	expectIDs(t, got, "a", "c", "b")

	want := []float64{1, 0.7071067811865475, 0}
	for i, w := range want {
		if !approx(got[i].Score, w) {
			t.Errorf("%s: expected score %v, got %v", got[i].ID, w, got[i].Score)
		}
	}
	if !got[0].Metadata.Equal(value.Fields{"n": value.Int(1)}) {
		t.Errorf("metadata not returned: %v", got[0].Metadata)
	}
}

func vectorQueryDot(t *testing.T, p port.VectorPort) {
	ctx := testContext(t)
	tenant := NewTenant()
	ensure(t, p, tenant, "docs", 2, vector.Dot)

	mustOK(t, p.Upsert(ctx, tenant, "docs", []vector.Item{
		item("small", nil, 1, 0),
		item("large", nil, 3, 0),
		item("neg", nil, -2, 0),
	}))

	got, err := p.Query(ctx, tenant, "docs", []float32{1, 0}, 10)
	mustOK(t, err)
	expectIDs(t, got, "large", "small", "neg")
	if !approx(got[0].Score, 3) || !approx(got[2].Score, -2) {
		t.Errorf("unexpected dot scores: %+v", got)
	}
}

func vectorQueryTies(t *testing.T, p port.VectorPort) {
	ctx := testContext(t)
	tenant := NewTenant()
	ensure(t, p, tenant, "docs", 2, vector.Cosine)

	mustOK(t, p.Upsert(ctx, tenant, "docs", []vector.Item{
		item("b", nil, 1, 0),
		item("c", nil, 1, 0),
		item("a", nil, 1, 0),
		item("B", nil, 1, 0),
		item("z", nil, 0, 1),
	}))

	got, err := p.Query(ctx, tenant, "docs", []float32{1, 0}, 3)
	mustOK(t, err)
	expectIDs(t, got, "B", "a", "b")
}

func vectorQueryZeroNorm(t *testing.T, p port.VectorPort) {
	ctx := testContext(t)
	tenant := NewTenant()
	ensure(t, p, tenant, "docs", 2, vector.Cosine)

	mustOK(t, p.Upsert(ctx, tenant, "docs", []vector.Item{
		item("y", nil, 0, 1),
		item("x", nil, 1, 0),
	}))

	got, err := p.Query(ctx, tenant, "docs", []float32{0, 0}, 10)
	mustOK(t, err)
	expectIDs(t, got, "x", "y")
	for _, m := range got {
		if m.Score != 0 {
			t.Errorf("%s: zero-norm query must score 0, got %v", m.ID, m.Score)
		}
	}
}

func vectorQueryMissing(t *testing.T, p port.VectorPort) {
	_, err := p.Query(testContext(t), NewTenant(), "nope", []float32{1}, 1)
	expectErr(t, err, domain.ErrNotFound)
}

func vectorQueryDimMismatch(t *testing.T, p port.VectorPort) {
	tenant := NewTenant()
	ensure(t, p, tenant, "docs", 2, vector.Cosine)
	_, err := p.Query(testContext(t), tenant, "docs", []float32{1, 0, 0}, 1)
	expectErr(t, err, domain.ErrValidation)
}

func vectorQueryEmpty(t *testing.T, p port.VectorPort) {
	tenant := NewTenant()
	ensure(t, p, tenant, "docs", 2, vector.Cosine)
	got, err := p.Query(testContext(t), tenant, "docs", []float32{1, 0}, 5)
	mustOK(t, err)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
}

func vectorUpsertOverwrites(t *testing.T, p port.VectorPort) {
	ctx := testContext(t)
	tenant := NewTenant()
	ensure(t, p, tenant, "docs", 2, vector.Cosine)

	mustOK(t, p.Upsert(ctx, tenant, "docs", []vector.Item{item("a", value.Fields{"v": value.Int(1)}, 1, 0)}))
	md := value.Fields{
		"v":    value.Int(2),
		"tags": value.Array(value.String("x"), value.Null()),
		"nest": value.Object(map[string]value.Value{"ok": value.Bool(true)}),
	}
	mustOK(t, p.Upsert(ctx, tenant, "docs", []vector.Item{item("a", md, 0, 1)}))

	got, err := p.Query(ctx, tenant, "docs", []float32{0, 1}, 10)
	mustOK(t, err)
	expectIDs(t, got, "a")
	if !approx(got[0].Score, 1) {
		t.Errorf("embedding not replaced, score %v", got[0].Score)
	}
	if !got[0].Metadata.Equal(md) {
		t.Errorf("metadata not replaced: %v", got[0].Metadata)
	}
}

// numberLiterals are JSON numbers whose text a lossy store would rewrite.
var numberLiterals = []string{"1e2", "9007199254740993", "-0.50", "1.0"}

func literalFields(t *testing.T) value.Fields {
	t.Helper()
	f := value.Fields{}
	for _, lit := range numberLiterals {
		v, err := value.Number(json.Number(lit))
		mustOK(t, err)
		f[lit] = v
	}
	f["nested"] = value.Array(f["1e2"], value.Object(map[string]value.Value{"x": f["-0.50"]}))
	return f
}

func expectLiterals(t *testing.T, got value.Fields) {
	t.Helper()
	for _, lit := range numberLiterals {
		n, ok := got[lit].AsNumber()
		if !ok || string(n) != lit {
			t.Errorf("number %s stored as %v", lit, got[lit])
		}
	}
	if !got.Equal(literalFields(t)) {
		t.Errorf("fields changed in storage: %v", got)
	}
}

func vectorMetadataLiterals(t *testing.T, p port.VectorPort) {
	tenant := NewTenant()
	c := ensure(t, p, tenant, "lits", 2, vector.Dot)
	mustOK(t, p.Upsert(testContext(t), tenant, c.Name, []vector.Item{item("a", literalFields(t), 1, 0)}))

	ms, err := p.Query(testContext(t), tenant, c.Name, []float32{1, 0}, 1)
	mustOK(t, err)
	expectIDs(t, ms, "a")
	expectLiterals(t, ms[0].Metadata)
}

func vectorDeleteItems(t *testing.T, p port.VectorPort) {
	ctx := testContext(t)
	tenant := NewTenant()
	ensure(t, p, tenant, "docs", 2, vector.Cosine)
	mustOK(t, p.Upsert(ctx, tenant, "docs", []vector.Item{
		item("a", nil, 1, 0),
		item("b", nil, 1, 0),
		item("c", nil, 1, 0),
	}))

	mustOK(t, p.DeleteItems(ctx, tenant, "docs", []string{"a", "c", "missing"}))

	got, err := p.Query(ctx, tenant, "docs", []float32{1, 0}, 10)
	mustOK(t, err)
	expectIDs(t, got, "b")

	mustOK(t, p.DeleteItems(ctx, tenant, "no-such-collection", []string{"a"}))
}

func vectorDrop(t *testing.T, p port.VectorPort) {
	ctx := testContext(t)
	tenant := NewTenant()
	ensure(t, p, tenant, "docs", 2, vector.Cosine)
	mustOK(t, p.Upsert(ctx, tenant, "docs", []vector.Item{item("a", nil, 1, 0)}))

	mustOK(t, p.DropCollection(ctx, tenant, "docs"))
	mustOK(t, p.DropCollection(ctx, tenant, "docs"))

	_, err := p.DescribeCollection(ctx, tenant, "docs")
	expectErr(t, err, domain.ErrNotFound)

	// Redeclaring after a drop starts from a clean slate.
	ensure(t, p, tenant, "docs", 3, vector.Dot)
	got, err := p.Query(ctx, tenant, "docs", []float32{1, 0, 0}, 10)
	mustOK(t, err)
	if len(got) != 0 {
		t.Fatalf("items survived drop: %v", ids(got))
	}
}

func vectorTenantIsolation(t *testing.T, p port.VectorPort) {
	ctx := testContext(t)
	a, b := NewTenant(), NewTenant()

	ensure(t, p, a, "docs", 2, vector.Cosine)
	ensure(t, p, b, "docs", 3, vector.Dot)

	mustOK(t, p.Upsert(ctx, a, "docs", []vector.Item{item("only-a", nil, 1, 0)}))

	got, err := p.Query(ctx, b, "docs", []float32{1, 0, 0}, 10)
	mustOK(t, err)
	if len(got) != 0 {
		t.Fatalf("tenant b sees tenant a items: %v", ids(got))
	}

	mustOK(t, p.DropCollection(ctx, b, "docs"))
	if _, err := p.DescribeCollection(ctx, a, "docs"); err != nil {
		t.Fatalf("drop in tenant b removed tenant a collection: %v", err)
	}
}
