package porttest

import (
	"testing"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/graph"
	"github.com/kailas-cloud/storaged/internal/domain/value"
	"github.com/kailas-cloud/storaged/internal/port"
)

// RunGraph runs the GraphPort conformance suite against p.
func RunGraph(t *testing.T, p port.GraphPort) {
	t.Helper()

	t.Run("UpsertEntityReplaces", func(t *testing.T) { graphUpsertReplaces(t, p) })
	t.Run("PropsKeepNumberLiterals", func(t *testing.T) { graphPropsLiterals(t, p) })
	t.Run("RelationRequiresEndpoints", func(t *testing.T) { graphRelationEndpoints(t, p) })
	t.Run("RelationUpsertByKey", func(t *testing.T) { graphRelationUpsert(t, p) })
	t.Run("NeighborsOrdering", func(t *testing.T) { graphNeighborsOrdering(t, p) })
	t.Run("SelfLoopOnce", func(t *testing.T) { graphSelfLoop(t, p) })
	t.Run("NeighborsFilterAndLimit", func(t *testing.T) { graphNeighborsFilter(t, p) })
	t.Run("NeighborsOfMissingEntity", func(t *testing.T) { graphNeighborsMissing(t, p) })
	t.Run("DeleteEntityCascades", func(t *testing.T) { graphDeleteEntity(t, p) })
	t.Run("DeleteRelation", func(t *testing.T) { graphDeleteRelation(t, p) })
	t.Run("TenantIsolation", func(t *testing.T) { graphTenantIsolation(t, p) })
}

func entity(t *testing.T, p port.GraphPort, tenant domain.Tenant, id, typ string) {
	t.Helper()
	mustOK(t, p.UpsertEntity(testContext(t), tenant, graph.Entity{ID: id, Type: typ}))
}

func relate(t *testing.T, p port.GraphPort, tenant domain.Tenant, src, dst, rel string) {
	t.Helper()
	mustOK(t, p.CreateRelation(testContext(t), tenant, graph.Relation{SrcID: src, DstID: dst, RelType: rel}))
}

func neighbors(t *testing.T, p port.GraphPort, tenant domain.Tenant, id string, q graph.NeighborQuery) []graph.Neighbor {
	t.Helper()
	if q.Limit == 0 {
		q.Limit = 100
	}
	ns, err := p.Neighbors(testContext(t), tenant, id, q)
	mustOK(t, err)
	if ns == nil {
		t.Fatal("expected non-nil neighbor list")
	}
	return ns
}

type hop struct {
	rel, dir, id string
}

func hops(ns []graph.Neighbor) []hop {
	out := make([]hop, len(ns))
	for i, n := range ns {
		out[i] = hop{n.Relation.RelType, string(n.Direction), n.Entity.ID}
	}
	return out
}

func expectHops(t *testing.T, ns []graph.Neighbor, want ...hop) {
	t.Helper()
	got := hops(ns)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func graphUpsertReplaces(t *testing.T, p port.GraphPort) {
	ctx := testContext(t)
	tenant := NewTenant()
	entity(t, p, tenant, "root", "hub")

	mustOK(t, p.UpsertEntity(ctx, tenant, graph.Entity{ID: "n", Type: "person", Props: value.Fields{"age": value.Int(1)}}))
	props := value.Fields{"name": value.String("Ann"), "tags": value.Array(value.String("a"))}
	mustOK(t, p.UpsertEntity(ctx, tenant, graph.Entity{ID: "n", Type: "robot", Props: props}))
	relate(t, p, tenant, "root", "n", "has")

	ns := neighbors(t, p, tenant, "root", graph.NeighborQuery{})
	if len(ns) != 1 {
		t.Fatalf("expected one neighbor, got %v", hops(ns))
	}
	e := ns[0].Entity
	if e.Type != "robot" || !e.Props.Equal(props) {
		t.Errorf("entity not replaced: %+v", e)
	}
}

func graphPropsLiterals(t *testing.T, p port.GraphPort) {
	ctx := testContext(t)
	tenant := NewTenant()
	mustOK(t, p.UpsertEntity(ctx, tenant, graph.Entity{ID: "a", Type: "node", Props: literalFields(t)}))
	entity(t, p, tenant, "b", "node")
	mustOK(t, p.CreateRelation(ctx, tenant, graph.Relation{SrcID: "b", DstID: "a", RelType: "r", Props: literalFields(t)}))

	ns := neighbors(t, p, tenant, "b", graph.NeighborQuery{})
	expectHops(t, ns, hop{"r", "out", "a"})
	expectLiterals(t, ns[0].Entity.Props)
	expectLiterals(t, ns[0].Relation.Props)
}

func graphRelationEndpoints(t *testing.T, p port.GraphPort) {
	ctx := testContext(t)
	tenant := NewTenant()
	entity(t, p, tenant, "a", "node")

	err := p.CreateRelation(ctx, tenant, graph.Relation{SrcID: "a", DstID: "ghost", RelType: "r"})
	expectErr(t, err, domain.ErrNotFound)
	err = p.CreateRelation(ctx, tenant, graph.Relation{SrcID: "ghost", DstID: "a", RelType: "r"})
	expectErr(t, err, domain.ErrNotFound)

	// The missing entity appearing later must not reveal a half-written relation.
	entity(t, p, tenant, "ghost", "node")
	if ns := neighbors(t, p, tenant, "a", graph.NeighborQuery{}); len(ns) != 0 {
		t.Fatalf("rejected relation was written: %v", hops(ns))
	}
}

func graphRelationUpsert(t *testing.T, p port.GraphPort) {
	ctx := testContext(t)
	tenant := NewTenant()
	entity(t, p, tenant, "a", "node")
	entity(t, p, tenant, "b", "node")

	mustOK(t, p.CreateRelation(ctx, tenant, graph.Relation{SrcID: "a", DstID: "b", RelType: "r", Props: value.Fields{"w": value.Int(1)}}))
	mustOK(t, p.CreateRelation(ctx, tenant, graph.Relation{SrcID: "a", DstID: "b", RelType: "r", Props: value.Fields{"w": value.Int(2)}}))

	ns := neighbors(t, p, tenant, "a", graph.NeighborQuery{})
	expectHops(t, ns, hop{"r", "out", "b"})
	rel := ns[0].Relation
	if rel.SrcID != "a" || rel.DstID != "b" || !rel.Props.Equal(value.Fields{"w": value.Int(2)}) {
		t.Errorf("relation not updated: %+v", rel)
	}
}

func graphNeighborsOrdering(t *testing.T, p port.GraphPort) {
	tenant := NewTenant()
	for _, id := range []string{"me", "x", "y", "z"} {
		entity(t, p, tenant, id, "node")
	}
	relate(t, p, tenant, "me", "z", "knows")
	relate(t, p, tenant, "y", "me", "knows")
	relate(t, p, tenant, "me", "x", "knows")
	relate(t, p, tenant, "x", "me", "blocks")
	relate(t, p, tenant, "me", "y", "works_with")

	ns := neighbors(t, p, tenant, "me", graph.NeighborQuery{})
	expectHops(t, ns,
		hop{"blocks", "in", "x"},
		hop{"knows", "out", "x"},
		hop{"knows", "out", "z"},
		hop{"knows", "in", "y"},
		hop{"works_with", "out", "y"},
	)

	in := ns[0].Relation
	if in.SrcID != "x" || in.DstID != "me" {
		t.Errorf("incoming relation endpoints not preserved: %+v", in)
	}
}

func graphSelfLoop(t *testing.T, p port.GraphPort) {
	tenant := NewTenant()
	entity(t, p, tenant, "me", "node")
	relate(t, p, tenant, "me", "me", "likes")

	ns := neighbors(t, p, tenant, "me", graph.NeighborQuery{})
	expectHops(t, ns, hop{"likes", "out", "me"})
}

func graphNeighborsFilter(t *testing.T, p port.GraphPort) {
	tenant := NewTenant()
	for _, id := range []string{"me", "a", "b", "c"} {
		entity(t, p, tenant, id, "node")
	}
	relate(t, p, tenant, "me", "a", "knows")
	relate(t, p, tenant, "me", "b", "knows")
	relate(t, p, tenant, "c", "me", "knows")
	relate(t, p, tenant, "me", "c", "owns")

	ns := neighbors(t, p, tenant, "me", graph.NeighborQuery{RelType: "knows"})
	expectHops(t, ns, hop{"knows", "out", "a"}, hop{"knows", "out", "b"}, hop{"knows", "in", "c"})

	ns = neighbors(t, p, tenant, "me", graph.NeighborQuery{Limit: 2})
	expectHops(t, ns, hop{"knows", "out", "a"}, hop{"knows", "out", "b"})
}

func graphNeighborsMissing(t *testing.T, p port.GraphPort) {
	if ns := neighbors(t, p, NewTenant(), "ghost", graph.NeighborQuery{}); len(ns) != 0 {
		t.Fatalf("expected no neighbors, got %v", hops(ns))
	}
}

func graphDeleteEntity(t *testing.T, p port.GraphPort) {
	ctx := testContext(t)
	tenant := NewTenant()
	for _, id := range []string{"a", "b", "c"} {
		entity(t, p, tenant, id, "node")
	}
	relate(t, p, tenant, "a", "b", "r")
	relate(t, p, tenant, "c", "b", "r")
	relate(t, p, tenant, "b", "b", "self")

	deleted, err := p.DeleteEntity(ctx, tenant, "b")
	mustOK(t, err)
	if !deleted {
		t.Fatal("expected entity to be deleted")
	}
	deleted, err = p.DeleteEntity(ctx, tenant, "b")
	mustOK(t, err)
	if deleted {
		t.Fatal("second delete must report false")
	}

	if ns := neighbors(t, p, tenant, "a", graph.NeighborQuery{}); len(ns) != 0 {
		t.Fatalf("relations survived entity delete: %v", hops(ns))
	}
	if ns := neighbors(t, p, tenant, "c", graph.NeighborQuery{}); len(ns) != 0 {
		t.Fatalf("relations survived entity delete: %v", hops(ns))
	}

	// Recreating the entity must not resurrect old relations.
	entity(t, p, tenant, "b", "node")
	if ns := neighbors(t, p, tenant, "b", graph.NeighborQuery{}); len(ns) != 0 {
		t.Fatalf("recreated entity has stale relations: %v", hops(ns))
	}
}

func graphDeleteRelation(t *testing.T, p port.GraphPort) {
	ctx := testContext(t)
	tenant := NewTenant()
	entity(t, p, tenant, "a", "node")
	entity(t, p, tenant, "b", "node")
	relate(t, p, tenant, "a", "b", "r")
	relate(t, p, tenant, "a", "b", "s")

	deleted, err := p.DeleteRelation(ctx, tenant, "a", "b", "r")
	mustOK(t, err)
	if !deleted {
		t.Fatal("expected relation to be deleted")
	}
	deleted, err = p.DeleteRelation(ctx, tenant, "b", "a", "s")
	mustOK(t, err)
	if deleted {
		t.Fatal("reverse direction is a different relation")
	}

	expectHops(t, neighbors(t, p, tenant, "a", graph.NeighborQuery{}), hop{"s", "out", "b"})
}

func graphTenantIsolation(t *testing.T, p port.GraphPort) {
	ctx := testContext(t)
	a, b := NewTenant(), NewTenant()
	entity(t, p, a, "x", "node")
	entity(t, p, a, "y", "node")
	entity(t, p, b, "x", "node")

	err := p.CreateRelation(ctx, b, graph.Relation{SrcID: "x", DstID: "y", RelType: "r"})
	expectErr(t, err, domain.ErrNotFound)

	relate(t, p, a, "x", "y", "r")
	if ns := neighbors(t, p, b, "x", graph.NeighborQuery{}); len(ns) != 0 {
		t.Fatalf("tenant b sees tenant a relations: %v", hops(ns))
	}

	deleted, err := p.DeleteEntity(ctx, b, "y")
	mustOK(t, err)
	if deleted {
		t.Fatal("tenant b deleted tenant a entity")
	}
}
