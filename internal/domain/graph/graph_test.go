package graph

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/storaged/internal/domain"
)

func TestEntity_Validate(t *testing.T) {
	if err := (Entity{ID: "e1", Type: "person"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Entity{ID: "", Type: "person"}).Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for empty id, got %v", err)
	}
	if err := (Entity{ID: "e1"}).Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for empty type, got %v", err)
	}
	if err := (Entity{ID: "e\x00", Type: "x"}).Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for control char, got %v", err)
	}
}

func TestRelation_Validate(t *testing.T) {
	if err := (Relation{SrcID: "a", DstID: "b", RelType: "knows"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := (Relation{SrcID: "a", DstID: "b"}).Validate()
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "rel_type" {
		t.Errorf("expected rel_type validation error, got %v", err)
	}
}

func TestNeighborQuery(t *testing.T) {
	q := NeighborQuery{Limit: 100}
	if err := q.Validate(1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Matches("anything") {
		t.Error("empty filter should match every type")
	}
	q.RelType = "knows"
	if q.Matches("likes") {
		t.Error("filter should reject other types")
	}
	if err := (NeighborQuery{Limit: 0}).Validate(1000); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestDirectionFor(t *testing.T) {
	if d := DirectionFor("a", Relation{SrcID: "a", DstID: "b"}); d != Out {
		t.Errorf("got %s, want out", d)
	}
	if d := DirectionFor("b", Relation{SrcID: "a", DstID: "b"}); d != In {
		t.Errorf("got %s, want in", d)
	}
	if d := DirectionFor("a", Relation{SrcID: "a", DstID: "a"}); d != Out {
		t.Errorf("self-loop: got %s, want out", d)
	}
}

func TestSortNeighbors(t *testing.T) {
	ns := []Neighbor{
		{Entity: Entity{ID: "c"}, Relation: Relation{RelType: "knows"}, Direction: In},
		{Entity: Entity{ID: "b"}, Relation: Relation{RelType: "knows"}, Direction: Out},
		{Entity: Entity{ID: "a"}, Relation: Relation{RelType: "likes"}, Direction: Out},
		{Entity: Entity{ID: "a"}, Relation: Relation{RelType: "knows"}, Direction: In},
	}
	got := SortNeighbors(ns, 3)
	want := []struct {
		id  string
		rel string
		dir Direction
	}{
		{"b", "knows", Out},
		{"a", "knows", In},
		{"c", "knows", In},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Entity.ID != w.id || got[i].Relation.RelType != w.rel || got[i].Direction != w.dir {
			t.Errorf("position %d: got %+v", i, got[i])
		}
	}
}
