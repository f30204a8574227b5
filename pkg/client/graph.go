package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// GraphService operates on the tenant's graph.
type GraphService struct {
	c *Client
}

type deletedResponse struct {
	Deleted int `json:"deleted"`
}

// UpsertEntity creates or replaces an entity.
func (s *GraphService) UpsertEntity(ctx context.Context, e Entity) (err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("graph.upsert_entity", start, err) }()

	return s.c.do(ctx, http.MethodPost, "/v1/graph/entities", nil, e, nil)
}

// CreateRelation creates or updates a relation. Both endpoints must exist.
func (s *GraphService) CreateRelation(ctx context.Context, r Relation) (err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("graph.create_relation", start, err) }()

	return s.c.do(ctx, http.MethodPost, "/v1/graph/relations", nil, r, nil)
}

// Neighbors lists the entities adjacent to id.
func (s *GraphService) Neighbors(ctx context.Context, id string, opts NeighborOptions) (ns []Neighbor, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("graph.neighbors", start, err) }()

	q := url.Values{}
	if opts.RelType != "" {
		q.Set("rel_type", opts.RelType)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	var resp struct {
		Neighbors []Neighbor `json:"neighbors"`
	}
	if err = s.c.do(ctx, http.MethodGet, "/v1/graph/neighbors/"+id, q, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Neighbors == nil {
		return nil, errNoBody
	}
	return resp.Neighbors, nil
}

// DeleteEntity removes an entity and its relations. It reports whether
// the entity existed.
func (s *GraphService) DeleteEntity(ctx context.Context, id string) (ok bool, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("graph.delete_entity", start, err) }()

	var resp deletedResponse
	err = s.c.do(ctx, http.MethodDelete, "/v1/graph/entities/"+id, nil, nil, &resp)
	return resp.Deleted > 0, err
}

// DeleteRelation removes one relation. It reports whether it existed.
func (s *GraphService) DeleteRelation(ctx context.Context, src, dst, relType string) (ok bool, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("graph.delete_relation", start, err) }()

	body := struct {
		SrcID   string `json:"src_id"`
		DstID   string `json:"dst_id"`
		RelType string `json:"rel_type"`
	}{src, dst, relType}
	var resp deletedResponse
	err = s.c.do(ctx, http.MethodDelete, "/v1/graph/relations", nil, body, &resp)
	return resp.Deleted > 0, err
}
