package client

import (
	"context"
	"net/http"
	"time"
)

// VectorService operates on one collection.
type VectorService struct {
	c    *Client
	path string
}

// Ensure declares the collection. Re-declaring with the same shape is a
// no-op; a different shape is a conflict (see IsConflict).
func (s *VectorService) Ensure(ctx context.Context, dim int, metric Metric) (err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("vector.ensure", start, err) }()

	body := struct {
		Dim    int    `json:"dim"`
		Metric Metric `json:"metric"`
	}{dim, metric}
	return s.c.do(ctx, http.MethodPut, s.path, nil, body, nil)
}

// Describe returns the collection's shape.
func (s *VectorService) Describe(ctx context.Context) (col Collection, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("vector.describe", start, err) }()

	err = s.c.do(ctx, http.MethodGet, s.path, nil, nil, &col)
	return col, err
}

// Upsert inserts or replaces items. The batch is applied atomically.
func (s *VectorService) Upsert(ctx context.Context, items []Item) (err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("vector.upsert", start, err) }()

	body := struct {
		Items []Item `json:"items"`
	}{items}
	return s.c.do(ctx, http.MethodPost, s.path+"/upsert", nil, body, nil)
}

// Query returns up to k nearest items, best first. k <= 0 uses the server default.
func (s *VectorService) Query(ctx context.Context, embedding []float32, k int) (matches []Match, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("vector.query", start, err) }()

	body := struct {
		Embedding []float32 `json:"embedding"`
		K         *int      `json:"k,omitempty"`
	}{Embedding: embedding}
	if k > 0 {
		body.K = &k
	}
	var resp struct {
		Results []Match `json:"results"`
	}
	if err = s.c.do(ctx, http.MethodPost, s.path+"/query", nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return nil, errNoBody
	}
	return resp.Results, nil
}

// Delete removes the given items. An empty list is a no-op; use Drop to
// remove the whole collection.
func (s *VectorService) Delete(ctx context.Context, ids []string) (err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("vector.delete", start, err) }()

	if ids == nil {
		ids = []string{}
	}
	body := struct {
		IDs []string `json:"ids"`
	}{ids}
	return s.c.do(ctx, http.MethodDelete, s.path, nil, body, nil)
}

// Drop removes the collection and all its items.
func (s *VectorService) Drop(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("vector.drop", start, err) }()

	return s.c.do(ctx, http.MethodDelete, s.path, nil, nil, nil)
}
