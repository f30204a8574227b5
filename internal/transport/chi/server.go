// Package chi serves the versioned HTTP API on a chi router.
package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/chat"
	"github.com/kailas-cloud/storaged/internal/domain/graph"
	"github.com/kailas-cloud/storaged/internal/domain/vector"
	"github.com/kailas-cloud/storaged/internal/logger"
	"github.com/kailas-cloud/storaged/internal/port"
	"github.com/kailas-cloud/storaged/internal/tenant"
	healthuc "github.com/kailas-cloud/storaged/internal/usecase/health"
)

const defaultK = 10

// Limits bounds query parameters and bodies.
type Limits struct {
	DefaultListLimit int
	DefaultNeighbors int
	MaxBodyBytes     int64
}

// Server dispatches requests to the mounted ports. It depends on the port
// interfaces only.
type Server struct {
	vector  port.VectorPort
	chat    port.ChatPort
	graph   port.GraphPort
	health  *healthuc.Service
	tenants *tenant.Resolver
	limits  Limits
}

// NewServer creates an HTTP API server.
func NewServer(
	vectors port.VectorPort,
	chats port.ChatPort,
	graphs port.GraphPort,
	health *healthuc.Service,
	tenants *tenant.Resolver,
	limits Limits,
) *Server {
	if limits.DefaultListLimit <= 0 {
		limits.DefaultListLimit = 50
	}
	if limits.DefaultNeighbors <= 0 {
		limits.DefaultNeighbors = 100
	}
	if limits.MaxBodyBytes <= 0 {
		limits.MaxBodyBytes = 8 << 20
	}
	return &Server{
		vector:  vectors,
		chat:    chats,
		graph:   graphs,
		health:  health,
		tenants: tenants,
		limits:  limits,
	}
}

// tenantHandler receives the resolved tenant as an explicit argument.
type tenantHandler func(w http.ResponseWriter, r *http.Request, tenant domain.Tenant)

func (s *Server) withTenant(h tenantHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := s.tenants.Resolve(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		h(w, r, t)
	}
}

// Healthz handles GET /healthz.
func (s *Server) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// Readyz handles GET /readyz.
func (s *Server) Readyz(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]readyCheck, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = readyCheck{Backend: v.Backend, Status: v.Status}
	}
	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, readyResponse{Status: string(report.Status), Checks: checks})
}

// EnsureCollection handles PUT /v1/vector/{collection}.
func (s *Server) EnsureCollection(w http.ResponseWriter, r *http.Request, t domain.Tenant) {
	var req ensureCollectionRequest
	if err := decodeJSON(w, r, s.limits.MaxBodyBytes, &req); err != nil {
		handleError(w, r, err)
		return
	}
	metric, err := vector.ParseMetric(req.Metric)
	if err != nil {
		handleError(w, r, err)
		return
	}
	c, err := vector.NewCollection(chi.URLParam(r, "collection"), req.Dim, metric)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.vector.EnsureCollection(r.Context(), t, c); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// DescribeCollection handles GET /v1/vector/{collection}.
func (s *Server) DescribeCollection(w http.ResponseWriter, r *http.Request, t domain.Tenant) {
	c, err := s.vector.DescribeCollection(r.Context(), t, chi.URLParam(r, "collection"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, collectionResponse{Name: c.Name, Dim: c.Dim, Metric: string(c.Metric)})
}

// Upsert handles POST /v1/vector/{collection}/upsert.
func (s *Server) Upsert(w http.ResponseWriter, r *http.Request, t domain.Tenant) {
	var req upsertRequest
	if err := decodeJSON(w, r, s.limits.MaxBodyBytes, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.vector.Upsert(r.Context(), t, chi.URLParam(r, "collection"), req.toDomain()); err != nil {
		handleError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Debug("Vectors upserted", zap.Int("items", len(req.Items)))
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// Query handles POST /v1/vector/{collection}/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request, t domain.Tenant) {
	var req queryRequest
	if err := decodeJSON(w, r, s.limits.MaxBodyBytes, &req); err != nil {
		handleError(w, r, err)
		return
	}
	k := defaultK
	if req.K != nil {
		k = *req.K
	}
	matches, err := s.vector.Query(r.Context(), t, chi.URLParam(r, "collection"), req.Embedding, k)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponseFrom(matches))
}

// DeleteVectors handles DELETE /v1/vector/{collection}. Without ids the
// whole collection is dropped.
func (s *Server) DeleteVectors(w http.ResponseWriter, r *http.Request, t domain.Tenant) {
	var req deleteVectorsRequest
	if _, err := decodeOptionalJSON(w, r, s.limits.MaxBodyBytes, &req); err != nil {
		handleError(w, r, err)
		return
	}
	name := chi.URLParam(r, "collection")

	var err error
	if req.IDs == nil {
		err = s.vector.DropCollection(r.Context(), t, name)
	} else {
		err = s.vector.DeleteItems(r.Context(), t, name, *req.IDs)
	}
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// AppendMessage handles POST /v1/chat/{thread_id}/messages.
func (s *Server) AppendMessage(w http.ResponseWriter, r *http.Request, t domain.Tenant) {
	var req appendRequest
	if err := decodeJSON(w, r, s.limits.MaxBodyBytes, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if req.Message == nil {
		handleError(w, r, domain.NewValidationError("message", "is required"))
		return
	}
	if req.Message.Content == nil {
		handleError(w, r, domain.NewValidationError("message.content", "is required"))
		return
	}
	role, err := chat.ParseRole(req.Message.Role)
	if err != nil {
		handleError(w, r, err)
		return
	}

	msg, err := s.chat.Append(r.Context(), t, chi.URLParam(r, "thread_id"),
		chat.NewMessage{Role: role, Content: *req.Message.Content})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appendResponse{OK: true, Message: messageFrom(msg)})
}

// ListMessages handles GET /v1/chat/{thread_id}/messages.
func (s *Server) ListMessages(w http.ResponseWriter, r *http.Request, t domain.Tenant) {
	limit, err := queryInt(r, "limit", s.limits.DefaultListLimit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	before, err := queryInt(r, "before", 0)
	if err != nil {
		handleError(w, r, err)
		return
	}

	page, err := s.chat.List(r.Context(), t, chi.URLParam(r, "thread_id"),
		chat.ListQuery{Limit: limit, Before: int64(before)})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponseFrom(page))
}

// UpsertEntity handles POST /v1/graph/entities.
func (s *Server) UpsertEntity(w http.ResponseWriter, r *http.Request, t domain.Tenant) {
	var req entity
	if err := decodeJSON(w, r, s.limits.MaxBodyBytes, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.graph.UpsertEntity(r.Context(), t, req.toDomain()); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// CreateRelation handles POST /v1/graph/relations.
func (s *Server) CreateRelation(w http.ResponseWriter, r *http.Request, t domain.Tenant) {
	var req relation
	if err := decodeJSON(w, r, s.limits.MaxBodyBytes, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.graph.CreateRelation(r.Context(), t, req.toDomain()); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// Neighbors handles GET /v1/graph/neighbors/{id}.
func (s *Server) Neighbors(w http.ResponseWriter, r *http.Request, t domain.Tenant) {
	limit, err := queryInt(r, "limit", s.limits.DefaultNeighbors)
	if err != nil {
		handleError(w, r, err)
		return
	}
	q := graph.NeighborQuery{RelType: r.URL.Query().Get("rel_type"), Limit: limit}

	ns, err := s.graph.Neighbors(r.Context(), t, chi.URLParam(r, "id"), q)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, neighborsResponseFrom(ns))
}

// DeleteEntity handles DELETE /v1/graph/entities/{id}.
func (s *Server) DeleteEntity(w http.ResponseWriter, r *http.Request, t domain.Tenant) {
	ok, err := s.graph.DeleteEntity(r.Context(), t, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted(ok))
}

// DeleteRelation handles DELETE /v1/graph/relations.
func (s *Server) DeleteRelation(w http.ResponseWriter, r *http.Request, t domain.Tenant) {
	var req relationKey
	if err := decodeJSON(w, r, s.limits.MaxBodyBytes, &req); err != nil {
		handleError(w, r, err)
		return
	}
	ok, err := s.graph.DeleteRelation(r.Context(), t, req.SrcID, req.DstID, req.RelType)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted(ok))
}
