// Package tenant derives the tenant of an inbound request.
package tenant

import (
	"net/http"
	"strings"

	"github.com/kailas-cloud/storaged/internal/domain"
)

// DefaultHeader carries the tenant identifier.
const DefaultHeader = "X-Tenant-Id"

// Resolver reads the tenant from a request header, falling back to a fixed
// default. Request bodies are never consulted.
type Resolver struct {
	header   string
	fallback domain.Tenant
	maxLen   int
}

// NewResolver builds a Resolver. Empty arguments take package defaults.
func NewResolver(header string, fallback domain.Tenant, maxLen int) *Resolver {
	if header == "" {
		header = DefaultHeader
	}
	if fallback == "" {
		fallback = domain.DefaultTenant
	}
	if maxLen <= 0 {
		maxLen = domain.MaxTenantLength
	}
	return &Resolver{header: http.CanonicalHeaderKey(header), fallback: fallback, maxLen: maxLen}
}

// Header returns the canonical header name.
func (r *Resolver) Header() string { return r.header }

// Resolve returns the request tenant. An absent or blank header yields the
// default; a present but invalid one is a validation error.
func (r *Resolver) Resolve(req *http.Request) (domain.Tenant, error) {
	raw := strings.TrimSpace(req.Header.Get(r.header))
	if raw == "" {
		return r.fallback, nil
	}
	return domain.ParseTenant(raw, r.maxLen)
}
