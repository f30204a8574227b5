package tenant

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kailas-cloud/storaged/internal/domain"
)

func TestResolve(t *testing.T) {
	r := NewResolver("x-tenant-id", "public", 16)

	tests := []struct {
		name    string
		header  string
		want    domain.Tenant
		wantErr bool
	}{
		{"absent", "", "public", false},
		{"blank", "   ", "public", false},
		{"present", "acme", "acme", false},
		{"trimmed", " acme ", "acme", false},
		{"too long", strings.Repeat("a", 17), "", true},
		{"control char", "ac\tme", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.header != "" {
				req.Header.Set("X-Tenant-Id", tt.header)
			}
			got, err := r.Resolve(req)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestResolve_IgnoresBody(t *testing.T) {
	r := NewResolver("", "", 0)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"tenant":"acme"}`))

	got, err := r.Resolve(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.DefaultTenant {
		t.Errorf("expected default tenant, got %q", got)
	}
}

func TestNewResolver_Defaults(t *testing.T) {
	r := NewResolver("", "", 0)
	if r.Header() != DefaultHeader {
		t.Errorf("expected header %q, got %q", DefaultHeader, r.Header())
	}
}
