// Package porttest holds conformance suites shared by every adapter.
// Each engine must pass the same cases so callers observe identical
// semantics regardless of which backend is mounted.
package porttest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/storaged/internal/domain"
)

const scoreTolerance = 1e-5

// NewTenant returns a tenant no other test uses, so suites can share one
// engine instance without cleanup.
func NewTenant() domain.Tenant {
	return domain.Tenant("t-" + uuid.NewString())
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func mustOK(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func expectErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= scoreTolerance
}
