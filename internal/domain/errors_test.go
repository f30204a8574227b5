package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNewEngineError_KeepsTaxonomy(t *testing.T) {
	nf := NewNotFound("collection", "docs")
	if got := NewEngineError("postgres", "query", nf, false); got != nf {
		t.Errorf("expected taxonomy error to pass through, got %v", got)
	}
	if NewEngineError("postgres", "query", nil, false) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestNewEngineError_DeadlineIsRetryable(t *testing.T) {
	err := NewEngineError("redis", "append", fmt.Errorf("eval: %w", context.DeadlineExceeded), false)
	if !errors.Is(err, ErrEngine) {
		t.Fatalf("expected ErrEngine, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected cause to stay reachable")
	}
	if !IsRetryable(err) {
		t.Error("expected deadline to be retryable")
	}
}

func TestNewEngineError_NonRetryable(t *testing.T) {
	err := NewEngineError("sqlite", "upsert", errors.New("disk I/O error"), false)
	if IsRetryable(err) {
		t.Error("expected non-retryable")
	}
	var ee *EngineError
	if !errors.As(err, &ee) || ee.Backend != "sqlite" || ee.Op != "upsert" {
		t.Errorf("unexpected engine error: %#v", err)
	}
}

func TestValidationError_Message(t *testing.T) {
	err := NewValidationError("items[0].embedding", "expected %d dimensions, got %d", 3, 2)
	if err.Error() != "items[0].embedding: expected 3 dimensions, got 2" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("expected ErrValidation")
	}
}

func TestParseTenant(t *testing.T) {
	if tn, err := ParseTenant("acme", 0); err != nil || tn != "acme" {
		t.Fatalf("unexpected result %q, %v", tn, err)
	}
	for _, raw := range []string{"", "a\nb", "toolong"} {
		if _, err := ParseTenant(raw, 5); !errors.Is(err, ErrValidation) {
			t.Errorf("ParseTenant(%q): expected validation error, got %v", raw, err)
		}
	}
}
