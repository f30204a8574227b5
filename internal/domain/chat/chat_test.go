package chat

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/storaged/internal/domain"
)

func TestParseRole(t *testing.T) {
	for _, r := range []string{"user", "assistant", "system"} {
		if _, err := ParseRole(r); err != nil {
			t.Errorf("ParseRole(%q): unexpected error %v", r, err)
		}
	}
	_, err := ParseRole("tool")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != "message.role" {
		t.Errorf("field = %q, want message.role", ve.Field)
	}
}

func TestNewMessage_Validate(t *testing.T) {
	if err := (NewMessage{Role: RoleUser, Content: ""}).Validate(); err != nil {
		t.Errorf("empty content should be allowed: %v", err)
	}
	big := NewMessage{Role: RoleUser, Content: strings.Repeat("x", MaxContentBytes+1)}
	if err := big.Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestListQuery_Validate(t *testing.T) {
	if err := (ListQuery{Limit: 50}).Validate(500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, q := range []ListQuery{{Limit: 0}, {Limit: 501}, {Limit: 10, Before: -1}} {
		if err := q.Validate(500); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%+v: expected validation error, got %v", q, err)
		}
	}
}

func TestPageOf(t *testing.T) {
	rows := []Message{{Seq: 5}, {Seq: 4}, {Seq: 3}}

	p := PageOf(rows, 2)
	if len(p.Messages) != 2 || p.NextCursor != 4 {
		t.Errorf("expected 2 messages with cursor 4, got %d / %d", len(p.Messages), p.NextCursor)
	}

	p = PageOf(rows, 3)
	if len(p.Messages) != 3 || p.NextCursor != 0 {
		t.Errorf("expected full page without cursor, got %d / %d", len(p.Messages), p.NextCursor)
	}

	p = PageOf(nil, 3)
	if p.Messages == nil {
		t.Error("expected non-nil empty slice")
	}
}

func TestNextTimestamp(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if got := NextTimestamp(base, time.Time{}); !got.Equal(base) {
		t.Errorf("first message: got %v, want %v", got, base)
	}

	if got := NextTimestamp(base, base); !got.Equal(base.Add(time.Microsecond)) {
		t.Errorf("same clock: got %v", got)
	}

	later := base.Add(time.Second)
	if got := NextTimestamp(base, later); !got.Equal(later.Add(time.Microsecond)) {
		t.Errorf("clock behind: got %v", got)
	}

	if got := NextTimestamp(base.Add(1500*time.Nanosecond), base); !got.Equal(base.Add(time.Microsecond)) {
		t.Errorf("truncation: got %v", got)
	}
}
