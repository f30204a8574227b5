package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/storaged/internal/adapter/porttest"
	"github.com/kailas-cloud/storaged/internal/domain/chat"
)

func TestVectorStore_Conformance(t *testing.T) {
	porttest.RunVector(t, NewVectorStore())
}

func TestChatStore_Conformance(t *testing.T) {
	porttest.RunChat(t, NewChatStore())
}

func TestGraphStore_Conformance(t *testing.T) {
	porttest.RunGraph(t, NewGraphStore())
}

func TestChatStore_FrozenClockStillIncreases(t *testing.T) {
	s := NewChatStore()
	frozen := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	ctx := context.Background()
	first, err := s.Append(ctx, "t", "th", chat.NewMessage{Role: chat.RoleUser})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.Append(ctx, "t", "th", chat.NewMessage{Role: chat.RoleUser})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !first.Timestamp.Equal(frozen) {
		t.Errorf("expected first timestamp %v, got %v", frozen, first.Timestamp)
	}
	if want := frozen.Add(time.Microsecond); !second.Timestamp.Equal(want) {
		t.Errorf("expected second timestamp %v, got %v", want, second.Timestamp)
	}
}
