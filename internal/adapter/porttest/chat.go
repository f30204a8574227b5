package porttest

import (
	"context"
	"sort"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/chat"
	"github.com/kailas-cloud/storaged/internal/port"
)

// RunChat runs the ChatPort conformance suite against p.
func RunChat(t *testing.T, p port.ChatPort) {
	t.Helper()

	t.Run("AppendAssignsSeqAndTimestamp", func(t *testing.T) { chatAppendSeq(t, p) })
	t.Run("ListNewestFirst", func(t *testing.T) { chatListNewestFirst(t, p) })
	t.Run("ListPaginates", func(t *testing.T) { chatListPaginates(t, p) })
	t.Run("ListUnknownThread", func(t *testing.T) { chatListUnknown(t, p) })
	t.Run("EmptyContent", func(t *testing.T) { chatEmptyContent(t, p) })
	t.Run("ConcurrentAppends", func(t *testing.T) { chatConcurrentAppends(t, p) })
	t.Run("TenantIsolation", func(t *testing.T) { chatTenantIsolation(t, p) })
}

func appendN(t *testing.T, p port.ChatPort, tenant domain.Tenant, thread string, n int) []chat.Message {
	t.Helper()
	ctx := testContext(t)
	out := make([]chat.Message, 0, n)
	for i := 0; i < n; i++ {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		m, err := p.Append(ctx, tenant, thread, chat.NewMessage{Role: role, Content: "m" + string(rune('a'+i))})
		mustOK(t, err)
		out = append(out, m)
	}
	return out
}

func seqs(ms []chat.Message) []int64 {
	out := make([]int64, len(ms))
	for i, m := range ms {
		out[i] = m.Seq
	}
	return out
}

func chatAppendSeq(t *testing.T, p port.ChatPort) {
	tenant := NewTenant()
	msgs := appendN(t, p, tenant, "th", 3)

	for i, m := range msgs {
		if m.Seq != int64(i+1) {
			t.Errorf("message %d: expected seq %d, got %d", i, i+1, m.Seq)
		}
		if m.ThreadID != "th" {
			t.Errorf("message %d: expected thread th, got %q", i, m.ThreadID)
		}
		if m.Timestamp.IsZero() {
			t.Errorf("message %d: timestamp not assigned", i)
		}
		if i > 0 && !m.Timestamp.After(msgs[i-1].Timestamp) {
			t.Errorf("message %d: timestamp %v not after %v", i, m.Timestamp, msgs[i-1].Timestamp)
		}
	}
	if msgs[1].Role != chat.RoleAssistant || msgs[0].Content != "ma" {
		t.Errorf("unexpected stored message: %+v", msgs[:2])
	}
}

func chatListNewestFirst(t *testing.T, p port.ChatPort) {
	tenant := NewTenant()
	appended := appendN(t, p, tenant, "th", 4)

	page, err := p.List(testContext(t), tenant, "th", chat.ListQuery{Limit: 10})
	mustOK(t, err)
	got := seqs(page.Messages)
	if len(got) != 4 || got[0] != 4 || got[3] != 1 {
		t.Fatalf("expected seqs 4..1, got %v", got)
	}
	if page.NextCursor != 0 {
		t.Errorf("expected no cursor, got %d", page.NextCursor)
	}
	for _, m := range page.Messages {
		want := appended[m.Seq-1]
		if m.Content != want.Content || m.Role != want.Role || !m.Timestamp.Equal(want.Timestamp) {
			t.Errorf("seq %d: listed %+v, appended %+v", m.Seq, m, want)
		}
	}
}

func chatListPaginates(t *testing.T, p port.ChatPort) {
	ctx := testContext(t)
	tenant := NewTenant()
	appendN(t, p, tenant, "th", 5)

	page, err := p.List(ctx, tenant, "th", chat.ListQuery{Limit: 2})
	mustOK(t, err)
	if got := seqs(page.Messages); len(got) != 2 || got[0] != 5 || got[1] != 4 {
		t.Fatalf("first page: %v", got)
	}
	if page.NextCursor != 4 {
		t.Fatalf("expected cursor 4, got %d", page.NextCursor)
	}

	page, err = p.List(ctx, tenant, "th", chat.ListQuery{Limit: 2, Before: page.NextCursor})
	mustOK(t, err)
	if got := seqs(page.Messages); len(got) != 2 || got[0] != 3 || got[1] != 2 {
		t.Fatalf("second page: %v", got)
	}

	page, err = p.List(ctx, tenant, "th", chat.ListQuery{Limit: 2, Before: page.NextCursor})
	mustOK(t, err)
	if got := seqs(page.Messages); len(got) != 1 || got[0] != 1 {
		t.Fatalf("last page: %v", got)
	}
	if page.NextCursor != 0 {
		t.Errorf("expected no cursor on last page, got %d", page.NextCursor)
	}
}

func chatListUnknown(t *testing.T, p port.ChatPort) {
	page, err := p.List(testContext(t), NewTenant(), "ghost", chat.ListQuery{Limit: 10})
	mustOK(t, err)
	if page.Messages == nil || len(page.Messages) != 0 {
		t.Fatalf("expected empty non-nil page, got %#v", page.Messages)
	}
}

func chatEmptyContent(t *testing.T, p port.ChatPort) {
	ctx := testContext(t)
	tenant := NewTenant()
	_, err := p.Append(ctx, tenant, "th", chat.NewMessage{Role: chat.RoleSystem, Content: ""})
	mustOK(t, err)

	page, err := p.List(ctx, tenant, "th", chat.ListQuery{Limit: 1})
	mustOK(t, err)
	if len(page.Messages) != 1 || page.Messages[0].Content != "" || page.Messages[0].Role != chat.RoleSystem {
		t.Fatalf("unexpected page: %+v", page.Messages)
	}
}

func chatConcurrentAppends(t *testing.T, p port.ChatPort) {
	const n = 20
	tenant := NewTenant()

	g, ctx := errgroup.WithContext(testContext(t))
	results := make([]chat.Message, n)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			m, err := p.Append(ctx, tenant, "th", chat.NewMessage{Role: chat.RoleUser, Content: "x"})
			results[i] = m
			return err
		})
	}
	mustOK(t, g.Wait())

	sort.Slice(results, func(i, j int) bool { return results[i].Seq < results[j].Seq })
	for i, m := range results {
		if m.Seq != int64(i+1) {
			t.Fatalf("expected gap-free seqs, got %v", seqs(results))
		}
		if i > 0 && !m.Timestamp.After(results[i-1].Timestamp) {
			t.Fatalf("seq %d timestamp %v not after seq %d timestamp %v",
				m.Seq, m.Timestamp, results[i-1].Seq, results[i-1].Timestamp)
		}
	}

	page, err := p.List(context.Background(), tenant, "th", chat.ListQuery{Limit: n})
	mustOK(t, err)
	if len(page.Messages) != n {
		t.Fatalf("expected %d listed messages, got %d", n, len(page.Messages))
	}
}

func chatTenantIsolation(t *testing.T, p port.ChatPort) {
	a, b := NewTenant(), NewTenant()
	appendN(t, p, a, "th", 3)
	msgs := appendN(t, p, b, "th", 1)
	if msgs[0].Seq != 1 {
		t.Fatalf("tenant b thread continued tenant a sequence: seq %d", msgs[0].Seq)
	}

	page, err := p.List(testContext(t), b, "th", chat.ListQuery{Limit: 10})
	mustOK(t, err)
	if len(page.Messages) != 1 {
		t.Fatalf("tenant b sees %d messages", len(page.Messages))
	}
}
