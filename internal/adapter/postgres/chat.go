package postgres

import (
	"context"
	"time"

	pgdb "github.com/kailas-cloud/storaged/internal/db/postgres"
	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/chat"
	"github.com/kailas-cloud/storaged/internal/port"
)

var _ port.ChatPort = (*ChatStore)(nil)

// ChatStore is a ChatPort on PostgreSQL. The chat_threads row is the
// per-thread counter; its row lock orders concurrent appends.
type ChatStore struct {
	Base
	now func() time.Time
}

// NewChatStore creates a new ChatStore.
func NewChatStore(pool *pgdb.Pool) *ChatStore {
	return &ChatStore{Base: Base{Pool: pool}, now: time.Now}
}

func (s *ChatStore) Append(ctx context.Context, tenant domain.Tenant, threadID string, msg chat.NewMessage) (chat.Message, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return chat.Message{}, engineErr("append", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	now := chat.NextTimestamp(s.now(), time.Time{})

	m := chat.Message{ThreadID: threadID, Role: msg.Role, Content: msg.Content}
	err = tx.QueryRow(ctx,
		`INSERT INTO chat_threads (tenant, thread_id, last_seq, last_ts)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (tenant, thread_id) DO UPDATE
		SET last_seq = chat_threads.last_seq + 1,
			last_ts = GREATEST($3, chat_threads.last_ts + interval '1 microsecond')
		RETURNING last_seq, last_ts`,
		string(tenant), threadID, now).Scan(&m.Seq, &m.Timestamp)
	if err != nil {
		return chat.Message{}, engineErr("append", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO chat_messages (tenant, thread_id, seq, role, content, ts)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(tenant), threadID, m.Seq, string(m.Role), m.Content, m.Timestamp)
	if err != nil {
		return chat.Message{}, engineErr("append", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return chat.Message{}, engineErr("append", err)
	}

	m.Timestamp = m.Timestamp.UTC()
	return m, nil
}

func (s *ChatStore) List(ctx context.Context, tenant domain.Tenant, threadID string, q chat.ListQuery) (chat.Page, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT seq, role, content, ts FROM chat_messages
		WHERE tenant = $1 AND thread_id = $2 AND ($3::bigint = 0 OR seq < $3)
		ORDER BY seq DESC
		LIMIT $4`,
		string(tenant), threadID, q.Before, q.Limit+1)
	if err != nil {
		return chat.Page{}, engineErr("list", err)
	}
	defer rows.Close()

	out := make([]chat.Message, 0, q.Limit+1)
	for rows.Next() {
		m := chat.Message{ThreadID: threadID}
		var role string
		if err := rows.Scan(&m.Seq, &role, &m.Content, &m.Timestamp); err != nil {
			return chat.Page{}, engineErr("list", err)
		}
		m.Role = chat.Role(role)
		m.Timestamp = m.Timestamp.UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return chat.Page{}, engineErr("list", err)
	}
	return chat.PageOf(out, q.Limit), nil
}
