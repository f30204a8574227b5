package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/chat"
	"github.com/kailas-cloud/storaged/internal/port"
)

var _ port.ChatPort = (*ChatStore)(nil)

// ChatStore is a ChatPort on SQLite. Timestamps are stored as Unix microseconds.
type ChatStore struct {
	Base
	now func() time.Time
}

// NewChatStore creates a new ChatStore.
func NewChatStore(db *sql.DB) *ChatStore {
	return &ChatStore{Base: Base{DB: db}, now: time.Now}
}

func (s *ChatStore) Append(ctx context.Context, tenant domain.Tenant, threadID string, msg chat.NewMessage) (chat.Message, error) {
	m := chat.Message{ThreadID: threadID, Role: msg.Role, Content: msg.Content}
	now := chat.NextTimestamp(s.now(), time.Time{}).UnixMicro()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var ts int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO chat_threads (tenant, thread_id, last_seq, last_ts)
			VALUES (?1, ?2, 1, ?3)
			ON CONFLICT (tenant, thread_id) DO UPDATE
			SET last_seq = last_seq + 1, last_ts = max(?3, last_ts + 1)
			RETURNING last_seq, last_ts`,
			string(tenant), threadID, now).Scan(&m.Seq, &ts)
		if err != nil {
			return err
		}
		m.Timestamp = chat.UnixMicro(ts)

		_, err = tx.ExecContext(ctx,
			`INSERT INTO chat_messages (tenant, thread_id, seq, role, content, ts)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(tenant), threadID, m.Seq, string(m.Role), m.Content, ts)
		return err
	})
	if err != nil {
		return chat.Message{}, engineErr("append", err)
	}
	return m, nil
}

func (s *ChatStore) List(ctx context.Context, tenant domain.Tenant, threadID string, q chat.ListQuery) (chat.Page, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT seq, role, content, ts FROM chat_messages
		WHERE tenant = ?1 AND thread_id = ?2 AND (?3 = 0 OR seq < ?3)
		ORDER BY seq DESC
		LIMIT ?4`,
		string(tenant), threadID, q.Before, q.Limit+1)
	if err != nil {
		return chat.Page{}, engineErr("list", err)
	}
	defer rows.Close()

	out := make([]chat.Message, 0, q.Limit+1)
	for rows.Next() {
		var (
			m    = chat.Message{ThreadID: threadID}
			role string
			ts   int64
		)
		if err := rows.Scan(&m.Seq, &role, &m.Content, &ts); err != nil {
			return chat.Page{}, engineErr("list", err)
		}
		m.Role = chat.Role(role)
		m.Timestamp = chat.UnixMicro(ts)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return chat.Page{}, engineErr("list", err)
	}
	return chat.PageOf(out, q.Limit), nil
}
