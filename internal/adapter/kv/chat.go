package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/storaged/internal/db"
	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/chat"
	"github.com/kailas-cloud/storaged/internal/port"
)

var _ port.ChatPort = (*ChatStore)(nil)

// KEYS[1] head hash, KEYS[2] log sorted set. ARGV now (unix µs), payload.
// Timestamps stay below 2^53, so Lua numbers hold them exactly.
var appendScript = db.NewScript("chat_append", `
local head = redis.call('HMGET', KEYS[1], 'seq', 'ts')
local seq = tonumber(head[1] or '0') + 1
local ts = tonumber(ARGV[1])
if head[2] then
  local prev = tonumber(head[2])
  if ts <= prev then
    ts = prev + 1
  end
end
local seqs = string.format('%d', seq)
local tss = string.format('%d', ts)
redis.call('HSET', KEYS[1], 'seq', seqs, 'ts', tss)
redis.call('ZADD', KEYS[2], seqs, seqs .. ':' .. tss .. ':' .. ARGV[2])
return {seqs, tss}
`)

// storedMessage is the payload part of a log member "seq:ts:payload".
type storedMessage struct {
	Role    chat.Role `json:"r"`
	Content string    `json:"c"`
}

// ChatStore is a ChatPort on the key-value facade. Each thread is a head
// hash holding the last seq and ts, and a sorted set scored by seq.
type ChatStore struct {
	base
	now func() time.Time
}

// NewChatStore creates a new ChatStore. prefix namespaces every key.
func NewChatStore(store Store, prefix string) *ChatStore {
	return &ChatStore{base: base{store: store, prefix: prefix}, now: time.Now}
}

func (s *ChatStore) keys(tenant domain.Tenant, threadID string) (head, log string) {
	slot := s.slot("chat", tenant, threadID)
	return slot + ":head", slot + ":log"
}

func (s *ChatStore) Append(ctx context.Context, tenant domain.Tenant, threadID string, msg chat.NewMessage) (chat.Message, error) {
	payload, err := json.Marshal(storedMessage{Role: msg.Role, Content: msg.Content})
	if err != nil {
		return chat.Message{}, engineErr("append", err)
	}

	head, log := s.keys(tenant, threadID)
	now := chat.NextTimestamp(s.now(), time.Time{}).UnixMicro()
	reply, err := s.store.EvalStrings(ctx, appendScript, []string{head, log},
		[]string{strconv.FormatInt(now, 10), string(payload)})
	if err != nil {
		return chat.Message{}, engineErr("append", err)
	}
	if len(reply) != 2 {
		return chat.Message{}, engineErr("append", fmt.Errorf("malformed append reply %v", reply))
	}

	seq, err := strconv.ParseInt(reply[0], 10, 64)
	if err != nil {
		return chat.Message{}, engineErr("append", err)
	}
	ts, err := strconv.ParseInt(reply[1], 10, 64)
	if err != nil {
		return chat.Message{}, engineErr("append", err)
	}

	return chat.Message{
		ThreadID:  threadID,
		Seq:       seq,
		Role:      msg.Role,
		Content:   msg.Content,
		Timestamp: chat.UnixMicro(ts),
	}, nil
}

func (s *ChatStore) List(ctx context.Context, tenant domain.Tenant, threadID string, q chat.ListQuery) (chat.Page, error) {
	maxScore := "+inf"
	if q.Before > 0 {
		maxScore = "(" + strconv.FormatInt(q.Before, 10)
	}

	_, log := s.keys(tenant, threadID)
	members, err := s.store.ZRevRangeByScore(ctx, log, maxScore, "-inf", int64(q.Limit+1))
	if err != nil {
		return chat.Page{}, engineErr("list", err)
	}

	out := make([]chat.Message, 0, len(members))
	for _, member := range members {
		m, err := decodeMember(threadID, member)
		if err != nil {
			return chat.Page{}, engineErr("list", err)
		}
		out = append(out, m)
	}
	return chat.PageOf(out, q.Limit), nil
}

func decodeMember(threadID, member string) (chat.Message, error) {
	parts := strings.SplitN(member, ":", 3)
	if len(parts) != 3 {
		return chat.Message{}, fmt.Errorf("malformed log member")
	}
	seq, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return chat.Message{}, fmt.Errorf("malformed log seq: %w", err)
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return chat.Message{}, fmt.Errorf("malformed log ts: %w", err)
	}
	var sm storedMessage
	if err := json.Unmarshal([]byte(parts[2]), &sm); err != nil {
		return chat.Message{}, fmt.Errorf("malformed log payload: %w", err)
	}
	return chat.Message{
		ThreadID:  threadID,
		Seq:       seq,
		Role:      sm.Role,
		Content:   sm.Content,
		Timestamp: chat.UnixMicro(ts),
	}, nil
}
