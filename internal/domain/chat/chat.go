// Package chat defines append-only chat transcripts.
package chat

import (
	"time"

	"github.com/kailas-cloud/storaged/internal/domain"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MaxThreadIDLength bounds thread identifiers in bytes.
const MaxThreadIDLength = 256

// MaxContentBytes bounds message content.
const MaxContentBytes = 1 << 20

// TimestampResolution is the granularity of server-assigned timestamps.
// Consecutive messages in a thread differ by at least this much.
const TimestampResolution = time.Microsecond

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAssistant, RoleSystem:
		return Role(s), nil
	default:
		return "", domain.NewValidationError("message.role",
			"must be one of user, assistant, system; got %q", s)
	}
}

// NewMessage is a message submitted for append.
type NewMessage struct {
	Role    Role
	Content string
}

// Validate checks role and content size.
func (m NewMessage) Validate() error {
	if _, err := ParseRole(string(m.Role)); err != nil {
		return err
	}
	if len(m.Content) > MaxContentBytes {
		return domain.NewValidationError("message.content", "must be at most %d bytes", MaxContentBytes)
	}
	return nil
}

// Message is a stored, immutable message. Seq is 1-based and gap-free per
// thread; Timestamp strictly increases with Seq.
type Message struct {
	ThreadID  string
	Seq       int64
	Role      Role
	Content   string
	Timestamp time.Time
}

// ValidateThreadID checks a thread identifier.
func ValidateThreadID(id string) error {
	return domain.ValidateIdentifier("thread_id", id, MaxThreadIDLength)
}

// ListQuery selects a newest-first window of a thread.
// Before, when positive, restricts results to messages with Seq < Before.
type ListQuery struct {
	Limit  int
	Before int64
}

// Validate checks the query against the configured maximum.
func (q ListQuery) Validate(maxLimit int) error {
	if q.Limit < 1 || q.Limit > maxLimit {
		return domain.NewValidationError("limit", "must be between 1 and %d, got %d", maxLimit, q.Limit)
	}
	if q.Before < 0 {
		return domain.NewValidationError("before", "must not be negative")
	}
	return nil
}

// Page is one newest-first window. NextCursor is the Seq to pass as Before
// to fetch older messages, or 0 when none remain.
type Page struct {
	Messages   []Message
	NextCursor int64
}

// PageOf builds a page from up to limit+1 newest-first rows.
func PageOf(rows []Message, limit int) Page {
	p := Page{Messages: rows}
	if len(rows) > limit {
		p.Messages = rows[:limit]
		p.NextCursor = p.Messages[limit-1].Seq
	}
	if p.Messages == nil {
		p.Messages = []Message{}
	}
	return p
}

// NextTimestamp returns the timestamp for a message appended after prev:
// now truncated to TimestampResolution, bumped past prev when the clock
// has not advanced.
func NextTimestamp(now, prev time.Time) time.Time {
	ts := now.UTC().Truncate(TimestampResolution)
	if !prev.IsZero() && !ts.After(prev) {
		ts = prev.Add(TimestampResolution)
	}
	return ts
}

// UnixMicro converts a stored microsecond timestamp.
func UnixMicro(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
