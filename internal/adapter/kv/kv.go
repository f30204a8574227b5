// Package kv implements the vector and chat ports on a Redis-compatible
// key-value store. Writes touching more than one key run as Lua scripts so
// they are atomic; vector ranking is a brute-force scan in Go.
package kv

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net"

	"github.com/kailas-cloud/storaged/internal/db"
	"github.com/kailas-cloud/storaged/internal/domain"
)

// Name identifies the key-value backend.
const Name = "redis"

// Store is the subset of the key-value facade the adapters need.
type Store interface {
	db.Pinger
	db.HashStore
	db.SortedSetStore
	db.ScriptRunner
}

type base struct {
	store  Store
	prefix string
}

func (b *base) Name() string { return Name }

func (b *base) Ping(ctx context.Context) error {
	return engineErr("ping", b.store.Ping(ctx))
}

// slot builds the hash-tagged part of a key. Tenant and name are encoded so
// neither can inject the separator, and the braces keep every key of one
// collection or thread on the same cluster slot.
func (b *base) slot(kind string, tenant domain.Tenant, name string) string {
	enc := base64.RawURLEncoding
	return b.prefix + kind + ":{" + enc.EncodeToString([]byte(tenant)) + ":" + enc.EncodeToString([]byte(name)) + "}"
}

func engineErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewEngineError(Name, op, err, retryable(err))
}

func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func asScriptError(err error, target **db.ScriptError) bool {
	return err != nil && errors.As(err, target)
}
