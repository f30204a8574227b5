// Package db declares the key-value store facade used by the KV adapters.
package db

import (
	"context"
	"time"
)

// Store is the main key-value facade combining all sub-interfaces.
//
//nolint:interfacebloat // adapters depend on the narrow sub-interfaces
type Store interface {
	Pinger
	HashStore
	SortedSetStore
	ScriptRunner
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Del(ctx context.Context, keys ...string) error
}

// SortedSetStore provides sorted-set range reads.
type SortedSetStore interface {
	// ZRevRangeByScore returns up to count members with score in [min, max],
	// highest score first. Bounds use Redis syntax ("+inf", "(10").
	ZRevRangeByScore(ctx context.Context, key, max, min string, count int64) ([]string, error)
}

// ScriptRunner executes server-side scripts atomically.
type ScriptRunner interface {
	// EvalStrings runs script and returns its array reply as strings.
	EvalStrings(ctx context.Context, script *Script, keys, args []string) ([]string, error)
}

// Script is a Lua script executed atomically by the store.
type Script struct {
	Name   string
	Source string
}

// NewScript declares a named Lua script.
func NewScript(name, source string) *Script {
	return &Script{Name: name, Source: source}
}
