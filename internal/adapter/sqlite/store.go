// Package sqlite implements the vector, chat and graph ports on an embedded
// SQLite database. Vector ranking is a brute-force scan in Go.
package sqlite

import (
	"context"
	"database/sql"
	"errors"

	sqlitedb "github.com/kailas-cloud/storaged/internal/db/sqlite"
	"github.com/kailas-cloud/storaged/internal/domain"
)

// Name identifies the sqlite backend.
const Name = "sqlite"

// Base holds the database handle shared by every sqlite store.
type Base struct {
	DB *sql.DB
}

func (b *Base) Name() string { return Name }

func (b *Base) Ping(ctx context.Context) error {
	return engineErr("ping", b.DB.PingContext(ctx))
}

// inTx runs fn in a transaction and commits when fn succeeds.
func (b *Base) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // best-effort rollback after commit.

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func engineErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewEngineError(Name, op, err, sqlitedb.IsBusy(err) || errors.Is(err, context.DeadlineExceeded))
}
