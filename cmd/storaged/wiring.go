package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/storaged/internal/adapter/kv"
	"github.com/kailas-cloud/storaged/internal/adapter/memory"
	neo4jadapter "github.com/kailas-cloud/storaged/internal/adapter/neo4j"
	pgadapter "github.com/kailas-cloud/storaged/internal/adapter/postgres"
	qdrantadapter "github.com/kailas-cloud/storaged/internal/adapter/qdrant"
	sqliteadapter "github.com/kailas-cloud/storaged/internal/adapter/sqlite"
	"github.com/kailas-cloud/storaged/internal/config"
	pgdb "github.com/kailas-cloud/storaged/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/storaged/internal/db/redis"
	sqlitedb "github.com/kailas-cloud/storaged/internal/db/sqlite"
	"github.com/kailas-cloud/storaged/internal/port"
)

// engines holds one connection per engine referenced by the backend
// selection. Unreferenced engines stay nil and are never dialed.
type engines struct {
	pg     *pgdb.Pool
	redis  *dbRedis.Store
	sqlite *sql.DB
	neo4j  *neo4jadapter.GraphStore
	qdrant *qdrantadapter.VectorStore
}

// openEngines connects every referenced engine concurrently. Any failure
// aborts startup; connections already opened are closed.
func openEngines(ctx context.Context, cfg config.Config, logger *zap.Logger) (*engines, error) {
	e := &engines{}
	b := cfg.Backends
	ctx, cancel := context.WithTimeout(ctx, cfg.Engine.ReadinessTimeout())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	if b.Uses(config.BackendPostgres) {
		g.Go(func() error {
			pool, err := pgdb.NewPool(ctx, pgdb.Config{
				URL:              cfg.Postgres.URL,
				MaxConns:         cfg.Postgres.MaxConns,
				MinConns:         cfg.Postgres.MinConns,
				StatementTimeout: time.Duration(cfg.Postgres.StatementTimeoutSec) * time.Second,
			})
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			e.pg = pool
			if err := pgdb.Migrate(ctx, pool, logger); err != nil {
				return fmt.Errorf("postgres migrations: %w", err)
			}
			logger.Info("Connected to postgres")
			return nil
		})
	}

	if b.Uses(config.BackendRedis) {
		g.Go(func() error {
			store, err := dbRedis.NewStore(dbRedis.Config{
				Addrs:      cfg.Redis.Addrs,
				Username:   cfg.Redis.Username,
				Password:   cfg.Redis.Password,
				DB:         cfg.Redis.DB,
				Standalone: cfg.Redis.Standalone,
			})
			if err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			e.redis = store
			if err := store.WaitForReady(ctx, cfg.Engine.ReadinessTimeout()); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			logger.Info("Connected to redis", zap.Strings("addrs", cfg.Redis.Addrs))
			return nil
		})
	}

	if b.Uses(config.BackendSQLite) {
		g.Go(func() error {
			db, err := sqlitedb.Open(ctx, cfg.SQLite.Path, logger)
			if err != nil {
				return fmt.Errorf("sqlite: %w", err)
			}
			e.sqlite = db
			logger.Info("Opened sqlite", zap.String("path", cfg.SQLite.Path))
			return nil
		})
	}

	if b.Uses(config.BackendNeo4j) {
		g.Go(func() error {
			store, err := neo4jadapter.NewGraphStore(ctx, neo4jadapter.Config{
				URI:      cfg.Neo4j.URI,
				Username: cfg.Neo4j.Username,
				Password: cfg.Neo4j.Password,
				Database: cfg.Neo4j.Database,
			})
			if err != nil {
				return fmt.Errorf("neo4j: %w", err)
			}
			e.neo4j = store
			logger.Info("Connected to neo4j", zap.String("database", cfg.Neo4j.Database))
			return nil
		})
	}

	if b.Uses(config.BackendQdrant) {
		g.Go(func() error {
			store, err := qdrantadapter.NewVectorStore(ctx, qdrantadapter.Config{
				Host:   cfg.Qdrant.Host,
				Port:   cfg.Qdrant.Port,
				APIKey: cfg.Qdrant.APIKey,
				UseTLS: cfg.Qdrant.UseTLS,
			})
			if err != nil {
				return fmt.Errorf("qdrant: %w", err)
			}
			e.qdrant = store
			logger.Info("Connected to qdrant", zap.String("host", cfg.Qdrant.Host))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.Close(context.Background(), logger)
		return nil, err
	}
	return e, nil
}

// Close releases every open engine.
func (e *engines) Close(ctx context.Context, logger *zap.Logger) {
	if e.pg != nil {
		e.pg.Close()
	}
	if e.redis != nil {
		e.redis.Close()
	}
	if e.sqlite != nil {
		if err := e.sqlite.Close(); err != nil {
			logger.Warn("Closing sqlite", zap.Error(err))
		}
	}
	if e.neo4j != nil {
		if err := e.neo4j.Close(ctx); err != nil {
			logger.Warn("Closing neo4j", zap.Error(err))
		}
	}
	if e.qdrant != nil {
		if err := e.qdrant.Close(); err != nil {
			logger.Warn("Closing qdrant", zap.Error(err))
		}
	}
}

// ports mounts exactly one adapter per port.
type ports struct {
	vector port.VectorPort
	chat   port.ChatPort
	graph  port.GraphPort
}

func buildPorts(b config.BackendsConfig, redisPrefix string, e *engines) (ports, error) {
	var p ports

	switch b.Vector {
	case config.BackendMemory:
		p.vector = memory.NewVectorStore()
	case config.BackendPostgres:
		p.vector = pgadapter.NewVectorStore(e.pg)
	case config.BackendRedis:
		p.vector = kv.NewVectorStore(e.redis, redisPrefix)
	case config.BackendSQLite:
		p.vector = sqliteadapter.NewVectorStore(e.sqlite)
	case config.BackendQdrant:
		p.vector = e.qdrant
	default:
		return ports{}, fmt.Errorf("unsupported vector backend %q", b.Vector)
	}

	switch b.Chat {
	case config.BackendMemory:
		p.chat = memory.NewChatStore()
	case config.BackendPostgres:
		p.chat = pgadapter.NewChatStore(e.pg)
	case config.BackendRedis:
		p.chat = kv.NewChatStore(e.redis, redisPrefix)
	case config.BackendSQLite:
		p.chat = sqliteadapter.NewChatStore(e.sqlite)
	default:
		return ports{}, fmt.Errorf("unsupported chat backend %q", b.Chat)
	}

	switch b.Graph {
	case config.BackendMemory:
		p.graph = memory.NewGraphStore()
	case config.BackendPostgres:
		p.graph = pgadapter.NewGraphStore(e.pg)
	case config.BackendSQLite:
		p.graph = sqliteadapter.NewGraphStore(e.sqlite)
	case config.BackendNeo4j:
		p.graph = e.neo4j
	default:
		return ports{}, fmt.Errorf("unsupported graph backend %q", b.Graph)
	}

	return p, nil
}
