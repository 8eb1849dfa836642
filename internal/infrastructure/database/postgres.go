package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Postgres wraps the pgx pool backing the durable client registry
type Postgres struct {
	pool *pgxpool.Pool
	url  string
	log  *zap.Logger
}

// NewPostgres opens a pool for databaseURL and fails unless the server answers a ping
func NewPostgres(ctx context.Context, databaseURL string, log *zap.Logger) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("error creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	log.Debug("Connected to database",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database))

	return &Postgres{
		pool: pool,
		url:  databaseURL,
		log:  log,
	}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// Exec runs a statement and returns its command tag so callers can check affected rows
func (p *Postgres) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		p.log.Debug("Statement failed", zap.Error(err))
	}
	return tag, err
}

func (p *Postgres) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}

func (p *Postgres) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

// Ping backs the readiness check
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
