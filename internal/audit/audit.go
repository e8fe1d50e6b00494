// Package audit keeps an optional Postgres trail of every token the engine
// posted, for after-the-fact reconciliation with the execution service.
package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Recorder receives one call per posted token. Implementations must be safe
// for concurrent use by several workers.
type Recorder interface {
	RecordPost(ctx context.Context, orderID, action, symbol string) error
}

// Nop is used when no audit DSN is configured.
type Nop struct{}

func (Nop) RecordPost(context.Context, string, string, string) error { return nil }

const schema = `
CREATE TABLE IF NOT EXISTS watcher_post_log (
	id        BIGSERIAL PRIMARY KEY,
	order_id  TEXT        NOT NULL,
	action    TEXT        NOT NULL,
	symbol    TEXT        NOT NULL,
	posted_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Pg records posted tokens into watcher_post_log.
type Pg struct {
	pool *pgxpool.Pool
}

func NewPg(ctx context.Context, dsn string) (*Pg, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "create audit pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping audit database")
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ensure audit schema")
	}
	return &Pg{pool: pool}, nil
}

func (p *Pg) RecordPost(ctx context.Context, orderID, action, symbol string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO watcher_post_log (order_id, action, symbol) VALUES ($1, $2, $3)`,
		orderID, action, symbol,
	)
	return errors.Wrap(err, "record posted order")
}

func (p *Pg) Close() {
	p.pool.Close()
}
