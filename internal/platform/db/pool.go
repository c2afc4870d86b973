package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Pools holds the two connection pools the server runs with.
//
// App connects as a login role that may only SET ROLE authenticated, so every
// query it runs inside InUserScope is filtered by row-level security.
// Service connects as a role with BYPASSRLS. It backs the identity service and
// the elevated profile handle and must never be handed to domain repositories.
type Pools struct {
	App     *pgxpool.Pool
	Service *pgxpool.Pool
}

// OpenPools connects both pools. The service pool is capped at a quarter of
// maxConns since it only serves auth bookkeeping.
func OpenPools(ctx context.Context, appURL, serviceURL string, maxConns, minConns int32) (*Pools, error) {
	app, err := NewPool(ctx, appURL, maxConns, minConns)
	if err != nil {
		return nil, fmt.Errorf("app pool: %w", err)
	}

	serviceMax := maxConns / 4
	if serviceMax < 2 {
		serviceMax = 2
	}
	serviceMin := minConns
	if serviceMin > serviceMax {
		serviceMin = serviceMax
	}
	service, err := NewPool(ctx, serviceURL, serviceMax, serviceMin)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("service pool: %w", err)
	}

	return &Pools{App: app, Service: service}, nil
}

func (p *Pools) Close() {
	p.App.Close()
	p.Service.Close()
}
