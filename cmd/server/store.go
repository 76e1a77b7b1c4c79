package main

import (
	"context"
	"fmt"

	"github.com/linnemanlabs/go-core/log"

	vc "github.com/linnemanlabs/vitaltriage/internal/cfg"
	"github.com/linnemanlabs/vitaltriage/internal/postgres"
	"github.com/linnemanlabs/vitaltriage/internal/triage"
	"github.com/linnemanlabs/vitaltriage/internal/triage/memstore"
	"github.com/linnemanlabs/vitaltriage/internal/triage/pgstore"
	"github.com/linnemanlabs/vitaltriage/internal/triage/redisstore"
)

// openStore picks the evaluation store from config: postgres, redis, or
// in-memory when neither URL is set. The returned func releases it.
func openStore(ctx context.Context, c *vc.Config, L log.Logger) (triage.Store, func(), error) {
	switch {
	case c.DatabaseURL != "":
		pool, err := postgres.NewPool(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres pool: %w", err)
		}
		s, err := pgstore.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("pgstore init: %w", err)
		}
		L.Info(ctx, "using postgres store")
		return s, pool.Close, nil

	case c.RedisURL != "":
		client, err := redisstore.Dial(ctx, c.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		L.Info(ctx, "using redis store", "ttl", c.EvaluationTTL.String())
		return redisstore.New(client, c.EvaluationTTL), func() { _ = client.Close() }, nil

	default:
		L.Info(ctx, "using in-memory store (no database-url or redis-url configured)")
		return memstore.New(), func() {}, nil
	}
}
