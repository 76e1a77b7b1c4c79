// Package redisstore provides a Redis implementation of triage.Store.
// Evaluations are stored as JSON under a key prefix with an optional TTL.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/vitaltriage/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/vitaltriage/internal/triage/redisstore")

// KeyPrefix is prepended to every evaluation ID.
const KeyPrefix = "vitaltriage:evaluation:"

// Store persists evaluations in Redis.
type Store struct {
	c   *redis.Client
	ttl time.Duration
}

// New returns a Store on c. A zero ttl keeps evaluations until evicted.
func New(c *redis.Client, ttl time.Duration) *Store {
	return &Store{c: c, ttl: ttl}
}

// Dial parses a redis:// URL, opens a client and pings it.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return c, nil
}

// Get retrieves an evaluation by ID.
func (s *Store) Get(ctx context.Context, id string) (*triage.Evaluation, bool, error) {
	ctx, span := tracer.Start(ctx, "redisstore.Get", trace.WithAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation.name", "GET"),
	))
	defer span.End()

	b, err := s.c.Get(ctx, KeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("get evaluation: %w", err)
	}

	var ev triage.Evaluation
	if err := json.Unmarshal(b, &ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("decode evaluation %s: %w", id, err)
	}
	return &ev, true, nil
}

// Put writes an evaluation, replacing any previous value and resetting its TTL.
func (s *Store) Put(ctx context.Context, ev *triage.Evaluation) error {
	ctx, span := tracer.Start(ctx, "redisstore.Put", trace.WithAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation.name", "SET"),
	))
	defer span.End()

	b, err := json.Marshal(ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("encode evaluation: %w", err)
	}
	if err := s.c.Set(ctx, KeyPrefix+ev.ID, b, s.ttl).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("set evaluation: %w", err)
	}
	return nil
}
