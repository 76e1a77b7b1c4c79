// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/vitaltriage/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/vitaltriage/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists evaluations in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store. The caller owns
// the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const evaluationColumns = `id, fingerprint, schema_version, predictions, disagreement,
	highest_category, created_at, duration_s`

// Get retrieves an evaluation by ID.
func (s *Store) Get(ctx context.Context, id string) (*triage.Evaluation, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + evaluationColumns + ` FROM triage_evaluations WHERE id = $1`
	ev, err := scanEvaluation(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if ev == nil {
		return nil, false, nil
	}
	return ev, true, nil
}

// Put inserts or updates an evaluation.
func (s *Store) Put(ctx context.Context, ev *triage.Evaluation) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	predsJSON, err := json.Marshal(ev.Predictions)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("marshal predictions: %w", err)
	}

	query := `INSERT INTO triage_evaluations (` + evaluationColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (id) DO UPDATE SET
		fingerprint      = EXCLUDED.fingerprint,
		schema_version   = EXCLUDED.schema_version,
		predictions      = EXCLUDED.predictions,
		disagreement     = EXCLUDED.disagreement,
		highest_category = EXCLUDED.highest_category,
		duration_s       = EXCLUDED.duration_s`

	_, err = s.pool.Exec(ctx, query,
		ev.ID, ev.Fingerprint, ev.SchemaVersion, predsJSON, ev.Disagreement,
		string(ev.Highest), ev.CreatedAt, ev.Duration,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert evaluation: %w", err)
	}
	return nil
}

// scanEvaluation scans a single row. Returns (nil, nil) when no row is found.
func scanEvaluation(row pgx.Row) (*triage.Evaluation, error) {
	var (
		ev        triage.Evaluation
		predsJSON []byte
		highest   string
	)

	err := row.Scan(
		&ev.ID, &ev.Fingerprint, &ev.SchemaVersion, &predsJSON, &ev.Disagreement,
		&highest, &ev.CreatedAt, &ev.Duration,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	ev.Highest = triage.Category(highest)
	if err := json.Unmarshal(predsJSON, &ev.Predictions); err != nil {
		return nil, fmt.Errorf("unmarshal predictions: %w", err)
	}
	return &ev, nil
}
