// internal/triage/engine.go
package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/vitaltriage/internal/features"
)

var tracer = otel.Tracer("github.com/linnemanlabs/vitaltriage/internal/triage")

// EngineHooks receives per-evaluation telemetry. Any nil hook is skipped.
type EngineHooks struct {
	OnEncodeError func(kind string)
	OnScore       func(model string, p Prediction, duration float64, err error)
	OnComplete    func(e *CompleteEvent)
}

// CompleteEvent summarizes one finished evaluation.
type CompleteEvent struct {
	Outcome      string // "ok" or an error kind
	Duration     float64
	Disagreement bool
	Highest      Category
}

// RunResult is the full outcome of Engine.Run.
type RunResult struct {
	Vector      features.Vector
	Predictions Predictions
	Duration    float64
}

// Engine encodes a record once and classifies the vector with every
// configured model. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	schema     *features.Schema
	models     []Model
	thresholds Thresholds
	logger     log.Logger
	hooks      EngineHooks
}

// NewEngine validates its configuration and returns a ready Engine.
func NewEngine(schema *features.Schema, models []Model, thresholds Thresholds, logger log.Logger, hooks EngineHooks) (*Engine, error) {
	if schema == nil {
		return nil, errors.New("feature schema is required")
	}
	if len(models) == 0 {
		return nil, errors.New("at least one scoring model is required")
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(models))
	for _, m := range models {
		if m.Name == "" {
			return nil, errors.New("scoring model name is required")
		}
		if m.Scorer == nil {
			return nil, fmt.Errorf("model %s: scorer is nil", m.Name)
		}
		if _, dup := seen[m.Name]; dup {
			return nil, fmt.Errorf("duplicate model name %q", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	if logger == nil {
		logger = log.Nop()
	}

	return &Engine{
		schema:     schema,
		models:     append([]Model(nil), models...),
		thresholds: thresholds,
		logger:     logger,
		hooks:      hooks,
	}, nil
}

// Schema returns the feature schema shared by every model.
func (e *Engine) Schema() *features.Schema { return e.schema }

// Thresholds returns the decision thresholds.
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// ModelNames returns model names in configuration order.
func (e *Engine) ModelNames() []string {
	names := make([]string, len(e.models))
	for i, m := range e.models {
		names[i] = m.Name
	}
	return names
}

// Evaluate returns one prediction per configured model.
func (e *Engine) Evaluate(ctx context.Context, r *features.PatientRecord) (Predictions, error) {
	rr, err := e.Run(ctx, r)
	if err != nil {
		return nil, err
	}
	return rr.Predictions, nil
}

// Run encodes r and scores it with every model. Models are never combined;
// the first scoring failure aborts the run.
func (e *Engine) Run(ctx context.Context, r *features.PatientRecord) (*RunResult, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "triage.Run", trace.WithAttributes(
		attribute.String("vitaltriage.schema.version", e.schema.Version()),
		attribute.Int("vitaltriage.models", len(e.models)),
	))
	defer span.End()

	v, err := e.schema.Encode(r)
	if err != nil {
		kind := ErrorKind(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		if e.hooks.OnEncodeError != nil {
			e.hooks.OnEncodeError(kind)
		}
		e.complete(kind, start, nil)
		return nil, err
	}

	preds := make(Predictions, len(e.models))
	for _, m := range e.models {
		scoreStart := time.Now()
		p, err := Classify(v, m, e.thresholds)
		if e.hooks.OnScore != nil {
			e.hooks.OnScore(m.Name, p, time.Since(scoreStart).Seconds(), err)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scoring failed")
			e.logger.Error(ctx, err, "model scoring failed", "model", m.Name)
			e.complete(ErrorKind(err), start, nil)
			return nil, err
		}
		preds[m.Name] = p
		span.SetAttributes(
			attribute.Float64("vitaltriage."+m.Name+".probability", p.Probability),
			attribute.String("vitaltriage."+m.Name+".category", string(p.Category)),
		)
	}
	span.SetAttributes(attribute.Bool("vitaltriage.disagreement", preds.Disagree()))

	fields := make([]any, 0, 2*len(e.models)+2)
	for _, m := range e.models {
		fields = append(fields, m.Name+"_probability", preds[m.Name].Probability)
	}
	fields = append(fields, "highest", preds.Highest())
	e.logger.Info(ctx, "triage scored", fields...)

	if preds.Disagree() {
		e.logger.Warn(ctx, "triage models disagree", disagreementFields(preds)...)
	}

	e.complete("ok", start, preds)

	return &RunResult{
		Vector:      v,
		Predictions: preds,
		Duration:    time.Since(start).Seconds(),
	}, nil
}

func (e *Engine) complete(outcome string, start time.Time, preds Predictions) {
	if e.hooks.OnComplete == nil {
		return
	}
	ev := &CompleteEvent{
		Outcome:  outcome,
		Duration: time.Since(start).Seconds(),
	}
	if preds != nil {
		ev.Disagreement = preds.Disagree()
		ev.Highest = preds.Highest()
	}
	e.hooks.OnComplete(ev)
}

func disagreementFields(p Predictions) []any {
	fields := make([]any, 0, 2*len(p))
	for _, name := range p.Models() {
		fields = append(fields, name, string(p[name].Category))
	}
	return fields
}
