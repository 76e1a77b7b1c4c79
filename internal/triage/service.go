package triage

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/vitaltriage/internal/features"
)

// Service is the business boundary for triage operations.
type Service struct {
	store    Store
	engine   *Engine
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
	policy   NotifyPolicy
}

// NewService creates a new triage service. metrics and notifier may be nil.
func NewService(store Store, engine *Engine, logger log.Logger, metrics *Metrics, notifier Notifier, policy NotifyPolicy) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	if notifier == nil {
		policy = NotifyNone
	}
	return &Service{
		store:    store,
		engine:   engine,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
		policy:   policy,
	}
}

// Schema returns the feature schema the service scores against.
func (s *Service) Schema() *features.Schema { return s.engine.Schema() }

// Evaluate scores a record without persisting anything.
func (s *Service) Evaluate(ctx context.Context, r *features.PatientRecord) (Predictions, error) {
	return s.engine.Evaluate(ctx, r)
}

// Submit scores a record, persists the evaluation and dispatches a
// notification when the policy matches.
func (s *Service) Submit(ctx context.Context, r *features.PatientRecord) (*Evaluation, error) {
	rr, err := s.engine.Run(ctx, r)
	if err != nil {
		s.countSubmit(ErrorKind(err))
		return nil, err
	}

	ev := &Evaluation{
		ID:            ulid.Make().String(),
		Fingerprint:   rr.Vector.Fingerprint(),
		SchemaVersion: s.engine.Schema().Version(),
		Predictions:   rr.Predictions,
		Disagreement:  rr.Predictions.Disagree(),
		Highest:       rr.Predictions.Highest(),
		CreatedAt:     time.Now().UTC(),
		Duration:      rr.Duration,
	}

	if err := s.store.Put(ctx, ev); err != nil {
		s.countSubmit("store_error")
		return nil, err
	}
	s.countSubmit("stored")

	if s.policy.Matches(ev) {
		// copy so the caller's evaluation is never shared with the goroutine
		cp := *ev
		go s.notify(context.WithoutCancel(ctx), &cp)
	}

	return ev, nil
}

// Get retrieves an evaluation by ID.
func (s *Service) Get(ctx context.Context, id string) (*Evaluation, bool, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) notify(ctx context.Context, ev *Evaluation) {
	L := s.logger.With("evaluation_id", ev.ID, "highest", ev.Highest)

	err := s.notifier.Notify(ctx, ev)
	if s.metrics != nil {
		status := "sent"
		if err != nil {
			status = "error"
		}
		s.metrics.NotificationsTotal.WithLabelValues(status).Inc()
	}
	if err != nil {
		L.Error(ctx, err, "failed to send triage notification")
		return
	}
	L.Info(ctx, "triage notification sent")
}

func (s *Service) countSubmit(result string) {
	if s.metrics != nil {
		s.metrics.SubmitsTotal.WithLabelValues(result).Inc()
	}
}
