// Package triageapi exposes the triage service over HTTP.
package triageapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/vitaltriage/internal/features"
	"github.com/linnemanlabs/vitaltriage/internal/triage"
)

// TriageService defines the business operations triageapi needs.
type TriageService interface {
	Submit(ctx context.Context, r *features.PatientRecord) (*triage.Evaluation, error)
	Evaluate(ctx context.Context, r *features.PatientRecord) (triage.Predictions, error)
	Get(ctx context.Context, id string) (*triage.Evaluation, bool, error)
	Schema() *features.Schema
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    TriageService
	guard  []func(http.Handler) http.Handler
}

// Option configures an API.
type Option func(*API)

// WithMiddleware wraps the /api/v1 routes, typically with authentication.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(a *API) { a.guard = append(a.guard, mw...) }
}

// New creates a new API handler.
func New(logger log.Logger, svc TriageService, opts ...Option) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	a := &API{
		logger: logger,
		svc:    svc,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.guard...)
		r.Post("/evaluations", a.handleSubmit)
		r.Get("/evaluations/{id}", a.handleGetEvaluation)
		r.Get("/schema", a.handleSchema)
	})

	// unversioned, response shape kept for existing dashboard clients
	r.Post("/predict", a.handlePredict)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
	Model string `json:"model,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeTriageError maps a pipeline error to a status code. Input problems are
// the caller's fault and echo the reason; everything else is a 500.
func (a *API) writeTriageError(w http.ResponseWriter, r *http.Request, err error) {
	kind := triage.ErrorKind(err)
	resp := errorResponse{Error: err.Error(), Kind: kind}

	var (
		ve  *features.ValidationError
		uce *features.UnknownCategoryError
		se  *triage.ScoringError
	)
	switch {
	case errors.As(err, &ve):
		resp.Field = ve.Field
	case errors.As(err, &uce):
		resp.Field = uce.Field
	case errors.As(err, &se):
		resp.Model = se.Model
	}

	if triage.IsInputError(err) {
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	a.logger.Error(r.Context(), err, "triage evaluation failed", "kind", kind)
	if kind == triage.KindInternal {
		resp.Error = "internal error"
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

func decodeRecord(r *http.Request) (*features.PatientRecord, error) {
	var rec features.PatientRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
