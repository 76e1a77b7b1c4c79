package triageapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	rec, err := decodeRecord(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload", Kind: "decode"})
		return
	}

	ev, err := a.svc.Submit(r.Context(), rec)
	if err != nil {
		a.writeTriageError(w, r, err)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("vitaltriage.evaluation.id", ev.ID),
		attribute.String("vitaltriage.evaluation.highest", string(ev.Highest)),
	)

	w.Header().Set("Location", "/api/v1/evaluations/"+ev.ID)
	writeJSON(w, http.StatusCreated, ev)
}

func (a *API) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("vitaltriage.evaluation.id", id))

	ev, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get evaluation", "id", id)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}

	span.SetAttributes(attribute.String("vitaltriage.evaluation.highest", string(ev.Highest)))
	writeJSON(w, http.StatusOK, ev)
}

type schemaResponse struct {
	Version        string              `json:"version"`
	Columns        []string            `json:"columns"`
	Symptoms       []string            `json:"symptoms"`
	MedicalHistory []string            `json:"medical_history"`
	Categories     map[string][]string `json:"categories"`
}

func (a *API) handleSchema(w http.ResponseWriter, _ *http.Request) {
	s := a.svc.Schema()
	writeJSON(w, http.StatusOK, schemaResponse{
		Version:        s.Version(),
		Columns:        s.Columns(),
		Symptoms:       s.Symptoms(),
		MedicalHistory: s.History(),
		Categories:     s.Categories(),
	})
}
