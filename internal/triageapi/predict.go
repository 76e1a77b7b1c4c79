package triageapi

import "net/http"

// handlePredict scores a record without storing it and answers with one
// "<model>_prediction" key per model.
func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	rec, err := decodeRecord(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload", Kind: "decode"})
		return
	}

	preds, err := a.svc.Evaluate(r.Context(), rec)
	if err != nil {
		a.writeTriageError(w, r, err)
		return
	}

	out := make(map[string]string, len(preds))
	for name, p := range preds {
		out[name+"_prediction"] = string(p.Category)
	}
	writeJSON(w, http.StatusOK, out)
}
