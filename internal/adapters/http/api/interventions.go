package api

import (
	"net/http"
)

// InterventionsHandler accepts intervention increments and decrements.
type InterventionsHandler struct {
	deps Dependencies
}

// NewInterventionsHandler creates a new interventions handler.
func NewInterventionsHandler(deps Dependencies) *InterventionsHandler {
	return &InterventionsHandler{deps: deps}
}

// interventionRequest mirrors the body of POST /assemblies/{id}/interventions.
// ID is the client's submission id; a retry with the same id is acknowledged
// as a duplicate.
type interventionRequest struct {
	ID     string `json:"id"`
	Gender string `json:"gender"`
	Type   string `json:"type"`
}

// HandleIncrement handles POST /assemblies/{id}/interventions.
func (h *InterventionsHandler) HandleIncrement(w http.ResponseWriter, r *http.Request) {
	const op = "api.increment"
	var req interventionRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, err)
		return
	}
	dup, err := h.deps.SubmitIncrement(r.Context(), req.ID, r.PathValue("id"), req.Gender, req.Type)
	if err != nil {
		fail(w, op, err)
		return
	}
	if dup {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

// HandleDecrement handles DELETE /assemblies/{id}/interventions?gender=&type=.
func (h *InterventionsHandler) HandleDecrement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dup, err := h.deps.SubmitDecrement(r.Context(), q.Get("id"), r.PathValue("id"), q.Get("gender"), q.Get("type"))
	if err != nil {
		fail(w, "api.decrement", err)
		return
	}
	if dup {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}
