package api

import (
	"context"
	"net/http"
)

// ExportsHandler serves the CSV exports.
type ExportsHandler struct {
	deps Dependencies
}

// NewExportsHandler creates a new exports handler.
func NewExportsHandler(deps Dependencies) *ExportsHandler {
	return &ExportsHandler{deps: deps}
}

// HandleAssemblies handles GET /exports/assemblies.csv.
func (h *ExportsHandler) HandleAssemblies(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "api.export_assemblies", "assemblies.csv", h.deps.ExportAssembliesCSV)
}

// HandlePeople handles GET /exports/people.csv.
func (h *ExportsHandler) HandlePeople(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "api.export_people", "people.csv", h.deps.ExportPeopleCSV)
}

func (h *ExportsHandler) serve(w http.ResponseWriter, r *http.Request, op, filename string, build func(context.Context) (string, error)) {
	body, err := build(r.Context())
	if err != nil {
		fail(w, op, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
