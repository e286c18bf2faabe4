package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/asamblea/internal/domain/model"
)

const dateLayout = "2006-01-02"

// AssembliesHandler serves assembly records and their reports.
type AssembliesHandler struct {
	deps Dependencies
}

// NewAssembliesHandler creates a new assemblies handler.
func NewAssembliesHandler(deps Dependencies) *AssembliesHandler {
	return &AssembliesHandler{deps: deps}
}

type registrarRequest struct {
	Name   string `json:"name"`
	Gender string `json:"gender"`
}

// assemblyRequest mirrors the body of POST /assemblies.
type assemblyRequest struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Date         string           `json:"date"`
	Type         string           `json:"type"`
	Description  string           `json:"description"`
	RegisteredBy registrarRequest `json:"registered_by"`
	StartTime    *time.Time       `json:"start_time"`
	EndTime      *time.Time       `json:"end_time"`
}

func (a assemblyRequest) toModel() (model.Assembly, error) {
	if strings.TrimSpace(a.Name) == "" {
		return model.Assembly{}, fmt.Errorf("%w: missing name", ErrBadRequest)
	}
	date, err := time.Parse(dateLayout, a.Date)
	if err != nil {
		return model.Assembly{}, fmt.Errorf("%w: invalid date; must be YYYY-MM-DD", ErrBadRequest)
	}
	var g model.Gender
	if a.RegisteredBy.Gender != "" {
		if g, err = model.ParseGender(a.RegisteredBy.Gender); err != nil {
			return model.Assembly{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
	}
	return model.Assembly{
		ID:           a.ID,
		Name:         a.Name,
		Date:         date,
		Kind:         a.Type,
		Description:  a.Description,
		RegisteredBy: model.Registrar{Name: a.RegisteredBy.Name, Gender: g},
		StartTime:    a.StartTime,
		EndTime:      a.EndTime,
	}, nil
}

type rolesRequest struct {
	ModeratorID string `json:"moderator_id"`
	SecretaryID string `json:"secretary_id"`
}

// HandleCreate handles POST /assemblies.
func (h *AssembliesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_assembly"
	var req assemblyRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, err)
		return
	}
	a, err := req.toModel()
	if err != nil {
		fail(w, op, err)
		return
	}
	created, err := h.deps.CreateAssembly(r.Context(), a)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleList handles GET /assemblies.
func (h *AssembliesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Assemblies(r.Context())
	if err != nil {
		fail(w, "api.list_assemblies", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGet handles GET /assemblies/{id}.
func (h *AssembliesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	a, err := h.deps.Assembly(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, "api.get_assembly", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleRoles handles PUT /assemblies/{id}/roles.
func (h *AssembliesHandler) HandleRoles(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_roles"
	var req rolesRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, err)
		return
	}
	a, err := h.deps.UpdateRoles(r.Context(), r.PathValue("id"), req.ModeratorID, req.SecretaryID)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleStats handles GET /assemblies/{id}/stats.
func (h *AssembliesHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	rep, err := h.deps.Stats(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, "api.assembly_stats", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// HandleChart handles GET /assemblies/{id}/chart.
func (h *AssembliesHandler) HandleChart(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Chart(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, "api.chart", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleChartHTML handles GET /assemblies/{id}/chart.html.
func (h *AssembliesHandler) HandleChartHTML(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.deps.ChartHTML(r.Context(), &buf, r.PathValue("id")); err != nil {
		fail(w, "api.chart_html", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// HandleReport handles GET /assemblies/{id}/report.
func (h *AssembliesHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	ops, err := h.deps.PDFSections(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, "api.report", err)
		return
	}
	writeJSON(w, http.StatusOK, ops)
}
