// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/asamblea/internal/adapters/importer"
	"github.com/okian/asamblea/internal/adapters/repository"
	service "github.com/okian/asamblea/internal/app"
	"github.com/okian/asamblea/internal/domain/model"
	"github.com/okian/asamblea/internal/domain/report"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	CreateAssembly(ctx context.Context, a model.Assembly) (model.Assembly, error)
	Assembly(ctx context.Context, id string) (model.Assembly, error)
	Assemblies(ctx context.Context) ([]model.Assembly, error)
	UpdateRoles(ctx context.Context, assemblyID, moderatorID, secretaryID string) (model.Assembly, error)

	// Submissions are applied asynchronously. ErrQueueFull signals backpressure.
	SubmitIncrement(ctx context.Context, id, assemblyID, gender, typ string) (bool, error)
	SubmitDecrement(ctx context.Context, id, assemblyID, gender, typ string) (bool, error)
	SubmitAttendance(ctx context.Context, rec model.Attendance) error
	SubmitAttendanceRemoval(ctx context.Context, assemblyID, personID string) error

	Stats(ctx context.Context, assemblyID string) (service.Report, error)
	Chart(ctx context.Context, assemblyID string) ([]report.ChartRow, error)
	ChartHTML(ctx context.Context, w io.Writer, assemblyID string) error
	PDFSections(ctx context.Context, assemblyID string) ([]report.DrawOp, error)

	UpsertPerson(ctx context.Context, p model.Person) error
	People(ctx context.Context) ([]model.Person, error)
	ImportPeople(ctx context.Context, r io.Reader) (importer.Result, error)

	ExportAssembliesCSV(ctx context.Context) (string, error)
	ExportPeopleCSV(ctx context.Context) (string, error)
}

var _ Dependencies = (*service.Service)(nil)

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler        *HealthHandler
	statsHandler         *StatsHandler
	assembliesHandler    *AssembliesHandler
	interventionsHandler *InterventionsHandler
	attendanceHandler    *AttendanceHandler
	peopleHandler        *PeopleHandler
	exportsHandler       *ExportsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:        NewHealthHandler(),
		statsHandler:         NewStatsHandler(statsProvider),
		assembliesHandler:    NewAssembliesHandler(deps),
		interventionsHandler: NewInterventionsHandler(deps),
		attendanceHandler:    NewAttendanceHandler(deps),
		peopleHandler:        NewPeopleHandler(deps),
		exportsHandler:       NewExportsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	a := s.assembliesHandler
	route("POST /assemblies", "assemblies", a.HandleCreate)
	route("GET /assemblies", "assemblies", a.HandleList)
	route("GET /assemblies/{id}", "assembly", a.HandleGet)
	route("PUT /assemblies/{id}/roles", "roles", a.HandleRoles)
	route("GET /assemblies/{id}/stats", "assembly_stats", a.HandleStats)
	route("GET /assemblies/{id}/chart", "chart", a.HandleChart)
	route("GET /assemblies/{id}/chart.html", "chart_html", a.HandleChartHTML)
	route("GET /assemblies/{id}/report", "report", a.HandleReport)

	route("POST /assemblies/{id}/interventions", "interventions", s.interventionsHandler.HandleIncrement)
	route("DELETE /assemblies/{id}/interventions", "interventions", s.interventionsHandler.HandleDecrement)

	route("PUT /assemblies/{id}/attendance/{person}", "attendance", s.attendanceHandler.HandleUpsert)
	route("DELETE /assemblies/{id}/attendance/{person}", "attendance", s.attendanceHandler.HandleDelete)

	route("POST /people", "people", s.peopleHandler.HandleUpsert)
	route("GET /people", "people", s.peopleHandler.HandleList)
	route("POST /people/import", "people_import", s.peopleHandler.HandleImport)

	route("GET /exports/assemblies.csv", "export_assemblies", s.exportsHandler.HandleAssemblies)
	route("GET /exports/people.csv", "export_people", s.exportsHandler.HandlePeople)
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

var accepted = ackResponse{Status: "accepted"}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail maps err onto a status and error code and writes it.
func fail(w http.ResponseWriter, op string, err error) {
	status, code, kind := classify(err)
	writeError(w, status, code, WrapKind(op, kind, err))
}

func classify(err error) (int, string, error) {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found", ErrNotFound
	case errors.Is(err, model.ErrRoleNotPresent), errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusConflict, "conflict", ErrConflict
	case errors.Is(err, service.ErrQueueFull), errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure", ErrBackpressure
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable", ErrUnavailable
	case isValidation(err):
		return http.StatusBadRequest, "bad_request", ErrBadRequest
	default:
		return http.StatusInternalServerError, "internal", ErrInternal
	}
}

func isValidation(err error) bool {
	for _, target := range []error{
		ErrBadRequest,
		repository.ErrInvalidInput,
		model.ErrUnknownGender,
		model.ErrUnknownType,
		model.ErrUnknownMode,
		model.ErrUnknownRole,
		model.ErrMissingField,
		importer.ErrEmptyFile,
		importer.ErrMissingColumn,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %w", ErrBadRequest, err)
	}
	return nil
}
