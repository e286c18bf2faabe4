package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/okian/asamblea/internal/domain/model"
)

const maxImportBytes = 10 << 20

// PeopleHandler manages the person directory.
type PeopleHandler struct {
	deps Dependencies
}

// NewPeopleHandler creates a new people handler.
func NewPeopleHandler(deps Dependencies) *PeopleHandler {
	return &PeopleHandler{deps: deps}
}

type personRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Gender  string `json:"gender"`
}

// HandleUpsert handles POST /people.
func (h *PeopleHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	const op = "api.upsert_person"
	var req personRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, err)
		return
	}
	g, err := model.ParseGender(req.Gender)
	if err != nil {
		fail(w, op, err)
		return
	}
	p := model.Person{ID: req.ID, Name: req.Name, Surname: req.Surname, Gender: g}
	if err := h.deps.UpsertPerson(r.Context(), p); err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleList handles GET /people.
func (h *PeopleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	people, err := h.deps.People(r.Context())
	if err != nil {
		fail(w, "api.list_people", err)
		return
	}
	writeJSON(w, http.StatusOK, people)
}

// HandleImport handles POST /people/import. The CSV is read from the "file"
// field of a multipart form, or from the raw body otherwise.
func (h *PeopleHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	const op = "api.import_people"
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, _, err := r.FormFile("file")
		if err != nil {
			fail(w, op, fmt.Errorf("%w: %w", ErrBadRequest, err))
			return
		}
		defer f.Close()
		src = f
	}

	res, err := h.deps.ImportPeople(r.Context(), src)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
