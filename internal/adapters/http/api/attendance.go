package api

import (
	"net/http"

	"github.com/okian/asamblea/internal/domain/model"
)

// AttendanceHandler records who attended an assembly.
type AttendanceHandler struct {
	deps Dependencies
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(deps Dependencies) *AttendanceHandler {
	return &AttendanceHandler{deps: deps}
}

// attendanceRequest mirrors the body of PUT /assemblies/{id}/attendance/{person}.
// Present defaults to true.
type attendanceRequest struct {
	Present *bool  `json:"present"`
	Mode    string `json:"mode"`
	Role    string `json:"role"`
}

// HandleUpsert handles PUT /assemblies/{id}/attendance/{person}.
func (h *AttendanceHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	const op = "api.attendance_upsert"
	var req attendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, err)
		return
	}
	present := true
	if req.Present != nil {
		present = *req.Present
	}
	err := h.deps.SubmitAttendance(r.Context(), model.Attendance{
		AssemblyID: r.PathValue("id"),
		PersonID:   r.PathValue("person"),
		Present:    present,
		Mode:       model.AttendanceMode(req.Mode),
		Role:       model.Role(req.Role),
	})
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

// HandleDelete handles DELETE /assemblies/{id}/attendance/{person}.
func (h *AttendanceHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.SubmitAttendanceRemoval(r.Context(), r.PathValue("id"), r.PathValue("person")); err != nil {
		fail(w, "api.attendance_delete", err)
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}
