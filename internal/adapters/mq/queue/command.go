package queue

import (
	"time"

	"github.com/okian/asamblea/internal/domain/model"
)

// CommandKind names the mutation a Command carries.
type CommandKind string

// Command kinds.
const (
	KindIncrement        CommandKind = "increment"
	KindDecrement        CommandKind = "decrement"
	KindAttendanceUpsert CommandKind = "attendance_upsert"
	KindAttendanceDelete CommandKind = "attendance_delete"
)

// Command is one accepted mutation waiting to be applied to the store.
// Commands for the same assembly are applied in the order they were enqueued.
type Command struct {
	ID         string                 `json:"id"` // submission id, used for retries
	Kind       CommandKind            `json:"kind"`
	AssemblyID string                 `json:"assembly_id"`
	Gender     model.Gender           `json:"gender,omitempty"`
	Type       model.InterventionType `json:"type,omitempty"`
	Attendance model.Attendance       `json:"attendance,omitempty"`
	EnqueuedAt time.Time              `json:"enqueued_at"`
}
