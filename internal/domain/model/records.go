// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Person is a member of the organisation whose attendance is tracked.
type Person struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Gender  Gender `json:"gender"`
}

// FullName joins name and surname.
func (p Person) FullName() string {
	return strings.TrimSpace(p.Name + " " + p.Surname)
}

// Intervention is one recorded speech event.
type Intervention struct {
	ID         string           `json:"id"`          // UUIDv7; lexical order follows creation order
	AssemblyID string           `json:"assembly_id"` // owning meeting
	Gender     Gender           `json:"gender"`
	Type       InterventionType `json:"type"`
	Timestamp  int64            `json:"timestamp"` // unix ms, non-decreasing per assembly
}

// Newer reports whether i was created after other. Equal timestamps fall back
// to id order.
func (i Intervention) Newer(other Intervention) bool {
	if i.Timestamp != other.Timestamp {
		return i.Timestamp > other.Timestamp
	}
	return i.ID > other.ID
}

// Attendance is one person's presence state for one assembly.
type Attendance struct {
	PersonID   string         `json:"socia_id"`
	AssemblyID string         `json:"assembly_id"`
	Present    bool           `json:"present"`
	Mode       AttendanceMode `json:"mode"`
	Role       Role           `json:"role"`
}

// Registrar identifies who recorded an assembly.
type Registrar struct {
	Name   string `json:"name"`
	Gender Gender `json:"gender"`
}

// Assembly is one meeting being observed.
type Assembly struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Date         time.Time  `json:"date"`
	Kind         string     `json:"type"`
	Description  string     `json:"description,omitempty"`
	RegisteredBy Registrar  `json:"registered_by"`
	ModeratorID  string     `json:"moderator_id,omitempty"`
	SecretaryID  string     `json:"secretary_id,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
}

// Validate checks the fields an assembly cannot be stored without.
func (a Assembly) Validate() error {
	switch {
	case strings.TrimSpace(a.ID) == "":
		return fmt.Errorf("%w: id", ErrMissingField)
	case strings.TrimSpace(a.Name) == "":
		return fmt.Errorf("%w: name", ErrMissingField)
	case a.Date.IsZero():
		return fmt.Errorf("%w: date", ErrMissingField)
	}
	return nil
}

// ValidateRoles checks that moderator and secretary, when set, are present attendees.
func (a Assembly) ValidateRoles(attendance []Attendance) error {
	present := make(map[string]bool, len(attendance))
	for _, rec := range attendance {
		if rec.AssemblyID == a.ID && rec.Present {
			present[rec.PersonID] = true
		}
	}
	if a.ModeratorID != "" && !present[a.ModeratorID] {
		return fmt.Errorf("%w: moderator %s", ErrRoleNotPresent, a.ModeratorID)
	}
	if a.SecretaryID != "" && !present[a.SecretaryID] {
		return fmt.Errorf("%w: secretary %s", ErrRoleNotPresent, a.SecretaryID)
	}
	return nil
}

// Snapshot is an immutable view of one assembly's records, fetched once and
// passed explicitly to the aggregation functions.
type Snapshot struct {
	Assembly      Assembly
	Interventions []Intervention
	Attendance    []Attendance
	People        map[string]Person
}
