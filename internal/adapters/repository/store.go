// Package repository persists assemblies, people, interventions and
// attendance, and assembles the per-assembly snapshots the statistics are
// computed from.
package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/asamblea/internal/domain/model"
	"github.com/okian/asamblea/pkg/metrics"
)

// Store provides read/write access to participation records.
type Store interface {
	// CreateAssembly stores a new assembly. Returns ErrAlreadyExists for a reused id.
	CreateAssembly(ctx context.Context, a model.Assembly) error
	// GetAssembly returns ErrNotFound for an unknown id.
	GetAssembly(ctx context.Context, id string) (model.Assembly, error)
	// ListAssemblies returns assemblies ordered by date, then id.
	ListAssemblies(ctx context.Context) ([]model.Assembly, error)
	// UpdateAssemblyRoles sets moderator and secretary. Both must be present
	// attendees when non-empty.
	UpdateAssemblyRoles(ctx context.Context, id, moderatorID, secretaryID string) (model.Assembly, error)

	UpsertPerson(ctx context.Context, p model.Person) error
	// ListPeople returns the directory ordered by id.
	ListPeople(ctx context.Context) ([]model.Person, error)

	// AddIntervention stores in, assigning an id when empty and stamping a
	// timestamp strictly greater than any other in the same assembly.
	AddIntervention(ctx context.Context, in model.Intervention) (model.Intervention, error)
	// RemoveLatestIntervention deletes the newest record of the bucket.
	// An empty bucket is not an error; removed is false.
	RemoveLatestIntervention(ctx context.Context, assemblyID string, g model.Gender, t model.InterventionType) (removed bool, err error)
	// ListInterventions returns newest first.
	ListInterventions(ctx context.Context, assemblyID string) ([]model.Intervention, error)

	// UpsertAttendance creates or replaces the record for (person, assembly).
	// Marking a role holder absent clears the role.
	UpsertAttendance(ctx context.Context, rec model.Attendance) error
	// DeleteAttendance hard-deletes the record. Deleting a role holder clears the role.
	DeleteAttendance(ctx context.Context, assemblyID, personID string) (bool, error)
	// ListAttendance returns records ordered by person id.
	ListAttendance(ctx context.Context, assemblyID string) ([]model.Attendance, error)

	// Snapshot reads everything the statistics of one assembly need.
	Snapshot(ctx context.Context, assemblyID string) (model.Snapshot, error)

	Close() error
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

func defaultOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock replaces the clock used to stamp interventions.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// nextStamp keeps timestamps strictly increasing per assembly even when the
// clock stalls or steps back.
func nextStamp(last int64, now time.Time) int64 {
	ms := now.UnixMilli()
	if ms <= last {
		return last + 1
	}
	return ms
}

func newInterventionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate intervention id: %w", err)
	}
	return id.String(), nil
}

// normalizeIntervention validates in and rewrites enum aliases to their canonical tags.
func normalizeIntervention(in model.Intervention) (model.Intervention, error) {
	if strings.TrimSpace(in.AssemblyID) == "" {
		return in, fmt.Errorf("%w: intervention without assembly", ErrInvalidInput)
	}
	g, err := model.ParseGender(string(in.Gender))
	if err != nil {
		return in, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	t, err := model.ParseInterventionType(string(in.Type))
	if err != nil {
		return in, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	in.Gender, in.Type = g, t
	return in, nil
}

func normalizeAttendance(rec model.Attendance) (model.Attendance, error) {
	if strings.TrimSpace(rec.AssemblyID) == "" || strings.TrimSpace(rec.PersonID) == "" {
		return rec, fmt.Errorf("%w: attendance needs assembly and person", ErrInvalidInput)
	}
	mode, err := model.ParseAttendanceMode(string(rec.Mode))
	if err != nil {
		return rec, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	role, err := model.ParseRole(string(rec.Role))
	if err != nil {
		return rec, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	rec.Mode, rec.Role = mode, role
	return rec, nil
}

func normalizePerson(p model.Person) (model.Person, error) {
	if strings.TrimSpace(p.ID) == "" {
		return p, fmt.Errorf("%w: person without id", ErrInvalidInput)
	}
	g, err := model.ParseGender(string(p.Gender))
	if err != nil {
		return p, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	p.Gender = g
	return p, nil
}

func normalizeAssembly(a model.Assembly) (model.Assembly, error) {
	if err := a.Validate(); err != nil {
		return a, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if a.RegisteredBy.Gender != "" {
		g, err := model.ParseGender(string(a.RegisteredBy.Gender))
		if err != nil {
			return a, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		a.RegisteredBy.Gender = g
	}
	return a, nil
}

// releaseRoles clears moderator or secretary when their holder is no longer present.
func releaseRoles(a *model.Assembly, personID string) bool {
	changed := false
	if a.ModeratorID == personID {
		a.ModeratorID = ""
		changed = true
	}
	if a.SecretaryID == personID {
		a.SecretaryID = ""
		changed = true
	}
	return changed
}

func sortInterventions(list []model.Intervention) {
	sort.Slice(list, func(i, j int) bool { return list[i].Newer(list[j]) })
}

func sortAssemblies(list []model.Assembly) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Date.Equal(list[j].Date) {
			return list[i].Date.Before(list[j].Date)
		}
		return list[i].ID < list[j].ID
	})
}

func observe(store, op string, start time.Time) {
	metrics.RecordRepositoryLatency(store, op, float64(time.Since(start).Microseconds())/1000)
}
