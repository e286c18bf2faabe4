package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/asamblea/internal/domain/model"
	"github.com/okian/asamblea/pkg/metrics"
)

const memoryStoreName = "memory"

// MemoryStore keeps every record in process memory.
type MemoryStore struct {
	opts options

	mu            sync.RWMutex
	assemblies    map[string]model.Assembly
	people        map[string]model.Person
	interventions map[string][]model.Intervention // per assembly, creation order
	attendance    map[string]map[string]model.Attendance
	lastStamp     map[string]int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:          defaultOptions(opts),
		assemblies:    make(map[string]model.Assembly),
		people:        make(map[string]model.Person),
		interventions: make(map[string][]model.Intervention),
		attendance:    make(map[string]map[string]model.Attendance),
		lastStamp:     make(map[string]int64),
	}
}

func (s *MemoryStore) CreateAssembly(ctx context.Context, a model.Assembly) error {
	defer observe(memoryStoreName, "create_assembly", time.Now())
	a, err := normalizeAssembly(a)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assemblies[a.ID]; ok {
		return fmt.Errorf("%w: assembly %s", ErrAlreadyExists, a.ID)
	}
	if err := a.ValidateRoles(s.attendanceLocked(a.ID)); err != nil {
		return err
	}
	s.assemblies[a.ID] = a
	metrics.UpdateRepositoryRecords(memoryStoreName, "assemblies", len(s.assemblies))
	return nil
}

func (s *MemoryStore) GetAssembly(ctx context.Context, id string) (model.Assembly, error) {
	defer observe(memoryStoreName, "get_assembly", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assemblies[id]
	if !ok {
		return model.Assembly{}, fmt.Errorf("%w: assembly %s", ErrNotFound, id)
	}
	return a, nil
}

func (s *MemoryStore) ListAssemblies(ctx context.Context) ([]model.Assembly, error) {
	defer observe(memoryStoreName, "list_assemblies", time.Now())
	s.mu.RLock()
	out := make([]model.Assembly, 0, len(s.assemblies))
	for _, a := range s.assemblies {
		out = append(out, a)
	}
	s.mu.RUnlock()
	sortAssemblies(out)
	return out, nil
}

func (s *MemoryStore) UpdateAssemblyRoles(ctx context.Context, id, moderatorID, secretaryID string) (model.Assembly, error) {
	defer observe(memoryStoreName, "update_roles", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assemblies[id]
	if !ok {
		return model.Assembly{}, fmt.Errorf("%w: assembly %s", ErrNotFound, id)
	}
	a.ModeratorID, a.SecretaryID = moderatorID, secretaryID
	if err := a.ValidateRoles(s.attendanceLocked(id)); err != nil {
		return model.Assembly{}, err
	}
	s.assemblies[id] = a
	return a, nil
}

func (s *MemoryStore) UpsertPerson(ctx context.Context, p model.Person) error {
	defer observe(memoryStoreName, "upsert_person", time.Now())
	p, err := normalizePerson(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.people[p.ID] = p
	metrics.UpdateRepositoryRecords(memoryStoreName, "people", len(s.people))
	return nil
}

func (s *MemoryStore) ListPeople(ctx context.Context) ([]model.Person, error) {
	defer observe(memoryStoreName, "list_people", time.Now())
	s.mu.RLock()
	out := make([]model.Person, 0, len(s.people))
	for _, p := range s.people {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) AddIntervention(ctx context.Context, in model.Intervention) (model.Intervention, error) {
	defer observe(memoryStoreName, "add_intervention", time.Now())
	in, err := normalizeIntervention(in)
	if err != nil {
		return model.Intervention{}, err
	}
	if in.ID == "" {
		if in.ID, err = newInterventionID(); err != nil {
			return model.Intervention{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assemblies[in.AssemblyID]; !ok {
		return model.Intervention{}, fmt.Errorf("%w: assembly %s", ErrNotFound, in.AssemblyID)
	}
	in.Timestamp = nextStamp(s.lastStamp[in.AssemblyID], s.opts.now())
	s.lastStamp[in.AssemblyID] = in.Timestamp
	s.interventions[in.AssemblyID] = append(s.interventions[in.AssemblyID], in)
	s.updateInterventionGaugeLocked()
	return in, nil
}

func (s *MemoryStore) RemoveLatestIntervention(ctx context.Context, assemblyID string, g model.Gender, t model.InterventionType) (bool, error) {
	defer observe(memoryStoreName, "remove_intervention", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assemblies[assemblyID]; !ok {
		return false, fmt.Errorf("%w: assembly %s", ErrNotFound, assemblyID)
	}
	list := s.interventions[assemblyID]
	latest := -1
	for i, in := range list {
		if in.Gender != g || in.Type != t {
			continue
		}
		if latest < 0 || in.Newer(list[latest]) {
			latest = i
		}
	}
	if latest < 0 {
		return false, nil
	}
	s.interventions[assemblyID] = append(list[:latest:latest], list[latest+1:]...)
	s.updateInterventionGaugeLocked()
	return true, nil
}

func (s *MemoryStore) ListInterventions(ctx context.Context, assemblyID string) ([]model.Intervention, error) {
	defer observe(memoryStoreName, "list_interventions", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interventionsLocked(assemblyID), nil
}

func (s *MemoryStore) UpsertAttendance(ctx context.Context, rec model.Attendance) error {
	defer observe(memoryStoreName, "upsert_attendance", time.Now())
	rec, err := normalizeAttendance(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assemblies[rec.AssemblyID]
	if !ok {
		return fmt.Errorf("%w: assembly %s", ErrNotFound, rec.AssemblyID)
	}
	byPerson := s.attendance[rec.AssemblyID]
	if byPerson == nil {
		byPerson = make(map[string]model.Attendance)
		s.attendance[rec.AssemblyID] = byPerson
	}
	byPerson[rec.PersonID] = rec
	if !rec.Present && releaseRoles(&a, rec.PersonID) {
		s.assemblies[a.ID] = a
	}
	return nil
}

func (s *MemoryStore) DeleteAttendance(ctx context.Context, assemblyID, personID string) (bool, error) {
	defer observe(memoryStoreName, "delete_attendance", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assemblies[assemblyID]
	if !ok {
		return false, fmt.Errorf("%w: assembly %s", ErrNotFound, assemblyID)
	}
	if _, ok := s.attendance[assemblyID][personID]; !ok {
		return false, nil
	}
	delete(s.attendance[assemblyID], personID)
	if releaseRoles(&a, personID) {
		s.assemblies[a.ID] = a
	}
	return true, nil
}

func (s *MemoryStore) ListAttendance(ctx context.Context, assemblyID string) ([]model.Attendance, error) {
	defer observe(memoryStoreName, "list_attendance", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attendanceLocked(assemblyID), nil
}

func (s *MemoryStore) Snapshot(ctx context.Context, assemblyID string) (model.Snapshot, error) {
	defer observe(memoryStoreName, "snapshot", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assemblies[assemblyID]
	if !ok {
		return model.Snapshot{}, fmt.Errorf("%w: assembly %s", ErrNotFound, assemblyID)
	}
	snap := model.Snapshot{
		Assembly:      a,
		Interventions: s.interventionsLocked(assemblyID),
		Attendance:    s.attendanceLocked(assemblyID),
		People:        make(map[string]model.Person),
	}
	for _, rec := range snap.Attendance {
		if p, ok := s.people[rec.PersonID]; ok {
			snap.People[p.ID] = p
		}
	}
	return snap, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) interventionsLocked(assemblyID string) []model.Intervention {
	out := append([]model.Intervention(nil), s.interventions[assemblyID]...)
	sortInterventions(out)
	return out
}

func (s *MemoryStore) attendanceLocked(assemblyID string) []model.Attendance {
	out := make([]model.Attendance, 0, len(s.attendance[assemblyID]))
	for _, rec := range s.attendance[assemblyID] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out
}

func (s *MemoryStore) updateInterventionGaugeLocked() {
	total := 0
	for _, list := range s.interventions {
		total += len(list)
	}
	metrics.UpdateRepositoryRecords(memoryStoreName, "interventions", total)
}
