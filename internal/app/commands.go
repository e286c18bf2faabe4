package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/asamblea/internal/adapters/mq/queue"
	"github.com/okian/asamblea/internal/adapters/repository"
	"github.com/okian/asamblea/internal/domain/model"
	"github.com/okian/asamblea/pkg/logger"
	"github.com/okian/asamblea/pkg/metrics"
)

// tracker counts commands accepted but not yet applied.
type tracker struct {
	mu      sync.Mutex
	n       int
	waiters []chan struct{}
}

func (t *tracker) add() {
	t.mu.Lock()
	t.n++
	t.mu.Unlock()
}

func (t *tracker) done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n--
	if t.n > 0 {
		return
	}
	for _, w := range t.waiters {
		close(w)
	}
	t.waiters = nil
}

func (t *tracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}

func (t *tracker) wait(ctx context.Context) error {
	t.mu.Lock()
	if t.n == 0 {
		t.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	t.waiters = append(t.waiters, ch)
	t.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush: %w", ctx.Err())
	}
}

// Flush blocks until every accepted command has been applied.
func (s *Service) Flush(ctx context.Context) error {
	return s.pending.wait(ctx)
}

// SubmitIncrement queues a new intervention. id identifies the submission so
// a retried request is applied once; an empty id is never deduplicated.
// duplicate is true when id was already accepted.
func (s *Service) SubmitIncrement(ctx context.Context, id, assemblyID, gender, typ string) (duplicate bool, err error) {
	g, t, err := parseBucket(gender, typ)
	if err != nil {
		return false, err
	}
	return s.submitTracked(ctx, queue.Command{
		ID:         id,
		Kind:       queue.KindIncrement,
		AssemblyID: assemblyID,
		Gender:     g,
		Type:       t,
	})
}

// SubmitDecrement queues removal of the newest intervention in the bucket.
func (s *Service) SubmitDecrement(ctx context.Context, id, assemblyID, gender, typ string) (duplicate bool, err error) {
	g, t, err := parseBucket(gender, typ)
	if err != nil {
		return false, err
	}
	return s.submitTracked(ctx, queue.Command{
		ID:         id,
		Kind:       queue.KindDecrement,
		AssemblyID: assemblyID,
		Gender:     g,
		Type:       t,
	})
}

// SubmitAttendance queues an upsert of one attendance record.
func (s *Service) SubmitAttendance(ctx context.Context, rec model.Attendance) error {
	mode, err := model.ParseAttendanceMode(string(rec.Mode))
	if err != nil {
		return fmt.Errorf("%w: %w", repository.ErrInvalidInput, err)
	}
	role, err := model.ParseRole(string(rec.Role))
	if err != nil {
		return fmt.Errorf("%w: %w", repository.ErrInvalidInput, err)
	}
	if rec.PersonID == "" {
		return fmt.Errorf("%w: attendance without person", repository.ErrInvalidInput)
	}
	rec.Mode, rec.Role = mode, role
	_, err = s.submit(ctx, queue.Command{
		Kind:       queue.KindAttendanceUpsert,
		AssemblyID: rec.AssemblyID,
		Attendance: rec,
	})
	return err
}

// SubmitAttendanceRemoval queues the hard delete of one attendance record.
func (s *Service) SubmitAttendanceRemoval(ctx context.Context, assemblyID, personID string) error {
	if personID == "" {
		return fmt.Errorf("%w: attendance without person", repository.ErrInvalidInput)
	}
	_, err := s.submit(ctx, queue.Command{
		Kind:       queue.KindAttendanceDelete,
		AssemblyID: assemblyID,
		Attendance: model.Attendance{AssemblyID: assemblyID, PersonID: personID},
	})
	return err
}

func parseBucket(gender, typ string) (model.Gender, model.InterventionType, error) {
	g, err := model.ParseGender(gender)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", repository.ErrInvalidInput, err)
	}
	t, err := model.ParseInterventionType(typ)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", repository.ErrInvalidInput, err)
	}
	return g, t, nil
}

// submitTracked deduplicates on the submission id before queueing. A command
// the queue refuses is forgotten again so the client can retry it.
func (s *Service) submitTracked(ctx context.Context, c queue.Command) (bool, error) { //nolint:gocritic // hugeParam: commands are values
	if c.ID == "" {
		return s.submit(ctx, c)
	}
	if _, _, err := s.running(); err != nil {
		return false, err
	}
	if s.deduper.SeenAndRecord(ctx, c.ID) {
		metrics.RecordInterventionDuplicate()
		s.logger.Debug(ctx, "duplicate submission detected, skipping",
			logger.String("submission_id", c.ID),
			logger.String("assembly_id", c.AssemblyID))
		return true, nil
	}
	dup, err := s.submit(ctx, c)
	if err != nil {
		s.deduper.Unrecord(ctx, c.ID)
	}
	return dup, err
}

func (s *Service) submit(ctx context.Context, c queue.Command) (bool, error) { //nolint:gocritic // hugeParam: commands are values
	store, q, err := s.running()
	if err != nil {
		return false, err
	}
	if _, err := store.GetAssembly(ctx, c.AssemblyID); err != nil {
		return false, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	s.pending.add()
	if !q.Enqueue(ctx, c) {
		s.pending.done()
		s.logger.Warn(ctx, "command rejected by queue",
			logger.String("kind", string(c.Kind)),
			logger.String("assembly_id", c.AssemblyID))
		return false, ErrQueueFull
	}
	return false, nil
}

// Apply performs one queued command against the store and refreshes the
// cached report of its assembly. Workers call it; commands of one assembly
// arrive in submission order.
func (s *Service) Apply(ctx context.Context, c queue.Command) error { //nolint:gocritic // hugeParam: commands are values
	defer s.pending.done()

	if err := s.applyToStore(ctx, c); err != nil {
		return err
	}
	if _, err := s.refresh(ctx, c.AssemblyID); err != nil {
		s.logger.Warn(ctx, "report refresh failed",
			logger.String("assembly_id", c.AssemblyID),
			logger.Error(err))
	}
	return nil
}

func (s *Service) applyToStore(ctx context.Context, c queue.Command) error { //nolint:gocritic // hugeParam: commands are values
	store := s.currentStore()
	switch c.Kind {
	case queue.KindIncrement:
		in, err := store.AddIntervention(ctx, model.Intervention{
			AssemblyID: c.AssemblyID,
			Gender:     c.Gender,
			Type:       c.Type,
		})
		if err != nil {
			return fmt.Errorf("add intervention: %w", err)
		}
		metrics.RecordInterventionRecorded(string(in.Gender), string(in.Type))
	case queue.KindDecrement:
		removed, err := store.RemoveLatestIntervention(ctx, c.AssemblyID, c.Gender, c.Type)
		if err != nil {
			return fmt.Errorf("remove intervention: %w", err)
		}
		if removed {
			metrics.RecordInterventionRemoved(string(c.Gender), string(c.Type))
		}
	case queue.KindAttendanceUpsert:
		rec := c.Attendance
		rec.AssemblyID = c.AssemblyID
		if err := store.UpsertAttendance(ctx, rec); err != nil {
			return fmt.Errorf("upsert attendance: %w", err)
		}
		metrics.RecordAttendanceUpdate("upsert")
	case queue.KindAttendanceDelete:
		if _, err := store.DeleteAttendance(ctx, c.AssemblyID, c.Attendance.PersonID); err != nil {
			return fmt.Errorf("delete attendance: %w", err)
		}
		metrics.RecordAttendanceUpdate("delete")
	default:
		return fmt.Errorf("unknown command kind %q", c.Kind)
	}
	return nil
}

func (s *Service) currentStore() repository.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}
