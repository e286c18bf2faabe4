package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/okian/asamblea/internal/adapters/importer"
	"github.com/okian/asamblea/internal/adapters/repository"
	"github.com/okian/asamblea/internal/domain/model"
	"github.com/okian/asamblea/internal/domain/report"
	"github.com/okian/asamblea/internal/domain/stats"
	"github.com/okian/asamblea/pkg/logger"
	"github.com/okian/asamblea/pkg/metrics"
)

// Report is everything computed from one assembly snapshot.
type Report struct {
	Assembly    model.Assembly         `json:"assembly"`
	Stats       stats.AssemblyStats    `json:"stats"`
	Derived     stats.DerivedMetrics   `json:"derived"`
	Attendance  stats.AttendanceCounts `json:"attendance"`
	Duration    string                 `json:"duration,omitempty"`
	HasDuration bool                   `json:"has_duration"`
	Version     uint64                 `json:"version"`

	snapshot model.Snapshot
}

func buildReport(snap model.Snapshot, version uint64) Report {
	s := stats.ComputeStats(snap.Interventions)
	counts := stats.CountAttendance(snap.Attendance, snap.People)
	d, ok := stats.DurationBetween(snap.Assembly.StartTime, snap.Assembly.EndTime)
	return Report{
		Assembly:    snap.Assembly,
		Stats:       s,
		Derived:     stats.ComputeDerivedMetrics(s, counts),
		Attendance:  counts,
		Duration:    d,
		HasDuration: ok,
		Version:     version,
		snapshot:    snap,
	}
}

// refresh refetches the snapshot of assemblyID and offers the result to the
// cache under a fresh sequence number. A result overtaken by a later refresh
// is discarded. The newest applied report is returned either way.
func (s *Service) refresh(ctx context.Context, assemblyID string) (Report, error) {
	start := time.Now()
	entry := s.reports.Entry(assemblyID)
	seq := entry.Issue()

	snap, err := s.currentStore().Snapshot(ctx, assemblyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.reports.Forget(assemblyID)
		}
		return Report{}, err
	}
	if entry.Apply(seq, buildReport(snap, seq)) {
		metrics.RecordSnapshotRefresh()
	} else {
		metrics.RecordSnapshotStale()
		s.logger.Debug(ctx, "discarding stale report",
			logger.String("assembly_id", assemblyID),
			logger.Int64("sequence", int64(seq)))
	}
	metrics.RecordSnapshotRefreshDuration(float64(time.Since(start).Microseconds()) / 1000)

	rep, _, _ := entry.Load()
	return rep, nil
}

// CreateAssembly stores a new assembly, assigning an id when empty.
// Moderator and secretary cannot be set here; nobody is present yet.
func (s *Service) CreateAssembly(ctx context.Context, a model.Assembly) (model.Assembly, error) {
	store, _, err := s.running()
	if err != nil {
		return model.Assembly{}, err
	}
	if a.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return model.Assembly{}, fmt.Errorf("generate assembly id: %w", err)
		}
		a.ID = id.String()
	}
	if err := store.CreateAssembly(ctx, a); err != nil {
		return model.Assembly{}, err
	}
	created, err := store.GetAssembly(ctx, a.ID)
	if err != nil {
		return model.Assembly{}, err
	}
	s.logger.Info(ctx, "assembly created",
		logger.String("assembly_id", created.ID),
		logger.String("name", created.Name))
	return created, nil
}

// Assembly returns one assembly.
func (s *Service) Assembly(ctx context.Context, id string) (model.Assembly, error) {
	store, _, err := s.running()
	if err != nil {
		return model.Assembly{}, err
	}
	return store.GetAssembly(ctx, id)
}

// Assemblies lists assemblies by date.
func (s *Service) Assemblies(ctx context.Context) ([]model.Assembly, error) {
	store, _, err := s.running()
	if err != nil {
		return nil, err
	}
	list, err := store.ListAssemblies(ctx)
	if err != nil {
		return nil, err
	}
	metrics.UpdateAssembliesTotal(len(list))
	return list, nil
}

// UpdateRoles assigns moderator and secretary. Pending attendance commands of
// the assembly are applied first so a just-submitted attendee counts.
func (s *Service) UpdateRoles(ctx context.Context, assemblyID, moderatorID, secretaryID string) (model.Assembly, error) {
	store, _, err := s.running()
	if err != nil {
		return model.Assembly{}, err
	}
	if err := s.Flush(ctx); err != nil {
		return model.Assembly{}, err
	}
	a, err := store.UpdateAssemblyRoles(ctx, assemblyID, moderatorID, secretaryID)
	if err != nil {
		return model.Assembly{}, err
	}
	if _, err := s.refresh(ctx, assemblyID); err != nil {
		s.logger.Warn(ctx, "report refresh failed", logger.String("assembly_id", assemblyID), logger.Error(err))
	}
	return a, nil
}

// UpsertPerson creates or replaces a directory entry.
func (s *Service) UpsertPerson(ctx context.Context, p model.Person) error {
	store, _, err := s.running()
	if err != nil {
		return err
	}
	return store.UpsertPerson(ctx, p)
}

// People lists the directory sorted by surname and name.
func (s *Service) People(ctx context.Context) ([]model.Person, error) {
	store, _, err := s.running()
	if err != nil {
		return nil, err
	}
	people, err := store.ListPeople(ctx)
	if err != nil {
		return nil, err
	}
	report.SortPeople(people, func(p model.Person) model.Person { return p }, s.collation)
	return people, nil
}

// ImportPeople bulk-loads the directory from a CSV file.
func (s *Service) ImportPeople(ctx context.Context, r io.Reader) (importer.Result, error) {
	if _, _, err := s.running(); err != nil {
		return importer.Result{}, err
	}
	return importer.New(s, s.logger).Import(ctx, r)
}

// Stats returns the current report of one assembly.
func (s *Service) Stats(ctx context.Context, assemblyID string) (Report, error) {
	if _, _, err := s.running(); err != nil {
		return Report{}, err
	}
	return s.refresh(ctx, assemblyID)
}

// CachedStats returns the last report computed for the assembly without
// touching the store.
func (s *Service) CachedStats(assemblyID string) (Report, bool) {
	return s.reports.Load(assemblyID)
}

// Chart returns the per-gender chart rows.
func (s *Service) Chart(ctx context.Context, assemblyID string) ([]report.ChartRow, error) {
	rep, err := s.Stats(ctx, assemblyID)
	if err != nil {
		return nil, err
	}
	return report.ShapeForChart(rep.Stats), nil
}

// ChartHTML writes the chart of one assembly as a standalone HTML page.
func (s *Service) ChartHTML(ctx context.Context, w io.Writer, assemblyID string) error {
	rep, err := s.Stats(ctx, assemblyID)
	if err != nil {
		return err
	}
	return report.RenderChart(w, report.ShapeForChart(rep.Stats), rep.Assembly.Name)
}

// PDFSections returns the draw instructions of the printable report.
func (s *Service) PDFSections(ctx context.Context, assemblyID string) ([]report.DrawOp, error) {
	rep, err := s.Stats(ctx, assemblyID)
	if err != nil {
		return nil, err
	}
	o := report.DefaultPDFOptions()
	o.Language = s.collation
	if s.pageHeight > 0 {
		o.PageHeight = s.pageHeight
	}
	return report.ShapeForPDFSections(rep.Stats, rep.snapshot, o), nil
}

// snapshots reads every assembly's snapshot in date order.
func (s *Service) snapshots(ctx context.Context) ([]model.Snapshot, error) {
	store, _, err := s.running()
	if err != nil {
		return nil, err
	}
	list, err := store.ListAssemblies(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Snapshot, 0, len(list))
	for _, a := range list {
		snap, err := store.Snapshot(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", a.ID, err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// ExportAssembliesCSV returns the attendance summary of every assembly.
func (s *Service) ExportAssembliesCSV(ctx context.Context) (string, error) {
	snaps, err := s.snapshots(ctx)
	if err != nil {
		return "", err
	}
	out, err := report.ShapeForCSV(report.BuildAssemblyRows(snaps), report.KindAssemblyAttendance)
	if err != nil {
		return "", err
	}
	metrics.RecordExport(string(report.KindAssemblyAttendance))
	return out, nil
}

// ExportPeopleCSV returns each person's attendance history across all assemblies.
func (s *Service) ExportPeopleCSV(ctx context.Context) (string, error) {
	snaps, err := s.snapshots(ctx)
	if err != nil {
		return "", err
	}
	people, err := s.People(ctx)
	if err != nil {
		return "", err
	}
	out, err := report.ShapeForCSV(report.BuildPersonRows(people, snaps), report.KindPersonAttendance)
	if err != nil {
		return "", err
	}
	metrics.RecordExport(string(report.KindPersonAttendance))
	return out, nil
}
