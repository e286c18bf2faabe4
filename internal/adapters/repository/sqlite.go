package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/asamblea/internal/domain/model"
)

const sqliteStoreName = "sqlite"

// SQLiteStore persists records in SQLite through gorm.
type SQLiteStore struct {
	db   *gorm.DB
	opts options
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at path, creating the file and its
// directory when missing. An empty path opens a private in-memory database.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		// a unique name keeps in-memory stores in one process apart
		dsn = fmt.Sprintf("file:asamblea-%s?mode=memory&cache=shared", uuid.NewString())
	} else {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read data dir: %w", err)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// one writer; also keeps the in-memory database alive
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)

	for _, m := range sqliteModels {
		if err := db.AutoMigrate(m); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("migrate %T: %w", m, err)
		}
	}
	return &SQLiteStore{db: db, opts: defaultOptions(opts)}, nil
}

func (s *SQLiteStore) CreateAssembly(ctx context.Context, a model.Assembly) error {
	defer observe(sqliteStoreName, "create_assembly", time.Now())
	a, err := normalizeAssembly(a)
	if err != nil {
		return err
	}
	if err := a.ValidateRoles(nil); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&assemblyRow{}).Where("id = ?", a.ID).Count(&n).Error; err != nil {
			return fmt.Errorf("check assembly: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: assembly %s", ErrAlreadyExists, a.ID)
		}
		row := assemblyRowFrom(a)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create assembly: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) GetAssembly(ctx context.Context, id string) (model.Assembly, error) {
	defer observe(sqliteStoreName, "get_assembly", time.Now())
	row, err := s.assembly(s.db.WithContext(ctx), id)
	if err != nil {
		return model.Assembly{}, err
	}
	return row.toModel(), nil
}

func (s *SQLiteStore) ListAssemblies(ctx context.Context) ([]model.Assembly, error) {
	defer observe(sqliteStoreName, "list_assemblies", time.Now())
	var rows []assemblyRow
	if err := s.db.WithContext(ctx).Order("date ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list assemblies: %w", err)
	}
	out := make([]model.Assembly, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *SQLiteStore) UpdateAssemblyRoles(ctx context.Context, id, moderatorID, secretaryID string) (model.Assembly, error) {
	defer observe(sqliteStoreName, "update_roles", time.Now())
	var out model.Assembly
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.assembly(tx, id)
		if err != nil {
			return err
		}
		a := row.toModel()
		a.ModeratorID, a.SecretaryID = moderatorID, secretaryID
		att, err := s.attendance(tx, id)
		if err != nil {
			return err
		}
		if err := a.ValidateRoles(att); err != nil {
			return err
		}
		if err := s.saveRoles(tx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

func (s *SQLiteStore) UpsertPerson(ctx context.Context, p model.Person) error {
	defer observe(sqliteStoreName, "upsert_person", time.Now())
	p, err := normalizePerson(p)
	if err != nil {
		return err
	}
	row := personRow{ID: p.ID, Name: p.Name, Surname: p.Surname, Gender: string(p.Gender)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "surname", "gender"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert person: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListPeople(ctx context.Context) ([]model.Person, error) {
	defer observe(sqliteStoreName, "list_people", time.Now())
	var rows []personRow
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	out := make([]model.Person, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *SQLiteStore) AddIntervention(ctx context.Context, in model.Intervention) (model.Intervention, error) {
	defer observe(sqliteStoreName, "add_intervention", time.Now())
	in, err := normalizeIntervention(in)
	if err != nil {
		return model.Intervention{}, err
	}
	if in.ID == "" {
		if in.ID, err = newInterventionID(); err != nil {
			return model.Intervention{}, err
		}
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.assembly(tx, in.AssemblyID); err != nil {
			return err
		}
		var last int64
		err := tx.Model(&interventionRow{}).
			Where("assembly_id = ?", in.AssemblyID).
			Select("COALESCE(MAX(created_ms), 0)").
			Scan(&last).Error
		if err != nil {
			return fmt.Errorf("last intervention stamp: %w", err)
		}
		in.Timestamp = nextStamp(last, s.opts.now())
		row := interventionRow{
			ID:         in.ID,
			AssemblyID: in.AssemblyID,
			Gender:     string(in.Gender),
			Type:       string(in.Type),
			Timestamp:  in.Timestamp,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert intervention: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Intervention{}, err
	}
	return in, nil
}

func (s *SQLiteStore) RemoveLatestIntervention(ctx context.Context, assemblyID string, g model.Gender, t model.InterventionType) (bool, error) {
	defer observe(sqliteStoreName, "remove_intervention", time.Now())
	removed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.assembly(tx, assemblyID); err != nil {
			return err
		}
		var rows []interventionRow
		err := tx.Where("assembly_id = ? AND gender = ? AND intervention_type = ?", assemblyID, string(g), string(t)).
			Order("created_ms DESC, id DESC").
			Limit(1).
			Find(&rows).Error
		if err != nil {
			return fmt.Errorf("find latest intervention: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Delete(&interventionRow{}, "id = ?", rows[0].ID).Error; err != nil {
			return fmt.Errorf("delete intervention: %w", err)
		}
		removed = true
		return nil
	})
	return removed, err
}

func (s *SQLiteStore) ListInterventions(ctx context.Context, assemblyID string) ([]model.Intervention, error) {
	defer observe(sqliteStoreName, "list_interventions", time.Now())
	return s.interventions(s.db.WithContext(ctx), assemblyID)
}

func (s *SQLiteStore) UpsertAttendance(ctx context.Context, rec model.Attendance) error {
	defer observe(sqliteStoreName, "upsert_attendance", time.Now())
	rec, err := normalizeAttendance(rec)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.assembly(tx, rec.AssemblyID)
		if err != nil {
			return err
		}
		att := attendanceRow{
			AssemblyID: rec.AssemblyID,
			PersonID:   rec.PersonID,
			Present:    rec.Present,
			Mode:       string(rec.Mode),
			Role:       string(rec.Role),
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "assembly_id"}, {Name: "person_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"present", "mode", "role"}),
		}).Create(&att).Error
		if err != nil {
			return fmt.Errorf("upsert attendance: %w", err)
		}
		a := row.toModel()
		if !rec.Present && releaseRoles(&a, rec.PersonID) {
			return s.saveRoles(tx, a)
		}
		return nil
	})
}

func (s *SQLiteStore) DeleteAttendance(ctx context.Context, assemblyID, personID string) (bool, error) {
	defer observe(sqliteStoreName, "delete_attendance", time.Now())
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.assembly(tx, assemblyID)
		if err != nil {
			return err
		}
		res := tx.Delete(&attendanceRow{}, "assembly_id = ? AND person_id = ?", assemblyID, personID)
		if res.Error != nil {
			return fmt.Errorf("delete attendance: %w", res.Error)
		}
		deleted = res.RowsAffected > 0
		a := row.toModel()
		if deleted && releaseRoles(&a, personID) {
			return s.saveRoles(tx, a)
		}
		return nil
	})
	return deleted, err
}

func (s *SQLiteStore) ListAttendance(ctx context.Context, assemblyID string) ([]model.Attendance, error) {
	defer observe(sqliteStoreName, "list_attendance", time.Now())
	return s.attendance(s.db.WithContext(ctx), assemblyID)
}

func (s *SQLiteStore) Snapshot(ctx context.Context, assemblyID string) (model.Snapshot, error) {
	defer observe(sqliteStoreName, "snapshot", time.Now())
	var snap model.Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.assembly(tx, assemblyID)
		if err != nil {
			return err
		}
		snap.Assembly = row.toModel()
		if snap.Interventions, err = s.interventions(tx, assemblyID); err != nil {
			return err
		}
		if snap.Attendance, err = s.attendance(tx, assemblyID); err != nil {
			return err
		}
		var people []personRow
		err = tx.Where("id IN (?)", tx.Model(&attendanceRow{}).Select("person_id").Where("assembly_id = ?", assemblyID)).
			Find(&people).Error
		if err != nil {
			return fmt.Errorf("snapshot people: %w", err)
		}
		snap.People = make(map[string]model.Person, len(people))
		for _, p := range people {
			snap.People[p.ID] = p.toModel()
		}
		return nil
	})
	return snap, err
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) assembly(db *gorm.DB, id string) (assemblyRow, error) {
	var row assemblyRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return row, fmt.Errorf("%w: assembly %s", ErrNotFound, id)
		}
		return row, fmt.Errorf("get assembly: %w", err)
	}
	return row, nil
}

func (s *SQLiteStore) interventions(db *gorm.DB, assemblyID string) ([]model.Intervention, error) {
	var rows []interventionRow
	err := db.Where("assembly_id = ?", assemblyID).Order("created_ms DESC, id DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list interventions: %w", err)
	}
	out := make([]model.Intervention, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *SQLiteStore) attendance(db *gorm.DB, assemblyID string) ([]model.Attendance, error) {
	var rows []attendanceRow
	if err := db.Where("assembly_id = ?", assemblyID).Order("person_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	out := make([]model.Attendance, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *SQLiteStore) saveRoles(tx *gorm.DB, a model.Assembly) error {
	err := tx.Model(&assemblyRow{}).Where("id = ?", a.ID).Updates(map[string]any{
		"moderator_id": a.ModeratorID,
		"secretary_id": a.SecretaryID,
	}).Error
	if err != nil {
		return fmt.Errorf("save roles: %w", err)
	}
	return nil
}
