package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/asamblea/internal/domain/model"
)

const postgresStoreName = "postgres"

// PostgresStore persists records in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts options
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to url, pings the server and runs the migrations.
func NewPostgresStore(ctx context.Context, url string, opts ...Option) (*PostgresStore, error) {
	p, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigration(ctx, p); err != nil {
		p.Close()
		return nil, fmt.Errorf("run migration: %w", err)
	}
	return NewPostgresStoreFromPool(p, opts...), nil
}

// NewPostgresStoreFromPool wraps an already migrated pool.
func NewPostgresStoreFromPool(pool *pgxpool.Pool, opts ...Option) *PostgresStore {
	return &PostgresStore{pool: pool, opts: defaultOptions(opts)}
}

const assemblyColumns = `id, name, date, kind, description, registrar_name, registrar_gender,
	moderator_id, secretary_id, start_time, end_time`

func scanAssembly(row pgx.Row) (model.Assembly, error) {
	var (
		a       model.Assembly
		gender  string
		started *time.Time
		ended   *time.Time
	)
	err := row.Scan(&a.ID, &a.Name, &a.Date, &a.Kind, &a.Description, &a.RegisteredBy.Name, &gender,
		&a.ModeratorID, &a.SecretaryID, &started, &ended)
	if err != nil {
		return a, err
	}
	a.Date = a.Date.UTC()
	a.RegisteredBy.Gender = model.Gender(gender)
	a.StartTime, a.EndTime = utcPtr(started), utcPtr(ended)
	return a, nil
}

func (s *PostgresStore) CreateAssembly(ctx context.Context, a model.Assembly) error {
	defer observe(postgresStoreName, "create_assembly", time.Now())
	a, err := normalizeAssembly(a)
	if err != nil {
		return err
	}
	if err := a.ValidateRoles(nil); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO assemblies (`+assemblyColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		a.ID, a.Name, a.Date.UTC(), a.Kind, a.Description, a.RegisteredBy.Name, string(a.RegisteredBy.Gender),
		a.ModeratorID, a.SecretaryID, utcPtr(a.StartTime), utcPtr(a.EndTime))
	if err != nil {
		return fmt.Errorf("create assembly: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: assembly %s", ErrAlreadyExists, a.ID)
	}
	return nil
}

func (s *PostgresStore) GetAssembly(ctx context.Context, id string) (model.Assembly, error) {
	defer observe(postgresStoreName, "get_assembly", time.Now())
	return s.assembly(ctx, s.pool, id, false)
}

func (s *PostgresStore) ListAssemblies(ctx context.Context) ([]model.Assembly, error) {
	defer observe(postgresStoreName, "list_assemblies", time.Now())
	rows, err := s.pool.Query(ctx, `SELECT `+assemblyColumns+` FROM assemblies ORDER BY date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list assemblies: %w", err)
	}
	defer rows.Close()
	var list []model.Assembly
	for rows.Next() {
		a, err := scanAssembly(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assembly: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (s *PostgresStore) UpdateAssemblyRoles(ctx context.Context, id, moderatorID, secretaryID string) (model.Assembly, error) {
	defer observe(postgresStoreName, "update_roles", time.Now())
	var out model.Assembly
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		a, err := s.assembly(ctx, tx, id, true)
		if err != nil {
			return err
		}
		a.ModeratorID, a.SecretaryID = moderatorID, secretaryID
		att, err := s.attendance(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := a.ValidateRoles(att); err != nil {
			return err
		}
		if err := s.saveRoles(ctx, tx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

func (s *PostgresStore) UpsertPerson(ctx context.Context, p model.Person) error {
	defer observe(postgresStoreName, "upsert_person", time.Now())
	p, err := normalizePerson(p)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO people (id, name, surname, gender) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, surname = EXCLUDED.surname, gender = EXCLUDED.gender`,
		p.ID, p.Name, p.Surname, string(p.Gender))
	if err != nil {
		return fmt.Errorf("upsert person: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPeople(ctx context.Context) ([]model.Person, error) {
	defer observe(postgresStoreName, "list_people", time.Now())
	return s.people(ctx, s.pool, `SELECT id, name, surname, gender FROM people ORDER BY id ASC`)
}

func (s *PostgresStore) AddIntervention(ctx context.Context, in model.Intervention) (model.Intervention, error) {
	defer observe(postgresStoreName, "add_intervention", time.Now())
	in, err := normalizeIntervention(in)
	if err != nil {
		return model.Intervention{}, err
	}
	if in.ID == "" {
		if in.ID, err = newInterventionID(); err != nil {
			return model.Intervention{}, err
		}
	}
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// the row lock serialises stamping within one assembly
		if _, err := s.assembly(ctx, tx, in.AssemblyID, true); err != nil {
			return err
		}
		var last int64
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(created_ms), 0) FROM interventions WHERE assembly_id = $1`,
			in.AssemblyID).Scan(&last)
		if err != nil {
			return fmt.Errorf("last intervention stamp: %w", err)
		}
		in.Timestamp = nextStamp(last, s.opts.now())
		_, err = tx.Exec(ctx,
			`INSERT INTO interventions (id, assembly_id, gender, intervention_type, created_ms)
			 VALUES ($1, $2, $3, $4, $5)`,
			in.ID, in.AssemblyID, string(in.Gender), string(in.Type), in.Timestamp)
		if err != nil {
			return fmt.Errorf("insert intervention: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Intervention{}, err
	}
	return in, nil
}

func (s *PostgresStore) RemoveLatestIntervention(ctx context.Context, assemblyID string, g model.Gender, t model.InterventionType) (bool, error) {
	defer observe(postgresStoreName, "remove_intervention", time.Now())
	removed := false
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := s.assembly(ctx, tx, assemblyID, true); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`DELETE FROM interventions WHERE id = (
				SELECT id FROM interventions
				WHERE assembly_id = $1 AND gender = $2 AND intervention_type = $3
				ORDER BY created_ms DESC, id DESC
				LIMIT 1
			)`,
			assemblyID, string(g), string(t))
		if err != nil {
			return fmt.Errorf("delete latest intervention: %w", err)
		}
		removed = tag.RowsAffected() > 0
		return nil
	})
	return removed, err
}

func (s *PostgresStore) ListInterventions(ctx context.Context, assemblyID string) ([]model.Intervention, error) {
	defer observe(postgresStoreName, "list_interventions", time.Now())
	return s.interventions(ctx, s.pool, assemblyID)
}

func (s *PostgresStore) UpsertAttendance(ctx context.Context, rec model.Attendance) error {
	defer observe(postgresStoreName, "upsert_attendance", time.Now())
	rec, err := normalizeAttendance(rec)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		a, err := s.assembly(ctx, tx, rec.AssemblyID, true)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO attendance (assembly_id, person_id, present, mode, role) VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (assembly_id, person_id) DO UPDATE
			 SET present = EXCLUDED.present, mode = EXCLUDED.mode, role = EXCLUDED.role`,
			rec.AssemblyID, rec.PersonID, rec.Present, string(rec.Mode), string(rec.Role))
		if err != nil {
			return fmt.Errorf("upsert attendance: %w", err)
		}
		if !rec.Present && releaseRoles(&a, rec.PersonID) {
			return s.saveRoles(ctx, tx, a)
		}
		return nil
	})
}

func (s *PostgresStore) DeleteAttendance(ctx context.Context, assemblyID, personID string) (bool, error) {
	defer observe(postgresStoreName, "delete_attendance", time.Now())
	deleted := false
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		a, err := s.assembly(ctx, tx, assemblyID, true)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM attendance WHERE assembly_id = $1 AND person_id = $2`, assemblyID, personID)
		if err != nil {
			return fmt.Errorf("delete attendance: %w", err)
		}
		deleted = tag.RowsAffected() > 0
		if deleted && releaseRoles(&a, personID) {
			return s.saveRoles(ctx, tx, a)
		}
		return nil
	})
	return deleted, err
}

func (s *PostgresStore) ListAttendance(ctx context.Context, assemblyID string) ([]model.Attendance, error) {
	defer observe(postgresStoreName, "list_attendance", time.Now())
	return s.attendance(ctx, s.pool, assemblyID)
}

func (s *PostgresStore) Snapshot(ctx context.Context, assemblyID string) (model.Snapshot, error) {
	defer observe(postgresStoreName, "snapshot", time.Now())
	var snap model.Snapshot
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		var err error
		if snap.Assembly, err = s.assembly(ctx, tx, assemblyID, false); err != nil {
			return err
		}
		if snap.Interventions, err = s.interventions(ctx, tx, assemblyID); err != nil {
			return err
		}
		if snap.Attendance, err = s.attendance(ctx, tx, assemblyID); err != nil {
			return err
		}
		people, err := s.people(ctx, tx,
			`SELECT p.id, p.name, p.surname, p.gender FROM people p
			 JOIN attendance a ON a.person_id = p.id WHERE a.assembly_id = $1`, assemblyID)
		if err != nil {
			return err
		}
		snap.People = make(map[string]model.Person, len(people))
		for _, p := range people {
			snap.People[p.ID] = p
		}
		return nil
	})
	return snap, err
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) assembly(ctx context.Context, q querier, id string, lock bool) (model.Assembly, error) {
	sql := `SELECT ` + assemblyColumns + ` FROM assemblies WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	a, err := scanAssembly(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return a, fmt.Errorf("%w: assembly %s", ErrNotFound, id)
		}
		return a, fmt.Errorf("get assembly: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) interventions(ctx context.Context, q querier, assemblyID string) ([]model.Intervention, error) {
	rows, err := q.Query(ctx,
		`SELECT id, assembly_id, gender, intervention_type, created_ms
		 FROM interventions WHERE assembly_id = $1 ORDER BY created_ms DESC, id DESC`,
		assemblyID)
	if err != nil {
		return nil, fmt.Errorf("list interventions: %w", err)
	}
	defer rows.Close()
	list := []model.Intervention{}
	for rows.Next() {
		var in model.Intervention
		var g, t string
		if err := rows.Scan(&in.ID, &in.AssemblyID, &g, &t, &in.Timestamp); err != nil {
			return nil, fmt.Errorf("scan intervention: %w", err)
		}
		in.Gender, in.Type = model.Gender(g), model.InterventionType(t)
		list = append(list, in)
	}
	return list, rows.Err()
}

func (s *PostgresStore) attendance(ctx context.Context, q querier, assemblyID string) ([]model.Attendance, error) {
	rows, err := q.Query(ctx,
		`SELECT assembly_id, person_id, present, mode, role
		 FROM attendance WHERE assembly_id = $1 ORDER BY person_id ASC`,
		assemblyID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()
	list := []model.Attendance{}
	for rows.Next() {
		var rec model.Attendance
		var mode, role string
		if err := rows.Scan(&rec.AssemblyID, &rec.PersonID, &rec.Present, &mode, &role); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		rec.Mode, rec.Role = model.AttendanceMode(mode), model.Role(role)
		list = append(list, rec)
	}
	return list, rows.Err()
}

func (s *PostgresStore) people(ctx context.Context, q querier, sql string, args ...any) ([]model.Person, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()
	list := []model.Person{}
	for rows.Next() {
		var p model.Person
		var g string
		if err := rows.Scan(&p.ID, &p.Name, &p.Surname, &g); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		p.Gender = model.Gender(g)
		list = append(list, p)
	}
	return list, rows.Err()
}

func (s *PostgresStore) saveRoles(ctx context.Context, tx pgx.Tx, a model.Assembly) error {
	_, err := tx.Exec(ctx, `UPDATE assemblies SET moderator_id = $2, secretary_id = $3 WHERE id = $1`,
		a.ID, a.ModeratorID, a.SecretaryID)
	if err != nil {
		return fmt.Errorf("save roles: %w", err)
	}
	return nil
}
