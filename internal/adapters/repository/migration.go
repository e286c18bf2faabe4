package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS assemblies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		date TIMESTAMPTZ NOT NULL,
		kind TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		registrar_name TEXT NOT NULL DEFAULT '',
		registrar_gender TEXT NOT NULL DEFAULT '',
		moderator_id TEXT NOT NULL DEFAULT '',
		secretary_id TEXT NOT NULL DEFAULT '',
		start_time TIMESTAMPTZ,
		end_time TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assemblies_date ON assemblies (date, id)`,
	`CREATE TABLE IF NOT EXISTS people (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		surname TEXT NOT NULL DEFAULT '',
		gender TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS interventions (
		id TEXT PRIMARY KEY,
		assembly_id TEXT NOT NULL REFERENCES assemblies(id) ON DELETE CASCADE,
		gender TEXT NOT NULL,
		intervention_type TEXT NOT NULL,
		created_ms BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_interventions_bucket ON interventions (assembly_id, gender, intervention_type, created_ms DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		assembly_id TEXT NOT NULL REFERENCES assemblies(id) ON DELETE CASCADE,
		person_id TEXT NOT NULL,
		present BOOLEAN NOT NULL,
		mode TEXT NOT NULL,
		role TEXT NOT NULL,
		PRIMARY KEY (assembly_id, person_id)
	)`,
}

// RunMigration creates the schema. Every statement is idempotent.
func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for i, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
