// Package config defines service configuration structures and loading hooks.
package config

import (
	"context"
	"runtime"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the persistence backend: memory, sqlite or postgres.
	Store string `koanf:"store"`

	// SQLitePath is the database file. Empty keeps the database in memory.
	SQLitePath string `koanf:"sqlite_path"`

	// DatabaseURL is the Postgres connection string.
	DatabaseURL string `koanf:"database_url"`

	// QueueSize bounds the in-memory command queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of shard workers applying commands.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many submission ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// CollationLanguage is the BCP 47 tag used to sort names, e.g. "es".
	CollationLanguage string `koanf:"collation_language"`

	// PDFPageHeight is the report page height in points.
	PDFPageHeight float64 `koanf:"pdf_page_height"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		Store:             StoreMemory,
		QueueSize:         10_000,
		WorkerCount:       runtime.NumCPU(),
		DedupeSize:        50_000,
		CollationLanguage: "es",
		PDFPageHeight:     842,
	}
}
