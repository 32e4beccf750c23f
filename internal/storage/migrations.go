package storage

import (
	"database/sql"
	"fmt"
)

// schemaStep is one forward change to the local database. Its position in
// schemaSteps, counting from 1, is the user_version it leaves behind.
type schemaStep struct {
	name  string
	stmts []string
}

// schemaSteps is append-only: released databases record how many ran.
var schemaSteps = []schemaStep{
	{
		name: "local_storage",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS local_storage (
				key        TEXT PRIMARY KEY,
				value      TEXT NOT NULL,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_local_storage_updated ON local_storage(updated_at)`,
		},
	},
}

// MigrationRunner brings the llmredi database up to the current schema.
// Progress lives in PRAGMA user_version rather than a bookkeeping table.
type MigrationRunner struct {
	db    *sql.DB
	steps []schemaStep
}

// NewMigrationRunner returns a runner for the built-in schema.
func NewMigrationRunner(db *sql.DB) *MigrationRunner {
	return &MigrationRunner{db: db, steps: schemaSteps}
}

// Run puts the database in WAL mode and applies the steps it has not seen.
// WAL lets one llmredi process read the session while another writes it; the
// readers notice those commits through PRAGMA data_version.
func (r *MigrationRunner) Run() error {
	if _, err := r.db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}

	current, err := r.version()
	if err != nil {
		return err
	}
	if current > len(r.steps) {
		return fmt.Errorf("database schema version %d is newer than this build supports (%d)", current, len(r.steps))
	}

	for v := current + 1; v <= len(r.steps); v++ {
		s := r.steps[v-1]
		if err := r.step(v, s); err != nil {
			return fmt.Errorf("schema step %d (%s): %w", v, s.name, err)
		}
	}
	return nil
}

func (r *MigrationRunner) version() (int, error) {
	var v int
	if err := r.db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// step runs s and records version in the same transaction.
func (r *MigrationRunner) step(version int, s schemaStep) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range s.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	// PRAGMA takes no bound parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}
