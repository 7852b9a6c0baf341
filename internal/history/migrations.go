package history

import "fmt"

var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
			CREATE TABLE runs (
				id TEXT PRIMARY KEY,
				mode TEXT NOT NULL,
				category TEXT NOT NULL,
				destination TEXT NOT NULL DEFAULT '',
				run_dir TEXT NOT NULL DEFAULT '',
				started_at TEXT NOT NULL,
				finished_at TEXT NOT NULL DEFAULT '',
				exit_code INTEGER NOT NULL DEFAULT 0,
				failures INTEGER NOT NULL DEFAULT 0,
				skipped INTEGER NOT NULL DEFAULT 0,
				archive_path TEXT NOT NULL DEFAULT '',
				archive_size INTEGER NOT NULL DEFAULT 0,
				archive_failed INTEGER NOT NULL DEFAULT 0,
				manifest_only INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX idx_runs_category_started ON runs(category, started_at);
		`,
	},
	{
		version: 2,
		sql: `
			ALTER TABLE runs ADD COLUMN partial INTEGER NOT NULL DEFAULT 0;
			ALTER TABLE runs ADD COLUMN interrupted INTEGER NOT NULL DEFAULT 0;
		`,
	},
}

// migrate runs all pending migrations
func (s *Store) migrate() error {
	const createMigrationsTableSQL = `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := s.db.Exec(createMigrationsTableSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
		s.logger.Debug("Applied history schema migration %d", m.version)
	}
	return nil
}
