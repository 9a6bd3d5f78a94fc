package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				// AUTOINCREMENT guarantees ids are monotonic and never
				// reused, even after deletion. Merge depends on that.
				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					kind TEXT NOT NULL CHECK(kind IN ('income', 'expense')),
					origin TEXT NOT NULL DEFAULT 'user' CHECK(origin IN ('system', 'user')),
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(name, kind)
				)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					amount INTEGER NOT NULL CHECK(amount >= 0),
					date TEXT NOT NULL,
					category_id INTEGER NOT NULL REFERENCES categories(id),
					note TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_category ON transactions(category_id)`,

				`CREATE TABLE IF NOT EXISTS settings (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add tags",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS tags (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL UNIQUE
				)`,
				`CREATE TABLE IF NOT EXISTS transaction_tags (
					transaction_id INTEGER NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
					tag_id INTEGER NOT NULL REFERENCES tags(id),
					PRIMARY KEY (transaction_id, tag_id)
				)`,
				`CREATE INDEX idx_transaction_tags_tag ON transaction_tags(tag_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Seed system and default categories",
		Up: func(tx *sql.Tx) error {
			// The fallback category exists once per kind and anchors
			// category deletion and cross-store matching.
			systemSeeds := []struct {
				name string
				kind string
			}{
				{"{No Category}", "income"},
				{"{No Category}", "expense"},
			}
			for _, seed := range systemSeeds {
				if _, err := tx.Exec(
					`INSERT OR IGNORE INTO categories (name, kind, origin) VALUES (?, ?, 'system')`,
					seed.name, seed.kind); err != nil {
					return fmt.Errorf("failed to seed system category: %w", err)
				}
			}

			defaultIncome := []string{"Paycheck", "Freelance", "Investment", "Gift", "Other Income"}
			defaultExpense := []string{
				"Grocery", "Housing", "Transportation", "Utilities", "Entertainment",
				"Dining", "Healthcare", "Education", "Shopping", "Bills", "Gas", "Other Expense",
			}

			for _, name := range defaultIncome {
				if _, err := tx.Exec(
					`INSERT OR IGNORE INTO categories (name, kind, origin) VALUES (?, 'income', 'user')`,
					name); err != nil {
					return fmt.Errorf("failed to seed income category: %w", err)
				}
			}
			for _, name := range defaultExpense {
				if _, err := tx.Exec(
					`INSERT OR IGNORE INTO categories (name, kind, origin) VALUES (?, 'expense', 'user')`,
					name); err != nil {
					return fmt.Errorf("failed to seed expense category: %w", err)
				}
			}

			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
