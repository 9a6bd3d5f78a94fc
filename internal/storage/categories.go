package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/InViSiB0B/TreasureGoblin/internal/common"
	"github.com/InViSiB0B/TreasureGoblin/internal/model"
)

// AddCategory creates a new user category. Adding a category whose (name,
// kind) pair already exists fails without changing the store.
func (s *SQLiteStorage) AddCategory(ctx context.Context, name string, kind model.CategoryKind) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	if err := validateKind(kind); err != nil {
		return nil, err
	}

	return s.createCategory(ctx, s.db, name, kind, model.OriginUser)
}

func (s *SQLiteStorage) createCategory(ctx context.Context, q dbtx, name string, kind model.CategoryKind, origin model.CategoryOrigin) (*model.Category, error) {
	if err := validateKind(kind); err != nil {
		return nil, err
	}

	existing, err := s.getCategoryByKey(ctx, q, name, kind)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: category %q (%s)", common.ErrDuplicateEntry, name, kind)
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO categories (name, kind, origin) VALUES (?, ?, ?)`,
		name, string(kind), string(origin))
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category ID: %w", err)
	}

	slog.Debug("created category", "id", id, "name", name, "kind", kind, "origin", origin)

	return s.getCategoryByID(ctx, q, id)
}

// GetCategories returns all categories ordered by kind then name.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCategories(ctx, s.db)
}

func (s *SQLiteStorage) getCategories(ctx context.Context, q dbtx) ([]model.Category, error) {
	query := `
		SELECT id, name, kind, origin, created_at
		FROM categories
		ORDER BY kind, name`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		cat, scanErr := scanCategory(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		categories = append(categories, *cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// GetCategoryByID returns a category by its id, or ErrNotFound.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCategoryByID(ctx, s.db, id)
}

func (s *SQLiteStorage) getCategoryByID(ctx context.Context, q dbtx, id int64) (*model.Category, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, name, kind, origin, created_at FROM categories WHERE id = ?`, id)

	cat, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: category %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// GetCategoryByKey returns the category matching (name, kind), or nil if no
// such category exists.
func (s *SQLiteStorage) GetCategoryByKey(ctx context.Context, name string, kind model.CategoryKind) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCategoryByKey(ctx, s.db, name, kind)
}

func (s *SQLiteStorage) getCategoryByKey(ctx context.Context, q dbtx, name string, kind model.CategoryKind) (*model.Category, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, name, kind, origin, created_at FROM categories WHERE name = ? AND kind = ?`,
		name, string(kind))

	cat, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// DeleteCategory removes a user category. System categories cannot be
// deleted. A category with referencing transactions can only be deleted with
// reassign set, which moves its transactions to the fallback category of the
// same kind first. All of this happens in one transaction.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, id int64, reassign bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cat, err := s.getCategoryByID(ctx, tx, id)
	if err != nil {
		return err
	}
	if cat.IsSystem() {
		return common.Violation("system category %q cannot be deleted", cat.Name)
	}

	var refs int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE category_id = ?`, id).Scan(&refs); err != nil {
		return fmt.Errorf("failed to count referencing transactions: %w", err)
	}

	if refs > 0 {
		if !reassign {
			return common.Violation("category %q still has %d transactions; delete them or reassign first", cat.Name, refs)
		}

		fallback, err := s.getCategoryByKey(ctx, tx, model.NoCategoryName, cat.Kind)
		if err != nil {
			return err
		}
		if fallback == nil {
			return fmt.Errorf("%w: fallback category for kind %s", common.ErrNotFound, cat.Kind)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET category_id = ? WHERE category_id = ?`,
			fallback.ID, id); err != nil {
			return fmt.Errorf("failed to reassign transactions: %w", err)
		}

		slog.Info("reassigned transactions to fallback category",
			"from", cat.Name, "count", refs)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStorage) removeUserData(ctx context.Context, q dbtx) error {
	queries := []string{
		`DELETE FROM transaction_tags`,
		`DELETE FROM transactions`,
		`DELETE FROM tags`,
		`DELETE FROM categories WHERE origin = 'user'`,
	}
	for _, query := range queries {
		if _, err := q.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to remove user data: %w", err)
		}
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanCategory(row scanner) (*model.Category, error) {
	var cat model.Category
	var kind, origin string
	if err := row.Scan(&cat.ID, &cat.Name, &kind, &origin, &cat.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}
	cat.Kind = model.CategoryKind(kind)
	cat.Origin = model.CategoryOrigin(origin)
	return &cat, nil
}
