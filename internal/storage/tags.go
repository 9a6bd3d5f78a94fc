package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/InViSiB0B/TreasureGoblin/internal/model"
)

// GetTags returns all tags ordered by name.
func (s *SQLiteStorage) GetTags(ctx context.Context) ([]model.Tag, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTags(ctx, s.db)
}

func (s *SQLiteStorage) getTags(ctx context.Context, q dbtx) ([]model.Tag, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tags []model.Tag
	for rows.Next() {
		var tag model.Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}

	return tags, nil
}

// ensureTag returns the named tag, creating it if absent. Matching is exact
// and case-sensitive.
func (s *SQLiteStorage) ensureTag(ctx context.Context, q dbtx, name string) (*model.Tag, error) {
	if err := validateString(name, "tag name"); err != nil {
		return nil, err
	}

	var tag model.Tag
	err := q.QueryRowContext(ctx, `SELECT id, name FROM tags WHERE name = ?`, name).
		Scan(&tag.ID, &tag.Name)
	if err == nil {
		return &tag, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query tag: %w", err)
	}

	result, err := q.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get tag ID: %w", err)
	}

	return &model.Tag{ID: id, Name: name}, nil
}

// setTransactionTags replaces the tag set of a transaction.
func (s *SQLiteStorage) setTransactionTags(ctx context.Context, q dbtx, txnID int64, tags []string) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM transaction_tags WHERE transaction_id = ?`, txnID); err != nil {
		return fmt.Errorf("failed to clear transaction tags: %w", err)
	}

	for _, name := range tags {
		tag, err := s.ensureTag(ctx, q, name)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			`INSERT INTO transaction_tags (transaction_id, tag_id) VALUES (?, ?)`,
			txnID, tag.ID); err != nil {
			return fmt.Errorf("failed to attach tag %q: %w", name, err)
		}
	}

	return nil
}
