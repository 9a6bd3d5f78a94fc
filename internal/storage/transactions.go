package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/InViSiB0B/TreasureGoblin/internal/common"
	"github.com/InViSiB0B/TreasureGoblin/internal/model"
	"github.com/InViSiB0B/TreasureGoblin/internal/service"
)

// dateLayout is how transaction dates are stored. Dates have no time
// component; calendar order is string order.
const dateLayout = "2006-01-02"

// AddTransaction validates and stores a new transaction, returning the
// stored copy with its assigned id. The category must exist; tags are
// created as needed. The whole insert is one transaction.
func (s *SQLiteStorage) AddTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateTransaction(txn); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stored, err := s.insertTransaction(ctx, tx, txn)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return stored, nil
}

func (s *SQLiteStorage) insertTransaction(ctx context.Context, q dbtx, txn *model.Transaction) (*model.Transaction, error) {
	if err := validateTransaction(txn); err != nil {
		return nil, err
	}

	if _, err := s.getCategoryByID(ctx, q, txn.CategoryID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Violation("transaction references missing category %d", txn.CategoryID)
		}
		return nil, err
	}

	stored := *txn
	stored.NormalizeTags()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO transactions (amount, date, category_id, note, created_at) VALUES (?, ?, ?, ?, ?)`,
		stored.Amount, stored.Date.Format(dateLayout), stored.CategoryID, stored.Note, stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction ID: %w", err)
	}
	stored.ID = id

	if err := s.setTransactionTags(ctx, q, id, stored.Tags); err != nil {
		return nil, err
	}

	return &stored, nil
}

// EditTransaction replaces an existing transaction's fields. The new
// category must exist; the update is all-or-nothing.
func (s *SQLiteStorage) EditTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	if txn.ID <= 0 {
		return fmt.Errorf("%w: transaction id", ErrNilParameter)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE id = ?`, txn.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check transaction: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: transaction %d", common.ErrNotFound, txn.ID)
	}

	if _, err := s.getCategoryByID(ctx, tx, txn.CategoryID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.Violation("transaction references missing category %d", txn.CategoryID)
		}
		return err
	}

	updated := *txn
	updated.NormalizeTags()

	if _, err := tx.ExecContext(ctx,
		`UPDATE transactions SET amount = ?, date = ?, category_id = ?, note = ? WHERE id = ?`,
		updated.Amount, updated.Date.Format(dateLayout), updated.CategoryID, updated.Note, updated.ID); err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	if err := s.setTransactionTags(ctx, tx, updated.ID, updated.Tags); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteTransaction removes a transaction and its tag links.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transaction %d", common.ErrNotFound, id)
	}

	return nil
}

// ListTransactions returns transactions matching the filter, newest first.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listTransactions(ctx, s.db, filter)
}

func (s *SQLiteStorage) listTransactions(ctx context.Context, q dbtx, filter service.TransactionFilter) ([]model.Transaction, error) {
	query := `
		SELECT t.id, t.amount, t.date, t.category_id, t.note, t.created_at
		FROM transactions t`

	var conditions []string
	var args []any

	if filter.StartDate != nil {
		conditions = append(conditions, "t.date >= ?")
		args = append(args, filter.StartDate.Format(dateLayout))
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "t.date <= ?")
		args = append(args, filter.EndDate.Format(dateLayout))
	}
	if filter.CategoryID > 0 {
		conditions = append(conditions, "t.category_id = ?")
		args = append(args, filter.CategoryID)
	}
	if filter.Tag != "" {
		conditions = append(conditions, `EXISTS (
			SELECT 1 FROM transaction_tags tt
			JOIN tags g ON g.id = tt.tag_id
			WHERE tt.transaction_id = t.id AND g.name = ?)`)
		args = append(args, filter.Tag)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY t.date DESC, t.id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		txns = append(txns, *txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	if err := s.loadTransactionTags(ctx, q, txns); err != nil {
		return nil, err
	}

	return txns, nil
}

// loadTransactionTags fills the Tags field for a batch of transactions with
// a single query.
func (s *SQLiteStorage) loadTransactionTags(ctx context.Context, q dbtx, txns []model.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	placeholders := make([]string, len(txns))
	args := make([]any, len(txns))
	index := make(map[int64]int, len(txns))
	for i := range txns {
		placeholders[i] = "?"
		args[i] = txns[i].ID
		index[txns[i].ID] = i
	}

	query := fmt.Sprintf(`
		SELECT tt.transaction_id, g.name
		FROM transaction_tags tt
		JOIN tags g ON g.id = tt.tag_id
		WHERE tt.transaction_id IN (%s)
		ORDER BY g.name`, strings.Join(placeholders, ", "))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query transaction tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var txnID int64
		var name string
		if err := rows.Scan(&txnID, &name); err != nil {
			return fmt.Errorf("failed to scan transaction tag: %w", err)
		}
		i := index[txnID]
		txns[i].Tags = append(txns[i].Tags, name)
	}

	return rows.Err()
}

// MonthSummary aggregates one calendar month of activity by category.
func (s *SQLiteStorage) MonthSummary(ctx context.Context, year int, month time.Month) (*service.MonthSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	query := `
		SELECT c.name, c.kind, COUNT(*), SUM(t.amount)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.date >= ? AND t.date < ?
		GROUP BY c.id
		ORDER BY c.kind, c.name`

	rows, err := s.db.QueryContext(ctx, query,
		start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query month summary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summary := &service.MonthSummary{Year: year, Month: month}
	for rows.Next() {
		var cs service.CategorySummary
		var kind string
		if err := rows.Scan(&cs.Name, &kind, &cs.Count, &cs.Total); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		cs.Kind = model.CategoryKind(kind)
		switch cs.Kind {
		case model.KindIncome:
			summary.TotalIncome += cs.Total
		case model.KindExpense:
			summary.TotalExpense += cs.Total
		}
		summary.ByCategory = append(summary.ByCategory, cs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary: %w", err)
	}

	return summary, nil
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	var txn model.Transaction
	var date string
	if err := row.Scan(&txn.ID, &txn.Amount, &date, &txn.CategoryID, &txn.Note, &txn.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	parsed, err := time.ParseInLocation(dateLayout, date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction date %q: %w", date, err)
	}
	txn.Date = parsed

	return &txn, nil
}
