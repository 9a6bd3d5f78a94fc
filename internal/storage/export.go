package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/InViSiB0B/TreasureGoblin/internal/model"
	"github.com/InViSiB0B/TreasureGoblin/internal/service"
)

// Export reads the entire ledger inside one transaction, so the snapshot is
// a consistent point-in-time view even while other readers are active. The
// result is deterministically ordered: identical stores export identical
// snapshots.
func (s *SQLiteStorage) Export(ctx context.Context) (*model.Snapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	categories, err := s.getCategories(ctx, tx)
	if err != nil {
		return nil, err
	}

	tags, err := s.getTags(ctx, tx)
	if err != nil {
		return nil, err
	}

	txns, err := s.listTransactions(ctx, tx, service.TransactionFilter{})
	if err != nil {
		return nil, err
	}

	sort.Slice(txns, func(i, j int) bool {
		a, b := &txns[i], &txns[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Amount != b.Amount {
			return a.Amount < b.Amount
		}
		if a.CategoryID != b.CategoryID {
			return a.CategoryID < b.CategoryID
		}
		return a.ID < b.ID
	})

	return &model.Snapshot{
		CreatedAt:    time.Now().UTC(),
		Categories:   categories,
		Tags:         tags,
		Transactions: txns,
	}, nil
}
