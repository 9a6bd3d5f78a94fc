package merge

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InViSiB0B/TreasureGoblin/internal/common"
	"github.com/InViSiB0B/TreasureGoblin/internal/model"
	"github.com/InViSiB0B/TreasureGoblin/internal/service"
	"github.com/InViSiB0B/TreasureGoblin/internal/storage"
)

func createTestStorage(t *testing.T) service.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// sourceSnapshot builds a snapshot the way another store would export it:
// its own category ids, its own transaction ids.
func sourceSnapshot() *model.Snapshot {
	return &model.Snapshot{
		CreatedAt: day(2026, 3, 15),
		Categories: []model.Category{
			{ID: 77, Name: "Grocery", Kind: model.KindExpense, Origin: model.OriginUser},
			{ID: 78, Name: "Vet Bills", Kind: model.KindExpense, Origin: model.OriginUser},
		},
		Tags: []model.Tag{{ID: 5, Name: "pets"}},
		Transactions: []model.Transaction{
			{ID: 900, Date: day(2026, 3, 5), Amount: 1250, CategoryID: 77,
				CreatedAt: day(2026, 3, 5)},
			{ID: 901, Date: day(2026, 3, 8), Amount: 8000, CategoryID: 78,
				Tags: []string{"pets"}, CreatedAt: day(2026, 3, 8)},
		},
	}
}

func TestApply_Merge(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	// Target already holds the Grocery purchase, recorded independently with
	// a different local id.
	grocery, err := store.GetCategoryByKey(ctx, "Grocery", model.KindExpense)
	require.NoError(t, err)
	require.NotNil(t, grocery)
	_, err = store.AddTransaction(ctx, &model.Transaction{
		Date: day(2026, 3, 5), Amount: 1250, CategoryID: grocery.ID,
	})
	require.NoError(t, err)

	result, err := Apply(ctx, store, sourceSnapshot(), PolicyMerge)
	require.NoError(t, err)

	// Grocery matched by (name, kind), never duplicated; Vet Bills is new.
	assert.Equal(t, 1, result.CategoriesAdded)
	assert.Equal(t, 1, result.TagsAdded)
	assert.Equal(t, 1, result.TransactionsAdded)
	assert.Equal(t, 1, result.DuplicatesSkipped)

	txns, err := store.ListTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txns, 2)

	vet, err := store.GetCategoryByKey(ctx, "Vet Bills", model.KindExpense)
	require.NoError(t, err)
	require.NotNil(t, vet)
	assert.NotEqual(t, int64(78), vet.ID, "source ids must not leak into the target")
}

func TestApply_MergeIsIdempotent(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	first, err := Apply(ctx, store, sourceSnapshot(), PolicyMerge)
	require.NoError(t, err)
	assert.Equal(t, 2, first.TransactionsAdded)

	second, err := Apply(ctx, store, sourceSnapshot(), PolicyMerge)
	require.NoError(t, err)
	assert.Equal(t, 0, second.TransactionsAdded)
	assert.Equal(t, 0, second.CategoriesAdded)
	assert.Equal(t, 0, second.TagsAdded)
	assert.Equal(t, 2, second.DuplicatesSkipped)

	txns, err := store.ListTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestApply_EmptySourceIsNoOp(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	before, err := store.GetCategories(ctx)
	require.NoError(t, err)

	result, err := Apply(ctx, store, &model.Snapshot{}, PolicyMerge)
	require.NoError(t, err)
	assert.Equal(t, &Result{}, result)

	after, err := store.GetCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestApply_MergeDuplicateSourceTuples(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	// Two source transactions with identical content but different record
	// times: only the earlier one lands.
	source := &model.Snapshot{
		Categories: []model.Category{
			{ID: 1, Name: "Grocery", Kind: model.KindExpense, Origin: model.OriginUser},
		},
		Transactions: []model.Transaction{
			{ID: 1, Date: day(2026, 3, 5), Amount: 1250, CategoryID: 1,
				Note: "later copy", CreatedAt: day(2026, 3, 7)},
			{ID: 2, Date: day(2026, 3, 5), Amount: 1250, CategoryID: 1,
				Note: "earlier copy", CreatedAt: day(2026, 3, 5)},
		},
	}

	result, err := Apply(ctx, store, source, PolicyMerge)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TransactionsAdded)
	assert.Equal(t, 1, result.DuplicatesSkipped)

	txns, err := store.ListTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "earlier copy", txns[0].Note)
}

func TestApply_NoteDoesNotAffectIdentity(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	grocery, err := store.GetCategoryByKey(ctx, "Grocery", model.KindExpense)
	require.NoError(t, err)
	_, err = store.AddTransaction(ctx, &model.Transaction{
		Date: day(2026, 3, 5), Amount: 1250, CategoryID: grocery.ID, Note: "local note",
	})
	require.NoError(t, err)

	source := &model.Snapshot{
		Categories: []model.Category{
			{ID: 1, Name: "Grocery", Kind: model.KindExpense, Origin: model.OriginUser},
		},
		Transactions: []model.Transaction{
			{ID: 1, Date: day(2026, 3, 5), Amount: 1250, CategoryID: 1,
				Note: "totally different note", CreatedAt: day(2026, 3, 5)},
		},
	}

	result, err := Apply(ctx, store, source, PolicyMerge)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TransactionsAdded)
	assert.Equal(t, 1, result.DuplicatesSkipped)
}

func TestApply_Replace(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	// Pre-existing target data that must be discarded.
	dining, err := store.GetCategoryByKey(ctx, "Dining", model.KindExpense)
	require.NoError(t, err)
	_, err = store.AddTransaction(ctx, &model.Transaction{
		Date: day(2026, 1, 1), Amount: 4200, CategoryID: dining.ID, Tags: []string{"doomed"},
	})
	require.NoError(t, err)

	result, err := Apply(ctx, store, sourceSnapshot(), PolicyReplace)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TransactionsAdded)

	txns, err := store.ListTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	for _, txn := range txns {
		assert.NotEqual(t, int64(4200), txn.Amount, "pre-existing data should be gone")
	}

	// System fallback categories survive a replace.
	for _, kind := range []model.CategoryKind{model.KindIncome, model.KindExpense} {
		fallback, err := store.GetCategoryByKey(ctx, model.NoCategoryName, kind)
		require.NoError(t, err)
		assert.NotNil(t, fallback)
	}

	// User categories not present in the source are gone.
	gone, err := store.GetCategoryByKey(ctx, "Dining", model.KindExpense)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestApply_ReplaceWithEmptySource(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	grocery, err := store.GetCategoryByKey(ctx, "Grocery", model.KindExpense)
	require.NoError(t, err)
	_, err = store.AddTransaction(ctx, &model.Transaction{
		Date: day(2026, 1, 1), Amount: 100, CategoryID: grocery.ID,
	})
	require.NoError(t, err)

	result, err := Apply(ctx, store, &model.Snapshot{}, PolicyReplace)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TransactionsAdded)

	txns, err := store.ListTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txns)

	categories, err := store.GetCategories(ctx)
	require.NoError(t, err)
	for _, cat := range categories {
		assert.True(t, cat.IsSystem(), "only system categories should survive, found %q", cat.Name)
	}
}

func TestApply_AtomicRollbackOnBadSource(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	// Source with one valid and one invalid transaction. The valid one must
	// not survive the failed merge.
	source := &model.Snapshot{
		Categories: []model.Category{
			{ID: 1, Name: "Sneaky", Kind: model.KindExpense, Origin: model.OriginUser},
		},
		Transactions: []model.Transaction{
			{ID: 1, Date: day(2026, 3, 1), Amount: 500, CategoryID: 1, CreatedAt: day(2026, 3, 1)},
			{ID: 2, Date: day(2026, 3, 2), Amount: 0, CategoryID: 1, CreatedAt: day(2026, 3, 2)},
		},
	}

	_, err := Apply(ctx, store, source, PolicyMerge)
	require.Error(t, err)

	var mergeErr *common.MergeError
	require.ErrorAs(t, err, &mergeErr)

	txns, err := store.ListTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txns, "failed merge must leave no partial writes")

	sneaky, err := store.GetCategoryByKey(ctx, "Sneaky", model.KindExpense)
	require.NoError(t, err)
	assert.Nil(t, sneaky, "failed merge must roll back category creation")
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Policy
		wantErr bool
	}{
		{"merge", "merge", PolicyMerge, false},
		{"replace", "replace", PolicyReplace, false},
		{"unknown", "overwrite", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePolicy(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, common.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
