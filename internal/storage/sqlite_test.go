package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/InViSiB0B/TreasureGoblin/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func mustCategory(t *testing.T, store *SQLiteStorage, name string, kind model.CategoryKind) *model.Category {
	t.Helper()
	cat, err := store.GetCategoryByKey(context.Background(), name, kind)
	if err != nil {
		t.Fatalf("Failed to look up category %q: %v", name, err)
	}
	if cat == nil {
		t.Fatalf("Category %q (%s) not found", name, kind)
	}
	return cat
}

func TestMigrate_SeedsCategories(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	categories, err := store.GetCategories(ctx)
	if err != nil {
		t.Fatalf("Failed to get categories: %v", err)
	}
	if len(categories) == 0 {
		t.Fatal("Expected seeded categories, got none")
	}

	// The fallback category must exist once per kind, marked system.
	for _, kind := range []model.CategoryKind{model.KindIncome, model.KindExpense} {
		fallback := mustCategory(t, store, model.NoCategoryName, kind)
		if !fallback.IsSystem() {
			t.Errorf("Fallback %s category should be system, got origin %q", kind, fallback.Origin)
		}
	}

	// A few representative defaults.
	for _, tc := range []struct {
		name string
		kind model.CategoryKind
	}{
		{"Paycheck", model.KindIncome},
		{"Grocery", model.KindExpense},
		{"Other Expense", model.KindExpense},
	} {
		cat := mustCategory(t, store, tc.name, tc.kind)
		if cat.IsSystem() {
			t.Errorf("Default category %q should be user origin", tc.name)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	before, err := store.GetCategories(ctx)
	if err != nil {
		t.Fatalf("Failed to get categories: %v", err)
	}

	// Running migrations again must change nothing.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Second migrate failed: %v", err)
	}

	after, err := store.GetCategories(ctx)
	if err != nil {
		t.Fatalf("Failed to get categories: %v", err)
	}
	if len(before) != len(after) {
		t.Errorf("Expected %d categories after re-migrate, got %d", len(before), len(after))
	}
}

func TestSettings(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	// Missing key reads as empty.
	value, err := store.GetSetting(ctx, "sync.last_timestamp")
	if err != nil {
		t.Fatalf("Failed to get setting: %v", err)
	}
	if value != "" {
		t.Errorf("Expected empty value for unset key, got %q", value)
	}

	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := store.SetSetting(ctx, "sync.last_timestamp", stamp); err != nil {
		t.Fatalf("Failed to set setting: %v", err)
	}

	value, err = store.GetSetting(ctx, "sync.last_timestamp")
	if err != nil {
		t.Fatalf("Failed to get setting: %v", err)
	}
	if value != stamp {
		t.Errorf("Expected %q, got %q", stamp, value)
	}

	// Upsert overwrites.
	if err := store.SetSetting(ctx, "sync.last_timestamp", "later"); err != nil {
		t.Fatalf("Failed to overwrite setting: %v", err)
	}
	value, _ = store.GetSetting(ctx, "sync.last_timestamp")
	if value != "later" {
		t.Errorf("Expected overwritten value, got %q", value)
	}
}

func TestExport_SortedAndComplete(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	grocery := mustCategory(t, store, "Grocery", model.KindExpense)
	paycheck := mustCategory(t, store, "Paycheck", model.KindIncome)

	for _, txn := range []model.Transaction{
		{Date: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), Amount: 1250, CategoryID: grocery.ID, Tags: []string{"weekly"}},
		{Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Amount: 500000, CategoryID: paycheck.ID},
		{Date: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), Amount: 300, CategoryID: grocery.ID},
	} {
		if _, err := store.AddTransaction(ctx, &txn); err != nil {
			t.Fatalf("Failed to add transaction: %v", err)
		}
	}

	snap, err := store.Export(ctx)
	if err != nil {
		t.Fatalf("Failed to export: %v", err)
	}

	if snap.CreatedAt.IsZero() {
		t.Error("Export should stamp CreatedAt")
	}
	if len(snap.Transactions) != 3 {
		t.Fatalf("Expected 3 transactions, got %d", len(snap.Transactions))
	}
	if len(snap.Tags) != 1 || snap.Tags[0].Name != "weekly" {
		t.Errorf("Expected tag set [weekly], got %v", snap.Tags)
	}

	// Deterministic order: date, then amount.
	for i := 1; i < len(snap.Transactions); i++ {
		prev, cur := snap.Transactions[i-1], snap.Transactions[i]
		if cur.Date.Before(prev.Date) {
			t.Errorf("Transactions out of date order at %d", i)
		}
		if cur.Date.Equal(prev.Date) && cur.Amount < prev.Amount {
			t.Errorf("Transactions out of amount order at %d", i)
		}
	}
}
