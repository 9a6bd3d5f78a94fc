package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/InViSiB0B/TreasureGoblin/internal/config"
	"github.com/InViSiB0B/TreasureGoblin/internal/model"
	"github.com/InViSiB0B/TreasureGoblin/internal/service"
	"github.com/InViSiB0B/TreasureGoblin/internal/storage"
)

const dateLayout = "2006-01-02"

// initStorage initializes the ledger database with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/goblin/goblin.db"
	}

	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// parseAmount converts a decimal money string like "12.50" into integer
// minor units. Negative and zero amounts are rejected; direction comes from
// the category kind, not the sign.
func parseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Sign() <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %s", s)
	}

	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than two decimal places", s)
	}
	return cents.IntPart(), nil
}

// formatAmount renders integer minor units as a decimal money string.
func formatAmount(minor int64) string {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// parseDate parses a YYYY-MM-DD transaction date.
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// resolveCategory finds a category by name, preferring the given kind when
// both an income and an expense category share the name.
func resolveCategory(ctx context.Context, store service.Storage, name string, kind model.CategoryKind) (*model.Category, error) {
	if kind != "" {
		cat, err := store.GetCategoryByKey(ctx, name, kind)
		if err != nil {
			return nil, err
		}
		if cat == nil {
			return nil, fmt.Errorf("no %s category named %q", kind, name)
		}
		return cat, nil
	}

	var found *model.Category
	for _, k := range []model.CategoryKind{model.KindExpense, model.KindIncome} {
		cat, err := store.GetCategoryByKey(ctx, name, k)
		if err != nil {
			return nil, err
		}
		if cat == nil {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("category %q exists as both income and expense, pass --kind", name)
		}
		found = cat
	}
	if found == nil {
		return nil, fmt.Errorf("no category named %q", name)
	}
	return found, nil
}
