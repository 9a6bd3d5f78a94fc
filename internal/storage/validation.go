// Package storage provides the data persistence layer for the goblin ledger.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/InViSiB0B/TreasureGoblin/internal/common"
	"github.com/InViSiB0B/TreasureGoblin/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction checks the store-independent transaction rules. The
// category reference is checked separately, inside the mutating transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.Amount <= 0 {
		return common.Violation("transaction amount must be a positive magnitude, got %d", txn.Amount)
	}
	if txn.Date.IsZero() {
		return common.Violation("transaction date is required")
	}
	if txn.CategoryID <= 0 {
		return common.Violation("transaction must reference a category")
	}
	return nil
}

// validateKind ensures a category kind is known.
func validateKind(kind model.CategoryKind) error {
	if !kind.Valid() {
		return common.Violation("unknown category kind %q", kind)
	}
	return nil
}
