// Package model defines the core data types for the goblin ledger.
package model

import "time"

// CategoryKind indicates whether a category applies to income or expense
// transactions.
type CategoryKind string

const (
	// KindIncome marks categories for money coming in.
	KindIncome CategoryKind = "income"
	// KindExpense marks categories for money going out.
	KindExpense CategoryKind = "expense"
)

// Valid reports whether k is a known category kind.
func (k CategoryKind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// CategoryOrigin records who created a category. System categories are
// seeded once at store initialization; they are immutable and non-deletable.
type CategoryOrigin string

const (
	// OriginSystem marks seed categories managed by the application.
	OriginSystem CategoryOrigin = "system"
	// OriginUser marks categories created by the user.
	OriginUser CategoryOrigin = "user"
)

// NoCategoryName is the system fallback category that exists once per kind.
// Transactions left behind by a category deletion are reassigned here.
const NoCategoryName = "{No Category}"

// Category represents a transaction category.
type Category struct {
	CreatedAt time.Time
	Name      string
	Kind      CategoryKind
	Origin    CategoryOrigin
	ID        int64
}

// IsSystem reports whether the category is a protected system category.
func (c *Category) IsSystem() bool {
	return c.Origin == OriginSystem
}

// CategoryKey is the logical identity of a category across independent
// stores. Numeric ids are only unique within one store, so cross-store
// matching always goes through (name, kind).
type CategoryKey struct {
	Name string
	Kind CategoryKind
}

// Key returns the category's cross-store identity.
func (c *Category) Key() CategoryKey {
	return CategoryKey{Name: c.Name, Kind: c.Kind}
}
