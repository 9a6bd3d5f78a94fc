// Package service defines the interfaces shared by the application components.
package service

import (
	"context"
	"time"

	"github.com/InViSiB0B/TreasureGoblin/internal/model"
)

// TransactionFilter defines filtering options for ledger queries.
type TransactionFilter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	Tag        string
	CategoryID int64
	Limit      int
	Offset     int
}

// CategorySummary aggregates one category's activity within a report.
type CategorySummary struct {
	Name  string
	Kind  model.CategoryKind
	Count int
	Total int64
}

// MonthSummary reports one calendar month of ledger activity. Totals are in
// minor currency units.
type MonthSummary struct {
	ByCategory   []CategorySummary
	Month        time.Month
	Year         int
	TotalIncome  int64
	TotalExpense int64
}

// Storage defines the contract for the ledger persistence layer. Every
// mutating operation validates the store invariants before applying and is
// all-or-nothing per call: on error the store is unchanged.
type Storage interface {
	// Category operations
	AddCategory(ctx context.Context, name string, kind model.CategoryKind) (*model.Category, error)
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*model.Category, error)
	GetCategoryByKey(ctx context.Context, name string, kind model.CategoryKind) (*model.Category, error)
	DeleteCategory(ctx context.Context, id int64, reassign bool) error

	// Tag operations
	GetTags(ctx context.Context) ([]model.Tag, error)

	// Transaction operations
	AddTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	EditTransaction(ctx context.Context, txn *model.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	MonthSummary(ctx context.Context, year int, month time.Month) (*MonthSummary, error)

	// Export takes a consistent point-in-time view of the full ledger.
	Export(ctx context.Context) (*model.Snapshot, error)

	// Settings persistence (sync bookkeeping)
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a single storage transaction used by merge and import. Mutations
// made through it become visible atomically on Commit and are discarded
// entirely on Rollback.
type Tx interface {
	Commit() error
	Rollback() error

	GetCategories(ctx context.Context) ([]model.Category, error)
	GetTags(ctx context.Context) ([]model.Tag, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)

	// CreateCategory inserts a category with a fresh store-scoped id,
	// preserving the given origin.
	CreateCategory(ctx context.Context, name string, kind model.CategoryKind, origin model.CategoryOrigin) (*model.Category, error)
	// EnsureTag returns the named tag, creating it if absent.
	EnsureTag(ctx context.Context, name string) (*model.Tag, error)
	// InsertTransaction inserts txn with a fresh store-scoped id, preserving
	// its CreatedAt timestamp.
	InsertTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	// RemoveUserData deletes all transactions, all tags, and all user
	// categories. System categories survive.
	RemoveUserData(ctx context.Context) error
}

// Handle identifies one stored object in the remote object store.
type Handle struct {
	CreatedAt time.Time
	ID        string
	Name      string
}

// ObjectStore is the remote backup capability. Implementations must only
// return a handle from Put once the upload has fully landed; a partial
// upload is unreferenced garbage, never a handle.
type ObjectStore interface {
	Put(ctx context.Context, name string, data []byte) (Handle, error)
	Get(ctx context.Context, h Handle) ([]byte, error)
	// ListHandles returns known backups, newest first.
	ListHandles(ctx context.Context) ([]Handle, error)
}

// RetryOptions configures retry behavior for remote operations.
type RetryOptions struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
	Multiplier     float64
}
