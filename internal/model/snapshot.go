package model

import "time"

// Snapshot is an immutable point-in-time copy of the full ledger: every
// category, tag, and transaction, plus the archive format version and the
// creation timestamp. A snapshot carries no back-reference to the store that
// produced it; ids inside it are only meaningful relative to each other.
type Snapshot struct {
	CreatedAt     time.Time
	Categories    []Category
	Tags          []Tag
	Transactions  []Transaction
	FormatVersion int
}
