// Package backup provides the file-based import/export entry points the
// surrounding application consumes.
package backup

import (
	"context"
	"fmt"
	"os"

	"github.com/InViSiB0B/TreasureGoblin/internal/merge"
	"github.com/InViSiB0B/TreasureGoblin/internal/service"
	"github.com/InViSiB0B/TreasureGoblin/internal/snapshot"
)

// ExportToFile takes a consistent snapshot of the ledger, encrypts it with
// the passphrase, and writes it to path.
func ExportToFile(ctx context.Context, store service.Storage, path, passphrase string) error {
	snap, err := store.Export(ctx)
	if err != nil {
		return fmt.Errorf("failed to export ledger: %w", err)
	}

	data, err := snapshot.EncodeWithPassphrase(snap, passphrase)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	return nil
}

// ImportFromFile decodes the archive at path and applies it to the ledger
// under the given policy. Decode failures and merge failures are returned as
// their typed errors; the ledger is never left partially imported.
func ImportFromFile(ctx context.Context, store service.Storage, path, passphrase string, policy merge.Policy) (*merge.Result, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	snap, err := snapshot.DecodeWithPassphrase(data, passphrase)
	if err != nil {
		return nil, err
	}

	return merge.Apply(ctx, store, snap, policy)
}
