package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/InViSiB0B/TreasureGoblin/internal/backup"
	"github.com/InViSiB0B/TreasureGoblin/internal/cli"
	"github.com/InViSiB0B/TreasureGoblin/internal/config"
	"github.com/InViSiB0B/TreasureGoblin/internal/merge"
)

func importCmd() *cobra.Command {
	var policyFlag string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import an encrypted archive into the ledger",
		Long: `Decode an encrypted archive and apply it to the ledger.

With --policy merge (the default) records are reconciled: categories match
by name and kind, and transactions already present are skipped. With
--policy replace the current user data is discarded and rebuilt from the
archive.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			policy, err := merge.ParsePolicy(policyFlag)
			if err != nil {
				return err
			}

			passphrase, err := config.LoadPassphrase()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := backup.ImportFromFile(ctx, store, config.ExpandPath(args[0]), passphrase, policy)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf(
				"Imported %d transactions (%d duplicates skipped, %d categories added, %d tags added)",
				result.TransactionsAdded, result.DuplicatesSkipped,
				result.CategoriesAdded, result.TagsAdded)))
			checkAutoSync(ctx, store)
			return nil
		},
	}

	cmd.Flags().StringVar(&policyFlag, "policy", "merge", "how to apply the archive (merge or replace)")

	return cmd
}
