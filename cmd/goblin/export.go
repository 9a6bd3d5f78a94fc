package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/InViSiB0B/TreasureGoblin/internal/backup"
	"github.com/InViSiB0B/TreasureGoblin/internal/cli"
	"github.com/InViSiB0B/TreasureGoblin/internal/config"
	"github.com/InViSiB0B/TreasureGoblin/internal/syncer"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export the ledger to an encrypted archive",
		Long: `Write the full ledger to an encrypted archive file. Without a file
argument the archive lands in backup.directory under a generated name.
The passphrase comes from GOBLIN_PASSPHRASE or backup.passphrase in the
config file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			passphrase, err := config.LoadPassphrase()
			if err != nil {
				return err
			}

			var path string
			if len(args) == 1 {
				path = config.ExpandPath(args[0])
			} else {
				dir, err := config.LoadBackupDirectory()
				if err != nil {
					return err
				}
				if err := os.MkdirAll(dir, 0700); err != nil {
					return fmt.Errorf("failed to create backup directory: %w", err)
				}
				path = filepath.Join(dir, syncer.BackupName(time.Now()))
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := backup.ExportToFile(ctx, store, path, passphrase); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess("Exported ledger to " + path))
			return nil
		},
	}

	return cmd
}
