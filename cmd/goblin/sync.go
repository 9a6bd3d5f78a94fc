package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/InViSiB0B/TreasureGoblin/internal/cli"
	"github.com/InViSiB0B/TreasureGoblin/internal/config"
	"github.com/InViSiB0B/TreasureGoblin/internal/merge"
	"github.com/InViSiB0B/TreasureGoblin/internal/remote"
	"github.com/InViSiB0B/TreasureGoblin/internal/service"
	"github.com/InViSiB0B/TreasureGoblin/internal/snapshot"
	"github.com/InViSiB0B/TreasureGoblin/internal/syncer"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Back up the ledger to Google Drive",
	}

	cmd.AddCommand(syncNowCmd())
	cmd.AddCommand(syncRunCmd())
	cmd.AddCommand(syncStatusCmd())
	cmd.AddCommand(syncPullCmd())

	return cmd
}

// checkAutoSync gives the scheduler a close check after a command changed the
// ledger. It is best effort: with sync.frequency manual, or without Drive
// credentials, the command's own work already succeeded and nothing is owed.
func checkAutoSync(ctx context.Context, store service.Storage) {
	syncCfg, err := config.LoadSyncConfig()
	if err != nil || syncCfg.Frequency == syncer.FrequencyManual {
		return
	}

	sched, err := initScheduler(ctx, store)
	if err != nil {
		slog.Debug("automatic sync skipped", "error", err)
		return
	}

	sched.Check(ctx, syncer.EventClose)
}

// initScheduler wires storage, the Drive store, and retry settings into a
// scheduler ready for one-shot use.
func initScheduler(ctx context.Context, store service.Storage) (*syncer.Scheduler, error) {
	syncCfg, err := config.LoadSyncConfig()
	if err != nil {
		return nil, err
	}

	driveCfg, folder, err := config.LoadDriveConfig()
	if err != nil {
		return nil, err
	}

	passphrase, err := config.LoadPassphrase()
	if err != nil {
		return nil, err
	}

	token, err := remote.GetOrCreateToken(ctx, driveCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate with Google Drive: %w", err)
	}

	drive, err := remote.NewDriveStore(ctx, driveCfg, token, folder, remote.WithProgress(os.Stderr))
	if err != nil {
		return nil, err
	}

	return syncer.New(store, drive, passphrase, syncCfg.Frequency, syncCfg.Retry), nil
}

func syncNowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Export and upload a backup immediately",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			sched, err := initScheduler(ctx, store)
			if err != nil {
				return err
			}

			if err := sched.SyncNow(ctx); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess("Backup uploaded"))
			return nil
		},
	}
}

func syncRunCmd() *cobra.Command {
	var tickFlag time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep syncing on the configured schedule until interrupted",
		Long: `Run the sync scheduler in the foreground. It checks the schedule on start,
then on every tick, and once more when the process is interrupted, so an
on_close frequency still gets its final backup.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			sched, err := initScheduler(ctx, store)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatInfo("Scheduler running, Ctrl-C to stop"))
			if err := sched.Run(ctx, tickFlag); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&tickFlag, "tick", time.Minute, "how often to re-check the schedule")

	return cmd
}

func syncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last sync time and remote backups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			last, err := store.GetSetting(ctx, "sync.last_timestamp")
			if err != nil {
				return err
			}
			if last == "" {
				fmt.Println(cli.FormatInfo("Never synced"))
			} else {
				fmt.Println(cli.FormatInfo("Last synced " + last))
			}

			sched, err := initScheduler(ctx, store)
			if err != nil {
				return err
			}

			latest, err := sched.LatestBackup(ctx)
			if err != nil {
				fmt.Println(cli.FormatWarning("No remote backups found"))
				return nil
			}

			fmt.Printf("  %s %s (%s)\n", cli.CloudIcon, latest.Name,
				latest.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func syncPullCmd() *cobra.Command {
	var policyFlag string

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download the newest remote backup and apply it",
		Long: `Fetch the most recent backup from Google Drive, decode it, and apply it
to the local ledger under the given merge policy.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			sched, err := initScheduler(ctx, store)
			if err != nil {
				return err
			}

			latest, err := sched.LatestBackup(ctx)
			if err != nil {
				return err
			}

			data, err := sched.Pull(ctx, latest)
			if err != nil {
				return err
			}

			snap, err := snapshot.DecodeWithPassphrase(data, passphrase)
			if err != nil {
				return err
			}

			result, err := merge.Apply(ctx, store, snap, policy)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf(
				"Pulled %s: %d transactions added, %d duplicates skipped",
				latest.Name, result.TransactionsAdded, result.DuplicatesSkipped)))
			return nil
		},
	}

	cmd.Flags().StringVar(&policyFlag, "policy", "merge", "how to apply the backup (merge or replace)")

	return cmd
}
