package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joescharf/codereview/internal/output"
	"github.com/joescharf/codereview/internal/review"
	"github.com/joescharf/codereview/internal/store"
)

var (
	snapshotsDBPath string
	snapshotsRef    string
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect snapshots saved by 'export --format sqlite'",
	Long: `List, show, and remove catalog snapshots in the export database.

Running bare 'codereview snapshots' is the same as 'codereview snapshots list'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return snapshotsListRun(cmd.Context())
	},
}

var snapshotsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List snapshots, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return snapshotsListRun(cmd.Context())
	},
}

var snapshotsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the reviews captured in a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return snapshotsShowRun(cmd.Context(), args[0])
	},
}

var snapshotsRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a snapshot",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return snapshotsRemoveRun(cmd.Context(), args[0])
	},
}

func init() {
	snapshotsCmd.PersistentFlags().StringVar(&snapshotsDBPath, "db", "", "SQLite database path (default: .git/codereview.db)")
	snapshotsListCmd.Flags().StringVar(&snapshotsRef, "ref", "", "Only snapshots of this branch")
	snapshotsCmd.Flags().StringVar(&snapshotsRef, "ref", "", "Only snapshots of this branch")

	snapshotsCmd.AddCommand(snapshotsListCmd)
	snapshotsCmd.AddCommand(snapshotsShowCmd)
	snapshotsCmd.AddCommand(snapshotsRemoveCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

// snapshotDBPath returns path, or the repository's .git/codereview.db when empty.
func snapshotDBPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	_, root, err := getGit()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, ".git", "codereview.db"), nil
}

// openStore opens the export database and brings its schema up to date.
func openStore(ctx context.Context, path string) (store.Store, error) {
	db, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func snapshotsListRun(ctx context.Context) error {
	path, err := snapshotDBPath(snapshotsDBPath)
	if err != nil {
		return err
	}
	s, err := openStore(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	snaps, err := s.ListSnapshots(ctx, snapshotsRef)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		ui.Info("No snapshots in %s", path)
		return nil
	}

	table := ui.Table([]string{"ID", "Ref", "Taken"})
	for _, snap := range snaps {
		_ = table.Append([]string{
			snap.ID,
			snap.Ref,
			output.Age(nowFunc().Sub(snap.TakenAt)),
		})
	}
	return table.Render()
}

func snapshotsShowRun(ctx context.Context, id string) error {
	path, err := snapshotDBPath(snapshotsDBPath)
	if err != nil {
		return err
	}
	s, err := openStore(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	snap, err := s.GetSnapshot(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s %s of %s, %s\n",
		output.Bold("Snapshot"), snap.ID, output.Blue(snap.Ref), output.Magenta(output.Age(nowFunc().Sub(snap.TakenAt))))
	fmt.Fprintln(ui.Out)
	if len(snap.Reviews) == 0 {
		ui.Info("No reviews captured")
		return nil
	}
	for i, r := range snap.Reviews {
		fmt.Fprintln(ui.Out, summaryLine(review.Summarize(i+1, r)))
	}
	return nil
}

func snapshotsRemoveRun(ctx context.Context, id string) error {
	path, err := snapshotDBPath(snapshotsDBPath)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete snapshot %s from %s", id, path)
		return nil
	}

	s, err := openStore(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.DeleteSnapshot(ctx, id); err != nil {
		return err
	}
	ui.Success("Deleted snapshot %s", id)
	return nil
}
