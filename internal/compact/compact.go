// Package compact prunes destination snapshots under retention rules.
package compact

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Combustible/minimal-zfs-backups/internal/config"
	"github.com/Combustible/minimal-zfs-backups/internal/console"
	"github.com/Combustible/minimal-zfs-backups/internal/executor"
	"github.com/Combustible/minimal-zfs-backups/internal/retention"
	"github.com/Combustible/minimal-zfs-backups/internal/zfs"
)

type Options struct {
	DryRun    bool
	Verbose   bool
	NoConfirm bool
}

// pruneSet is the deletion set computed for one destination dataset.
type pruneSet struct {
	dataset  string
	toDelete []zfs.Snapshot
}

// Run prunes old snapshots on every configured destination dataset. The
// deletion sets are computed first, confirmed once in aggregate, then
// destroyed one snapshot at a time; a destroy failure is recorded but does
// not stop the remaining destroys. The job fails iff any destroy failed.
func Run(ctx context.Context, cfg *config.Config, dstExec executor.Executor, con *console.Console, opts Options) error {
	if len(cfg.Rules) == 0 {
		con.Printf("No compaction rules defined in config. Nothing to do.\n")
		return nil
	}

	var sets []pruneSet
	for _, srcDataset := range cfg.Datasets {
		dstDataset := cfg.Destination.DatasetFor(srcDataset)
		con.Printf("\n")
		con.Rule()
		con.Printf("Compacting: %s\n", dstDataset)

		if !zfs.DatasetExists(ctx, dstDataset, dstExec) {
			con.Printf("  Dataset does not exist, skipping.\n")
			continue
		}

		snaps, err := zfs.ListSnapshots(ctx, dstDataset, dstExec)
		if err != nil {
			con.Errorf("  ERROR listing snapshots: %v\n", err)
			slog.Error("Failed to list snapshots", "dstDataset", dstDataset, "error", err)
			continue
		}
		if opts.Verbose {
			con.Printf("  Total snapshots: %d\n", len(snaps))
		}

		// Anchor every rule to this dataset so identically-named
		// snapshots on other datasets cannot cross-match.
		rules := make([]retention.Rule, 0, len(cfg.Rules))
		for _, r := range cfg.Rules {
			qualified, err := r.Qualify(dstDataset)
			if err != nil {
				return fmt.Errorf("failed to qualify rule %q: %w", r.Pattern, err)
			}
			rules = append(rules, qualified)
		}

		toDelete := retention.SnapshotsToDelete(snaps, rules)
		if len(toDelete) == 0 {
			con.Printf("  Nothing to delete.\n")
			continue
		}

		con.Printf("  Would delete %d snapshot(s):\n", len(toDelete))
		for _, snap := range toDelete {
			con.Printf("    %s\n", snap.FullName())
		}
		sets = append(sets, pruneSet{dataset: dstDataset, toDelete: toDelete})
	}

	if len(sets) == 0 || opts.DryRun {
		return nil
	}

	total := 0
	for _, s := range sets {
		total += len(s.toDelete)
	}
	if !opts.NoConfirm {
		if !con.Confirm(fmt.Sprintf("\nDelete %d snapshot(s) across %d dataset(s)?", total, len(sets))) {
			con.Printf("Aborted by user.\n")
			return console.ErrAborted
		}
	}

	anyError := false
	for _, s := range sets {
		deleted := 0
		for _, snap := range s.toDelete {
			err := zfs.DestroySnapshot(ctx, snap, dstExec, zfs.Options{Verbose: opts.Verbose, Out: con.Out})
			if err != nil {
				con.Errorf("  ERROR destroying %s: %v\n", snap.FullName(), err)
				slog.Error("Destroy failed", "snapshot", snap.FullName(), "error", err)
				anyError = true
				continue
			}
			deleted++
		}
		con.Printf("  %s: deleted %d snapshot(s).\n", s.dataset, deleted)
	}

	if anyError {
		return fmt.Errorf("compaction finished with errors")
	}
	return nil
}
